package codec

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// FixedRate is the built-in fixed-rate codec. Rates 1..16 quantize each
// 64-voxel chunk with a shared exponent followed by a sign plane and
// magnitude bit planes, most significant first, truncated to the chunk's bit
// budget. Rate 32 stores raw little-endian float32 and is lossless.
//
// The shared-exponent layout makes the distortion relative to the loudest
// sample of each chunk, which suits seismic amplitudes: quiet chunks keep
// quiet detail.
type FixedRate struct{}

// magBits is the number of magnitude bits each sample is quantized to
// before plane truncation.
const magBits = 30

// Compress implements BlockCodec.
func (FixedRate) Compress(raw []float32, bitsPerVoxel int) ([]byte, error) {
	if err := checkCompressArgs(len(raw), bitsPerVoxel); err != nil {
		return nil, err
	}
	out := make([]byte, len(raw)*bitsPerVoxel/8)
	if bitsPerVoxel == 32 {
		for i, v := range raw {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out, nil
	}
	chunkBytes := chunkVoxels * bitsPerVoxel / 8
	for c := 0; c < len(raw)/chunkVoxels; c++ {
		compressChunk(raw[c*chunkVoxels:(c+1)*chunkVoxels], out[c*chunkBytes:(c+1)*chunkBytes])
	}
	return out, nil
}

// Decompress implements BlockCodec.
func (FixedRate) Decompress(buf []byte, voxels, bitsPerVoxel int) ([]float32, error) {
	if err := checkCompressArgs(voxels, bitsPerVoxel); err != nil {
		return nil, err
	}
	if len(buf) != voxels*bitsPerVoxel/8 {
		return nil, errors.Errorf("codec: compressed region is %d bytes, want %d", len(buf), voxels*bitsPerVoxel/8)
	}
	out := make([]float32, voxels)
	if bitsPerVoxel == 32 {
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		return out, nil
	}
	chunkBytes := chunkVoxels * bitsPerVoxel / 8
	for c := 0; c < voxels/chunkVoxels; c++ {
		decompressChunk(buf[c*chunkBytes:(c+1)*chunkBytes], out[c*chunkVoxels:(c+1)*chunkVoxels])
	}
	return out, nil
}

// compressChunk encodes exactly chunkVoxels samples into dst. Layout:
// 8-bit biased shared exponent (0 marks an all-zero chunk), then a sign
// plane, then magnitude planes from bit 29 downward until dst is full.
func compressChunk(vals []float32, dst []byte) {
	var maxAbs float64
	for _, v := range vals {
		if a := math.Abs(float64(v)); a > maxAbs {
			maxAbs = a
		}
	}
	if maxAbs == 0 {
		return // dst stays zero, decoded as an all-zero chunk
	}
	// e is chosen so that maxAbs < 2^e, giving every quantized magnitude
	// room in magBits bits.
	e := math.Ilogb(maxAbs) + 1
	eb := e + 128
	if eb < 1 {
		return // below float32 denormal territory, store as zero chunk
	}
	if eb > 255 {
		eb = 255
		e = eb - 128
	}
	scale := math.Ldexp(1, magBits-e)

	var q [chunkVoxels]uint32
	var neg [chunkVoxels]bool
	for i, v := range vals {
		f := float64(v)
		neg[i] = math.Signbit(f)
		m := math.Round(math.Abs(f) * scale)
		if m >= 1<<magBits {
			m = 1<<magBits - 1
		}
		q[i] = uint32(m)
	}

	w := bitWriter{buf: dst}
	w.writeBits(uint64(eb), 8)
	for i := 0; i < chunkVoxels && w.remaining() > 0; i++ {
		w.writeBit(neg[i])
	}
	for p := magBits - 1; p >= 0 && w.remaining() > 0; p-- {
		for i := 0; i < chunkVoxels && w.remaining() > 0; i++ {
			w.writeBit(q[i]>>p&1 == 1)
		}
	}
}

// decompressChunk mirrors compressChunk bit for bit.
func decompressChunk(src []byte, dst []float32) {
	r := bitReader{buf: src}
	eb := int(r.readBits(8))
	if eb == 0 {
		return // all-zero chunk
	}
	e := eb - 128

	var q [chunkVoxels]uint32
	var neg [chunkVoxels]bool
	for i := 0; i < chunkVoxels && r.remaining() > 0; i++ {
		neg[i] = r.readBit()
	}
	for p := magBits - 1; p >= 0 && r.remaining() > 0; p-- {
		for i := 0; i < chunkVoxels && r.remaining() > 0; i++ {
			if r.readBit() {
				q[i] |= 1 << p
			}
		}
	}

	scale := math.Ldexp(1, magBits-e)
	for i := range dst {
		v := float64(q[i]) / scale
		if neg[i] {
			v = -v
		}
		dst[i] = float32(v)
	}
}

// bitWriter packs bits MSB-first into a fixed buffer.
type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) remaining() int {
	return len(w.buf)*8 - w.n
}

func (w *bitWriter) writeBit(b bool) {
	if b {
		w.buf[w.n/8] |= 1 << (7 - w.n%8)
	}
	w.n++
}

func (w *bitWriter) writeBits(v uint64, bits int) {
	for i := bits - 1; i >= 0; i-- {
		w.writeBit(v>>i&1 == 1)
	}
}

// bitReader reads bits MSB-first from a fixed buffer.
type bitReader struct {
	buf []byte
	n   int
}

func (r *bitReader) remaining() int {
	return len(r.buf)*8 - r.n
}

func (r *bitReader) readBit() bool {
	b := r.buf[r.n/8]>>(7-r.n%8)&1 == 1
	r.n++
	return b
}

func (r *bitReader) readBits(bits int) uint64 {
	var v uint64
	for i := 0; i < bits; i++ {
		v <<= 1
		if r.readBit() {
			v |= 1
		}
	}
	return v
}
