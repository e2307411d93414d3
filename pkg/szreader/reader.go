// Package szreader provides random access to compressed SZ volumes. A
// reader resolves each slice request to the minimal set of 4-inline groups,
// decompresses only those, and returns the slice with the file's padding
// stripped. Readers are safe for concurrent use: nothing is mutated after
// Open and all file access is positional.
package szreader

import (
	"os"

	"github.com/pkg/errors"

	"github.com/huanghanqing/seismic-zfp/internal/models"
	"github.com/huanghanqing/seismic-zfp/pkg/codec"
	"github.com/huanghanqing/seismic-zfp/pkg/format"
	"github.com/huanghanqing/seismic-zfp/pkg/grid"
	"github.com/huanghanqing/seismic-zfp/pkg/layout"
)

// Reader is an open SZ file.
type Reader struct {
	f      *os.File
	geom   models.Geometry
	bits   int
	padded layout.Shape
	codec  codec.BlockCodec
}

// Open decodes the header of the SZ file at path and validates that the
// body holds exactly the compressed groups the header implies.
func Open(path string) (*Reader, error) {
	return OpenWithCodec(path, codec.Default())
}

// OpenWithCodec is Open with a caller-supplied block codec. The codec must
// match the one the file was written with.
func OpenWithCodec(path string, c codec.BlockCodec) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	geom, bits, err := format.ReadHeaderFrom(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	padded, err := layout.PadShape(geom.Inlines.Count, geom.Crosslines.Count, geom.Samples.Count, bits)
	if err != nil {
		f.Close()
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat")
	}
	want := layout.GroupOffset(format.HeaderBlocks, layout.GroupCount(padded), padded, bits)
	if info.Size() != want {
		f.Close()
		return nil, errors.Wrapf(format.ErrCorruptFile, "file is %d bytes, geometry implies %d", info.Size(), want)
	}
	return &Reader{f: f, geom: geom, bits: bits, padded: padded, codec: c}, nil
}

// Geometry returns the survey geometry stored in the header.
func (r *Reader) Geometry() models.Geometry { return r.geom }

// BitsPerVoxel returns the compression rate the file was written at.
func (r *Reader) BitsPerVoxel() int { return r.bits }

// Close releases the underlying file handle.
func (r *Reader) Close() error { return r.f.Close() }

// ReadInline returns inline ordinal i as a crossline x sample array,
// truncated to the unpadded geometry.
func (r *Reader) ReadInline(i int) ([][]float32, error) {
	if i < 0 || i >= r.geom.Inlines.Count {
		return nil, errors.Wrapf(grid.ErrLineOutOfRange, "inline %d not in [0, %d)", i, r.geom.Inlines.Count)
	}
	raw, err := r.readGroup(layout.GroupOfInline(i))
	if err != nil {
		return nil, err
	}
	out := make([][]float32, r.geom.Crosslines.Count)
	for x := range out {
		out[x] = r.trace(raw, i%layout.InlineGroupSize, x)
	}
	return out, nil
}

// ReadCrossline returns crossline ordinal x as an inline x sample array,
// truncated to the unpadded geometry. Every group holds one trace of the
// crossline, so all groups are visited, each decompressed once.
func (r *Reader) ReadCrossline(x int) ([][]float32, error) {
	if x < 0 || x >= r.geom.Crosslines.Count {
		return nil, errors.Wrapf(grid.ErrLineOutOfRange, "crossline %d not in [0, %d)", x, r.geom.Crosslines.Count)
	}
	out := make([][]float32, r.geom.Inlines.Count)
	for g := 0; g < layout.GroupCount(r.padded); g++ {
		first := g * layout.InlineGroupSize
		if first >= r.geom.Inlines.Count {
			break // trailing group holds only padding
		}
		raw, err := r.readGroup(g)
		if err != nil {
			return nil, err
		}
		for i := first; i < min(first+layout.InlineGroupSize, r.geom.Inlines.Count); i++ {
			out[i] = r.trace(raw, i-first, x)
		}
	}
	return out, nil
}

// ReadCorrelatedDiagonal returns the traces along correlated diagonal l in
// coordinate order. Only the groups the diagonal touches are decompressed,
// each exactly once.
func (r *Reader) ReadCorrelatedDiagonal(l int) ([][]float32, error) {
	coords, err := grid.DiagonalCoords(l, r.geom.Inlines.Count, r.geom.Crosslines.Count)
	if err != nil {
		return nil, err
	}
	groups := make(map[int][]float32)
	out := make([][]float32, len(coords))
	for d, c := range coords {
		g := layout.GroupOfInline(c.Inline)
		raw, ok := groups[g]
		if !ok {
			raw, err = r.readGroup(g)
			if err != nil {
				return nil, err
			}
			groups[g] = raw
		}
		out[d] = r.trace(raw, c.Inline%layout.InlineGroupSize, c.Crossline)
	}
	return out, nil
}

// readGroup decompresses one 4-inline group from the file body.
func (r *Reader) readGroup(g int) ([]float32, error) {
	buf := make([]byte, layout.GroupByteSize(r.padded, r.bits))
	off := layout.GroupOffset(format.HeaderBlocks, g, r.padded, r.bits)
	if _, err := r.f.ReadAt(buf, off); err != nil {
		return nil, errors.Wrapf(format.ErrCorruptFile, "reading group %d: %v", g, err)
	}
	voxels := layout.GroupVoxels(r.padded)
	raw, err := r.codec.Decompress(buf, voxels, r.bits)
	if err != nil {
		return nil, errors.Wrapf(format.ErrCorruptFile, "decompressing group %d: %v", g, err)
	}
	if len(raw) != voxels {
		return nil, errors.Wrapf(format.ErrCorruptFile,
			"group %d decompressed to %d voxels, want %d", g, len(raw), voxels)
	}
	return raw, nil
}

// trace copies one unpadded trace out of a decompressed group buffer.
// gi is the inline's position within the group.
func (r *Reader) trace(raw []float32, gi, x int) []float32 {
	start := (gi*r.padded.Xlines + x) * r.padded.Samples
	trace := make([]float32, r.geom.Samples.Count)
	copy(trace, raw[start:start+r.geom.Samples.Count])
	return trace
}
