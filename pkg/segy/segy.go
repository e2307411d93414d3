// Package segy reads regular 3D post-stack SEG-Y volumes. It implements the
// narrow slice of the standard the converter needs: fixed-length traces, one
// amplitude volume, inline and crossline numbers in the standard trace
// header words, big-endian IBM or IEEE 4-byte samples. Anything it cannot
// prove to be a dense regular grid is rejected with ErrSourceFormat rather
// than guessed at.
package segy

import (
	"encoding/binary"
	"math"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// ErrSourceFormat is returned when a source file is malformed or its trace
// geometry is inconsistent with a dense regular grid.
var ErrSourceFormat = errors.New("malformed source volume")

const (
	textHeaderBytes   = 3200
	binaryHeaderBytes = 400
	traceHeaderBytes  = 240
	bytesPerSample    = 4

	// Binary header fields, offsets within the 400-byte header.
	binSampleInterval = 16 // uint16, microseconds
	binSamplesPerTrc  = 20 // uint16
	binFormatCode     = 24 // uint16

	// Trace header fields, offsets within the 240-byte header.
	trcDelayTime = 108 // int16, milliseconds
	trcSamples   = 114 // uint16
	trcInline    = 188 // int32
	trcCrossline = 192 // int32
)

// Sample format codes from the SEG-Y standard.
const (
	formatIBMFloat  = 1
	formatIEEEFloat = 5
)

// File is an open SEG-Y volume. It is safe for concurrent reads: all file
// access goes through ReadAt and no state is mutated after Open returns.
type File struct {
	f       *os.File
	ilines  []float32
	xlines  []float32
	samples []float32
	format  int
	ns      int // samples per trace
}

// Open reads the survey geometry of a SEG-Y file: it scans every trace
// header to establish the inline/crossline grid and fails if the traces do
// not form a dense inline-sorted regular volume.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	s, err := newFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func newFile(f *os.File) (*File, error) {
	hdr := make([]byte, textHeaderBytes+binaryHeaderBytes)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return nil, errors.Wrap(ErrSourceFormat, "file shorter than SEG-Y headers")
	}
	bin := hdr[textHeaderBytes:]
	ns := int(binary.BigEndian.Uint16(bin[binSamplesPerTrc:]))
	format := int(binary.BigEndian.Uint16(bin[binFormatCode:]))
	intervalUS := int(binary.BigEndian.Uint16(bin[binSampleInterval:]))
	if ns == 0 {
		return nil, errors.Wrap(ErrSourceFormat, "zero samples per trace")
	}
	if format != formatIBMFloat && format != formatIEEEFloat {
		return nil, errors.Wrapf(ErrSourceFormat, "unsupported sample format code %d", format)
	}
	if intervalUS%1000 != 0 {
		// The SZ header stores the sample increment in whole milliseconds.
		return nil, errors.Wrapf(ErrSourceFormat, "non-integer sampling interval %dus", intervalUS)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat")
	}
	traceBytes := int64(traceHeaderBytes + ns*bytesPerSample)
	body := info.Size() - textHeaderBytes - binaryHeaderBytes
	if body <= 0 || body%traceBytes != 0 {
		return nil, errors.Wrapf(ErrSourceFormat, "trace data of %d bytes is not a whole number of %d-byte traces", body, traceBytes)
	}
	traceCount := int(body / traceBytes)

	ils, xls, delay, err := scanTraceHeaders(f, traceCount, ns)
	if err != nil {
		return nil, err
	}

	samples := make([]float32, ns)
	for i := range samples {
		samples[i] = float32(delay) + float32(i)*float32(intervalUS/1000)
	}
	return &File{f: f, ilines: ils, xlines: xls, samples: samples, format: format, ns: ns}, nil
}

// scanTraceHeaders reads every trace header and verifies the traces are
// sorted inline-major over a dense grid of unique inline and crossline
// numbers.
func scanTraceHeaders(f *os.File, traceCount, ns int) (ils, xls []float32, delay int, err error) {
	traceBytes := int64(traceHeaderBytes + ns*bytesPerSample)
	il := make([]int32, traceCount)
	xl := make([]int32, traceCount)
	hdr := make([]byte, traceHeaderBytes)
	for t := 0; t < traceCount; t++ {
		off := textHeaderBytes + binaryHeaderBytes + int64(t)*traceBytes
		if _, err := f.ReadAt(hdr, off); err != nil {
			return nil, nil, 0, errors.Wrapf(ErrSourceFormat, "trace header %d: %v", t, err)
		}
		if tns := int(binary.BigEndian.Uint16(hdr[trcSamples:])); tns != 0 && tns != ns {
			return nil, nil, 0, errors.Wrapf(ErrSourceFormat, "trace %d has %d samples, volume has %d", t, tns, ns)
		}
		il[t] = int32(binary.BigEndian.Uint32(hdr[trcInline:]))
		xl[t] = int32(binary.BigEndian.Uint32(hdr[trcCrossline:]))
		if t == 0 {
			delay = int(int16(binary.BigEndian.Uint16(hdr[trcDelayTime:])))
		}
	}

	uniqIl := uniqueSorted(il)
	uniqXl := uniqueSorted(xl)
	if len(uniqIl)*len(uniqXl) != traceCount {
		return nil, nil, 0, errors.Wrapf(ErrSourceFormat,
			"%d traces do not fill a %dx%d grid", traceCount, len(uniqIl), len(uniqXl))
	}
	// Traces must appear inline-major so that inline reads are contiguous.
	for t := 0; t < traceCount; t++ {
		if il[t] != uniqIl[t/len(uniqXl)] || xl[t] != uniqXl[t%len(uniqXl)] {
			return nil, nil, 0, errors.Wrapf(ErrSourceFormat, "trace %d out of inline-major order", t)
		}
	}

	toF32 := func(vals []int32) []float32 {
		out := make([]float32, len(vals))
		for i, v := range vals {
			out[i] = float32(v)
		}
		return out
	}
	return toF32(uniqIl), toF32(uniqXl), delay, nil
}

func uniqueSorted(vals []int32) []int32 {
	seen := make(map[int32]bool, len(vals))
	var out []int32
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ilines returns the inline annotation numbers, ascending.
func (s *File) Ilines() []float32 { return s.ilines }

// Xlines returns the crossline annotation numbers, ascending.
func (s *File) Xlines() []float32 { return s.xlines }

// Samples returns the sample axis values in milliseconds.
func (s *File) Samples() []float32 { return s.samples }

// ReadInline returns the traces of the idx-th inline (zero-based ordinal,
// not annotation number) as a crossline x sample array.
func (s *File) ReadInline(idx int) ([][]float32, error) {
	if idx < 0 || idx >= len(s.ilines) {
		return nil, errors.Wrapf(ErrSourceFormat, "inline ordinal %d outside [0, %d)", idx, len(s.ilines))
	}
	nxl := len(s.xlines)
	traceBytes := int64(traceHeaderBytes + s.ns*bytesPerSample)
	buf := make([]byte, int(traceBytes)*nxl)
	off := textHeaderBytes + binaryHeaderBytes + int64(idx*nxl)*traceBytes
	if _, err := s.f.ReadAt(buf, off); err != nil {
		return nil, errors.Wrapf(ErrSourceFormat, "reading inline %d: %v", idx, err)
	}

	out := make([][]float32, nxl)
	for x := 0; x < nxl; x++ {
		raw := buf[int(traceBytes)*x+traceHeaderBytes : int(traceBytes)*x+traceHeaderBytes+s.ns*bytesPerSample]
		trace := make([]float32, s.ns)
		for i := range trace {
			bits := binary.BigEndian.Uint32(raw[4*i:])
			if s.format == formatIBMFloat {
				trace[i] = ibmToFloat32(bits)
			} else {
				trace[i] = math.Float32frombits(bits)
			}
		}
		out[x] = trace
	}
	return out, nil
}

// Close releases the underlying file handle.
func (s *File) Close() error {
	return s.f.Close()
}

// ibmToFloat32 converts a big-endian IBM System/360 hexadecimal float to
// IEEE-754. IBM floats have a 7-bit base-16 exponent biased by 64 and a
// 24-bit fraction with no hidden bit.
func ibmToFloat32(bits uint32) float32 {
	frac := bits & 0x00ffffff
	if frac == 0 {
		return 0
	}
	sign := float64(1)
	if bits&0x80000000 != 0 {
		sign = -1
	}
	exp := int(bits>>24&0x7f) - 64
	return float32(sign * float64(frac) / float64(1<<24) * math.Pow(16, float64(exp)))
}
