// Package format encodes and decodes the fixed-size SZ file header. The
// header occupies exactly one disk block regardless of payload, so the
// compressed body always starts on a block boundary. All integers are
// little-endian uint32 and all geometry values little-endian float32.
package format

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/huanghanqing/seismic-zfp/internal/models"
	"github.com/huanghanqing/seismic-zfp/pkg/layout"
)

// HeaderBlocks is the number of disk blocks occupied by the header. The
// field exists in the format for future multi-block headers; every file
// written today stores 1.
const HeaderBlocks = 1

// HeaderBytes is the encoded header size.
const HeaderBytes = HeaderBlocks * layout.DiskBlockBytes

var (
	// ErrInvalidGeometry is returned when axis values cannot describe a
	// regular grid, e.g. fewer than two positions on an axis (the increment
	// is undefined) or non-constant spacing.
	ErrInvalidGeometry = errors.New("invalid survey geometry")

	// ErrCorruptFile is returned when stored bytes cannot be a valid SZ
	// file.
	ErrCorruptFile = errors.New("corrupt SZ file")
)

// Header field offsets, one past the other. Bytes [44, 4096) are reserved
// and zero-filled.
const (
	offHeaderBlocks = 0
	offSamples      = 4
	offXlines       = 8
	offIlines       = 12
	offFirstSample  = 16
	offFirstXline   = 20
	offFirstIline   = 24
	offStepSample   = 28
	offStepXline    = 32
	offStepIline    = 36
	offBitsPerVoxel = 40
)

// EncodeHeader builds the 4096-byte SZ header from the annotation values of
// the three survey axes. Each axis needs at least two values to derive its
// increment, and the spacing must be constant: this format only supports
// regular grids.
func EncodeHeader(ilines, xlines, samples []float32, bitsPerVoxel int) ([]byte, error) {
	if !layout.ValidBitsPerVoxel(bitsPerVoxel) {
		return nil, errors.Wrapf(layout.ErrInvalidBitsPerVoxel, "rate %d", bitsPerVoxel)
	}
	geom := models.Geometry{}
	for _, ax := range []struct {
		name string
		vals []float32
		dst  *models.Axis
	}{
		{"inline", ilines, &geom.Inlines},
		{"crossline", xlines, &geom.Crosslines},
		{"sample", samples, &geom.Samples},
	} {
		axis, err := axisFromValues(ax.vals)
		if err != nil {
			return nil, errors.Wrapf(err, "%s axis", ax.name)
		}
		*ax.dst = axis
	}

	buf := make([]byte, HeaderBytes)
	putU32 := func(off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }
	putF32 := func(off int, v float32) { putU32(off, math.Float32bits(v)) }

	putU32(offHeaderBlocks, HeaderBlocks)
	putU32(offSamples, uint32(geom.Samples.Count))
	putU32(offXlines, uint32(geom.Crosslines.Count))
	putU32(offIlines, uint32(geom.Inlines.Count))
	putF32(offFirstSample, geom.Samples.First)
	putF32(offFirstXline, geom.Crosslines.First)
	putF32(offFirstIline, geom.Inlines.First)
	putF32(offStepSample, geom.Samples.Step)
	putF32(offStepXline, geom.Crosslines.Step)
	putF32(offStepIline, geom.Inlines.Step)
	putU32(offBitsPerVoxel, uint32(bitsPerVoxel))
	return buf, nil
}

// DecodeHeader parses an encoded SZ header into the survey geometry and the
// compression rate the body was written at.
func DecodeHeader(buf []byte) (models.Geometry, int, error) {
	if len(buf) < HeaderBytes {
		return models.Geometry{}, 0, errors.Wrapf(ErrCorruptFile, "header is %d bytes, want %d", len(buf), HeaderBytes)
	}
	getU32 := func(off int) uint32 { return binary.LittleEndian.Uint32(buf[off:]) }
	getF32 := func(off int) float32 { return math.Float32frombits(getU32(off)) }

	if hb := getU32(offHeaderBlocks); hb != HeaderBlocks {
		return models.Geometry{}, 0, errors.Wrapf(ErrCorruptFile, "header block count %d", hb)
	}
	geom := models.Geometry{
		Inlines:    models.Axis{Count: int(getU32(offIlines)), First: getF32(offFirstIline), Step: getF32(offStepIline)},
		Crosslines: models.Axis{Count: int(getU32(offXlines)), First: getF32(offFirstXline), Step: getF32(offStepXline)},
		Samples:    models.Axis{Count: int(getU32(offSamples)), First: getF32(offFirstSample), Step: getF32(offStepSample)},
	}
	bitsPerVoxel := int(getU32(offBitsPerVoxel))
	if !layout.ValidBitsPerVoxel(bitsPerVoxel) {
		return models.Geometry{}, 0, errors.Wrapf(ErrCorruptFile, "stored rate %d", bitsPerVoxel)
	}
	if geom.Inlines.Count <= 0 || geom.Crosslines.Count <= 0 || geom.Samples.Count <= 0 {
		return models.Geometry{}, 0, errors.Wrap(ErrCorruptFile, "non-positive axis count")
	}
	return geom, bitsPerVoxel, nil
}

// ReadHeaderFrom reads and decodes one header block from r.
func ReadHeaderFrom(r io.Reader) (models.Geometry, int, error) {
	buf := make([]byte, HeaderBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return models.Geometry{}, 0, errors.Wrap(ErrCorruptFile, err.Error())
	}
	return DecodeHeader(buf)
}

// axisFromValues derives a regular axis from explicit annotation values.
func axisFromValues(vals []float32) (models.Axis, error) {
	if len(vals) < 2 {
		return models.Axis{}, errors.Wrapf(ErrInvalidGeometry, "%d values, need at least 2 to derive an increment", len(vals))
	}
	step := vals[1] - vals[0]
	for i := 2; i < len(vals); i++ {
		if vals[i]-vals[i-1] != step {
			return models.Axis{}, errors.Wrapf(ErrInvalidGeometry,
				"irregular spacing at position %d: %v != %v", i, vals[i]-vals[i-1], step)
		}
	}
	return models.Axis{Count: len(vals), First: vals[0], Step: step}, nil
}
