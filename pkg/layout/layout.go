// Package layout implements the block-alignment arithmetic of the SZ format.
// The compressed body of an SZ file is partitioned into independently
// addressable groups of 4 inlines; for that partition to land on disk-block
// boundaries the volume dimensions are padded up to fixed multiples before
// compression. This package computes those padded shapes and the byte offsets
// of each compressed inline-group.
package layout

import (
	"github.com/pkg/errors"
)

const (
	// DiskBlockBytes is the disk block size that both the file header and
	// every compressed 4x4-column brick are aligned to.
	DiskBlockBytes = 4096

	// InlineGroupSize is the number of padded inlines forming one
	// independently compressible group.
	InlineGroupSize = 4
)

// ErrInvalidBitsPerVoxel is returned for compression rates outside the
// supported set.
var ErrInvalidBitsPerVoxel = errors.New("invalid bits per voxel")

// supportedRates are the accepted fixed compression rates. 1 through 16 are
// lossy; 32 stores samples uncompressed and round-trips exactly.
var supportedRates = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true}

// ValidBitsPerVoxel reports whether bitsPerVoxel is a supported rate.
func ValidBitsPerVoxel(bitsPerVoxel int) bool {
	return supportedRates[bitsPerVoxel]
}

// Shape holds the dimensions of a (possibly padded) volume.
type Shape struct {
	Ilines  int
	Xlines  int
	Samples int
}

// Voxels returns the total sample count of the shape.
func (s Shape) Voxels() int {
	return s.Ilines * s.Xlines * s.Samples
}

// Pad rounds n up to the next multiple of m.
func Pad(n, m int) int {
	if n%m == 0 {
		return n
	}
	return n + m - n%m
}

// PadShape returns the padded dimensions for a volume compressed at the given
// rate: inline and crossline counts become multiples of 4 and the sample
// count a multiple of 2048/bitsPerVoxel. With those multiples every 4x4
// column of traces compresses to exactly one disk block, which is what makes
// the body partitionable into block-aligned groups.
func PadShape(ilines, xlines, samples, bitsPerVoxel int) (Shape, error) {
	if !ValidBitsPerVoxel(bitsPerVoxel) {
		return Shape{}, errors.Wrapf(ErrInvalidBitsPerVoxel, "rate %d", bitsPerVoxel)
	}
	return Shape{
		Ilines:  Pad(ilines, InlineGroupSize),
		Xlines:  Pad(xlines, InlineGroupSize),
		Samples: Pad(samples, 2048/bitsPerVoxel),
	}, nil
}

// GroupCount returns the number of 4-inline groups in a padded shape.
func GroupCount(padded Shape) int {
	return padded.Ilines / InlineGroupSize
}

// GroupVoxels returns the number of raw samples in one inline-group.
func GroupVoxels(padded Shape) int {
	return InlineGroupSize * padded.Xlines * padded.Samples
}

// GroupByteSize returns the compressed size of one inline-group at the given
// rate. The padding rules guarantee this is a whole number of disk blocks.
func GroupByteSize(padded Shape, bitsPerVoxel int) int64 {
	return int64(GroupVoxels(padded)) * int64(bitsPerVoxel) / 8
}

// GroupOffset returns the file offset of compressed group g, accounting for
// the header block(s) preceding the body.
func GroupOffset(headerBlocks, g int, padded Shape, bitsPerVoxel int) int64 {
	return int64(headerBlocks)*DiskBlockBytes + int64(g)*GroupByteSize(padded, bitsPerVoxel)
}

// GroupOfInline returns the index of the group containing inline i.
func GroupOfInline(i int) int {
	return i / InlineGroupSize
}
