// Package codec provides the fixed-rate block compressor used for SZ file
// bodies. The compressor is deliberately a capability interface: the file
// format only requires that a raw sample region of N voxels compresses to
// exactly N*bitsPerVoxel/8 bytes, deterministically, and decompresses back
// to N voxels. Callers may substitute any implementation honoring that
// contract, including lossless test doubles.
package codec

import (
	"github.com/pkg/errors"
)

// chunkVoxels is the number of samples the built-in codec quantizes
// together. The SZ padding rules guarantee every compressible region is a
// whole number of chunks.
const chunkVoxels = 64

// BlockCodec compresses and decompresses fixed-size sample regions at a
// fixed rate. Both operations are pure and deterministic for a given rate.
type BlockCodec interface {
	// Compress encodes raw into exactly len(raw)*bitsPerVoxel/8 bytes.
	Compress(raw []float32, bitsPerVoxel int) ([]byte, error)

	// Decompress decodes buf back into voxels samples. buf must be exactly
	// voxels*bitsPerVoxel/8 bytes.
	Decompress(buf []byte, voxels, bitsPerVoxel int) ([]float32, error)
}

// Default returns the built-in codec: a shared-exponent bit-plane quantizer
// for the lossy rates and a float32 passthrough at rate 32.
func Default() BlockCodec {
	return FixedRate{}
}

func checkCompressArgs(voxels, bitsPerVoxel int) error {
	switch bitsPerVoxel {
	case 1, 2, 4, 8, 16, 32:
	default:
		return errors.Errorf("codec: unsupported rate %d", bitsPerVoxel)
	}
	if voxels%chunkVoxels != 0 {
		return errors.Errorf("codec: region of %d voxels is not a multiple of %d", voxels, chunkVoxels)
	}
	return nil
}
