package szreader

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/huanghanqing/seismic-zfp/internal/models"
	"github.com/huanghanqing/seismic-zfp/pkg/codec"
	"github.com/huanghanqing/seismic-zfp/pkg/convert"
	"github.com/huanghanqing/seismic-zfp/pkg/format"
	"github.com/huanghanqing/seismic-zfp/pkg/grid"
	"github.com/huanghanqing/seismic-zfp/pkg/segy"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func synthVolume(ilines, xlines, samples int) *models.Volume {
	vol := &models.Volume{
		Geom: models.Geometry{
			Inlines:    models.Axis{Count: ilines, First: 100, Step: 1},
			Crosslines: models.Axis{Count: xlines, First: 2000, Step: 2},
			Samples:    models.Axis{Count: samples, First: 0, Step: 4},
		},
		Data: make([]float32, ilines*xlines*samples),
	}
	for i := range vol.Data {
		vol.Data[i] = float32(i%251-125) / 4
	}
	return vol
}

// writeSZ converts a synthetic volume to a temp SZ file and returns both.
func writeSZ(t *testing.T, vol *models.Volume, bits int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vol.sz")
	err := convert.Convert(&segy.MemorySource{Vol: vol}, path, convert.Options{
		BitsPerVoxel: bits,
		Method:       convert.MethodStream,
		Log:          quietLogger(),
	})
	require.NoError(t, err)
	return path
}

func TestRoundTripLossless(t *testing.T) {
	vol := synthVolume(10, 6, 25)
	r, err := Open(writeSZ(t, vol, 32))
	require.NoError(t, err)
	defer r.Close()

	require.Equal(t, vol.Geom, r.Geometry())
	require.Equal(t, 32, r.BitsPerVoxel())

	t.Run("Inlines", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			slice, err := r.ReadInline(i)
			require.NoError(t, err)
			require.Len(t, slice, 6)
			for x := range slice {
				require.Len(t, slice[x], 25)
				for s, v := range slice[x] {
					require.Equal(t, vol.At(i, x, s), v, "inline %d trace %d sample %d", i, x, s)
				}
			}
		}
	})

	t.Run("Crosslines", func(t *testing.T) {
		for x := 0; x < 6; x++ {
			slice, err := r.ReadCrossline(x)
			require.NoError(t, err)
			require.Len(t, slice, 10)
			for i := range slice {
				for s, v := range slice[i] {
					require.Equal(t, vol.At(i, x, s), v)
				}
			}
		}
	})
}

func TestReadCorrelatedDiagonal(t *testing.T) {
	vol := synthVolume(10, 6, 25)
	r, err := Open(writeSZ(t, vol, 32))
	require.NoError(t, err)
	defer r.Close()

	lo, hi := grid.DiagonalRange(10, 6)
	for l := lo; l <= hi; l++ {
		slice, err := r.ReadCorrelatedDiagonal(l)
		require.NoError(t, err, "l=%d", l)

		coords, err := grid.DiagonalCoords(l, 10, 6)
		require.NoError(t, err)
		require.Len(t, slice, len(coords), "l=%d", l)
		for d, c := range coords {
			for s, v := range slice[d] {
				require.Equal(t, vol.At(c.Inline, c.Crossline, s), v, "l=%d d=%d s=%d", l, d, s)
			}
		}
	}
}

func TestLossyRoundTripTolerance(t *testing.T) {
	vol := synthVolume(9, 5, 30)
	r, err := Open(writeSZ(t, vol, 16))
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < 9; i++ {
		slice, err := r.ReadInline(i)
		require.NoError(t, err)
		for x := range slice {
			for s, v := range slice[x] {
				require.InDelta(t, vol.At(i, x, s), v, 0.01)
			}
		}
	}
}

// countingCodec counts decompress calls so tests can assert a read touched
// no blocks.
type countingCodec struct {
	inner          codec.BlockCodec
	decompressions int
}

func (c *countingCodec) Compress(raw []float32, bits int) ([]byte, error) {
	return c.inner.Compress(raw, bits)
}

func (c *countingCodec) Decompress(buf []byte, voxels, bits int) ([]float32, error) {
	c.decompressions++
	return c.inner.Decompress(buf, voxels, bits)
}

func TestOutOfRangeReadsTouchNothing(t *testing.T) {
	vol := synthVolume(10, 6, 25)
	counter := &countingCodec{inner: codec.Default()}
	r, err := OpenWithCodec(writeSZ(t, vol, 32), counter)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.ReadInline(10)
	require.True(t, errors.Is(err, grid.ErrLineOutOfRange))
	_, err = r.ReadInline(-1)
	require.True(t, errors.Is(err, grid.ErrLineOutOfRange))
	_, err = r.ReadCrossline(6)
	require.True(t, errors.Is(err, grid.ErrLineOutOfRange))
	_, err = r.ReadCorrelatedDiagonal(10)
	require.True(t, errors.Is(err, grid.ErrLineOutOfRange))
	_, err = r.ReadCorrelatedDiagonal(-6)
	require.True(t, errors.Is(err, grid.ErrLineOutOfRange))

	require.Zero(t, counter.decompressions)
}

func TestCorruptFiles(t *testing.T) {
	vol := synthVolume(10, 6, 25)
	path := writeSZ(t, vol, 4)

	t.Run("Truncated", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		short := filepath.Join(t.TempDir(), "short.sz")
		require.NoError(t, os.WriteFile(short, data[:len(data)-100], 0644))
		_, err = Open(short)
		require.True(t, errors.Is(err, format.ErrCorruptFile))
	})

	t.Run("GarbageHeader", func(t *testing.T) {
		garbage := filepath.Join(t.TempDir(), "garbage.sz")
		require.NoError(t, os.WriteFile(garbage, make([]byte, 8192), 0644))
		_, err := Open(garbage)
		require.True(t, errors.Is(err, format.ErrCorruptFile))
	})
}

// TestConcurrentReads exercises the documented guarantee that a Reader is
// safe for concurrent use after Open.
func TestConcurrentReads(t *testing.T) {
	vol := synthVolume(12, 8, 25)
	r, err := Open(writeSZ(t, vol, 32))
	require.NoError(t, err)
	defer r.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 12; i++ {
				slice, err := r.ReadInline(i)
				if err != nil || len(slice) != 8 {
					t.Errorf("worker %d inline %d: %v", w, i, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
}
