package convert

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/huanghanqing/seismic-zfp/internal/models"
	"github.com/huanghanqing/seismic-zfp/pkg/format"
	"github.com/huanghanqing/seismic-zfp/pkg/layout"
	"github.com/huanghanqing/seismic-zfp/pkg/memory"
	"github.com/huanghanqing/seismic-zfp/pkg/segy"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// synthVolume builds a deterministic test volume on a regular grid.
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

// TestStrategyEquivalence is the core invariant of the converter: the
// streaming and in-memory strategies write byte-identical files.
func TestStrategyEquivalence(t *testing.T) {
	dir := t.TempDir()
	src := &segy.MemorySource{Vol: synthVolume(10, 6, 25)}

	for _, bits := range []int{4, 32} {
		inMem := filepath.Join(dir, "inmem.sz")
		streamed := filepath.Join(dir, "stream.sz")

		require.NoError(t, Convert(src, inMem, Options{
			BitsPerVoxel: bits, Method: MethodInMemory, Log: quietLogger(),
		}))
		require.NoError(t, Convert(src, streamed, Options{
			BitsPerVoxel: bits, Method: MethodStream, Log: quietLogger(),
		}))

		a, err := os.ReadFile(inMem)
		require.NoError(t, err)
		b, err := os.ReadFile(streamed)
		require.NoError(t, err)
		require.Equal(t, a, b, "rate %d", bits)

		// The body must hold exactly the groups the padded shape implies.
		padded, err := layout.PadShape(10, 6, 25, bits)
		require.NoError(t, err)
		want := layout.GroupOffset(format.HeaderBlocks, layout.GroupCount(padded), padded, bits)
		require.Equal(t, want, int64(len(a)), "rate %d", bits)
	}
}

func TestQueueDepthDoesNotChangeOutput(t *testing.T) {
	dir := t.TempDir()
	src := &segy.MemorySource{Vol: synthVolume(9, 5, 30)}

	var files [][]byte
	for _, depth := range []int{1, 2, 16} {
		path := filepath.Join(dir, "out.sz")
		require.NoError(t, Convert(src, path, Options{
			BitsPerVoxel: 4, Method: MethodStream, QueueDepth: depth, Log: quietLogger(),
		}))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		files = append(files, data)
	}
	require.Equal(t, files[0], files[1])
	require.Equal(t, files[0], files[2])
}

func TestMemoryGuard(t *testing.T) {
	dir := t.TempDir()
	src := &segy.MemorySource{Vol: synthVolume(10, 6, 25)}
	out := filepath.Join(dir, "guarded.sz")

	err := Convert(src, out, Options{
		BitsPerVoxel: 4,
		Method:       MethodInMemory,
		Memory:       memory.Fixed{TotalBytes: 64, AvailableBytes: 64},
		Log:          quietLogger(),
	})
	require.True(t, errors.Is(err, ErrInsufficientMemory))

	// The guard fires before the destination is created.
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))

	require.NoError(t, Convert(src, out, Options{
		BitsPerVoxel: 4,
		Method:       MethodInMemory,
		Memory:       memory.Fixed{TotalBytes: 1 << 40, AvailableBytes: 1 << 40},
		Log:          quietLogger(),
	}))
}

func TestParseMethod(t *testing.T) {
	for name, want := range map[string]Method{
		"stream":       MethodStream,
		"streaming":    MethodStream,
		"inmemory":     MethodInMemory,
		"in-memory":    MethodInMemory,
		"whole-volume": MethodInMemory,
	} {
		got, err := ParseMethod(name)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseMethod("clever")
	require.True(t, errors.Is(err, ErrUnsupportedStrategy))
}

func TestInvalidOptions(t *testing.T) {
	dir := t.TempDir()
	src := &segy.MemorySource{Vol: synthVolume(8, 4, 20)}

	t.Run("BadRate", func(t *testing.T) {
		err := Convert(src, filepath.Join(dir, "bad.sz"), Options{
			BitsPerVoxel: 3, Method: MethodStream, Log: quietLogger(),
		})
		require.True(t, errors.Is(err, layout.ErrInvalidBitsPerVoxel))
	})

	t.Run("BadMethod", func(t *testing.T) {
		err := Convert(src, filepath.Join(dir, "bad.sz"), Options{
			BitsPerVoxel: 4, Method: Method("clever"), Log: quietLogger(),
		})
		require.True(t, errors.Is(err, ErrUnsupportedStrategy))
	})

	t.Run("DegenerateAxis", func(t *testing.T) {
		err := Convert(&segy.MemorySource{Vol: synthVolume(1, 4, 20)}, filepath.Join(dir, "bad.sz"), Options{
			BitsPerVoxel: 4, Method: MethodStream, Log: quietLogger(),
		})
		require.True(t, errors.Is(err, format.ErrInvalidGeometry))
	})
}

// raggedSource serves one inline with a short trace to exercise geometry
// consistency checks.
type raggedSource struct {
	*segy.MemorySource
}

func (r *raggedSource) ReadInline(idx int) ([][]float32, error) {
	traces, err := r.MemorySource.ReadInline(idx)
	if err != nil {
		return nil, err
	}
	if idx == 1 {
		traces[2] = traces[2][:3]
	}
	return traces, nil
}

func TestInconsistentTraceGeometry(t *testing.T) {
	dir := t.TempDir()
	src := &raggedSource{&segy.MemorySource{Vol: synthVolume(8, 4, 20)}}

	for _, method := range []Method{MethodInMemory, MethodStream} {
		err := Convert(src, filepath.Join(dir, "ragged.sz"), Options{
			BitsPerVoxel: 4,
			Method:       method,
			Memory:       memory.Fixed{TotalBytes: 1 << 40, AvailableBytes: 1 << 40},
			Log:          quietLogger(),
		})
		require.True(t, errors.Is(err, segy.ErrSourceFormat), "method %s", method)
	}
}
