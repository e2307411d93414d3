// Package convert builds SZ files from seismic volume sources. Two
// strategies are provided: an in-memory conversion that reads the whole cube
// and compresses it in one call, and a streaming conversion that holds at
// most a bounded number of 4-inline groups in flight. For the same source
// and rate the two produce byte-identical files.
package convert

import (
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/huanghanqing/seismic-zfp/pkg/codec"
	"github.com/huanghanqing/seismic-zfp/pkg/format"
	"github.com/huanghanqing/seismic-zfp/pkg/layout"
	"github.com/huanghanqing/seismic-zfp/pkg/memory"
	"github.com/huanghanqing/seismic-zfp/pkg/segy"
)

var (
	// ErrUnsupportedStrategy is returned for conversion methods this
	// package does not implement.
	ErrUnsupportedStrategy = errors.New("unsupported conversion method")

	// ErrInsufficientMemory is returned by the in-memory strategy when the
	// uncompressed volume would not fit in available physical memory. The
	// check is advisory and happens before anything is allocated.
	ErrInsufficientMemory = errors.New("volume does not fit in memory")
)

// Method selects a conversion strategy.
type Method string

const (
	// MethodInMemory reads the whole cube before compressing.
	MethodInMemory Method = "inmemory"

	// MethodStream processes 4 inlines at a time with bounded memory.
	MethodStream Method = "stream"
)

// ParseMethod maps user-facing strategy names onto a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "inmemory", "in-memory", "whole-volume":
		return MethodInMemory, nil
	case "stream", "streaming":
		return MethodStream, nil
	}
	return "", errors.Wrapf(ErrUnsupportedStrategy, "%q, try %q or %q", s, MethodInMemory, MethodStream)
}

// Source is the trace-indexed view of a seismic volume the converter reads
// from. Both segy.File and segy.MemorySource satisfy it.
type Source interface {
	// Ilines, Xlines and Samples return the annotation values of the three
	// axes, each at least two entries long for a convertible volume.
	Ilines() []float32
	Xlines() []float32
	Samples() []float32

	// ReadInline returns the traces of an inline ordinal as a
	// crossline x sample array.
	ReadInline(idx int) ([][]float32, error)
}

// Options configures a conversion. The zero value selects the streaming
// strategy at the recommended 4 bits per voxel.
type Options struct {
	// BitsPerVoxel is the fixed compression rate. Supported values are 1,
	// 2, 4, 8, 16 and 32; 4 gives roughly 8:1 compression and is the
	// recommended default. 32 stores samples losslessly.
	BitsPerVoxel int

	// Method selects the conversion strategy.
	Method Method

	// QueueDepth bounds the number of inline-groups the streaming producer
	// may buffer ahead of the compressor. Peak streaming memory is roughly
	// QueueDepth x group size. Defaults to 16.
	QueueDepth int

	// Codec compresses the sample blocks. Defaults to codec.Default().
	Codec codec.BlockCodec

	// Memory supplies the advisory figures for the in-memory guard.
	// Defaults to reading the operating system.
	Memory memory.Introspector

	// Log receives progress and timing. Defaults to the standard logger.
	Log *logrus.Logger
}

func (o *Options) setDefaults() {
	if o.BitsPerVoxel == 0 {
		o.BitsPerVoxel = 4
	}
	if o.Method == "" {
		o.Method = MethodStream
	}
	if o.QueueDepth == 0 {
		o.QueueDepth = 16
	}
	if o.Codec == nil {
		o.Codec = codec.Default()
	}
	if o.Memory == nil {
		o.Memory = memory.System{}
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
}

// Convert writes the volume served by src to outPath in SZ format. All
// validation (geometry, rate, strategy, the in-memory guard) happens before
// the destination is created; on failure the destination is absent or
// truncated and must not be treated as a valid file.
func Convert(src Source, outPath string, opts Options) error {
	opts.setDefaults()
	switch opts.Method {
	case MethodInMemory:
		return convertInMemory(src, outPath, opts)
	case MethodStream:
		return convertStream(src, outPath, opts)
	}
	return errors.Wrapf(ErrUnsupportedStrategy, "%q", opts.Method)
}

// plan is the shared per-conversion state both strategies derive from the
// source before touching the destination.
type plan struct {
	header  []byte
	ilines  int
	xlines  int
	samples int
	padded  layout.Shape
}

func newPlan(src Source, bitsPerVoxel int) (plan, error) {
	header, err := format.EncodeHeader(src.Ilines(), src.Xlines(), src.Samples(), bitsPerVoxel)
	if err != nil {
		return plan{}, err
	}
	p := plan{
		header:  header,
		ilines:  len(src.Ilines()),
		xlines:  len(src.Xlines()),
		samples: len(src.Samples()),
	}
	p.padded, err = layout.PadShape(p.ilines, p.xlines, p.samples, bitsPerVoxel)
	if err != nil {
		return plan{}, err
	}
	return p, nil
}

// readGroupInto fills buf (one zeroed inline-group of padded traces) with
// the source traces of group g. Inlines past the survey edge stay zero, as
// do the padded tails of each trace row.
func (p plan) readGroupInto(src Source, buf []float32, g int) error {
	for i := 0; i < layout.InlineGroupSize; i++ {
		inline := g*layout.InlineGroupSize + i
		if inline >= p.ilines {
			break
		}
		traces, err := src.ReadInline(inline)
		if err != nil {
			return errors.Wrapf(err, "inline %d", inline)
		}
		if len(traces) != p.xlines {
			return errors.Wrapf(segy.ErrSourceFormat,
				"inline %d has %d traces, volume has %d crosslines", inline, len(traces), p.xlines)
		}
		for x, trace := range traces {
			if len(trace) != p.samples {
				return errors.Wrapf(segy.ErrSourceFormat,
					"trace (%d, %d) has %d samples, volume has %d", inline, x, len(trace), p.samples)
			}
			copy(buf[(i*p.padded.Xlines+x)*p.padded.Samples:], trace)
		}
	}
	return nil
}

// convertInMemory implements the whole-volume strategy: advisory memory
// guard, one big padded buffer, one compress call, one write.
func convertInMemory(src Source, outPath string, opts Options) error {
	p, err := newPlan(src, opts.BitsPerVoxel)
	if err != nil {
		return err
	}

	cubeBytes := uint64(p.ilines) * uint64(p.xlines) * uint64(p.samples) * 4
	avail, err := opts.Memory.Available()
	if err != nil {
		return errors.Wrap(err, "memory guard")
	}
	if cubeBytes > avail {
		return errors.Wrapf(ErrInsufficientMemory,
			"volume is %s uncompressed, %s available", humanize.IBytes(cubeBytes), humanize.IBytes(avail))
	}

	log := opts.Log.WithFields(logrus.Fields{
		"out":    outPath,
		"method": MethodInMemory,
		"bits":   opts.BitsPerVoxel,
	})
	log.WithField("raw", humanize.IBytes(cubeBytes)).Info("converting volume")

	t0 := time.Now()
	data := make([]float32, p.padded.Voxels())
	groupVoxels := layout.GroupVoxels(p.padded)
	for g := 0; g < layout.GroupCount(p.padded); g++ {
		if err := p.readGroupInto(src, data[g*groupVoxels:(g+1)*groupVoxels], g); err != nil {
			return err
		}
	}
	tRead := time.Now()

	compressed, err := opts.Codec.Compress(data, opts.BitsPerVoxel)
	if err != nil {
		return errors.Wrap(err, "compressing volume")
	}
	tCompress := time.Now()

	f, err := os.Create(outPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", outPath)
	}
	if _, err := f.Write(p.header); err != nil {
		f.Close()
		return errors.Wrap(err, "writing header")
	}
	if _, err := f.Write(compressed); err != nil {
		f.Close()
		return errors.Wrap(err, "writing compressed volume")
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", outPath)
	}

	log.WithFields(logrus.Fields{
		"read":     tRead.Sub(t0).Round(time.Millisecond),
		"compress": tCompress.Sub(tRead).Round(time.Millisecond),
		"write":    time.Since(tCompress).Round(time.Millisecond),
		"size":     humanize.IBytes(uint64(len(p.header) + len(compressed))),
	}).Info("conversion complete")
	return nil
}
