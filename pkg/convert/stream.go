package convert

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/huanghanqing/seismic-zfp/pkg/layout"
)

// convertStream implements the bounded-memory strategy: one producer reads
// and pads 4-inline groups, one consumer compresses and appends them. The
// bounded channel between them is the backpressure mechanism; because it is
// FIFO with a single goroutine on each end, groups reach the file strictly
// in input order and the result is byte-identical to the in-memory strategy.
func convertStream(src Source, outPath string, opts Options) error {
	p, err := newPlan(src, opts.BitsPerVoxel)
	if err != nil {
		return err
	}

	groups := layout.GroupCount(p.padded)
	groupVoxels := layout.GroupVoxels(p.padded)
	log := opts.Log.WithFields(logrus.Fields{
		"out":    outPath,
		"method": MethodStream,
		"bits":   opts.BitsPerVoxel,
		"groups": groups,
	})
	log.WithField("peak", humanize.IBytes(uint64(opts.QueueDepth)*uint64(groupVoxels)*4)).
		Info("converting volume")
	t0 := time.Now()

	// Ownership of each buffer transfers to the consumer on send; the
	// producer allocates a fresh group every iteration.
	queue := make(chan []float32, opts.QueueDepth)
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		defer close(queue)
		for gi := 0; gi < groups; gi++ {
			buf := make([]float32, groupVoxels)
			if err := p.readGroupInto(src, buf, gi); err != nil {
				return err
			}
			select {
			case queue <- buf:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		f, err := os.Create(outPath)
		if err != nil {
			return errors.Wrapf(err, "creating %s", outPath)
		}
		defer f.Close()
		if _, err := f.Write(p.header); err != nil {
			return errors.Wrap(err, "writing header")
		}
		done := 0
		for buf := range queue {
			compressed, err := opts.Codec.Compress(buf, opts.BitsPerVoxel)
			if err != nil {
				return errors.Wrapf(err, "compressing group %d", done)
			}
			if _, err := f.Write(compressed); err != nil {
				return errors.Wrapf(err, "writing group %d", done)
			}
			done++
			log.WithField("group", done).Debug("group written")
		}
		return errors.Wrapf(f.Close(), "closing %s", outPath)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.WithField("elapsed", time.Since(t0).Round(time.Millisecond)).Info("conversion complete")
	return nil
}
