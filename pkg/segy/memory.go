package segy

import (
	"github.com/pkg/errors"

	"github.com/huanghanqing/seismic-zfp/internal/models"
)

// MemorySource serves a volume already held in memory through the same
// interface as a SEG-Y file. It backs the property tests and lets library
// callers convert synthetic volumes without touching disk.
type MemorySource struct {
	Vol *models.Volume
}

// Ilines returns the inline annotation values.
func (m *MemorySource) Ilines() []float32 { return m.Vol.Geom.Inlines.Values() }

// Xlines returns the crossline annotation values.
func (m *MemorySource) Xlines() []float32 { return m.Vol.Geom.Crosslines.Values() }

// Samples returns the sample axis values.
func (m *MemorySource) Samples() []float32 { return m.Vol.Geom.Samples.Values() }

// ReadInline returns copies of the traces of inline ordinal idx.
func (m *MemorySource) ReadInline(idx int) ([][]float32, error) {
	g := m.Vol.Geom
	if idx < 0 || idx >= g.Inlines.Count {
		return nil, errors.Wrapf(ErrSourceFormat, "inline ordinal %d outside [0, %d)", idx, g.Inlines.Count)
	}
	out := make([][]float32, g.Crosslines.Count)
	for x := range out {
		start := m.Vol.Index(idx, x, 0)
		trace := make([]float32, g.Samples.Count)
		copy(trace, m.Vol.Data[start:start+g.Samples.Count])
		out[x] = trace
	}
	return out, nil
}

// Close implements the closer half of the source contract; a MemorySource
// holds no resources.
func (m *MemorySource) Close() error { return nil }
