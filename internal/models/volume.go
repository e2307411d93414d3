// Package models defines the shared value types describing seismic volume
// geometry. A survey is assumed to lie on a regular grid: every axis has a
// first value and a constant increment. Irregular geometries are not
// representable here and must be rejected at the boundary that discovers them.
package models

// Axis describes one regularly sampled axis of a seismic survey.
type Axis struct {
	// Count is the number of positions along the axis.
	Count int

	// First is the annotation value of the first position, e.g. the first
	// inline number or the recording time of the first sample in ms.
	First float32

	// Step is the constant increment between consecutive positions.
	Step float32
}

// Values expands the axis back into its explicit annotation values.
func (a Axis) Values() []float32 {
	vals := make([]float32, a.Count)
	for i := range vals {
		vals[i] = a.First + float32(i)*a.Step
	}
	return vals
}

// Geometry describes the full 3D grid of a seismic volume.
type Geometry struct {
	// Inlines is the slowest-varying horizontal axis.
	Inlines Axis

	// Crosslines is the fastest-varying horizontal axis.
	Crosslines Axis

	// Samples is the vertical (time or depth) axis of each trace.
	Samples Axis
}

// Volume is a dense 3D array of amplitude samples in row-major
// (inline, crossline, sample) order.
type Volume struct {
	// Geom describes the grid the samples lie on.
	Geom Geometry

	// Data holds Geom.Inlines.Count * Geom.Crosslines.Count *
	// Geom.Samples.Count float32 amplitudes.
	Data []float32
}

// Index returns the position of sample (i, x, s) within Data.
func (v *Volume) Index(i, x, s int) int {
	return (i*v.Geom.Crosslines.Count+x)*v.Geom.Samples.Count + s
}

// At returns the amplitude at inline i, crossline x, sample s.
func (v *Volume) At(i, x, s int) float32 {
	return v.Data[v.Index(i, x, s)]
}
