// Package grid implements line addressing on the inline/crossline grid of a
// seismic survey. Its central concern is the correlated diagonal: a slice
// that advances one inline and one crossline per trace, identified by a
// single integer line index.
package grid

import (
	"github.com/pkg/errors"
)

// ErrLineOutOfRange is returned when a requested line index lies outside the
// survey grid.
var ErrLineOutOfRange = errors.New("line index out of range")

// Coord is one (inline, crossline) position on the survey grid. Both values
// are zero-based ordinal indices, not annotation numbers.
type Coord struct {
	Inline    int
	Crossline int
}

// DiagonalRange returns the inclusive bounds of valid correlated-diagonal
// indices for a grid of ilines x xlines traces. Index 0 is the diagonal
// starting at the grid origin; positive indices shift the start along the
// inline axis, negative along the crossline axis.
func DiagonalRange(ilines, xlines int) (lo, hi int) {
	return -(xlines - 1), ilines - 1
}

// DiagonalLength returns the number of traces on correlated diagonal l.
// The extremes of the valid range are degenerate single-trace diagonals and
// are considered valid.
func DiagonalLength(l, ilines, xlines int) (int, error) {
	if err := checkLine(l, ilines, xlines); err != nil {
		return 0, err
	}
	if l >= 0 {
		return min(ilines-l, xlines), nil
	}
	return min(ilines, xlines+l), nil
}

// DiagonalCoords returns, in trace order, the grid coordinates traversed by
// correlated diagonal l. The d-th coordinate is
// (d + max(l,0), d + max(-l,0)).
func DiagonalCoords(l, ilines, xlines int) ([]Coord, error) {
	n, err := DiagonalLength(l, ilines, xlines)
	if err != nil {
		return nil, err
	}
	coords := make([]Coord, n)
	for d := range coords {
		coords[d] = Coord{
			Inline:    d + max(l, 0),
			Crossline: d + max(-l, 0),
		}
	}
	return coords, nil
}

func checkLine(l, ilines, xlines int) error {
	lo, hi := DiagonalRange(ilines, xlines)
	if l < lo || l > hi {
		return errors.Wrapf(ErrLineOutOfRange, "diagonal %d not in [%d, %d]", l, lo, hi)
	}
	return nil
}
