// Package quality measures how closely a reconstructed volume matches its
// original, for validating lossy conversion settings.
package quality

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Metrics summarizes the reconstruction error of a lossy round trip.
type Metrics struct {
	// RMSE is the root mean square sample error.
	RMSE float64

	// MaxError is the largest absolute sample error.
	MaxError float64

	// SNR is the signal-to-noise ratio in decibels; +Inf for an exact
	// reconstruction.
	SNR float64
}

// Compare computes reconstruction metrics between an original and a
// reconstructed sample array of equal length.
func Compare(orig, recon []float32) (Metrics, error) {
	if len(orig) != len(recon) {
		return Metrics{}, errors.Errorf("length mismatch: %d vs %d samples", len(orig), len(recon))
	}
	if len(orig) == 0 {
		return Metrics{}, errors.New("empty sample arrays")
	}

	a := make([]float64, len(orig))
	b := make([]float64, len(recon))
	for i := range orig {
		a[i] = float64(orig[i])
		b[i] = float64(recon[i])
	}

	var m Metrics
	dist := floats.Distance(a, b, 2)
	m.RMSE = dist / math.Sqrt(float64(len(a)))
	for i := range a {
		if e := math.Abs(a[i] - b[i]); e > m.MaxError {
			m.MaxError = e
		}
	}
	if dist == 0 {
		m.SNR = math.Inf(1)
	} else {
		m.SNR = 20 * math.Log10(floats.Norm(a, 2)/dist)
	}
	return m, nil
}
