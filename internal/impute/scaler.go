package impute

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers and scales columns to zero mean and unit variance.
// NaN entries are ignored during fitting and pass through transforms
// unchanged. Uses population variance; columns with zero variance get a
// scale of 1 so transforming them is a pure shift.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Fit computes per-column statistics from the observed entries of cols
// (column-major).
func (s *StandardScaler) Fit(cols [][]float64) {
	s.Mean = make([]float64, len(cols))
	s.Scale = make([]float64, len(cols))
	for j, col := range cols {
		obs := make([]float64, 0, len(col))
		for _, v := range col {
			if !math.IsNaN(v) {
				obs = append(obs, v)
			}
		}
		if len(obs) == 0 {
			s.Mean[j] = 0
			s.Scale[j] = 1
			continue
		}
		mean := stat.Mean(obs, nil)
		var ss float64
		for _, v := range obs {
			d := v - mean
			ss += d * d
		}
		scale := math.Sqrt(ss / float64(len(obs)))
		if scale == 0 {
			scale = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = scale
	}
}

// Transform standardizes cols in place.
func (s *StandardScaler) Transform(cols [][]float64) {
	for j, col := range cols {
		for i, v := range col {
			if !math.IsNaN(v) {
				col[i] = (v - s.Mean[j]) / s.Scale[j]
			}
		}
	}
}

// FitTransform fits the scaler on cols and standardizes them in place.
func (s *StandardScaler) FitTransform(cols [][]float64) {
	s.Fit(cols)
	s.Transform(cols)
}

// InverseTransform undoes the scaling in place. cols must have the same
// column count the scaler was fitted on.
func (s *StandardScaler) InverseTransform(cols [][]float64) {
	for j, col := range cols {
		for i, v := range col {
			if !math.IsNaN(v) {
				col[i] = v*s.Scale[j] + s.Mean[j]
			}
		}
	}
}
