package impute

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestScaler_RoundTrip(t *testing.T) {
	original := [][]float64{
		{1, 2, 3, 4, 5},
		{10, 20, 30, 40, 50},
	}
	cols := [][]float64{
		append([]float64(nil), original[0]...),
		append([]float64(nil), original[1]...),
	}

	var s StandardScaler
	s.FitTransform(cols)
	s.InverseTransform(cols)

	for j := range cols {
		for i := range cols[j] {
			if !almostEqual(cols[j][i], original[j][i], 1e-12) {
				t.Errorf("col %d row %d: round trip %v, want %v", j, i, cols[j][i], original[j][i])
			}
		}
	}
}

func TestScaler_StandardizesObserved(t *testing.T) {
	cols := [][]float64{{2, 4, 6, 8}}

	var s StandardScaler
	s.FitTransform(cols)

	var sum float64
	for _, v := range cols[0] {
		sum += v
	}
	if !almostEqual(sum/4, 0, 1e-12) {
		t.Errorf("transformed mean = %v, want 0", sum/4)
	}

	var ss float64
	for _, v := range cols[0] {
		ss += v * v
	}
	if !almostEqual(math.Sqrt(ss/4), 1, 1e-12) {
		t.Errorf("transformed stddev = %v, want 1", math.Sqrt(ss/4))
	}
}

func TestScaler_IgnoresNaN(t *testing.T) {
	cols := [][]float64{{1, math.NaN(), 3}}

	var s StandardScaler
	s.FitTransform(cols)

	if s.Mean[0] != 2 {
		t.Errorf("mean = %v, want 2 (NaN ignored)", s.Mean[0])
	}
	if !math.IsNaN(cols[0][1]) {
		t.Errorf("NaN entry became %v, want NaN", cols[0][1])
	}
}

func TestScaler_ZeroVariance(t *testing.T) {
	cols := [][]float64{{5, 5, 5}}

	var s StandardScaler
	s.FitTransform(cols)

	for i, v := range cols[0] {
		if v != 0 {
			t.Errorf("row %d: constant column transformed to %v, want 0", i, v)
		}
	}

	s.InverseTransform(cols)
	for i, v := range cols[0] {
		if v != 5 {
			t.Errorf("row %d: inverse gave %v, want 5", i, v)
		}
	}
}

func TestScaler_AllNaNColumn(t *testing.T) {
	cols := [][]float64{{math.NaN(), math.NaN()}}

	var s StandardScaler
	s.Fit(cols)

	if s.Mean[0] != 0 || s.Scale[0] != 1 {
		t.Errorf("all-NaN column fitted mean=%v scale=%v, want 0 and 1", s.Mean[0], s.Scale[0])
	}
}
