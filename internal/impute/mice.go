package impute

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ImputerParams control the chained-imputation loop.
type ImputerParams struct {
	MaxIter int
	Tol     float64
}

func DefaultImputerParams() ImputerParams {
	return ImputerParams{MaxIter: 10, Tol: 1e-3}
}

// imputeIterative fills the NaN entries of cols (column-major) in place by
// chained regression: each gapped column is regressed on all the others with
// a random forest, cycling from least to most gapped, until the filled
// values stabilize or MaxIter rounds pass. Observed entries are never
// modified. names parallels cols and is used in error messages.
func imputeIterative(cols [][]float64, names []string, fp ForestParams, ip ImputerParams, rng *rand.Rand) error {
	n := len(cols[0])

	missing := make([][]int, len(cols))
	for j, col := range cols {
		for i, v := range col {
			if math.IsNaN(v) {
				missing[j] = append(missing[j], i)
			}
		}
		if len(missing[j]) == n {
			return fmt.Errorf("column %s has no observed values", names[j])
		}
	}

	// Columns to impute, fewest gaps first.
	var gapped []int
	for j := range cols {
		if len(missing[j]) > 0 {
			gapped = append(gapped, j)
		}
	}
	if len(gapped) == 0 {
		return nil
	}
	sort.SliceStable(gapped, func(a, b int) bool {
		return len(missing[gapped[a]]) < len(missing[gapped[b]])
	})

	// Convergence is judged against the magnitude of the observed data.
	var maxAbs float64
	for j, col := range cols {
		gaps := toSet(missing[j])
		for i, v := range col {
			if !gaps[i] && math.Abs(v) > maxAbs {
				maxAbs = math.Abs(v)
			}
		}
	}
	if maxAbs == 0 {
		maxAbs = 1
	}

	// Initial fill: column mean of the observed entries.
	for _, j := range gapped {
		mean := observedMean(cols[j], missing[j])
		for _, i := range missing[j] {
			cols[j][i] = mean
		}
	}

	for iter := 0; iter < ip.MaxIter; iter++ {
		var maxChange float64
		for _, j := range gapped {
			gaps := toSet(missing[j])

			var trainX [][]float64
			var trainY []float64
			for i := 0; i < n; i++ {
				if gaps[i] {
					continue
				}
				trainX = append(trainX, featureRow(cols, j, i))
				trainY = append(trainY, cols[j][i])
			}

			model := fitForest(trainX, trainY, fp, rng)
			for _, i := range missing[j] {
				pred := model.predict(featureRow(cols, j, i))
				if d := math.Abs(pred - cols[j][i]); d > maxChange {
					maxChange = d
				}
				cols[j][i] = pred
			}
		}

		if maxChange <= ip.Tol*maxAbs {
			break
		}
	}
	return nil
}

// featureRow assembles the regression input for row i: every column except
// target, in column order.
func featureRow(cols [][]float64, target, i int) []float64 {
	row := make([]float64, 0, len(cols)-1)
	for j, col := range cols {
		if j == target {
			continue
		}
		row = append(row, col[i])
	}
	return row
}

func observedMean(col []float64, gaps []int) float64 {
	skip := toSet(gaps)
	var sum float64
	var count int
	for i, v := range col {
		if !skip[i] {
			sum += v
			count++
		}
	}
	return sum / float64(count)
}

func toSet(idx []int) map[int]bool {
	set := make(map[int]bool, len(idx))
	for _, i := range idx {
		set[i] = true
	}
	return set
}
