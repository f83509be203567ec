package clean

import (
	"github.com/pollenwatch/trainprep/internal/models"
)

// FilterRecoverable decides row by row whether a grid slot is worth keeping
// for imputation. A row survives when its trailing window (itself plus the
// Window prior grid steps) contains at least MinValid real observations;
// partial windows at the series start are judged on whatever history exists.
// In daily mode a second pass drops rows whose trailing window of surviving
// rows holds more than ZeroCap exact-zero readings: a neighborhood dominated
// by zeros carries no signal an imputed value could be anchored to.
func FilterRecoverable(rows []models.GridRow, mode Mode, p Params) []models.GridRow {
	kept := filterByDensity(rows, p.Window, p.MinValid)
	if mode == ModeDaily {
		kept = filterByZeroRuns(kept, p.Window, p.ZeroCap)
	}
	return kept
}

func filterByDensity(rows []models.GridRow, window, minValid int) []models.GridRow {
	// Prefix sums of the 0/1 observed indicator; prefix[i] counts observed
	// rows in rows[:i].
	prefix := make([]int, len(rows)+1)
	for i, r := range rows {
		prefix[i+1] = prefix[i]
		if r.PPM3.Valid {
			prefix[i+1]++
		}
	}

	var kept []models.GridRow
	for i := range rows {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		if prefix[i+1]-prefix[lo] >= minValid {
			kept = append(kept, rows[i])
		}
	}
	return kept
}

// filterByZeroRuns runs over the rows that already passed the density rule,
// so the window counts zeros among surviving neighbors, not raw grid slots.
func filterByZeroRuns(rows []models.GridRow, window, zeroCap int) []models.GridRow {
	prefix := make([]int, len(rows)+1)
	for i, r := range rows {
		prefix[i+1] = prefix[i]
		if r.PPM3.Valid && r.PPM3.Float64 == 0 {
			prefix[i+1]++
		}
	}

	var kept []models.GridRow
	for i := range rows {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		if prefix[i+1]-prefix[lo] <= zeroCap {
			kept = append(kept, rows[i])
		}
	}
	return kept
}
