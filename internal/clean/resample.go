package clean

import (
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/pollenwatch/trainprep/internal/models"
)

// ErrEmptySeries is returned when a site has no measurements to resample.
// Sites are supposed to be screened by the sample-count pre-check before
// reaching this point.
var ErrEmptySeries = errors.New("no measurements for site")

// Resample builds the regular time grid spanning a site's measurements and
// left-joins the measurements onto it by exact timestamp. The result always
// has (max-min)/step + 1 rows; grid slots with no matching measurement carry
// NULL in every measurement column, including SiteID.
func Resample(ms []models.Measurement, step time.Duration) ([]models.GridRow, error) {
	if len(ms) == 0 {
		return nil, ErrEmptySeries
	}

	sorted := make([]models.Measurement, len(ms))
	copy(sorted, ms)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Starting.Before(sorted[j].Starting) })

	start := sorted[0].Starting
	end := sorted[len(sorted)-1].Starting
	n := int(end.Sub(start)/step) + 1

	byTime := make(map[int64]models.Measurement, len(sorted))
	for _, m := range sorted {
		byTime[m.Starting.Unix()] = m
	}

	rows := make([]models.GridRow, 0, n)
	for i := 0; i < n; i++ {
		t := start.Add(time.Duration(i) * step)
		row := models.GridRow{Starting: t}
		if m, ok := byTime[t.Unix()]; ok {
			row.SiteID = sql.NullString{String: m.SiteID, Valid: true}
			row.PPM3 = m.PPM3
			row.Count = sql.NullInt64{Int64: m.Count, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
