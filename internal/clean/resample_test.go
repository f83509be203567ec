package clean

import (
	"database/sql"
	"testing"
	"time"

	"github.com/pollenwatch/trainprep/internal/models"
)

func measurement(siteID string, at time.Time, ppm3 float64) models.Measurement {
	return models.Measurement{
		SiteID:   siteID,
		Starting: at,
		PPM3:     sql.NullFloat64{Float64: ppm3, Valid: true},
		Count:    1,
	}
}

func TestResample_GridShape(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := []models.Measurement{
		measurement("S1", start, 1.0),
		measurement("S1", start.Add(5*time.Hour), 2.0),
		measurement("S1", start.Add(48*time.Hour), 3.0),
	}

	rows, err := Resample(ms, time.Hour)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}

	if len(rows) != 49 {
		t.Fatalf("got %d rows, want 49", len(rows))
	}
	for i, row := range rows {
		want := start.Add(time.Duration(i) * time.Hour)
		if !row.Starting.Equal(want) {
			t.Fatalf("row %d: starting %v, want %v", i, row.Starting, want)
		}
	}

	observed := 0
	for _, row := range rows {
		if row.PPM3.Valid {
			observed++
		}
	}
	if observed != 3 {
		t.Errorf("observed count = %d, want 3", observed)
	}
	if gaps := len(rows) - observed; gaps != 46 {
		t.Errorf("gap count = %d, want 46", gaps)
	}
}

func TestResample_JoinCarriesColumns(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := []models.Measurement{
		measurement("S1", start, 7.5),
		measurement("S1", start.Add(2*time.Hour), 0),
	}

	rows, err := Resample(ms, time.Hour)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	if !rows[0].SiteID.Valid || rows[0].SiteID.String != "S1" {
		t.Errorf("row 0 site id = %+v, want S1", rows[0].SiteID)
	}
	if !rows[0].PPM3.Valid || rows[0].PPM3.Float64 != 7.5 {
		t.Errorf("row 0 ppm3 = %+v, want 7.5", rows[0].PPM3)
	}

	// The slot with no raw match is NULL across the board.
	if rows[1].SiteID.Valid || rows[1].PPM3.Valid || rows[1].Count.Valid {
		t.Errorf("row 1 should be all NULL, got %+v", rows[1])
	}
}

func TestResample_UnsortedInput(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := []models.Measurement{
		measurement("S1", start.Add(10*time.Hour), 2.0),
		measurement("S1", start, 1.0),
	}

	rows, err := Resample(ms, time.Hour)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(rows) != 11 {
		t.Fatalf("got %d rows, want 11", len(rows))
	}
	if !rows[0].Starting.Equal(start) {
		t.Errorf("grid starts at %v, want %v", rows[0].Starting, start)
	}
}

func TestResample_DailyStep(t *testing.T) {
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	ms := []models.Measurement{
		measurement("S1", start, 1.0),
		measurement("S1", start.AddDate(0, 0, 9), 2.0),
	}

	rows, err := Resample(ms, 24*time.Hour)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("got %d rows, want 10", len(rows))
	}
}

func TestResample_Empty(t *testing.T) {
	if _, err := Resample(nil, time.Hour); err != ErrEmptySeries {
		t.Fatalf("got %v, want ErrEmptySeries", err)
	}
}
