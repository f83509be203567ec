package clean

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/pollenwatch/trainprep/internal/models"
)

// TimeLayout is the timestamp format used in every CSV this pipeline writes.
const TimeLayout = "2006-01-02 15:04:05"

// WriteDataset writes the cleaned dataset to path with columns
// SiteId,Date,PPM3,Timezone. Missing PPM3 values are written as NA.
func WriteDataset(rows []models.CleanedRow, path string) error {
	if len(rows) == 0 {
		// gota refuses to build a frame with no data rows; an empty result
		// still produces a valid header-only file.
		return os.WriteFile(path, []byte("SiteId,Date,PPM3,Timezone\n"), 0o644)
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"SiteId", "Date", "PPM3", "Timezone"})
	for _, r := range rows {
		ppm3 := "NA"
		if r.PPM3.Valid {
			ppm3 = strconv.FormatFloat(r.PPM3.Float64, 'g', -1, 64)
		}
		records = append(records, []string{r.SiteID, r.Date.Format(TimeLayout), ppm3, r.Timezone})
	}

	df := dataframe.LoadRecords(records, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))
	if df.Err != nil {
		return fmt.Errorf("build cleaned dataframe: %w", df.Err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
