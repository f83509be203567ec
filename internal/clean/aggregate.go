package clean

import (
	"fmt"
	"log"

	"github.com/pollenwatch/trainprep/internal/metrics"
	"github.com/pollenwatch/trainprep/internal/models"
)

// MeasurementSource supplies the reference sites and each site's raw rollup
// rows, already screened for negative readings and sorted by time.
type MeasurementSource interface {
	GetSites() ([]models.Site, error)
	GetMeasurements(siteID string) ([]models.Measurement, error)
}

// Cleaner runs the resample-filter-aggregate pass over every site and
// produces the cleaned dataset.
type Cleaner struct {
	src    MeasurementSource
	mode   Mode
	params Params
}

func NewCleaner(src MeasurementSource, mode Mode, params Params) *Cleaner {
	return &Cleaner{src: src, mode: mode, params: params}
}

// Run processes sites in ascending id order and concatenates the retained
// series. An empty result is a normal return, not an error: it means no site
// had enough recoverable data.
func (c *Cleaner) Run() ([]models.CleanedRow, error) {
	sites, err := c.src.GetSites()
	if err != nil {
		return nil, fmt.Errorf("load sites: %w", err)
	}

	var out []models.CleanedRow
	processed := 0
	for _, site := range sites {
		rows, err := c.cleanSite(site)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", site.ID, err)
		}
		if rows == nil {
			continue
		}
		out = append(out, rows...)
		processed++
	}

	if processed == 0 {
		log.Printf("clean: no sites with sufficient data points after cleaning")
	} else {
		log.Printf("clean: retained %d rows across %d sites", len(out), processed)
	}
	return out, nil
}

// cleanSite returns nil rows (no error) when the site is skipped.
func (c *Cleaner) cleanSite(site models.Site) ([]models.CleanedRow, error) {
	ms, err := c.src.GetMeasurements(site.ID)
	if err != nil {
		return nil, fmt.Errorf("load measurements: %w", err)
	}

	// Sites that never accumulated enough raw rows are not worth resampling.
	if len(ms) <= c.params.SamplesPerSite {
		metrics.SitesSkipped.WithLabelValues("insufficient_samples").Inc()
		return nil, nil
	}

	grid, err := Resample(ms, c.mode.Step())
	if err != nil {
		return nil, err
	}

	kept := FilterRecoverable(grid, c.mode, c.params)
	metrics.RowsRetained.Add(float64(len(kept)))
	metrics.RowsDropped.Add(float64(len(grid) - len(kept)))

	if len(kept) == 0 {
		log.Printf("clean: no data found for site %s", site.ID)
		metrics.SitesSkipped.WithLabelValues("empty_series").Inc()
		return nil, nil
	}
	if c.mode == ModeDaily && len(kept) < c.params.MinRows {
		log.Printf("clean: skipping site %s - only %d data points after cleaning", site.ID, len(kept))
		metrics.SitesSkipped.WithLabelValues("below_min_rows").Inc()
		return nil, nil
	}

	siteID := repairSiteID(kept, site.ID)
	out := make([]models.CleanedRow, 0, len(kept))
	for _, r := range kept {
		out = append(out, models.CleanedRow{
			SiteID:   siteID,
			Date:     r.Starting,
			PPM3:     r.PPM3,
			Timezone: site.Timezone,
		})
	}
	return out, nil
}

// repairSiteID recovers the identity the grid join blanked out on slot-only
// rows: every site's series carries exactly one distinct non-NULL id.
func repairSiteID(rows []models.GridRow, fallback string) string {
	for _, r := range rows {
		if r.SiteID.Valid {
			return r.SiteID.String
		}
	}
	return fallback
}
