package store

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pollenwatch/trainprep/internal/models"
)

// Accepted timestamp layouts in rollup exports.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ImportSitesCSV loads a sites export (Id, Latitude, Longitude[, Timezone])
// into the sites table and returns the number of rows imported.
func (s *Store) ImportSitesCSV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open sites csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read sites header: %w", err)
	}
	cols := indexColumns(header)

	idIdx, ok := cols["id"]
	if !ok {
		return 0, fmt.Errorf("sites csv %s: missing Id column", path)
	}
	latIdx, ok := cols["latitude"]
	if !ok {
		return 0, fmt.Errorf("sites csv %s: missing Latitude column", path)
	}
	lonIdx, ok := cols["longitude"]
	if !ok {
		return 0, fmt.Errorf("sites csv %s: missing Longitude column", path)
	}
	tzIdx, hasTz := cols["timezone"]

	count := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read sites row: %w", err)
		}

		site := models.Site{ID: rec[idIdx]}
		if site.Latitude, err = strconv.ParseFloat(rec[latIdx], 64); err != nil {
			return count, fmt.Errorf("site %s: bad latitude %q", site.ID, rec[latIdx])
		}
		if site.Longitude, err = strconv.ParseFloat(rec[lonIdx], 64); err != nil {
			return count, fmt.Errorf("site %s: bad longitude %q", site.ID, rec[lonIdx])
		}
		if hasTz {
			site.Timezone = rec[tzIdx]
		}

		if err := s.UpsertSite(site); err != nil {
			return count, fmt.Errorf("upsert site %s: %w", site.ID, err)
		}
		count++
	}
	return count, nil
}

// ImportRollupsCSV loads a rollup export (SiteId, Starting, PPM3, Count,
// other columns ignored) into the rollups table. Empty or "NA" PPM3 cells
// become NULL; rows are inserted in one transaction.
func (s *Store) ImportRollupsCSV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open rollups csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read rollups header: %w", err)
	}
	cols := indexColumns(header)

	siteIdx, ok := cols["siteid"]
	if !ok {
		return 0, fmt.Errorf("rollups csv %s: missing SiteId column", path)
	}
	startIdx, ok := cols["starting"]
	if !ok {
		return 0, fmt.Errorf("rollups csv %s: missing Starting column", path)
	}
	ppm3Idx, ok := cols["ppm3"]
	if !ok {
		return 0, fmt.Errorf("rollups csv %s: missing PPM3 column", path)
	}
	countIdx, hasCount := cols["count"]

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin rollup import: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO rollups (site_id, starting, ppm3, count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(site_id, starting) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare rollup insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read rollups row: %w", err)
		}

		starting, err := parseTimestamp(rec[startIdx])
		if err != nil {
			return count, fmt.Errorf("rollup row %d: %w", count+1, err)
		}

		ppm3 := sql.NullFloat64{}
		if v := strings.TrimSpace(rec[ppm3Idx]); v != "" && !strings.EqualFold(v, "na") {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return count, fmt.Errorf("rollup row %d: bad PPM3 %q", count+1, v)
			}
			ppm3 = sql.NullFloat64{Float64: f, Valid: true}
		}

		var n int64
		if hasCount && rec[countIdx] != "" {
			n, _ = strconv.ParseInt(rec[countIdx], 10, 64)
		}

		if _, err := stmt.Exec(rec[siteIdx], starting.UTC(), ppm3, n); err != nil {
			return count, fmt.Errorf("insert rollup: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return count, fmt.Errorf("commit rollup import: %w", err)
	}
	return count, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
