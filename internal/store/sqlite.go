package store

import (
	"database/sql"
	"time"

	"github.com/pollenwatch/trainprep/internal/models"
)

// Store wraps the sqlite database holding the sites table and the raw
// per-site rollup measurements fetched from the upstream sensor network.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertSite(site models.Site) error {
	_, err := s.db.Exec(`
		INSERT INTO sites (site_id, latitude, longitude, timezone)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			timezone = excluded.timezone
	`, site.ID, site.Latitude, site.Longitude, site.Timezone)
	return err
}

// GetSites returns every known site in ascending id order.
func (s *Store) GetSites() ([]models.Site, error) {
	rows, err := s.db.Query(`SELECT site_id, latitude, longitude, timezone FROM sites ORDER BY site_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.ID, &site.Latitude, &site.Longitude, &site.Timezone); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) GetSite(siteID string) (*models.Site, error) {
	row := s.db.QueryRow(`SELECT site_id, latitude, longitude, timezone FROM sites WHERE site_id = ?`, siteID)

	var site models.Site
	err := row.Scan(&site.ID, &site.Latitude, &site.Longitude, &site.Timezone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *Store) InsertMeasurement(m models.Measurement) error {
	_, err := s.db.Exec(`
		INSERT INTO rollups (site_id, starting, ppm3, count)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(site_id, starting) DO NOTHING
	`, m.SiteID, m.Starting.UTC(), m.PPM3, m.Count)
	return err
}

// GetMeasurements returns a site's rollups in ascending time order. Negative
// PPM3 readings are sensor artefacts and are excluded here; NULL readings are
// kept so the grid join can see the bucket existed.
func (s *Store) GetMeasurements(siteID string) ([]models.Measurement, error) {
	rows, err := s.db.Query(`
		SELECT site_id, starting, ppm3, count
		FROM rollups
		WHERE site_id = ? AND (ppm3 IS NULL OR ppm3 >= 0)
		ORDER BY starting ASC
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ms []models.Measurement
	for rows.Next() {
		var m models.Measurement
		var starting time.Time
		if err := rows.Scan(&m.SiteID, &starting, &m.PPM3, &m.Count); err != nil {
			return nil, err
		}
		m.Starting = starting.UTC()
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

// CountMeasurements counts a site's usable rollup rows, under the same
// negative-value exclusion as GetMeasurements.
func (s *Store) CountMeasurements(siteID string) (int, error) {
	row := s.db.QueryRow(`
		SELECT COUNT(*) FROM rollups
		WHERE site_id = ? AND (ppm3 IS NULL OR ppm3 >= 0)
	`, siteID)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
