package models

import (
	"database/sql"
	"time"
)

type Site struct {
	ID        string
	Latitude  float64
	Longitude float64
	Timezone  string
}

// Measurement is one rollup row for a site: pollen concentration (PPM3)
// aggregated over one bucket starting at Starting. PPM3 can be NULL when the
// sensor reported a bucket with no usable reading.
type Measurement struct {
	SiteID   string
	Starting time.Time
	PPM3     sql.NullFloat64
	Count    int64
}

// GridRow is one slot of the regular per-site time grid after the raw
// measurements are joined onto it. Slots with no matching measurement carry
// NULL for every measurement column, including SiteID.
type GridRow struct {
	Starting time.Time
	SiteID   sql.NullString
	PPM3     sql.NullFloat64
	Count    sql.NullInt64
}

// CleanedRow is one retained timestep of the cleaned dataset, ready for the
// meteorology merge.
type CleanedRow struct {
	SiteID   string
	Date     time.Time
	PPM3     sql.NullFloat64
	Timezone string
}
