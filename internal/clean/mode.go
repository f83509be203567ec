package clean

import (
	"fmt"
	"time"
)

// Mode selects the grid resolution. Daily mode carries two extra rejection
// rules (zero-neighborhood cap, minimum retained rows) that the hourly
// pipeline does not use.
type Mode int

const (
	ModeHourly Mode = iota
	ModeDaily
)

func ParseMode(s string) (Mode, error) {
	switch s {
	case "hourly":
		return ModeHourly, nil
	case "daily":
		return ModeDaily, nil
	}
	return ModeHourly, fmt.Errorf("unknown mode %q (want hourly or daily)", s)
}

func (m Mode) String() string {
	if m == ModeDaily {
		return "daily"
	}
	return "hourly"
}

// Step is the grid spacing for the mode.
func (m Mode) Step() time.Duration {
	if m == ModeDaily {
		return 24 * time.Hour
	}
	return time.Hour
}

// Params are the gap-validity tuning knobs. Window counts prior grid steps,
// so a row is judged over Window+1 steps including itself.
type Params struct {
	Window         int
	MinValid       int
	SamplesPerSite int

	// Daily mode only. ZeroCap is the most exact-zero readings tolerated in
	// a row's trailing window; MinRows is the fewest retained rows worth
	// keeping a site at all.
	ZeroCap int
	MinRows int
}

func DefaultParams(m Mode) Params {
	if m == ModeDaily {
		return Params{Window: 7, MinValid: 5, SamplesPerSite: 50, ZeroCap: 3, MinRows: 40}
	}
	return Params{Window: 24, MinValid: 6, SamplesPerSite: 1000}
}

func (p Params) Validate() error {
	if p.Window < 1 {
		return fmt.Errorf("window must be >= 1, got %d", p.Window)
	}
	if p.MinValid < 1 {
		return fmt.Errorf("min-valid must be >= 1, got %d", p.MinValid)
	}
	if p.MinValid > p.Window+1 {
		return fmt.Errorf("min-valid %d exceeds window size %d, no row could ever pass", p.MinValid, p.Window+1)
	}
	if p.SamplesPerSite < 0 {
		return fmt.Errorf("samples-per-site must be >= 0, got %d", p.SamplesPerSite)
	}
	return nil
}
