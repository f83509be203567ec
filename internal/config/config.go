package config

import (
	"fmt"

	"github.com/pollenwatch/trainprep/internal/clean"
	"github.com/pollenwatch/trainprep/internal/impute"
)

// Clean holds the gap-validity flags. Zero values mean "use the mode's
// default", so hourly and daily runs each start from their own literals.
type Clean struct {
	Mode           string `help:"Grid resolution." enum:"hourly,daily" default:"hourly"`
	Window         int    `help:"Prior grid steps in the validity window (0 = mode default)." default:"0"`
	MinValid       int    `help:"Observed values required in the window (0 = mode default)." default:"0"`
	SamplesPerSite int    `help:"Raw rows a site must exceed to be processed (0 = mode default)." default:"0"`
	ZeroCap        int    `help:"Daily mode: max exact-zero readings tolerated in the window (-1 = mode default)." default:"-1"`
	MinRows        int    `help:"Daily mode: minimum retained rows to keep a site (0 = mode default)." default:"0"`
}

// ModeParams resolves the flags against the mode defaults and validates the
// result. Errors here are fatal before any processing starts.
func (c Clean) ModeParams() (clean.Mode, clean.Params, error) {
	mode, err := clean.ParseMode(c.Mode)
	if err != nil {
		return 0, clean.Params{}, err
	}

	p := clean.DefaultParams(mode)
	if c.Window > 0 {
		p.Window = c.Window
	}
	if c.MinValid > 0 {
		p.MinValid = c.MinValid
	}
	if c.SamplesPerSite > 0 {
		p.SamplesPerSite = c.SamplesPerSite
	}
	if c.ZeroCap >= 0 {
		p.ZeroCap = c.ZeroCap
	}
	if c.MinRows > 0 {
		p.MinRows = c.MinRows
	}

	if err := p.Validate(); err != nil {
		return 0, clean.Params{}, err
	}
	return mode, p, nil
}

// Impute holds the tree-ensemble and imputer hyperparameters.
type Impute struct {
	Trees       int     `help:"Trees per forest." default:"100"`
	MaxDepth    int     `help:"Maximum tree depth." default:"10"`
	MinLeaf     int     `help:"Minimum samples per leaf." default:"2"`
	MaxFeatures float64 `help:"Fraction of features tried per split (0 = all)." default:"0.33"`
	MaxIter     int     `help:"Maximum chained-imputation rounds." default:"10"`
	Tol         float64 `help:"Convergence tolerance, relative to the data magnitude." default:"0.001"`
	Seed        int64   `help:"Random seed; fixed seed makes imputed output reproducible." default:"42"`
	Cores       int     `help:"Worker pool size (0 = all CPUs)." default:"0"`
}

func (c Impute) Validate() error {
	if c.Trees < 1 {
		return fmt.Errorf("trees must be >= 1, got %d", c.Trees)
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max-depth must be >= 1, got %d", c.MaxDepth)
	}
	if c.MinLeaf < 1 {
		return fmt.Errorf("min-leaf must be >= 1, got %d", c.MinLeaf)
	}
	if c.MaxFeatures > 1 {
		return fmt.Errorf("max-features must be a fraction <= 1, got %g", c.MaxFeatures)
	}
	if c.MaxIter < 1 {
		return fmt.Errorf("max-iter must be >= 1, got %d", c.MaxIter)
	}
	if c.Tol <= 0 {
		return fmt.Errorf("tol must be > 0, got %g", c.Tol)
	}
	return nil
}

func (c Impute) ForestParams() impute.ForestParams {
	return impute.ForestParams{
		Trees:       c.Trees,
		MaxDepth:    c.MaxDepth,
		MinLeaf:     c.MinLeaf,
		MaxFeatures: c.MaxFeatures,
		Seed:        c.Seed,
	}
}

func (c Impute) ImputerParams() impute.ImputerParams {
	return impute.ImputerParams{MaxIter: c.MaxIter, Tol: c.Tol}
}
