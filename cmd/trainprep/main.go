package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/pollenwatch/trainprep/internal/clean"
	"github.com/pollenwatch/trainprep/internal/config"
	"github.com/pollenwatch/trainprep/internal/impute"
	"github.com/pollenwatch/trainprep/internal/metfetch"
	"github.com/pollenwatch/trainprep/internal/metmerge"
	"github.com/pollenwatch/trainprep/internal/store"
)

type Globals struct {
	DB          string   `help:"Path to the sqlite measurement store." default:"data/trainprep.db" env:"TRAINPREP_DB"`
	DataDir     string   `help:"Training data root directory." default:"training_data" env:"TRAINPREP_DATA_DIR"`
	Category    string   `help:"Pollen category code." default:"CUP" env:"TRAINPREP_CATEGORY"`
	MetVars     []string `help:"Meteorological covariate columns." default:"gust,t2m,u10,v10,tp,r2,orog,sdswrf" env:"TRAINPREP_MET_VARS"`
	MetricsAddr string   `help:"Serve prometheus metrics at this address for the duration of the run." env:"TRAINPREP_METRICS_ADDR"`
}

func (g *Globals) categoryDir() string {
	return filepath.Join(g.DataDir, g.Category)
}

func (g *Globals) cleanedPath() string {
	return filepath.Join(g.categoryDir(), fmt.Sprintf("clean_data_%s.csv", g.Category))
}

func (g *Globals) siteDataDir() string {
	return filepath.Join(g.categoryDir(), "site_data")
}

func (g *Globals) imputedDir() string {
	return filepath.Join(g.categoryDir(), "imputed_data")
}

func (g *Globals) openStore() (*store.Store, *sql.DB, error) {
	if dir := filepath.Dir(g.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", g.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, db, nil
}

type ImportCmd struct {
	Sites   string `help:"Sites CSV export (Id, Latitude, Longitude[, Timezone])." type:"existingfile"`
	Rollups string `help:"Rollup CSV export (SiteId, Starting, PPM3, Count)." type:"existingfile"`
}

func (c *ImportCmd) Run(g *Globals) error {
	if c.Sites == "" && c.Rollups == "" {
		return fmt.Errorf("nothing to import: pass --sites and/or --rollups")
	}

	st, db, err := g.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Sites != "" {
		n, err := st.ImportSitesCSV(c.Sites)
		if err != nil {
			return err
		}
		log.Printf("import: loaded %d sites from %s", n, c.Sites)
	}
	if c.Rollups != "" {
		n, err := st.ImportRollupsCSV(c.Rollups)
		if err != nil {
			return err
		}
		log.Printf("import: loaded %d rollup rows from %s", n, c.Rollups)
	}
	return nil
}

type CleanCmd struct {
	config.Clean
	Out string `help:"Cleaned dataset path (default <data-dir>/<category>/clean_data_<category>.csv)."`
}

func (c *CleanCmd) Run(g *Globals) error {
	mode, params, err := c.ModeParams()
	if err != nil {
		return err
	}

	st, db, err := g.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	out := c.Out
	if out == "" {
		out = g.cleanedPath()
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	rows, err := clean.NewCleaner(st, mode, params).Run()
	if err != nil {
		return err
	}
	if err := clean.WriteDataset(rows, out); err != nil {
		return err
	}
	log.Printf("clean: wrote %d rows to %s", len(rows), out)
	return nil
}

type MergeCmd struct {
	Mode    string `help:"Grid resolution." enum:"hourly,daily" default:"hourly"`
	MetPath string `help:"Hourly met archive CSV (SiteId, Time, met variables)." required:"" type:"existingfile"`
	Cleaned string `help:"Cleaned dataset path (default <data-dir>/<category>/clean_data_<category>.csv)."`
}

func (c *MergeCmd) Run(g *Globals) error {
	mode, err := clean.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	cleaned := c.Cleaned
	if cleaned == "" {
		cleaned = g.cleanedPath()
	}

	combiner := metmerge.NewCombiner(g.MetVars, g.Category, g.siteDataDir(), mode)
	written, err := combiner.Run(cleaned, c.MetPath)
	if err != nil {
		return err
	}
	log.Printf("merge: wrote %d site files to %s", len(written), g.siteDataDir())
	return nil
}

type ImputeCmd struct {
	config.Impute
}

func (c *ImputeCmd) Run(g *Globals) error {
	if err := c.Validate(); err != nil {
		return err
	}

	files, err := impute.DiscoverFiles(g.siteDataDir())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		log.Printf("impute: no site files found in %s", g.siteDataDir())
		return nil
	}
	if err := os.MkdirAll(g.imputedDir(), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	engine := impute.NewEngine(g.MetVars, c.ForestParams(), c.ImputerParams(), g.imputedDir())
	report := impute.NewScheduler(engine, c.Cores).Run(files)

	for _, res := range report.Results {
		log.Printf("impute: %s", res)
	}
	log.Printf("impute: completed %d files (%d ok, %d failed)", len(files), report.Succeeded, report.Failed)
	return nil
}

type RunCmd struct {
	config.Clean
	config.Impute
	MetPath string `help:"Hourly met archive CSV (SiteId, Time, met variables)." required:"" type:"existingfile"`
}

func (c *RunCmd) Run(g *Globals) error {
	cleanCmd := &CleanCmd{Clean: c.Clean}
	if err := cleanCmd.Run(g); err != nil {
		return err
	}
	mergeCmd := &MergeCmd{Mode: c.Clean.Mode, MetPath: c.MetPath}
	if err := mergeCmd.Run(g); err != nil {
		return err
	}
	imputeCmd := &ImputeCmd{Impute: c.Impute}
	return imputeCmd.Run(g)
}

type FetchMetCmd struct {
	BaseURL string `help:"Met archive base URL." required:"" env:"TRAINPREP_MET_URL"`
	Start   string `help:"First day to fetch (YYYY-MM-DD)." required:""`
	End     string `help:"Last day to fetch (YYYY-MM-DD)." required:""`
	Dir     string `help:"Download directory (default <data-dir>/met)."`
}

func (c *FetchMetCmd) Run(g *Globals) error {
	start, err := time.Parse("2006-01-02", c.Start)
	if err != nil {
		return fmt.Errorf("bad start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", c.End)
	if err != nil {
		return fmt.Errorf("bad end date: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end date %s precedes start date %s", c.End, c.Start)
	}

	dir := c.Dir
	if dir == "" {
		dir = filepath.Join(g.DataDir, "met")
	}
	return metfetch.NewClient(c.BaseURL, dir).FetchRange(start, end)
}

type CLI struct {
	Globals

	Import   ImportCmd   `cmd:"" help:"Load sites and rollup CSV exports into the measurement store."`
	Clean    CleanCmd    `cmd:"" help:"Resample, gap-filter, and aggregate all sites into the cleaned dataset."`
	Merge    MergeCmd    `cmd:"" help:"Join the cleaned dataset with meteorology into per-site files."`
	Impute   ImputeCmd   `cmd:"" help:"Fill recoverable gaps in every per-site file."`
	Run      RunCmd      `cmd:"" help:"Clean, merge, and impute in one pass."`
	FetchMet FetchMetCmd `cmd:"" name:"fetch-met" help:"Download daily met archive files."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("trainprep"),
		kong.Description("Prepares per-site pollen time-series training data: grid cleaning, meteorology merge, and gap imputation."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.Configuration(kong.JSON, "trainprep.json"),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	if cli.MetricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cli.MetricsAddr, nil); err != nil {
				log.Printf("metrics: %v", err)
			}
		}()
	}

	ctx.FatalIfErrorf(ctx.Run())
}
