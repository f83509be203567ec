package impute

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

const targetColumn = "PPM3"

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Engine fills the gaps in one station file's target column. Every call
// builds its scaler, forest, and working matrix from scratch; nothing is
// shared between files or runs.
type Engine struct {
	MetVars []string
	Forest  ForestParams
	Imputer ImputerParams
	OutDir  string
}

func NewEngine(metVars []string, fp ForestParams, ip ImputerParams, outDir string) *Engine {
	return &Engine{MetVars: metVars, Forest: fp, Imputer: ip, OutDir: outDir}
}

// ProcessFile imputes one station file and writes the result, original
// columns plus PPM3_imputed, into OutDir. Returns a status line describing
// the outcome.
func (e *Engine) ProcessFile(path string) (string, error) {
	st, err := loadStation(path)
	if err != nil {
		return "", err
	}

	m := len(e.MetVars)
	cols := make([][]float64, 0, m+3)
	names := make([]string, 0, m+3)
	for _, name := range e.MetVars {
		col, err := st.floatColumn(name)
		if err != nil {
			return "", err
		}
		cols = append(cols, col)
		names = append(names, name)
	}
	doySin, doyCos := timeFeatures(st.dates)
	cols = append(cols, doySin, doyCos)
	names = append(names, "doy_sin", "doy_cos")

	target, err := st.floatColumn(targetColumn)
	if err != nil {
		return "", err
	}
	cols = append(cols, target)
	names = append(names, targetColumn)

	// Meteorology and target are scaled jointly; the day-of-year features
	// are already bounded and stay as-is. The scaled slices share backing
	// arrays with cols, so the imputer sees standardized values.
	scaled := make([][]float64, 0, m+1)
	scaled = append(scaled, cols[:m]...)
	scaled = append(scaled, target)
	var scaler StandardScaler
	scaler.FitTransform(scaled)

	rng := rand.New(rand.NewSource(e.Forest.Seed))
	if err := imputeIterative(cols, names, e.Forest, e.Imputer, rng); err != nil {
		return "", err
	}

	// Undo the joint scaling for the target only: run the inverse over a
	// zero-filled matrix whose last column holds the imputed target, then
	// keep that column. The covariate columns were never modified, so they
	// do not need restoring.
	restored := make([][]float64, m+1)
	for j := 0; j < m; j++ {
		restored[j] = make([]float64, len(target))
	}
	restored[m] = append([]float64(nil), target...)
	scaler.InverseTransform(restored)

	outPath := filepath.Join(e.OutDir, imputedName(filepath.Base(path)))
	if err := st.writeWithImputed(outPath, restored[m]); err != nil {
		return "", err
	}
	return fmt.Sprintf("processed %s -> %s", filepath.Base(path), filepath.Base(outPath)), nil
}

// timeFeatures encodes day of year on the unit circle so the model sees
// seasonality without a year-end discontinuity.
func timeFeatures(dates []time.Time) (doySin, doyCos []float64) {
	doySin = make([]float64, len(dates))
	doyCos = make([]float64, len(dates))
	for i, d := range dates {
		doy := float64(d.YearDay())
		doySin[i] = math.Sin(2 * math.Pi * doy / 365)
		doyCos[i] = math.Cos(2 * math.Pi * doy / 365)
	}
	return doySin, doyCos
}

func imputedName(base string) string {
	return strings.TrimSuffix(base, ".csv") + "_imputed.csv"
}

// DiscoverFiles lists the station CSVs under dir in deterministic order.
func DiscoverFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// stationFile holds one parsed station CSV, rows sorted by date. The raw
// string records are kept so the output preserves the input columns exactly.
type stationFile struct {
	header []string
	rows   [][]string
	dates  []time.Time
	colIdx map[string]int
}

func loadStation(path string) (*stationFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.DetectTypes(false))
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}

	records := df.Records()
	if len(records) < 2 {
		return nil, fmt.Errorf("no data rows")
	}
	header := records[0]
	rows := records[1:]

	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[name] = i
	}

	dateIdx, ok := colIdx["Date"]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", "Date")
	}

	dates := make([]time.Time, len(rows))
	for i, row := range rows {
		t, err := parseDate(row[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		dates[i] = t
	}

	// Sort rows by date via a permutation so dates and records stay aligned.
	perm := make([]int, len(rows))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return dates[perm[a]].Before(dates[perm[b]]) })

	sortedRows := make([][]string, len(rows))
	sortedDates := make([]time.Time, len(rows))
	for i, p := range perm {
		sortedRows[i] = rows[p]
		sortedDates[i] = dates[p]
	}

	return &stationFile{header: header, rows: sortedRows, dates: sortedDates, colIdx: colIdx}, nil
}

func (st *stationFile) floatColumn(name string) ([]float64, error) {
	idx, ok := st.colIdx[name]
	if !ok {
		return nil, fmt.Errorf("missing required column %q", name)
	}
	out := make([]float64, len(st.rows))
	for i, row := range st.rows {
		cell := strings.TrimSpace(row[idx])
		if cell == "" || strings.EqualFold(cell, "na") || strings.EqualFold(cell, "nan") {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: bad value %q", name, i+1, cell)
		}
		out[i] = v
	}
	return out, nil
}

func (st *stationFile) writeWithImputed(path string, imputed []float64) error {
	records := make([][]string, 0, len(st.rows)+1)

	header := make([]string, 0, len(st.header)+1)
	header = append(header, st.header...)
	header = append(header, targetColumn+"_imputed")
	records = append(records, header)

	for i, row := range st.rows {
		out := make([]string, 0, len(row)+1)
		out = append(out, row...)
		out = append(out, strconv.FormatFloat(imputed[i], 'g', -1, 64))
		records = append(records, out)
	}

	df := dataframe.LoadRecords(records, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))
	if df.Err != nil {
		return fmt.Errorf("build output dataframe: %w", df.Err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := df.WriteCSV(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
