package metmerge

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/pollenwatch/trainprep/internal/clean"
)

// Combiner joins the cleaned dataset with hourly meteorology and writes one
// merged file per site, the unit of work the imputation engine consumes.
type Combiner struct {
	MetVars  []string
	Category string
	OutDir   string
	Mode     clean.Mode
}

func NewCombiner(metVars []string, category, outDir string, mode clean.Mode) *Combiner {
	return &Combiner{MetVars: metVars, Category: category, OutDir: outDir, Mode: mode}
}

type cleanedRow struct {
	siteID   string
	date     time.Time
	ppm3     string // raw cell, preserved through the merge (may be NA)
	timezone string
}

type metRow struct {
	t    time.Time
	vals []float64
}

// Run merges the cleaned dataset at cleanedPath with the met archive at
// metPath and writes one <category>_<siteID>.csv per site into OutDir. The
// output directory is recreated from scratch, so stale site files from a
// previous run never survive. Returns the written paths in site order.
func (c *Combiner) Run(cleanedPath, metPath string) ([]string, error) {
	for _, required := range []string{"u10", "v10", "tp"} {
		if !contains(c.MetVars, required) {
			return nil, fmt.Errorf("met variables must include %s for wind and precipitation derivation", required)
		}
	}

	cleaned, siteOrder, err := c.loadCleaned(cleanedPath)
	if err != nil {
		return nil, err
	}
	met, err := c.loadMet(metPath)
	if err != nil {
		return nil, err
	}

	if err := os.RemoveAll(c.OutDir); err != nil {
		return nil, fmt.Errorf("clear output dir: %w", err)
	}
	if err := os.MkdirAll(c.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var written []string
	for _, siteID := range siteOrder {
		rows := cleaned[siteID]
		metRows := met[siteID]
		if len(metRows) == 0 {
			log.Printf("metmerge: no met data for site %s, skipping", siteID)
			continue
		}

		path, err := c.mergeSite(siteID, rows, metRows)
		if err != nil {
			return written, fmt.Errorf("site %s: %w", siteID, err)
		}
		if path != "" {
			written = append(written, path)
		}
	}
	return written, nil
}

func (c *Combiner) mergeSite(siteID string, rows []cleanedRow, metRows []metRow) (string, error) {
	loc := time.UTC
	if tz := rows[0].timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return "", fmt.Errorf("load timezone %q: %w", tz, err)
		}
		loc = l
	}

	bucketed := c.bucketMet(metRows, loc)

	uIdx := index(c.MetVars, "u10")
	vIdx := index(c.MetVars, "v10")
	tpIdx := index(c.MetVars, "tp")

	header := make([]string, 0, len(c.MetVars)+6)
	header = append(header, c.MetVars...)
	header = append(header, "wind_speed", "wind_dir", "acc_precip", "SiteId", "Date", "PPM3")
	records := [][]string{header}

	for _, row := range rows {
		vals, ok := bucketed[c.bucketKey(row.date)]
		if !ok {
			continue
		}

		u, v, tp := vals[uIdx], vals[vIdx], vals[tpIdx]
		windSpeed := math.Hypot(u, v)
		windDir := math.Mod(math.Atan2(-u, -v)*180/math.Pi+360, 360)

		rec := make([]string, 0, len(header))
		for _, val := range vals {
			rec = append(rec, formatFloat(val))
		}
		rec = append(rec, formatFloat(windSpeed), formatFloat(windDir), formatFloat(tp))
		rec = append(rec, siteID, row.date.Format(clean.TimeLayout), row.ppm3)
		records = append(records, rec)
	}

	if len(records) < 2 {
		log.Printf("metmerge: no overlapping met data for site %s, skipping", siteID)
		return "", nil
	}

	path := filepath.Join(c.OutDir, fmt.Sprintf("%s_%s.csv", c.Category, siteID))
	df := dataframe.LoadRecords(records, dataframe.DetectTypes(false), dataframe.DefaultType(series.String))
	if df.Err != nil {
		return "", fmt.Errorf("build merged dataframe: %w", df.Err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := df.WriteCSV(f); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// bucketMet forward-fills the hourly met series onto a full hourly grid,
// converts to site-local time, and aggregates per join bucket: daily means
// in daily mode, the hour itself in hourly mode.
func (c *Combiner) bucketMet(metRows []metRow, loc *time.Location) map[string][]float64 {
	sort.Slice(metRows, func(i, j int) bool { return metRows[i].t.Before(metRows[j].t) })

	sums := make(map[string][]float64)
	counts := make(map[string][]int)

	start := metRows[0].t
	end := metRows[len(metRows)-1].t
	next := 0
	var last []float64
	for t := start; !t.After(end); t = t.Add(time.Hour) {
		for next < len(metRows) && !metRows[next].t.After(t) {
			last = metRows[next].vals
			next++
		}
		if last == nil {
			continue
		}

		key := c.bucketKey(t.In(loc))
		if _, ok := sums[key]; !ok {
			sums[key] = make([]float64, len(c.MetVars))
			counts[key] = make([]int, len(c.MetVars))
		}
		for j, v := range last {
			if !math.IsNaN(v) {
				sums[key][j] += v
				counts[key][j]++
			}
		}
	}

	out := make(map[string][]float64, len(sums))
	for key, sum := range sums {
		vals := make([]float64, len(sum))
		for j := range sum {
			if counts[key][j] == 0 {
				vals[j] = math.NaN()
				continue
			}
			vals[j] = sum[j] / float64(counts[key][j])
		}
		out[key] = vals
	}
	return out
}

func (c *Combiner) bucketKey(t time.Time) string {
	if c.Mode == clean.ModeDaily {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15")
}

func (c *Combiner) loadCleaned(path string) (map[string][]cleanedRow, []string, error) {
	records, colIdx, err := readCSV(path)
	if err != nil {
		return nil, nil, err
	}
	for _, need := range []string{"SiteId", "Date", "PPM3"} {
		if _, ok := colIdx[need]; !ok {
			return nil, nil, fmt.Errorf("cleaned dataset %s: missing column %q", path, need)
		}
	}
	tzIdx, hasTz := colIdx["Timezone"]

	bySite := make(map[string][]cleanedRow)
	var order []string
	for i, rec := range records {
		date, err := parseTime(rec[colIdx["Date"]])
		if err != nil {
			return nil, nil, fmt.Errorf("cleaned row %d: %w", i+1, err)
		}
		row := cleanedRow{
			siteID: rec[colIdx["SiteId"]],
			date:   date,
			ppm3:   rec[colIdx["PPM3"]],
		}
		if hasTz {
			row.timezone = rec[tzIdx]
		}
		if _, seen := bySite[row.siteID]; !seen {
			order = append(order, row.siteID)
		}
		bySite[row.siteID] = append(bySite[row.siteID], row)
	}
	return bySite, order, nil
}

func (c *Combiner) loadMet(path string) (map[string][]metRow, error) {
	records, colIdx, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	for _, need := range append([]string{"SiteId", "Time"}, c.MetVars...) {
		if _, ok := colIdx[need]; !ok {
			return nil, fmt.Errorf("met archive %s: missing column %q", path, need)
		}
	}

	bySite := make(map[string][]metRow)
	for i, rec := range records {
		t, err := parseTime(rec[colIdx["Time"]])
		if err != nil {
			return nil, fmt.Errorf("met row %d: %w", i+1, err)
		}
		vals := make([]float64, len(c.MetVars))
		for j, name := range c.MetVars {
			vals[j] = parseFloatOrNaN(rec[colIdx[name]])
		}
		siteID := rec[colIdx["SiteId"]]
		bySite[siteID] = append(bySite[siteID], metRow{t: t.UTC(), vals: vals})
	}
	return bySite, nil
}

func readCSV(path string) ([][]string, map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.DetectTypes(false))
	if df.Err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, df.Err)
	}
	records := df.Records()
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("read %s: empty file", path)
	}

	colIdx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		colIdx[name] = i
	}
	return records[1:], colIdx, nil
}

var timeLayouts = []string{
	clean.TimeLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseFloatOrNaN(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "nan") {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func index(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
