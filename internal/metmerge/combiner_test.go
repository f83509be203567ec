package metmerge

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pollenwatch/trainprep/internal/clean"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func readRecords(t *testing.T, path string) ([]string, [][]string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	header := strings.Split(lines[0], ",")
	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, strings.Split(line, ","))
	}
	return header, rows
}

func column(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %q not in header %v", name, header)
	return -1
}

func TestCombiner_RequiresWindComponents(t *testing.T) {
	c := NewCombiner([]string{"u10", "v10"}, "grass", t.TempDir(), clean.ModeHourly)
	if _, err := c.Run("cleaned.csv", "met.csv"); err == nil {
		t.Fatal("expected error when tp is missing from met variables")
	}
}

func TestCombiner_HourlyJoinAndWindDerivation(t *testing.T) {
	dir := t.TempDir()
	cleaned := writeFile(t, dir, "cleaned.csv",
		"SiteId,Date,PPM3,Timezone\n"+
			"S1,2021-03-01 10:00:00,12.5,UTC\n"+
			"S1,2021-03-01 11:00:00,NA,UTC\n"+
			"S1,2021-03-01 23:00:00,7,UTC\n")
	met := writeFile(t, dir, "met.csv",
		"SiteId,Time,u10,v10,tp\n"+
			"S1,2021-03-01 10:00:00,3,4,0.5\n"+
			"S1,2021-03-01 11:00:00,0,-2,0\n")

	outDir := filepath.Join(dir, "out")
	c := NewCombiner([]string{"u10", "v10", "tp"}, "grass", outDir, clean.ModeHourly)
	written, err := c.Run(cleaned, met)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("got %d files, want 1: %v", len(written), written)
	}
	if filepath.Base(written[0]) != "grass_S1.csv" {
		t.Errorf("output name = %s, want grass_S1.csv", filepath.Base(written[0]))
	}

	header, rows := readRecords(t, written[0])
	// The 23:00 row has no met coverage and must be dropped by the join.
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	speedIdx := column(t, header, "wind_speed")
	dirIdx := column(t, header, "wind_dir")
	precipIdx := column(t, header, "acc_precip")
	ppm3Idx := column(t, header, "PPM3")

	speed, _ := strconv.ParseFloat(rows[0][speedIdx], 64)
	if math.Abs(speed-5) > 1e-9 {
		t.Errorf("wind_speed = %v, want 5", speed)
	}
	wantDir := math.Mod(math.Atan2(-3, -4)*180/math.Pi+360, 360)
	gotDir, _ := strconv.ParseFloat(rows[0][dirIdx], 64)
	if math.Abs(gotDir-wantDir) > 1e-9 {
		t.Errorf("wind_dir = %v, want %v", gotDir, wantDir)
	}
	if rows[0][precipIdx] != "0.5" {
		t.Errorf("acc_precip = %q, want 0.5", rows[0][precipIdx])
	}
	if rows[0][ppm3Idx] != "12.5" {
		t.Errorf("PPM3 = %q, want 12.5", rows[0][ppm3Idx])
	}
	// Null target cells survive the merge untouched.
	if rows[1][ppm3Idx] != "NA" {
		t.Errorf("PPM3 = %q, want NA", rows[1][ppm3Idx])
	}
}

func TestCombiner_DailyMeansMetOverDay(t *testing.T) {
	dir := t.TempDir()
	cleaned := writeFile(t, dir, "cleaned.csv",
		"SiteId,Date,PPM3,Timezone\n"+
			"S1,2021-03-01 00:00:00,30,UTC\n")
	// Two observations 12h apart; forward fill extends each over 12 hourly
	// slots, so the daily mean weights them equally.
	met := writeFile(t, dir, "met.csv",
		"SiteId,Time,u10,v10,tp\n"+
			"S1,2021-03-01 00:00:00,2,0,1\n"+
			"S1,2021-03-01 12:00:00,6,0,3\n")

	outDir := filepath.Join(dir, "out")
	c := NewCombiner([]string{"u10", "v10", "tp"}, "grass", outDir, clean.ModeDaily)
	written, err := c.Run(cleaned, met)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("got %d files, want 1", len(written))
	}

	header, rows := readRecords(t, written[0])
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}

	uIdx := column(t, header, "u10")
	u, _ := strconv.ParseFloat(rows[0][uIdx], 64)
	// 12 hours at 2 and 1 hour at 6 from the 12:00 sample itself... the fill
	// grid runs 00..12 inclusive: 12 slots of 2 and 1 of 6.
	want := (12*2.0 + 6) / 13
	if math.Abs(u-want) > 1e-9 {
		t.Errorf("daily mean u10 = %v, want %v", u, want)
	}
}

func TestCombiner_SkipsSiteWithoutMet(t *testing.T) {
	dir := t.TempDir()
	cleaned := writeFile(t, dir, "cleaned.csv",
		"SiteId,Date,PPM3,Timezone\n"+
			"S1,2021-03-01 10:00:00,5,UTC\n"+
			"S2,2021-03-01 10:00:00,9,UTC\n")
	met := writeFile(t, dir, "met.csv",
		"SiteId,Time,u10,v10,tp\n"+
			"S2,2021-03-01 10:00:00,1,1,0\n")

	outDir := filepath.Join(dir, "out")
	c := NewCombiner([]string{"u10", "v10", "tp"}, "grass", outDir, clean.ModeHourly)
	written, err := c.Run(cleaned, met)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(written) != 1 || filepath.Base(written[0]) != "grass_S2.csv" {
		t.Fatalf("written = %v, want only grass_S2.csv", written)
	}
}

func TestCombiner_TimezoneShiftsDailyBucket(t *testing.T) {
	dir := t.TempDir()
	// 23:00 UTC on Mar 1 is already Mar 2 in Sydney; a daily-mode cleaned
	// row for local Mar 2 must pick it up.
	cleaned := writeFile(t, dir, "cleaned.csv",
		"SiteId,Date,PPM3,Timezone\n"+
			"S1,2021-03-02 00:00:00,15,Australia/Sydney\n")
	met := writeFile(t, dir, "met.csv",
		"SiteId,Time,u10,v10,tp\n"+
			"S1,2021-03-01 23:00:00,4,0,0\n")

	outDir := filepath.Join(dir, "out")
	c := NewCombiner([]string{"u10", "v10", "tp"}, "grass", outDir, clean.ModeDaily)
	written, err := c.Run(cleaned, met)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("got %d files, want 1", len(written))
	}

	header, rows := readRecords(t, written[0])
	uIdx := column(t, header, "u10")
	if rows[0][uIdx] != "4" {
		t.Errorf("u10 = %q, want 4", rows[0][uIdx])
	}
}

func TestCombiner_ClearsStaleOutputs(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(outDir, "grass_OLD.csv")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cleaned := writeFile(t, dir, "cleaned.csv",
		"SiteId,Date,PPM3,Timezone\n"+
			"S1,2021-03-01 10:00:00,5,UTC\n")
	met := writeFile(t, dir, "met.csv",
		"SiteId,Time,u10,v10,tp\n"+
			"S1,2021-03-01 10:00:00,1,1,0\n")

	c := NewCombiner([]string{"u10", "v10", "tp"}, "grass", outDir, clean.ModeHourly)
	if _, err := c.Run(cleaned, met); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale output file survived the run")
	}
}
