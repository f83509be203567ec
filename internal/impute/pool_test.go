package impute

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScheduler_BatchWithOneBadFile(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()

	for i := 0; i < 4; i++ {
		writeStationFile(t, dir, "pollen_S"+string(rune('1'+i))+".csv", 20, 5, 6)
	}
	// One file without the target column.
	bad := filepath.Join(dir, "pollen_S5.csv")
	if err := os.WriteFile(bad, []byte("SiteId,Date,t2m\nS5,2021-03-01 00:00:00,10\nS5,2021-03-02 00:00:00,11\n"), 0o644); err != nil {
		t.Fatalf("write bad file: %v", err)
	}

	files, err := DiscoverFiles(dir)
	if err != nil {
		t.Fatalf("DiscoverFiles: %v", err)
	}
	if len(files) != 5 {
		t.Fatalf("got %d files, want 5", len(files))
	}

	report := NewScheduler(testEngine(outDir), 3).Run(files)

	if report.Succeeded != 4 || report.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 4/1", report.Succeeded, report.Failed)
	}
	if len(report.Results) != 5 {
		t.Fatalf("got %d results, want 5", len(report.Results))
	}
	if report.Err() == nil {
		t.Fatal("Report.Err() = nil with a failed file")
	}
	if !strings.Contains(report.Err().Error(), "pollen_S5.csv") {
		t.Errorf("aggregate error %q does not name the bad file", report.Err())
	}

	outputs, err := DiscoverFiles(outDir)
	if err != nil {
		t.Fatalf("DiscoverFiles(out): %v", err)
	}
	if len(outputs) != 4 {
		t.Fatalf("got %d output files, want 4: %v", len(outputs), outputs)
	}
	for _, f := range outputs {
		if !strings.HasSuffix(f, "_imputed.csv") {
			t.Errorf("output %s lacks _imputed suffix", f)
		}
	}
}

func TestScheduler_AllGoodReportErrNil(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	writeStationFile(t, dir, "pollen_S1.csv", 15, 3)
	writeStationFile(t, dir, "pollen_S2.csv", 15)

	files, err := DiscoverFiles(dir)
	if err != nil {
		t.Fatalf("DiscoverFiles: %v", err)
	}

	report := NewScheduler(testEngine(outDir), 2).Run(files)
	if report.Failed != 0 || report.Succeeded != 2 {
		t.Fatalf("succeeded=%d failed=%d, want 2/0", report.Succeeded, report.Failed)
	}
	if err := report.Err(); err != nil {
		t.Fatalf("Report.Err() = %v, want nil", err)
	}
}

func TestScheduler_EmptyBatch(t *testing.T) {
	report := NewScheduler(testEngine(t.TempDir()), 2).Run(nil)
	if len(report.Results) != 0 || report.Succeeded != 0 || report.Failed != 0 {
		t.Fatalf("unexpected report for empty batch: %+v", report)
	}
}

func TestFileResult_String(t *testing.T) {
	ok := FileResult{File: "a.csv", Message: "processed a.csv -> a_imputed.csv"}
	if got := ok.String(); !strings.HasPrefix(got, "✓ ") {
		t.Errorf("success result %q does not start with check mark", got)
	}

	bad := FileResult{File: "b.csv", Err: os.ErrNotExist}
	if got := bad.String(); !strings.HasPrefix(got, "✗ ") {
		t.Errorf("failure result %q does not start with cross mark", got)
	}
}
