package impute

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/pollenwatch/trainprep/internal/metrics"
)

// FileResult is the outcome of imputing one station file.
type FileResult struct {
	File    string
	Message string
	Err     error
}

func (r FileResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("✗ %v", r.Err)
	}
	return fmt.Sprintf("✓ %s", r.Message)
}

// Report aggregates per-file outcomes for one batch. Results appear in
// completion order.
type Report struct {
	Results   []FileResult
	Succeeded int
	Failed    int
}

// Err returns every per-file failure combined, or nil if all files
// succeeded.
func (r Report) Err() error {
	var merr *multierror.Error
	for _, res := range r.Results {
		if res.Err != nil {
			merr = multierror.Append(merr, res.Err)
		}
	}
	return merr.ErrorOrNil()
}

// Scheduler fans station files out over a fixed worker pool, one engine
// invocation per file. Files are fully independent, so workers share nothing
// beyond the jobs channel.
type Scheduler struct {
	engine  *Engine
	workers int
}

func NewScheduler(engine *Engine, workers int) *Scheduler {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Scheduler{engine: engine, workers: workers}
}

// Run processes every file and blocks until the whole batch finishes. A
// failure in one file never aborts the others.
func (s *Scheduler) Run(files []string) Report {
	jobs := make(chan string)
	results := make(chan FileResult)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- s.process(path)
			}
		}()
	}

	go func() {
		for _, f := range files {
			jobs <- f
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var report Report
	for res := range results {
		if res.Err != nil {
			report.Failed++
			metrics.FilesImputed.WithLabelValues("error").Inc()
		} else {
			report.Succeeded++
			metrics.FilesImputed.WithLabelValues("ok").Inc()
		}
		report.Results = append(report.Results, res)
	}
	return report
}

// process contains one file's failures, including panics, so a bad file
// costs one status line instead of the batch.
func (s *Scheduler) process(path string) (res FileResult) {
	res.File = path
	start := time.Now()
	defer func() {
		metrics.ImputeDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("process %s: panic: %v", filepath.Base(path), r)
		}
	}()

	msg, err := s.engine.ProcessFile(path)
	if err != nil {
		res.Err = fmt.Errorf("process %s: %w", filepath.Base(path), err)
		return res
	}
	res.Message = msg
	return res
}
