package metfetch

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/pollenwatch/trainprep/internal/httputil"
	"github.com/pollenwatch/trainprep/internal/metrics"
)

// Client downloads daily meteorology archive files into a local directory.
// Retries are handled here; the cleaning and imputation core never retries.
type Client struct {
	baseURL string
	dir     string
	client  *http.Client
}

func NewClient(baseURL, dir string) *Client {
	return &Client{
		baseURL: baseURL,
		dir:     dir,
		client:  httputil.NewDownloadClient(),
	}
}

func (c *Client) fileName(day time.Time) string {
	return fmt.Sprintf("met_%s.csv", day.Format("20060102"))
}

// FetchDay downloads one day's archive, returning the local path. Files
// already on disk are not fetched again.
func (c *Client) FetchDay(day time.Time) (string, error) {
	name := c.fileName(day)
	dest := filepath.Join(c.dir, name)
	if _, err := os.Stat(dest); err == nil {
		metrics.MetFilesFetched.WithLabelValues("cached").Inc()
		return dest, nil
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, name)

	var body []byte
	operation := func() error {
		resp, err := c.client.Get(url)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", name, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch %s: status %d", name, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d", name, resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		metrics.MetFilesFetched.WithLabelValues("error").Inc()
		return "", err
	}

	// Write through a temp file so a crash never leaves a truncated archive
	// that FetchDay would later mistake for a complete one.
	tmp := dest + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("rename %s: %w", tmp, err)
	}

	metrics.MetFilesFetched.WithLabelValues("ok").Inc()
	return dest, nil
}

// FetchRange downloads every day in [start, end]. A day that fails is
// logged and skipped; the first error is returned after the range finishes.
func (c *Client) FetchRange(start, end time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create met dir: %w", err)
	}

	var firstErr error
	for day := start; !day.After(end); day = day.Add(24 * time.Hour) {
		if _, err := c.FetchDay(day); err != nil {
			log.Printf("metfetch: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
