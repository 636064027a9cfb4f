// Package fetch downloads remote data files into a local directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chrissnell/beringseaice/internal/seaice"
)

// DefaultParallelism bounds concurrent downloads when none is configured.
const DefaultParallelism = 4

// Downloader fetches files over HTTP(S).
type Downloader struct {
	Client      *http.Client
	Dir         string
	Parallelism int
	// Inflate stores .gz downloads decompressed, without the suffix.
	Inflate bool
	// SkipExisting leaves files that are already present alone.
	SkipExisting bool

	logger *zap.SugaredLogger
}

// New returns a downloader writing into dir.
func New(dir string, logger *zap.SugaredLogger) *Downloader {
	return &Downloader{
		Client:      &http.Client{Timeout: 5 * time.Minute},
		Dir:         dir,
		Parallelism: DefaultParallelism,
		logger:      logger,
	}
}

// LocalPath returns where a download of rawURL ends up.
func (d *Downloader) LocalPath(rawURL string) string {
	name := path.Base(rawURL)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if d.Inflate {
		name = strings.TrimSuffix(name, ".gz")
	}
	return filepath.Join(d.Dir, name)
}

// Download fetches one URL and returns the local path.
func (d *Downloader) Download(ctx context.Context, rawURL string) (string, error) {
	dst := d.LocalPath(rawURL)
	if d.SkipExisting {
		if _, err := os.Stat(dst); err == nil {
			d.logger.Debugf("%s already present", dst)
			return dst, nil
		}
	}

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &seaice.DataLoadError{Path: rawURL, Err: err}
	}
	resp, err := d.Client.Do(req)
	if err != nil {
		return "", &seaice.DataLoadError{Path: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &seaice.DataLoadError{Path: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var body io.Reader = resp.Body
	if d.Inflate && strings.HasSuffix(path.Base(req.URL.Path), ".gz") {
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", &seaice.DataLoadError{Path: rawURL, Err: err}
		}
		defer zr.Close()
		body = zr
	}

	// Write to a temporary name so an interrupted download never looks complete.
	tmp, err := os.CreateTemp(d.Dir, ".download-*")
	if err != nil {
		return "", err
	}
	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", &seaice.DataLoadError{Path: rawURL, Err: err}
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	d.logger.Debugf("downloaded %s (%d bytes) to %s", rawURL, n, dst)
	return dst, nil
}

// DownloadAll fetches every URL with at most Parallelism requests in flight.
// The returned paths are in the same order as urls. The first failure
// cancels the remaining downloads.
func (d *Downloader) DownloadAll(ctx context.Context, urls []string) ([]string, error) {
	paths := make([]string, len(urls))

	limit := d.Parallelism
	if limit <= 0 {
		limit = DefaultParallelism
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for i, u := range urls {
		i, u := i, u
		eg.Go(func() error {
			p, err := d.Download(ctx, u)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	d.logger.Infof("downloaded %d files into %s", len(urls), d.Dir)
	return paths, nil
}

// AMSR2Filename is the daily University of Bremen AMSR2 3.125 km Arctic file
// for the given date.
func AMSR2Filename(day time.Time) string {
	return fmt.Sprintf("Arc_%s_res3.125_pyres.nc.gz", day.Format("20060102"))
}

// DailyURLs builds one URL per day from start through end inclusive by
// joining base with name(day).
func DailyURLs(base string, start, end time.Time, name func(time.Time) string) []string {
	base = strings.TrimSuffix(base, "/")
	var urls []string
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		urls = append(urls, base+"/"+name(d))
	}
	return urls
}
