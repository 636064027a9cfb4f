package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/beringseaice/internal/archive"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/internal/series"
	"github.com/chrissnell/beringseaice/pkg/config"
)

func setup(t *testing.T) (string, *config.ConfigData) {
	t.Helper()
	dir := t.TempDir()
	for name, v := range map[string][]float64{"a.txt": {1, 3}, "b.txt": {3, 5}} {
		require.NoError(t, series.WriteFile(filepath.Join(dir, name), &series.Series{Values: v}))
	}
	cfg := &config.ConfigData{
		CacheDir: filepath.Join(dir, "cache"),
		Archive:  filepath.Join(dir, "runs.db"),
		Jobs: []config.JobData{
			{
				Name:       "mean",
				Type:       config.JobSeasonalMean,
				OutputPath: filepath.Join(dir, "mean.txt"),
				Series:     &config.SeriesData{Inputs: []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt")}},
			},
			{
				Name:       "smooth",
				Type:       config.JobRunningMean,
				InputPath:  filepath.Join(dir, "missing.txt"),
				OutputPath: filepath.Join(dir, "smooth.txt"),
				Series:     &config.SeriesData{Window: 2},
			},
		},
	}
	return dir, cfg
}

// staticProvider serves a fixed configuration.
type staticProvider struct{ cfg *config.ConfigData }

func (p staticProvider) LoadConfig() (*config.ConfigData, error) { return p.cfg, nil }
func (p staticProvider) GetJobs() ([]config.JobData, error)      { return p.cfg.Jobs, nil }
func (p staticProvider) IsReadOnly() bool                        { return true }
func (p staticProvider) Close() error                            { return nil }

func openArchive(t *testing.T, path string) *archive.Archive {
	t.Helper()
	arc, err := archive.Open(path, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { arc.Close() })
	return arc
}

func TestRunStopsOnFirstFailure(t *testing.T) {
	dir, cfg := setup(t)

	err := New(staticProvider{cfg}, zap.NewNop().Sugar()).Run(context.Background())
	var loadErr *seaice.DataLoadError
	require.True(t, errors.As(err, &loadErr), "got %v", err)

	_, err = os.Stat(filepath.Join(dir, "mean.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "cache", "grids"))
	assert.NoError(t, err)

	arc := openArchive(t, cfg.Archive)
	ctx := context.Background()

	runs, err := arc.Runs(ctx, "mean")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, archive.StatusSucceeded, runs[0].Status)
	values, err := arc.Series(ctx, runs[0].ID, "mean")
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, values)

	runs, err = arc.Runs(ctx, "smooth")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, archive.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "missing.txt")
}

func TestRunSelectedJob(t *testing.T) {
	dir, cfg := setup(t)
	require.NoError(t, New(staticProvider{cfg}, zap.NewNop().Sugar()).Only("mean").Run(context.Background()))

	_, err := os.Stat(filepath.Join(dir, "smooth.txt"))
	assert.True(t, os.IsNotExist(err))

	err = New(staticProvider{cfg}, zap.NewNop().Sugar()).Only("plot").Run(context.Background())
	var cfgErr *seaice.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRunInvalidConfig(t *testing.T) {
	_, cfg := setup(t)
	cfg.Jobs[0].Threshold = 120
	err := New(staticProvider{cfg}, zap.NewNop().Sugar()).Run(context.Background())
	var cfgErr *seaice.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestRunCancelled(t *testing.T) {
	_, cfg := setup(t)
	cfg.Archive = ""
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := New(staticProvider{cfg}, zap.NewNop().Sugar()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHistory(t *testing.T) {
	_, cfg := setup(t)
	a := New(staticProvider{cfg}, zap.NewNop().Sugar())
	require.Error(t, a.Run(context.Background()))

	var buf bytes.Buffer
	require.NoError(t, a.History(context.Background(), &buf))
	out := buf.String()
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "mean: 2 values, last 4")
	assert.Contains(t, out, "error: ")
	assert.Contains(t, out, "missing.txt")

	buf.Reset()
	require.NoError(t, New(staticProvider{cfg}, zap.NewNop().Sugar()).Only("smooth").History(context.Background(), &buf))
	assert.NotContains(t, buf.String(), "mean:")
	assert.Contains(t, buf.String(), "failed")

	cfg.Archive = ""
	err := a.History(context.Background(), &buf)
	var cfgErr *seaice.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
