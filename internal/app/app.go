package app

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chrissnell/beringseaice/internal/archive"
	"github.com/chrissnell/beringseaice/internal/gridstore"
	"github.com/chrissnell/beringseaice/internal/jobs"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/config"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	only           string
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Only restricts Run to the named job.
func (a *App) Only(name string) *App {
	a.only = name
	return a
}

// Run executes the configured jobs in order and returns the first failure.
// SIGINT and SIGTERM cancel the job in progress.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	selected := cfg.Jobs
	if a.only != "" {
		job, err := cfg.Job(a.only)
		if err != nil {
			return err
		}
		selected = []config.JobData{*job}
	}

	deps := jobs.Deps{Logger: a.logger, CacheDir: cfg.CacheDir}
	if cfg.CacheDir != "" {
		store, err := gridstore.Open(filepath.Join(cfg.CacheDir, "grids"), gridstore.DefaultMemoryEntries, a.logger)
		if err != nil {
			return err
		}
		deps.Store = store
	}

	var arc *archive.Archive
	if cfg.Archive != "" {
		arc, err = archive.Open(cfg.Archive, a.logger)
		if err != nil {
			return err
		}
		defer arc.Close()
	}

	a.logger.Infof("running %d job(s)", len(selected))
	for _, jc := range selected {
		if err := ctx.Err(); err != nil {
			a.logger.Info("shutdown signal received, skipping remaining jobs")
			return err
		}
		job, err := jobs.New(jc, deps)
		if err != nil {
			return fmt.Errorf("error creating job [%s]: %w", jc.Name, err)
		}
		if err := a.runJob(ctx, job, arc); err != nil {
			return fmt.Errorf("job [%s] failed: %w", jc.Name, err)
		}
	}
	a.logger.Info("all jobs finished")
	return nil
}

func (a *App) runJob(ctx context.Context, job jobs.Job, arc *archive.Archive) error {
	var (
		run *archive.Run
		err error
	)
	id := uuid.New()
	if arc != nil {
		if run, err = arc.StartRun(ctx, job.Name(), job.Type()); err != nil {
			return err
		}
		id = run.ID
	}
	logger := a.logger.With("job", job.Name(), "run_id", id.String())
	logger.Infof("starting %s job", job.Type())

	start := time.Now()
	res, runErr := job.Run(ctx)
	if runErr == nil && arc != nil {
		runErr = archiveSeries(ctx, arc, id, res)
	}

	if arc != nil {
		// recorded even when ctx was cancelled
		if err := arc.FinishRun(context.Background(), run, runErr); err != nil {
			logger.Errorf("could not record run result: %v", err)
		}
	}
	if runErr != nil {
		logger.Errorw("job failed", "error", runErr, "elapsed", time.Since(start).String())
		return runErr
	}
	logger.Infow("job finished", "outputs", res.Outputs, "elapsed", time.Since(start).String())
	return nil
}

func archiveSeries(ctx context.Context, arc *archive.Archive, id uuid.UUID, res *jobs.Result) error {
	names := make([]string, 0, len(res.Series))
	for name := range res.Series {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := arc.SaveSeries(ctx, id, name, res.Series[name]); err != nil {
			return err
		}
	}
	return nil
}

// History writes the archived runs, newest first, with the length and last
// value of every series each run stored. Only limits it to one job.
func (a *App) History(ctx context.Context, w io.Writer) error {
	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	if cfg.Archive == "" {
		return &seaice.ConfigError{Field: "archive", Reason: "no archive configured"}
	}
	arc, err := archive.Open(cfg.Archive, a.logger)
	if err != nil {
		return err
	}
	defer arc.Close()

	runs, err := arc.Runs(ctx, a.only)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-20s %-15s %-9s %s\n", r.Started.Format(time.RFC3339), r.Job, r.Type, r.Status, r.ID)
		if r.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", r.Error)
		}
		names, err := arc.SeriesNames(ctx, r.ID)
		if err != nil {
			return err
		}
		for _, name := range names {
			values, err := arc.Series(ctx, r.ID, name)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				continue
			}
			fmt.Fprintf(w, "    %s: %d values, last %g\n", name, len(values), values[len(values)-1])
		}
	}
	return nil
}
