// Package jobs holds the analysis pipelines. Each configured job is built
// by New from its config.JobData and run once; jobs share nothing but the
// files they read and write.
package jobs

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/chrissnell/beringseaice/internal/gridstore"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/internal/series"
	"github.com/chrissnell/beringseaice/pkg/config"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

// Job is one runnable pipeline.
type Job interface {
	Name() string
	Type() string
	Run(ctx context.Context) (*Result, error)
}

// Result describes what a run produced.
type Result struct {
	// Outputs lists the files written.
	Outputs []string
	// Series holds the numeric series computed, keyed by name, for the archive.
	Series map[string][]float64
}

func (r *Result) addSeries(name string, values []float64) {
	if r.Series == nil {
		r.Series = make(map[string][]float64)
	}
	r.Series[name] = values
}

// Deps are the shared services a job may use. Store and Client are optional.
type Deps struct {
	Logger   *zap.SugaredLogger
	Store    *gridstore.Store
	CacheDir string
	Client   *http.Client
}

// New builds the job described by cfg.
func New(cfg config.JobData, deps Deps) (Job, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := base{cfg: cfg, deps: deps, logger: deps.Logger.With("job", cfg.Name)}
	switch cfg.Type {
	case config.JobExtent:
		return &extentJob{b}, nil
	case config.JobSeasonalMean:
		return &seasonalMeanJob{b}, nil
	case config.JobRunningMean:
		return &runningMeanJob{b}, nil
	case config.JobSeriesStats:
		return &seriesStatsJob{b}, nil
	case config.JobRegrid:
		return &regridJob{b}, nil
	case config.JobCDRAnomaly, config.JobPIOMASAnomaly:
		return &anomalyJob{b}, nil
	case config.JobAtlasSubset:
		return &subsetJob{b}, nil
	case config.JobAMSR2Extent:
		return &amsr2Job{b}, nil
	default:
		return nil, &seaice.ConfigError{Field: cfg.Name + ".type", Reason: fmt.Sprintf("unknown job type %q", cfg.Type)}
	}
}

type base struct {
	cfg    config.JobData
	deps   Deps
	logger *zap.SugaredLogger
}

func (b *base) Name() string { return b.cfg.Name }
func (b *base) Type() string { return b.cfg.Type }

// profile resolves the job's extent profile, falling back to def, with the
// job-level threshold and cutoff applied on top.
func (b *base) profile(def string) (seaice.Profile, error) {
	name := b.cfg.Profile
	if name == "" {
		name = def
	}
	p, err := seaice.LookupProfile(name)
	if err != nil {
		return p, err
	}
	p = p.WithOverrides(b.cfg.Threshold, b.cfg.LatitudeCutoff)
	return p, p.Validate()
}

// writeSeries writes values to the job's output path under a descriptive header.
func (b *base) writeSeries(res *Result, variable, source string, span fmt.Stringer, values []float64) error {
	header := series.Header(variable, source, span)
	if b.cfg.Description != "" {
		header = append([]string{b.cfg.Description}, header...)
	}
	if err := series.WriteFile(b.cfg.OutputPath, &series.Series{Header: header, Values: values}); err != nil {
		return err
	}
	res.Outputs = append(res.Outputs, b.cfg.OutputPath)
	b.logger.Infof("wrote %d values to %s", len(values), b.cfg.OutputPath)
	return nil
}

// checkSteps fails unless n steps cover the job's year range exactly.
func (b *base) checkSteps(what string, n int, years timeaxis.YearRange) error {
	if n != years.Len() {
		return &seaice.ShapePreconditionError{What: what + " steps vs year_range " + years.String(), Want: []int{years.Len()}, Got: []int{n}}
	}
	return nil
}

func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sourceName(path string) string { return filepath.Base(path) }

func isSet(r timeaxis.YearRange) bool { return r != (timeaxis.YearRange{}) }
