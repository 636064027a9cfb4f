package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/chrissnell/beringseaice/internal/series"
	"github.com/chrissnell/beringseaice/internal/stats"
	"github.com/chrissnell/beringseaice/pkg/config"
)

// seasonalMeanJob averages several monthly series element-wise, e.g. the
// January through April extents into a Jan-Apr mean.
type seasonalMeanJob struct{ base }

func (j *seasonalMeanJob) Run(ctx context.Context) (*Result, error) {
	opts := j.cfg.Series
	inputs := make([][]float64, 0, len(opts.Inputs))
	for _, path := range opts.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := series.ReadFile(path, series.ReadOptions{Scale: opts.Scale, Column: opts.Column})
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, s.Values)
	}

	mean, err := stats.AverageSeries(inputs...)
	if err != nil {
		return nil, fmt.Errorf("averaging %s: %w", strings.Join(opts.Inputs, ", "), err)
	}
	if isSet(j.cfg.YearRange) {
		if err := j.checkSteps("averaged series", len(mean), j.cfg.YearRange); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	res.addSeries("mean", mean)
	names := make([]string, len(opts.Inputs))
	for i, p := range opts.Inputs {
		names[i] = sourceName(p)
	}
	variable := fmt.Sprintf("the mean of %d series", len(inputs))
	if err := j.writeSeries(res, variable, strings.Join(names, ", "), spanOf(j.cfg, len(mean)), mean); err != nil {
		return nil, err
	}
	return res, nil
}

// runningMeanJob smooths a daily series with a wrap-around trailing window.
type runningMeanJob struct{ base }

func (j *runningMeanJob) Run(ctx context.Context) (*Result, error) {
	opts := j.cfg.Series
	s, err := series.ReadFile(j.cfg.InputPath, series.ReadOptions{Scale: opts.Scale, Column: opts.Column})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	smooth, err := stats.RunningMean(s.Values, opts.Window)
	if err != nil {
		return nil, fmt.Errorf("%d-step running mean of %d values: %w", opts.Window, len(s.Values), err)
	}

	res := &Result{}
	res.addSeries("running_mean", smooth)
	variable := fmt.Sprintf("the %d-step running mean", opts.Window)
	if err := j.writeSeries(res, variable, sourceName(j.cfg.InputPath), spanOf(j.cfg, len(smooth)), smooth); err != nil {
		return nil, err
	}
	return res, nil
}

type stepSpan int

func (n stepSpan) String() string { return fmt.Sprintf("%d steps", int(n)) }

// spanOf describes the coverage of an output: the year range when one is
// configured, otherwise the number of steps.
func spanOf(cfg config.JobData, n int) fmt.Stringer {
	if isSet(cfg.YearRange) {
		return cfg.YearRange
	}
	return stepSpan(n)
}
