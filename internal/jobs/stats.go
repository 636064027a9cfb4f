package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/internal/series"
	"github.com/chrissnell/beringseaice/internal/stats"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

// Report is the summary written by a series-stats job.
type Report struct {
	Series      string              `yaml:"series"`
	Years       timeaxis.YearRange  `yaml:"years"`
	Valid       int                 `yaml:"valid"`
	Mean        float64             `yaml:"mean"`
	Min         YearValue           `yaml:"min"`
	Max         YearValue           `yaml:"max"`
	Baseline    *BaselineSummary    `yaml:"baseline,omitempty"`
	TTest       *TTestSummary       `yaml:"ttest,omitempty"`
	Correlation *CorrelationSummary `yaml:"correlation,omitempty"`
}

// YearValue is a value and the year it belongs to.
type YearValue struct {
	Year  int     `yaml:"year"`
	Value float64 `yaml:"value"`
}

// BaselineSummary is the mean over a baseline window.
type BaselineSummary struct {
	Years timeaxis.YearRange `yaml:"years"`
	Mean  float64            `yaml:"mean"`
}

// TTestSummary compares two windows of the series.
type TTestSummary struct {
	WindowA timeaxis.YearRange `yaml:"window_a"`
	WindowB timeaxis.YearRange `yaml:"window_b"`
	MeanA   float64            `yaml:"mean_a"`
	MeanB   float64            `yaml:"mean_b"`
	T       float64            `yaml:"t"`
	DF      float64            `yaml:"df"`
	PValue  float64            `yaml:"p_value"`
}

// CorrelationSummary relates the series to a reference over their common years.
type CorrelationSummary struct {
	Reference string             `yaml:"reference"`
	Years     timeaxis.YearRange `yaml:"years"`
	R         float64            `yaml:"r"`
	PValue    float64            `yaml:"p_value"`
	N         int                `yaml:"n"`
}

// seriesStatsJob summarizes a yearly series: extremes, window t-test,
// baseline mean and correlation against a reference series.
type seriesStatsJob struct{ base }

func (j *seriesStatsJob) Run(ctx context.Context) (*Result, error) {
	opts := j.cfg.Stats
	years := j.cfg.YearRange

	s, err := series.ReadFile(j.cfg.InputPath, series.ReadOptions{Scale: opts.Scale})
	if err != nil {
		return nil, err
	}
	if err := j.checkSteps(j.cfg.InputPath, len(s.Values), years); err != nil {
		return nil, err
	}

	ext, err := stats.Rank(s.Values)
	if err != nil {
		return nil, fmt.Errorf("ranking %s: %w", j.cfg.InputPath, err)
	}
	report := &Report{
		Series: sourceName(j.cfg.InputPath),
		Years:  years,
		Valid:  len(stats.DropNaN(s.Values)),
		Mean:   stats.NanMean(s.Values),
		Min:    YearValue{Year: years.Start + ext.MinIndex, Value: ext.Min},
		Max:    YearValue{Year: years.Start + ext.MaxIndex, Value: ext.Max},
	}

	if isSet(opts.Baseline) {
		window, err := j.window("stats.baseline", s.Values, years, opts.Baseline)
		if err != nil {
			return nil, err
		}
		report.Baseline = &BaselineSummary{Years: opts.Baseline, Mean: stats.NanMean(window)}
	}

	if isSet(opts.WindowA) || isSet(opts.WindowB) {
		a, err := j.window("stats.window_a", s.Values, years, opts.WindowA)
		if err != nil {
			return nil, err
		}
		b, err := j.window("stats.window_b", s.Values, years, opts.WindowB)
		if err != nil {
			return nil, err
		}
		tt, err := stats.IndependentTTest(a, b)
		if err != nil {
			return nil, fmt.Errorf("t-test %s vs %s: %w", opts.WindowA, opts.WindowB, err)
		}
		report.TTest = &TTestSummary{
			WindowA: opts.WindowA, WindowB: opts.WindowB,
			MeanA: tt.MeanA, MeanB: tt.MeanB,
			T: tt.T, DF: tt.DF, PValue: tt.PValue,
		}
	}

	if opts.ReferencePath != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := j.correlate(s.Values)
		if err != nil {
			return nil, err
		}
		report.Correlation = c
	}

	if err := writeReport(j.cfg.OutputPath, report); err != nil {
		return nil, err
	}
	j.logger.Infof("wrote statistics for %s to %s", report.Series, j.cfg.OutputPath)
	return &Result{Outputs: []string{j.cfg.OutputPath}}, nil
}

// window returns the values of the years in w, which must lie within years.
func (j *seriesStatsJob) window(field string, values []float64, years, w timeaxis.YearRange) ([]float64, error) {
	if err := w.Validate(); err != nil {
		return nil, &seaice.ConfigError{Field: j.cfg.Name + "." + field, Reason: err.Error()}
	}
	if !years.Contains(w.Start) || !years.Contains(w.End) {
		return nil, &seaice.ConfigError{Field: j.cfg.Name + "." + field, Reason: fmt.Sprintf("%s is outside %s", w, years)}
	}
	return pick(values, years.Indices(w)), nil
}

func (j *seriesStatsJob) correlate(values []float64) (*CorrelationSummary, error) {
	opts := j.cfg.Stats
	ref, err := series.ReadFile(opts.ReferencePath, series.ReadOptions{Scale: opts.ReferenceScale})
	if err != nil {
		return nil, err
	}
	if err := j.checkSteps(opts.ReferencePath, len(ref.Values), opts.ReferenceYears); err != nil {
		return nil, err
	}

	overlap := timeaxis.YearRange{
		Start: max(j.cfg.YearRange.Start, opts.ReferenceYears.Start),
		End:   min(j.cfg.YearRange.End, opts.ReferenceYears.End),
	}
	if overlap.Start > overlap.End {
		return nil, &seaice.ConfigError{
			Field:  j.cfg.Name + ".stats.reference_years",
			Reason: fmt.Sprintf("%s does not overlap %s", opts.ReferenceYears, j.cfg.YearRange),
		}
	}

	x := pick(values, j.cfg.YearRange.Indices(overlap))
	y := pick(ref.Values, opts.ReferenceYears.Indices(overlap))
	c, err := stats.Pearson(x, y)
	if err != nil {
		return nil, fmt.Errorf("correlating with %s over %s: %w", opts.ReferencePath, overlap, err)
	}
	return &CorrelationSummary{
		Reference: sourceName(opts.ReferencePath),
		Years:     overlap,
		R:         c.R,
		PValue:    c.PValue,
		N:         c.N,
	}, nil
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, k := range idx {
		out[i] = values[k]
	}
	return out
}

func writeReport(path string, r *Report) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
