package jobs

import (
	"context"
	"fmt"

	"github.com/chrissnell/beringseaice/internal/cdr"
	"github.com/chrissnell/beringseaice/internal/climatology"
	"github.com/chrissnell/beringseaice/internal/gridded"
	"github.com/chrissnell/beringseaice/internal/piomas"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/internal/stats"
	"github.com/chrissnell/beringseaice/pkg/config"
)

// anomalyJob computes the seasonal anomaly of one target year against a
// baseline climatology, for either the CDR concentration record or a
// PIOMAS model variable.
type anomalyJob struct{ base }

func (j *anomalyJob) Run(ctx context.Context) (*Result, error) {
	opts := j.cfg.Anomaly
	baseline := opts.Baseline
	if !isSet(baseline) {
		baseline = climatology.DefaultBaseline
	}

	var (
		grid     *seaice.Grid
		stack    *climatology.Monthly
		variable string
		units    string
		source   string
		err      error
	)
	switch j.cfg.Type {
	case config.JobCDRAnomaly:
		variable, units, source = "sic", "%", "NOAA/NSIDC Climate Data Record of Sea Ice Concentration"
		grid, stack, err = cdr.NewReader(j.cfg.InputPath, j.logger).Read(j.cfg.YearRange)
	case config.JobPIOMASAnomaly:
		variable, units, source = opts.Variable, "", "PIOMAS"
		r := piomas.NewReader(j.cfg.InputPath, opts.Variable, j.logger)
		r.Threshold = opts.MinValue
		grid, stack, err = r.Read(j.cfg.YearRange)
	default:
		return nil, fmt.Errorf("anomaly job cannot handle type %q", j.cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Scale != 0 {
		stack.Scale(opts.Scale)
	}
	units = or(opts.Units, units)

	refs := climatology.Season(opts.Months...)
	mean, err := stack.SeasonalMean(opts.TargetYear, refs)
	if err != nil {
		return nil, err
	}
	anom, err := stack.SeasonalAnomaly(opts.TargetYear, refs, baseline)
	if err != nil {
		return nil, err
	}
	if opts.FillMissing != nil {
		for i, v := range anom {
			if seaice.IsMissing(v) {
				anom[i] = *opts.FillMissing
			}
		}
	}
	j.logger.Infow("seasonal anomaly computed",
		"months", opts.Months, "target_year", opts.TargetYear, "baseline", baseline.String())

	p := gridded.NewProduct(
		fmt.Sprintf("%s seasonal anomaly, %d (months %v)", variable, opts.TargetYear, opts.Months),
		or(j.cfg.Description, fmt.Sprintf("Seasonal mean and anomaly relative to %s", baseline)),
		source,
		"",
	)
	p.AddGrid(grid)
	var attrs []gridded.Attr
	if units != "" {
		attrs = append(attrs, gridded.Attr{Name: "units", Value: units})
	}
	p.AddLayer(variable, grid.Rows, grid.Cols, mean, attrs...)
	p.AddLayer(variable+"_anomaly", grid.Rows, grid.Cols, anom,
		append(attrs, gridded.Attr{Name: "baseline", Value: baseline.String()})...)
	if err := gridded.WriteFile(j.cfg.OutputPath, p); err != nil {
		return nil, err
	}
	j.logger.Infof("wrote anomaly to %s", j.cfg.OutputPath)

	res := &Result{Outputs: []string{j.cfg.OutputPath}}
	res.addSeries("mean_anomaly", []float64{stats.NanMean(anom)})
	return res, nil
}
