package jobs

import (
	"context"
	"fmt"

	"github.com/chrissnell/beringseaice/internal/gridded"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/config"
)

// DefaultExtentProfile is used by extent jobs that do not name a profile.
const DefaultExtentProfile = "atlas-sie85"

// extentJob reduces a gridded concentration file to one extent per step.
type extentJob struct{ base }

func (j *extentJob) Run(ctx context.Context) (*Result, error) {
	opts := j.cfg.Extent
	if opts == nil {
		opts = &config.ExtentData{}
	}
	p, err := j.profile(DefaultExtentProfile)
	if err != nil {
		return nil, err
	}

	ds, err := gridded.Open(j.cfg.InputPath)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	f, err := ds.Field(or(opts.Variable, "sic"))
	if err != nil {
		return nil, err
	}
	g, err := ds.LoadGrid(or(opts.LatVariable, "lat"), or(opts.LonVariable, "lon"))
	if err != nil {
		return nil, err
	}
	if err := f.CheckGrid(g); err != nil {
		return nil, err
	}
	if err := j.checkSteps(j.cfg.InputPath, f.Steps, j.cfg.YearRange); err != nil {
		return nil, err
	}
	if opts.InputScale != 0 {
		f.Scale(opts.InputScale)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reducer, err := p.Reducer(g)
	if err != nil {
		return nil, err
	}
	if err := restrictLongitude(j.cfg.Name+".extent", reducer.Mask, g.Lon, opts.LonMin, opts.LonMax); err != nil {
		return nil, err
	}

	extent, err := reducer.Reduce(f)
	if err != nil {
		return nil, err
	}
	j.logger.Debugw("extent reduced", "profile", p.Name, "threshold", p.Threshold, "cutoff", p.LatitudeCutoff, "steps", len(extent))

	res := &Result{}
	res.addSeries("extent", extent)
	variable := fmt.Sprintf("sea ice extent in 10^6 km^2 (concentration >= %g%%, %s)", p.Threshold, p.Name)
	if err := j.writeSeries(res, variable, sourceName(j.cfg.InputPath), j.cfg.YearRange, extent); err != nil {
		return nil, err
	}
	return res, nil
}

// restrictLongitude applies an optional longitude box to mask. Both bounds
// or neither must be given.
func restrictLongitude(field string, mask, lon []float64, lonMin, lonMax *float64) error {
	switch {
	case lonMin == nil && lonMax == nil:
		return nil
	case lonMin == nil || lonMax == nil:
		return &seaice.ConfigError{Field: field + ".lon_min", Reason: "lon_min and lon_max must be set together"}
	}
	return seaice.RestrictLongitude(mask, lon, *lonMin, *lonMax)
}
