package jobs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chrissnell/beringseaice/internal/fetch"
	"github.com/chrissnell/beringseaice/internal/gridded"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/config"
)

// DefaultAMSR2Profile is used by amsr2-extent jobs that do not name a profile.
const DefaultAMSR2Profile = "amsr2-sie15"

// Longitude box of the Bering Sea used when an amsr2-extent job gives none.
var (
	defaultAMSR2LonMin = 167.0
	defaultAMSR2LonMax = 218.0
)

// amsr2Job downloads daily AMSR2 concentration files and reduces each day
// to a Bering Sea extent.
type amsr2Job struct{ base }

func (j *amsr2Job) Run(ctx context.Context) (*Result, error) {
	opts := j.cfg.AMSR2
	start, err := time.Parse(config.DateLayout, opts.Start)
	if err != nil {
		return nil, &seaice.ConfigError{Field: j.cfg.Name + ".amsr2.start", Reason: err.Error()}
	}
	end, err := time.Parse(config.DateLayout, opts.End)
	if err != nil {
		return nil, &seaice.ConfigError{Field: j.cfg.Name + ".amsr2.end", Reason: err.Error()}
	}
	p, err := j.profile(DefaultAMSR2Profile)
	if err != nil {
		return nil, err
	}

	dir := j.cfg.InputPath
	if dir == "" {
		dir = filepath.Join(or(j.deps.CacheDir, "."), "amsr2")
	}
	d := fetch.New(dir, j.logger)
	if j.deps.Client != nil {
		d.Client = j.deps.Client
	}
	if opts.Parallelism > 0 {
		d.Parallelism = opts.Parallelism
	}
	d.Inflate = true
	d.SkipExisting = true

	urls := fetch.DailyURLs(opts.BaseURL, start, end, fetch.AMSR2Filename)
	paths, err := d.DownloadAll(ctx, urls)
	if err != nil {
		return nil, err
	}

	lonMin, lonMax := opts.LonMin, opts.LonMax
	if lonMin == nil && lonMax == nil {
		lonMin, lonMax = &defaultAMSR2LonMin, &defaultAMSR2LonMax
	}

	var (
		grid    *seaice.Grid
		reducer *seaice.ExtentReducer
		extent  = make([]float64, len(paths))
	)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, layer, err := j.readDay(path, grid == nil)
		if err != nil {
			return nil, err
		}
		if grid == nil {
			grid = g
			if reducer, err = p.Reducer(grid); err != nil {
				return nil, err
			}
			if err := restrictLongitude(j.cfg.Name+".amsr2", reducer.Mask, grid.Lon, lonMin, lonMax); err != nil {
				return nil, err
			}
		}
		if len(layer) != grid.Size() {
			return nil, &seaice.ShapePreconditionError{What: path, Want: []int{grid.Rows, grid.Cols}, Got: []int{len(layer)}}
		}
		extent[i] = reducer.Step(ClipAMSR2(layer))
	}

	res := &Result{}
	res.addSeries("extent", extent)
	variable := fmt.Sprintf("daily sea ice extent in 10^6 km^2 (concentration >= %g%%, %s)", p.Threshold, p.Name)
	span := dateSpan{start, end}
	if err := j.writeSeries(res, variable, "AMSR2 "+opts.BaseURL, span, extent); err != nil {
		return nil, err
	}
	return res, nil
}

func (j *amsr2Job) readDay(path string, wantGrid bool) (*seaice.Grid, []float64, error) {
	opts := j.cfg.AMSR2
	ds, err := gridded.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer ds.Close()

	f, err := ds.Field(or(opts.Variable, "sea_ice_concentration"))
	if err != nil {
		return nil, nil, err
	}
	if f.Steps != 1 {
		return nil, nil, &seaice.ShapePreconditionError{What: path + " time steps", Want: []int{1}, Got: []int{f.Steps}}
	}
	var g *seaice.Grid
	if wantGrid {
		if g, err = ds.LoadGrid(or(opts.LatVariable, "latitude"), or(opts.LonVariable, "longitude")); err != nil {
			return nil, nil, err
		}
		if err := f.CheckGrid(g); err != nil {
			return nil, nil, err
		}
	}
	return g, f.Layer(0), nil
}

// ClipAMSR2 cleans a percent concentration layer in place: values at or
// below 15 % and above 100 % become missing, and values from 99.9 % to
// 100 % are clipped to 99.9 %.
func ClipAMSR2(layer []float64) []float64 {
	for i, v := range layer {
		frac := v / 100
		switch {
		case seaice.IsMissing(v):
		case frac <= 0.15 || frac > 1:
			layer[i] = seaice.Missing()
		case frac >= 0.999:
			layer[i] = 99.9
		}
	}
	return layer
}

type dateSpan struct{ start, end time.Time }

func (s dateSpan) String() string {
	return s.start.Format(config.DateLayout) + " to " + s.end.Format(config.DateLayout)
}
