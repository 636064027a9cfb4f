package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chrissnell/beringseaice/internal/gridded"
	"github.com/chrissnell/beringseaice/internal/gridstore"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/config"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

// subsetJob picks one calendar month of a monthly atlas file, either from its
// CF time axis or every Step-th step from Offset, and appends the steps of
// later files and stored grids, such as regridded recent years.
type subsetJob struct{ base }

type subsetInput struct {
	grid   *seaice.Grid
	field  *seaice.Field
	times  []time.Time
	source string
}

func (j *subsetJob) options() *config.SubsetData {
	if j.cfg.Subset == nil {
		return &config.SubsetData{}
	}
	return j.cfg.Subset
}

func (j *subsetJob) Run(ctx context.Context) (*Result, error) {
	opts := j.options()

	in, err := j.load(j.cfg.InputPath, or(opts.Variable, "sic_con_pct"), opts.Month != 0)
	if err != nil {
		return nil, err
	}

	var (
		sel   []int
		years []int
	)
	if opts.Month != 0 {
		if sel, years, err = j.selectMonth(in); err != nil {
			return nil, err
		}
	} else {
		step := opts.Step
		if step == 0 {
			step = 1
		}
		sel = timeaxis.Stride(in.field.Steps, opts.Offset, step)
	}
	out := in.field.Select(sel)
	j.logger.Debugf("selected %d of %d steps", out.Steps, in.field.Steps)

	extend := func(extra *seaice.Field) error {
		var err error
		if out, err = out.Append(extra); err != nil {
			return err
		}
		for i := 0; i < extra.Steps && len(years) > 0; i++ {
			years = append(years, years[len(years)-1]+1)
		}
		return nil
	}

	for _, path := range opts.Append {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		extra, err := j.load(path, or(opts.AppendVariable, "sic"), false)
		if err != nil {
			return nil, err
		}
		if err := extend(extra.field); err != nil {
			return nil, err
		}
	}
	for _, name := range opts.AppendStored {
		extra, err := j.stored(name, in.grid)
		if err != nil {
			return nil, err
		}
		if err := extend(extra); err != nil {
			return nil, err
		}
	}

	if isSet(j.cfg.YearRange) {
		if err := j.checkSteps("subset", out.Steps, j.cfg.YearRange); err != nil {
			return nil, err
		}
		if len(years) == 0 {
			years = j.cfg.YearRange.Years()
		}
	}

	axis := "step"
	steps := make([]float64, out.Steps)
	for i := range steps {
		steps[i] = float64(i)
	}
	if len(years) == out.Steps {
		axis = "year"
		for i, y := range years {
			steps[i] = float64(y)
		}
	}

	p := gridded.NewProduct(
		"Sea ice concentration subset",
		or(j.cfg.Description, "Every selected step of "+sourceName(j.cfg.InputPath)),
		in.source,
		"",
	)
	p.AddGrid(in.grid)
	p.AddVector(axis, gridded.DimTime, steps)
	p.AddField("sic", out, gridded.Attr{Name: "units", Value: "%"})
	if err := gridded.WriteFile(j.cfg.OutputPath, p); err != nil {
		return nil, err
	}
	j.logger.Infof("wrote %d steps to %s", out.Steps, j.cfg.OutputPath)
	return &Result{Outputs: []string{j.cfg.OutputPath}}, nil
}

// selectMonth returns the steps of the configured month within the year
// range, or within the whole file when no range is set, and their years.
func (j *subsetJob) selectMonth(in *subsetInput) ([]int, []int, error) {
	opts := j.options()
	span := j.cfg.YearRange
	if !isSet(span) && len(in.times) > 0 {
		span = timeaxis.YearRange{Start: in.times[0].Year(), End: in.times[len(in.times)-1].Year()}
	}
	sel := timeaxis.MonthIndices(in.times, time.Month(opts.Month), span)
	if len(sel) == 0 {
		return nil, nil, &seaice.DataLoadError{Path: j.cfg.InputPath, Err: fmt.Errorf("no %s steps in %s", time.Month(opts.Month), span)}
	}
	years := make([]int, len(sel))
	for i, s := range sel {
		years[i] = in.times[s].Year()
	}
	return sel, years, nil
}

// stored fetches a grid store entry that must lie on a grid of the same
// shape as the atlas.
func (j *subsetJob) stored(name string, atlas *seaice.Grid) (*seaice.Field, error) {
	if j.deps.Store == nil {
		return nil, &seaice.ConfigError{Field: j.cfg.Name + ".subset.append_stored", Reason: "no grid store (cache_dir is not set)"}
	}
	e, err := j.deps.Store.Get(name)
	if errors.Is(err, gridstore.ErrNotFound) {
		names, _ := j.deps.Store.Names()
		return nil, &seaice.ConfigError{Field: j.cfg.Name + ".subset.append_stored", Reason: fmt.Sprintf("%v (stored: %s)", err, strings.Join(names, ", "))}
	}
	if err != nil {
		return nil, err
	}
	g, err := e.Grid()
	if err != nil {
		return nil, err
	}
	if g.Rows != atlas.Rows || g.Cols != atlas.Cols {
		return nil, &seaice.ShapePreconditionError{What: "stored grid " + name, Want: []int{atlas.Rows, atlas.Cols}, Got: []int{g.Rows, g.Cols}}
	}
	j.logger.Debugf("appending stored grid %s created %s", name, e.Created.Format(time.RFC3339))
	return e.Field()
}

func (j *subsetJob) load(path, variable string, withTimes bool) (*subsetInput, error) {
	opts := j.options()
	ds, err := gridded.Open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	f, err := ds.Field(variable)
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
	in := &subsetInput{grid: g, field: f, source: sourceName(path)}
	if v, ok := ds.Attribute("source"); ok {
		if s, ok := v.(string); ok && s != "" {
			in.source = fmt.Sprintf("%s (%s)", s, in.source)
		}
	}
	if withTimes {
		if in.times, err = ds.Times(or(opts.TimeVariable, "time")); err != nil {
			return nil, err
		}
		if len(in.times) != f.Steps {
			return nil, &seaice.ShapePreconditionError{What: path + " time axis", Want: []int{f.Steps}, Got: []int{len(in.times)}}
		}
	}
	return in, nil
}
