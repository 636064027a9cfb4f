package jobs

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"

	"github.com/chrissnell/beringseaice/internal/climatology"
	"github.com/chrissnell/beringseaice/internal/gridded"
	"github.com/chrissnell/beringseaice/internal/gridstore"
	"github.com/chrissnell/beringseaice/internal/regrid"
	"github.com/chrissnell/beringseaice/internal/seaice"
)

// regridJob averages daily concentration files and interpolates the mean
// onto a target grid, typically the sea ice atlas grid.
type regridJob struct{ base }

func (j *regridJob) Run(ctx context.Context) (*Result, error) {
	opts := j.cfg.Regrid
	method, err := regrid.ParseMethod(opts.Method)
	if err != nil {
		return nil, err
	}

	paths, err := expandInputs(opts.Inputs)
	if err != nil {
		return nil, err
	}

	var (
		src    *seaice.Grid
		layers [][]float64
	)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, f, err := j.load(path, src == nil)
		if err != nil {
			return nil, err
		}
		if src == nil {
			src = g
		}
		if f.Rows != src.Rows || f.Cols != src.Cols {
			return nil, &seaice.ShapePreconditionError{What: path, Want: []int{src.Rows, src.Cols}, Got: []int{f.Rows, f.Cols}}
		}
		// negative values are fill codes such as -999
		f.MaskOutside(0, math.Inf(1))
		for t := 0; t < f.Steps; t++ {
			layers = append(layers, f.Layer(t))
		}
	}
	j.logger.Infof("averaging %d layers from %d files", len(layers), len(paths))

	mean, err := seaice.FieldFromData(1, src.Rows, src.Cols, climatology.NanMeanLayers(layers))
	if err != nil {
		return nil, err
	}
	if opts.InputScale != 0 {
		mean.Scale(opts.InputScale)
	}

	dst, err := j.targetGrid()
	if err != nil {
		return nil, err
	}
	r, err := regrid.New(src)
	if err != nil {
		return nil, err
	}
	out, err := r.Field(mean, dst, method)
	if err != nil {
		return nil, err
	}

	p := gridded.NewProduct(
		"Sea ice concentration on the target grid",
		or(j.cfg.Description, fmt.Sprintf("Mean of %d daily fields regridded (%s) from %s", len(layers), method, sourceName(paths[0]))),
		fmt.Sprintf("%s, %d files", opts.Variable, len(paths)),
		"",
	)
	p.AddGrid(dst)
	p.AddLayer("sic", dst.Rows, dst.Cols, out.Layer(0),
		gridded.Attr{Name: "units", Value: "%"},
		gridded.Attr{Name: "long_name", Value: "sea ice concentration"},
	)
	if err := gridded.WriteFile(j.cfg.OutputPath, p); err != nil {
		return nil, err
	}
	j.logger.Infof("wrote regridded field to %s", j.cfg.OutputPath)

	if j.deps.Store != nil {
		entry, err := gridstore.NewEntry(or(opts.StoreName, j.cfg.Name), dst, out)
		if err != nil {
			return nil, err
		}
		if err := j.deps.Store.Put(entry); err != nil {
			return nil, err
		}
	}

	return &Result{Outputs: []string{j.cfg.OutputPath}}, nil
}

func (j *regridJob) load(path string, wantGrid bool) (*seaice.Grid, *seaice.Field, error) {
	opts := j.cfg.Regrid
	ds, err := gridded.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer ds.Close()

	f, err := ds.Field(opts.Variable)
	if err != nil {
		return nil, nil, err
	}
	if !wantGrid {
		return nil, f, nil
	}
	g, err := ds.LoadGrid(or(opts.LatVariable, "lat"), or(opts.LonVariable, "lon"))
	if err != nil {
		return nil, nil, err
	}
	if err := f.CheckGrid(g); err != nil {
		return nil, nil, err
	}
	return g, f, nil
}

// targetGrid loads the destination grid from the target file.
func (j *regridJob) targetGrid() (*seaice.Grid, error) {
	opts := j.cfg.Regrid
	ds, err := gridded.Open(opts.TargetGrid)
	if err != nil {
		return nil, err
	}
	defer ds.Close()
	return ds.LoadGrid(or(opts.TargetLat, "lat"), or(opts.TargetLon, "lon"))
}

// expandInputs resolves glob patterns in order, sorting each pattern's matches.
func expandInputs(patterns []string) ([]string, error) {
	var paths []string
	for _, pat := range patterns {
		matches, err := filepath.Glob(pat)
		if err != nil {
			return nil, &seaice.ConfigError{Field: "inputs", Reason: fmt.Sprintf("bad pattern %q: %v", pat, err)}
		}
		if len(matches) == 0 {
			return nil, &seaice.DataLoadError{Path: pat, Err: fmt.Errorf("no files match")}
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	return paths, nil
}
