// Package cdr reads the NOAA/NSIDC sea-ice concentration Climate Data Record
// (version 3, monthly, northern hemisphere).
package cdr

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/beringseaice/internal/climatology"
	"github.com/chrissnell/beringseaice/internal/gridded"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

const (
	// Variable is the concentration variable in every monthly file.
	Variable = "seaice_conc_monthly_cdr"
	// FirstYear is the first year of the record.
	FirstYear = 1979
)

// Each sensor segment covers a run of consecutive months starting in
// January 1979.
var schedule = []struct {
	satellite string
	months    int
}{
	{"n07", 103},
	{"f08", 53},
	{"f11", 45},
	{"f13", 147},
	{"f17", 132},
}

// IsGap reports whether the record has no data for the month. January 1988
// falls between two sensors and was never produced.
func IsGap(year int, month time.Month) bool {
	return year == 1988 && month == time.January
}

// Satellite returns the sensor that produced the given month.
func Satellite(year int, month time.Month) (string, error) {
	idx := (year-FirstYear)*12 + int(month) - 1
	if idx < 0 {
		return "", &seaice.ConfigError{Field: "year_range", Reason: fmt.Sprintf("%d-%02d predates the record", year, month)}
	}
	for _, seg := range schedule {
		if idx < seg.months {
			return seg.satellite, nil
		}
		idx -= seg.months
	}
	return "", &seaice.ConfigError{Field: "year_range", Reason: fmt.Sprintf("%d-%02d is past the end of the v3 record", year, month)}
}

// Filename returns the monthly file name for the month.
func Filename(year int, month time.Month) (string, error) {
	sat, err := Satellite(year, month)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("seaice_conc_monthly_nh_%s_%d%02d_v03r01.nc", sat, year, month), nil
}

// Reader loads monthly CDR files from Dir.
type Reader struct {
	Dir    string
	logger *zap.SugaredLogger
}

// NewReader returns a reader for dir.
func NewReader(dir string, logger *zap.SugaredLogger) *Reader {
	return &Reader{Dir: dir, logger: logger}
}

// Read loads every month of years as percent concentration. Flagged cells
// (land, coast, pole hole) are missing, as is every cell of a gap month.
func (r *Reader) Read(years timeaxis.YearRange) (*seaice.Grid, *climatology.Monthly, error) {
	if err := years.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		grid  *seaice.Grid
		stack *climatology.Monthly
	)
	for yi, year := range years.Years() {
		for mi := 0; mi < 12; mi++ {
			month := time.Month(mi + 1)
			if IsGap(year, month) {
				r.logger.Debugf("no CDR data for %d-%02d, leaving it missing", year, month)
				continue
			}

			name, err := Filename(year, month)
			if err != nil {
				return nil, nil, err
			}
			g, layer, err := r.readMonth(filepath.Join(r.Dir, name), grid == nil)
			if err != nil {
				return nil, nil, err
			}
			if grid == nil {
				grid = g
				stack = climatology.NewMonthly(years, grid.Rows, grid.Cols)
			}
			if len(layer) != grid.Size() {
				return nil, nil, &seaice.ShapePreconditionError{What: name, Want: []int{grid.Rows, grid.Cols}, Got: []int{len(layer)}}
			}
			copy(stack.Layer(yi, mi), layer)
		}
	}
	if grid == nil {
		return nil, nil, &seaice.DataLoadError{Path: r.Dir, Err: fmt.Errorf("no CDR months in %s", years)}
	}

	r.logger.Infof("read %d years of CDR concentration from %s", years.Len(), r.Dir)
	return grid, stack, nil
}

func (r *Reader) readMonth(path string, wantGrid bool) (*seaice.Grid, []float64, error) {
	ds, err := gridded.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer ds.Close()

	f, err := ds.Field(Variable)
	if err != nil {
		return nil, nil, err
	}
	if f.Steps != 1 {
		return nil, nil, &seaice.ShapePreconditionError{What: path + " time steps", Want: []int{1}, Got: []int{f.Steps}}
	}

	var g *seaice.Grid
	if wantGrid {
		if g, err = ds.LoadGrid("latitude", "longitude"); err != nil {
			return nil, nil, err
		}
		if err := f.CheckGrid(g); err != nil {
			return nil, nil, err
		}
	}

	return g, ToPercent(f.Layer(0)), nil
}

// ToPercent converts fractional concentration to percent in place. Values
// above 1 are flag codes and become missing.
func ToPercent(layer []float64) []float64 {
	for i, v := range layer {
		switch {
		case seaice.IsMissing(v):
		case v > 1:
			layer[i] = seaice.Missing()
		default:
			layer[i] = v * 100
		}
	}
	return layer
}
