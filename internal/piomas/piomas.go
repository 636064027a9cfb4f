// Package piomas reads the PIOMAS reanalysis flat binary files into monthly stacks.
//
// A PIOMAS directory holds grid.txt (all longitudes followed by all
// latitudes, whitespace separated) and one file per year named
// <variable>_<year>.H containing little-endian float32 values, month-major.
// The current year's file is short; its missing months are padded with the
// missing sentinel.
package piomas

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/chrissnell/beringseaice/internal/climatology"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

const (
	// Rows and Cols are the dimensions of the PIOMAS model grid.
	Rows = 120
	Cols = 360
)

// Reader loads one PIOMAS variable (e.g. "area" or "heff") from Dir.
type Reader struct {
	Dir      string
	Variable string
	Rows     int
	Cols     int
	// Threshold, when positive, marks values below it as missing.
	Threshold float64

	logger *zap.SugaredLogger
}

// NewReader returns a reader for the standard 120x360 grid.
func NewReader(dir, variable string, logger *zap.SugaredLogger) *Reader {
	return &Reader{Dir: dir, Variable: variable, Rows: Rows, Cols: Cols, logger: logger}
}

// ReadGrid parses grid.txt.
func (r *Reader) ReadGrid() (*seaice.Grid, error) {
	path := filepath.Join(r.Dir, "grid.txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, &seaice.DataLoadError{Path: path, Err: err}
	}
	defer f.Close()

	n := r.Rows * r.Cols
	values := make([]float64, 0, 2*n)
	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, &seaice.DataLoadError{Path: path, Err: err}
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, &seaice.DataLoadError{Path: path, Err: err}
	}
	if len(values) != 2*n {
		return nil, &seaice.DataLoadError{Path: path, Err: fmt.Errorf("expected %d values, found %d", 2*n, len(values))}
	}

	return seaice.NewGrid(r.Rows, r.Cols, values[n:], values[:n])
}

// YearFile returns the path of the file holding year.
func (r *Reader) YearFile(year int) string {
	return filepath.Join(r.Dir, fmt.Sprintf("%s_%d.H", r.Variable, year))
}

// ReadYear decodes one year into dst, which must hold 12 layers of
// Rows*Cols values. It returns the number of months present.
func (r *Reader) ReadYear(year int, dst func(month int) []float64) (int, error) {
	path := r.YearFile(year)
	f, err := os.Open(path)
	if err != nil {
		return 0, &seaice.DataLoadError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, &seaice.DataLoadError{Path: path, Err: err}
	}

	layerBytes := int64(r.Rows * r.Cols * 4)
	if info.Size()%layerBytes != 0 {
		return 0, &seaice.DataLoadError{Path: path, Err: fmt.Errorf("size %d is not a whole number of %dx%d months", info.Size(), r.Rows, r.Cols)}
	}
	months := int(info.Size() / layerBytes)
	if months == 0 || months > 12 {
		return 0, &seaice.DataLoadError{Path: path, Err: fmt.Errorf("file holds %d months", months)}
	}

	buf := make([]float32, r.Rows*r.Cols)
	br := bufio.NewReader(f)
	for m := 0; m < months; m++ {
		if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				err = fmt.Errorf("truncated in month %d", m+1)
			}
			return 0, &seaice.DataLoadError{Path: path, Err: err}
		}
		layer := dst(m)
		for i, v := range buf {
			x := float64(v)
			if r.Threshold > 0 && x < r.Threshold {
				x = math.NaN()
			}
			layer[i] = x
		}
	}
	return months, nil
}

// Read loads the grid and every year of years into a monthly stack.
func (r *Reader) Read(years timeaxis.YearRange) (*seaice.Grid, *climatology.Monthly, error) {
	grid, err := r.ReadGrid()
	if err != nil {
		return nil, nil, err
	}

	stack := climatology.NewMonthly(years, r.Rows, r.Cols)
	for yi, year := range years.Years() {
		months, err := r.ReadYear(year, func(m int) []float64 { return stack.Layer(yi, m) })
		if err != nil {
			return nil, nil, err
		}
		if months != 12 && r.logger != nil {
			r.logger.Infof("PIOMAS %s data for %d available through %s", r.Variable, year, time.Month(months))
		}
	}

	if r.logger != nil {
		r.logger.Debugf("read PIOMAS %s for %s", r.Variable, years)
	}
	return grid, stack, nil
}
