// Package climatology computes baseline means, anomalies and seasonal means
// of gridded fields.
package climatology

import (
	"fmt"

	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

// DefaultBaseline is the 1981-2010 reference period.
var DefaultBaseline = timeaxis.YearRange{Start: 1981, End: 2010}

// NanMeanLayers averages equally sized layers cell by cell, skipping missing
// values. A cell missing in every layer stays missing.
func NanMeanLayers(layers [][]float64) []float64 {
	if len(layers) == 0 {
		return nil
	}
	n := len(layers[0])
	sum := make([]float64, n)
	count := make([]int, n)
	for _, l := range layers {
		for i, v := range l {
			if seaice.IsMissing(v) {
				continue
			}
			sum[i] += v
			count[i]++
		}
	}
	out := make([]float64, n)
	for i := range out {
		if count[i] == 0 {
			out[i] = seaice.Missing()
		} else {
			out[i] = sum[i] / float64(count[i])
		}
	}
	return out
}

// Monthly is a [year][month][row][col] stack covering Years.
type Monthly struct {
	Years timeaxis.YearRange
	Rows  int
	Cols  int
	Data  []float64
}

// NewMonthly allocates a stack filled with the missing sentinel.
func NewMonthly(years timeaxis.YearRange, rows, cols int) *Monthly {
	m := &Monthly{Years: years, Rows: rows, Cols: cols, Data: make([]float64, years.Len()*12*rows*cols)}
	for i := range m.Data {
		m.Data[i] = seaice.Missing()
	}
	return m
}

// Layer returns the slice backing year index yi and month index mi (0 = January).
func (m *Monthly) Layer(yi, mi int) []float64 {
	n := m.Rows * m.Cols
	off := (yi*12 + mi) * n
	return m.Data[off : off+n]
}

// Scale multiplies every non-missing value by k in place.
func (m *Monthly) Scale(k float64) {
	for i, v := range m.Data {
		if !seaice.IsMissing(v) {
			m.Data[i] = v * k
		}
	}
}

// Climatology returns the baseline nan-mean of each calendar month.
func (m *Monthly) Climatology(baseline timeaxis.YearRange) ([12][]float64, error) {
	var clim [12][]float64
	idx := m.Years.Indices(baseline)
	if len(idx) == 0 {
		return clim, &seaice.ConfigError{Field: "baseline", Reason: fmt.Sprintf("%s does not overlap data years %s", baseline, m.Years)}
	}
	for mi := 0; mi < 12; mi++ {
		layers := make([][]float64, 0, len(idx))
		for _, yi := range idx {
			layers = append(layers, m.Layer(yi, mi))
		}
		clim[mi] = NanMeanLayers(layers)
	}
	return clim, nil
}

// Anomalies returns the stack minus its baseline climatology.
func (m *Monthly) Anomalies(baseline timeaxis.YearRange) (*Monthly, error) {
	clim, err := m.Climatology(baseline)
	if err != nil {
		return nil, err
	}
	out := &Monthly{Years: m.Years, Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	for yi := 0; yi < m.Years.Len(); yi++ {
		for mi := 0; mi < 12; mi++ {
			Subtract(out.Layer(yi, mi), m.Layer(yi, mi), clim[mi])
		}
	}
	return out, nil
}

// Subtract writes a-b into dst. Missing propagates.
func Subtract(dst, a, b []float64) {
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
}

// MonthRef names a month relative to a target year. YearOffset -1 with
// Month 12 is December of the previous year.
type MonthRef struct {
	YearOffset int `json:"year_offset" yaml:"year_offset"`
	Month      int `json:"month" yaml:"month"`
}

// Season builds month references for months listed in calendar order,
// wrapping into the previous year when a later month precedes an earlier
// one, so {12, 1, 2} is December of the previous year plus January and
// February of the target year.
func Season(months ...int) []MonthRef {
	refs := make([]MonthRef, len(months))
	offset := 0
	for i := len(months) - 1; i >= 0; i-- {
		if i < len(months)-1 && months[i] > months[i+1] {
			offset--
		}
		refs[i] = MonthRef{YearOffset: offset, Month: months[i]}
	}
	return refs
}

// SeasonalMean nan-averages the referenced months of target year.
func (m *Monthly) SeasonalMean(year int, refs []MonthRef) ([]float64, error) {
	layers := make([][]float64, 0, len(refs))
	for _, r := range refs {
		if r.Month < 1 || r.Month > 12 {
			return nil, &seaice.ConfigError{Field: "months", Reason: fmt.Sprintf("month %d out of range", r.Month)}
		}
		yi := m.Years.Index(year + r.YearOffset)
		if yi < 0 {
			return nil, &seaice.ConfigError{Field: "target_year", Reason: fmt.Sprintf("year %d outside %s", year+r.YearOffset, m.Years)}
		}
		layers = append(layers, m.Layer(yi, r.Month-1))
	}
	return NanMeanLayers(layers), nil
}

// SeasonalAnomaly nan-averages the monthly anomalies of the referenced
// months, each taken against its own calendar-month climatology.
func (m *Monthly) SeasonalAnomaly(year int, refs []MonthRef, baseline timeaxis.YearRange) ([]float64, error) {
	anom, err := m.Anomalies(baseline)
	if err != nil {
		return nil, err
	}
	return anom.SeasonalMean(year, refs)
}
