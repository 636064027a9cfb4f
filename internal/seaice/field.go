// Package seaice estimates areal sea-ice extent from gridded concentration fields.
//
// Fields and grids are stored row-major in flat slices. Missing cells hold
// the NaN sentinel returned by Missing; every reduction in this package
// skips them rather than propagating them.
package seaice

import (
	"math"
)

// Missing returns the sentinel used for invalid or absent cells.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Grid holds cell-centre coordinates for a rows x cols field.
type Grid struct {
	Rows int
	Cols int
	Lat  []float64
	Lon  []float64
}

// NewGrid validates that lat and lon both hold rows*cols values.
func NewGrid(rows, cols int, lat, lon []float64) (*Grid, error) {
	if len(lat) != rows*cols {
		return nil, &ShapePreconditionError{What: "grid latitude", Want: []int{rows, cols}, Got: []int{len(lat)}}
	}
	if len(lon) != rows*cols {
		return nil, &ShapePreconditionError{What: "grid longitude", Want: []int{rows, cols}, Got: []int{len(lon)}}
	}
	return &Grid{Rows: rows, Cols: cols, Lat: lat, Lon: lon}, nil
}

// Meshgrid expands 1-D latitude and longitude vectors into a grid with one
// row per latitude and one column per longitude.
func Meshgrid(lat1d, lon1d []float64) *Grid {
	rows, cols := len(lat1d), len(lon1d)
	g := &Grid{
		Rows: rows,
		Cols: cols,
		Lat:  make([]float64, rows*cols),
		Lon:  make([]float64, rows*cols),
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			g.Lat[i*cols+j] = lat1d[i]
			g.Lon[i*cols+j] = lon1d[j]
		}
	}
	return g
}

// Size returns the number of cells.
func (g *Grid) Size() int { return g.Rows * g.Cols }

// Field is a stack of Steps layers, each Rows x Cols, stored contiguously.
type Field struct {
	Steps int
	Rows  int
	Cols  int
	Data  []float64
}

// NewField allocates a field filled with the missing sentinel.
func NewField(steps, rows, cols int) *Field {
	f := &Field{Steps: steps, Rows: rows, Cols: cols, Data: make([]float64, steps*rows*cols)}
	for i := range f.Data {
		f.Data[i] = Missing()
	}
	return f
}

// FieldFromData wraps data as a field, checking its length. A 2-D field is a
// single step.
func FieldFromData(steps, rows, cols int, data []float64) (*Field, error) {
	if len(data) != steps*rows*cols {
		return nil, &ShapePreconditionError{What: "field data", Want: []int{steps, rows, cols}, Got: []int{len(data)}}
	}
	return &Field{Steps: steps, Rows: rows, Cols: cols, Data: data}, nil
}

// Layer returns the slice backing step t. Writes go through to the field.
func (f *Field) Layer(t int) []float64 {
	n := f.Rows * f.Cols
	return f.Data[t*n : (t+1)*n]
}

// Shape returns [steps, rows, cols].
func (f *Field) Shape() []int { return []int{f.Steps, f.Rows, f.Cols} }

// CheckGrid returns a ShapePreconditionError when the field's spatial
// dimensions differ from the grid's.
func (f *Field) CheckGrid(g *Grid) error {
	if f.Rows != g.Rows || f.Cols != g.Cols {
		return &ShapePreconditionError{What: "field vs grid", Want: []int{g.Rows, g.Cols}, Got: []int{f.Rows, f.Cols}}
	}
	return nil
}

// Select returns a new field holding the listed steps in order.
func (f *Field) Select(steps []int) *Field {
	out := NewField(len(steps), f.Rows, f.Cols)
	for i, t := range steps {
		copy(out.Layer(i), f.Layer(t))
	}
	return out
}

// Append returns a new field with the steps of other placed after f's.
func (f *Field) Append(other *Field) (*Field, error) {
	if f.Rows != other.Rows || f.Cols != other.Cols {
		return nil, &ShapePreconditionError{What: "appended field", Want: []int{f.Rows, f.Cols}, Got: []int{other.Rows, other.Cols}}
	}
	data := make([]float64, 0, len(f.Data)+len(other.Data))
	data = append(data, f.Data...)
	data = append(data, other.Data...)
	return &Field{Steps: f.Steps + other.Steps, Rows: f.Rows, Cols: f.Cols, Data: data}, nil
}

// Scale multiplies every non-missing value by k in place.
func (f *Field) Scale(k float64) {
	for i, v := range f.Data {
		if !IsMissing(v) {
			f.Data[i] = v * k
		}
	}
}

// MaskOutside replaces values outside [lo, hi] with the missing sentinel.
func (f *Field) MaskOutside(lo, hi float64) {
	for i, v := range f.Data {
		if v < lo || v > hi {
			f.Data[i] = Missing()
		}
	}
}
