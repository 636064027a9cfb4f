// Package gridded reads and writes the netCDF files the jobs consume and
// produce. Variables come back as flat row-major float64 slices with packing
// and fill values already applied, so missing cells carry seaice.Missing().
package gridded

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/klauspost/compress/gzip"

	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

// Dataset is an open netCDF file.
type Dataset struct {
	Path  string
	group api.Group
	temp  string
}

// Variable is one decoded netCDF variable.
type Variable struct {
	Name       string
	Dimensions []string
	Shape      []int
	Data       []float64
	Attributes map[string]interface{}
}

// Open opens a netCDF file. Files ending in .gz are inflated to a temporary
// file first, which Close removes.
func Open(path string) (*Dataset, error) {
	ds := &Dataset{Path: path}
	name := path
	if strings.HasSuffix(path, ".gz") {
		tmp, err := inflate(path)
		if err != nil {
			return nil, &seaice.DataLoadError{Path: path, Err: err}
		}
		ds.temp = tmp
		name = tmp
	}

	g, err := netcdf.Open(name)
	if err != nil {
		ds.removeTemp()
		return nil, &seaice.DataLoadError{Path: path, Err: err}
	}
	ds.group = g
	return ds, nil
}

func inflate(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("gzip header: %w", err)
	}
	defer zr.Close()

	out, err := os.CreateTemp("", "seaice-*.nc")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("inflating: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

func (d *Dataset) removeTemp() {
	if d.temp != "" {
		os.Remove(d.temp)
		d.temp = ""
	}
}

// Close releases the file and any inflated copy.
func (d *Dataset) Close() {
	if d.group != nil {
		d.group.Close()
	}
	d.removeTemp()
}

// Variables lists the variable names in the file.
func (d *Dataset) Variables() []string {
	return d.group.ListVariables()
}

// Attribute returns a global attribute.
func (d *Dataset) Attribute(name string) (interface{}, bool) {
	attrs := d.group.Attributes()
	if attrs == nil {
		return nil, false
	}
	return attrs.Get(name)
}

// Variable decodes the named variable, unpacking scale_factor/add_offset and
// replacing _FillValue and missing_value cells with the missing sentinel.
func (d *Dataset) Variable(name string) (*Variable, error) {
	v, err := d.group.GetVariable(name)
	if err != nil {
		return nil, &seaice.DataLoadError{Path: d.Path, Err: fmt.Errorf("variable %q: %w (file has %s)", name, err, strings.Join(d.Variables(), ", "))}
	}

	data, shape, err := flatten(v.Values)
	if err != nil {
		return nil, &seaice.DataLoadError{Path: d.Path, Err: fmt.Errorf("variable %q: %w", name, err)}
	}

	out := &Variable{
		Name:       name,
		Dimensions: v.Dimensions,
		Shape:      shape,
		Data:       data,
		Attributes: attributeMap(v.Attributes),
	}
	unpack(out.Data, out.Attributes)
	return out, nil
}

// Field reads a (time, rows, cols) or (rows, cols) variable. A 2-D variable
// becomes a single-step field.
func (d *Dataset) Field(name string) (*seaice.Field, error) {
	v, err := d.Variable(name)
	if err != nil {
		return nil, err
	}
	switch len(v.Shape) {
	case 2:
		return seaice.FieldFromData(1, v.Shape[0], v.Shape[1], v.Data)
	case 3:
		return seaice.FieldFromData(v.Shape[0], v.Shape[1], v.Shape[2], v.Data)
	case 4:
		// (time, level, rows, cols) with a single level, as in some reanalyses
		if v.Shape[1] == 1 {
			return seaice.FieldFromData(v.Shape[0], v.Shape[2], v.Shape[3], v.Data)
		}
	}
	return nil, &seaice.ShapePreconditionError{What: fmt.Sprintf("variable %q rank", name), Want: []int{3}, Got: v.Shape}
}

// LoadGrid reads latitude and longitude variables. 1-D coordinate vectors are
// expanded with a meshgrid; 2-D coordinates are used as they are.
func (d *Dataset) LoadGrid(latName, lonName string) (*seaice.Grid, error) {
	lat, err := d.Variable(latName)
	if err != nil {
		return nil, err
	}
	lon, err := d.Variable(lonName)
	if err != nil {
		return nil, err
	}

	switch {
	case len(lat.Shape) == 1 && len(lon.Shape) == 1:
		return seaice.Meshgrid(lat.Data, lon.Data), nil
	case len(lat.Shape) == 2 && len(lon.Shape) == 2:
		if lat.Shape[0] != lon.Shape[0] || lat.Shape[1] != lon.Shape[1] {
			return nil, &seaice.ShapePreconditionError{What: "latitude vs longitude", Want: lat.Shape, Got: lon.Shape}
		}
		return seaice.NewGrid(lat.Shape[0], lat.Shape[1], lat.Data, lon.Data)
	}
	return nil, &seaice.ShapePreconditionError{What: "coordinate rank", Want: lat.Shape, Got: lon.Shape}
}

// Times decodes a CF time variable using its units attribute.
func (d *Dataset) Times(name string) ([]time.Time, error) {
	v, err := d.Variable(name)
	if err != nil {
		return nil, err
	}
	raw, ok := v.Attributes["units"]
	if !ok {
		return nil, &seaice.DataLoadError{Path: d.Path, Err: fmt.Errorf("variable %q has no units", name)}
	}
	s, ok := raw.(string)
	if !ok {
		return nil, &seaice.DataLoadError{Path: d.Path, Err: fmt.Errorf("variable %q units is %T", name, raw)}
	}
	u, err := timeaxis.ParseUnits(s)
	if err != nil {
		return nil, &seaice.DataLoadError{Path: d.Path, Err: err}
	}
	return u.Decode(v.Data), nil
}

func attributeMap(am api.AttributeMap) map[string]interface{} {
	out := make(map[string]interface{})
	if am == nil {
		return out
	}
	for _, k := range am.Keys() {
		if v, ok := am.Get(k); ok {
			out[k] = v
		}
	}
	return out
}
