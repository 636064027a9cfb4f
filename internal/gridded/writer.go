package gridded

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/chrissnell/beringseaice/internal/seaice"
)

// Dimension names used for products on a curvilinear grid.
const (
	DimTime = "time"
	DimY    = "y"
	DimX    = "x"
)

// Attr is a netCDF attribute. Values must be string, float32, float64,
// int16 or int32, or a slice of one of those.
type Attr struct {
	Name  string
	Value interface{}
}

// OutputVariable is a variable to write. Data is row-major with the given
// shape. Variables are stored as float32 unless Double is set.
type OutputVariable struct {
	Name       string
	Dimensions []string
	Shape      []int
	Data       []float64
	Double     bool
	Attributes []Attr
}

// Product is a complete netCDF file to write.
type Product struct {
	Attributes []Attr
	Variables  []OutputVariable
}

// NewProduct starts a product with the standard descriptive attributes.
func NewProduct(title, description, source, references string) *Product {
	p := &Product{}
	for _, a := range []Attr{
		{Name: "title", Value: title},
		{Name: "description", Value: description},
		{Name: "source", Value: source},
		{Name: "references", Value: references},
	} {
		if a.Value.(string) != "" {
			p.Attributes = append(p.Attributes, a)
		}
	}
	return p
}

// AddGrid adds 2-D latitude and longitude variables on (y, x).
func (p *Product) AddGrid(g *seaice.Grid) {
	shape := []int{g.Rows, g.Cols}
	p.Variables = append(p.Variables,
		OutputVariable{Name: "lat", Dimensions: []string{DimY, DimX}, Shape: shape, Data: g.Lat, Double: true,
			Attributes: []Attr{{Name: "units", Value: "degrees_north"}, {Name: "long_name", Value: "latitude"}}},
		OutputVariable{Name: "lon", Dimensions: []string{DimY, DimX}, Shape: shape, Data: g.Lon, Double: true,
			Attributes: []Attr{{Name: "units", Value: "degrees_east"}, {Name: "long_name", Value: "longitude"}}},
	)
}

// AddLayer adds a single (y, x) layer.
func (p *Product) AddLayer(name string, rows, cols int, data []float64, attrs ...Attr) {
	p.Variables = append(p.Variables, OutputVariable{
		Name: name, Dimensions: []string{DimY, DimX}, Shape: []int{rows, cols}, Data: data, Attributes: attrs,
	})
}

// AddField adds a (time, y, x) variable.
func (p *Product) AddField(name string, f *seaice.Field, attrs ...Attr) {
	p.Variables = append(p.Variables, OutputVariable{
		Name: name, Dimensions: []string{DimTime, DimY, DimX}, Shape: f.Shape(), Data: f.Data, Attributes: attrs,
	})
}

// AddVector adds a 1-D double variable along dim.
func (p *Product) AddVector(name, dim string, data []float64, attrs ...Attr) {
	p.Variables = append(p.Variables, OutputVariable{
		Name: name, Dimensions: []string{dim}, Shape: []int{len(data)}, Data: data, Double: true, Attributes: attrs,
	})
}

// WriteFile writes p as a classic CDF file, replacing any existing file.
func WriteFile(path string, p *Product) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replacing %s: %w", path, err)
	}

	w, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("opening %s for writing: %w", path, err)
	}

	if err := writeProduct(w, p); err != nil {
		w.Close()
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

func writeProduct(w *cdf.CDFWriter, p *Product) error {
	if len(p.Attributes) > 0 {
		attrs, err := orderedAttrs(p.Attributes)
		if err != nil {
			return err
		}
		if err := w.AddGlobalAttrs(attrs); err != nil {
			return err
		}
	}

	for _, v := range p.Variables {
		if len(v.Shape) != len(v.Dimensions) {
			return &seaice.ShapePreconditionError{What: fmt.Sprintf("variable %q dimensions", v.Name), Want: []int{len(v.Shape)}, Got: []int{len(v.Dimensions)}}
		}
		values, err := nest(v.Data, v.Shape, v.Double)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		attrs, err := orderedAttrs(v.Attributes)
		if err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
		if err := w.AddVar(v.Name, api.Variable{Values: values, Dimensions: v.Dimensions, Attributes: attrs}); err != nil {
			return fmt.Errorf("variable %q: %w", v.Name, err)
		}
	}
	return nil
}

func orderedAttrs(list []Attr) (api.AttributeMap, error) {
	keys := make([]string, 0, len(list))
	values := make(map[string]interface{}, len(list))
	for _, a := range list {
		if _, dup := values[a.Name]; dup {
			return nil, fmt.Errorf("duplicate attribute %q", a.Name)
		}
		keys = append(keys, a.Name)
		values[a.Name] = a.Value
	}
	return util.NewOrderedMap(keys, values)
}

// nest rebuilds the nested slices the netCDF writer expects from flat data.
func nest(data []float64, shape []int, double bool) (interface{}, error) {
	n := 1
	for _, s := range shape {
		n *= s
	}
	if n != len(data) {
		return nil, &seaice.ShapePreconditionError{What: "data length", Want: shape, Got: []int{len(data)}}
	}

	elem := reflect.TypeOf(float32(0))
	if double {
		elem = reflect.TypeOf(float64(0))
	}
	t := elem
	for range shape {
		t = reflect.SliceOf(t)
	}

	var build func(t reflect.Type, dims []int, off int) reflect.Value
	build = func(t reflect.Type, dims []int, off int) reflect.Value {
		if len(dims) == 0 {
			return reflect.ValueOf(data[off]).Convert(elem)
		}
		stride := 1
		for _, d := range dims[1:] {
			stride *= d
		}
		s := reflect.MakeSlice(t, dims[0], dims[0])
		for i := 0; i < dims[0]; i++ {
			s.Index(i).Set(build(t.Elem(), dims[1:], off+i*stride))
		}
		return s
	}
	return build(t, shape, 0).Interface(), nil
}
