package gridded

import (
	"fmt"
	"math"
	"reflect"

	"github.com/chrissnell/beringseaice/internal/seaice"
)

// flatten converts the nested slices the netCDF reader returns into a flat
// row-major float64 slice plus its shape. Scalars have an empty shape.
func flatten(values interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(values)
	if !rv.IsValid() {
		return nil, nil, fmt.Errorf("no values")
	}

	var shape []int
	for v := rv; v.Kind() == reflect.Slice; {
		shape = append(shape, v.Len())
		if v.Len() == 0 {
			break
		}
		v = v.Index(0)
	}

	n := 1
	for _, s := range shape {
		n *= s
	}
	out := make([]float64, 0, n)
	var walk func(v reflect.Value, depth int) error
	walk = func(v reflect.Value, depth int) error {
		if depth < len(shape) {
			if v.Kind() != reflect.Slice || v.Len() != shape[depth] {
				return fmt.Errorf("ragged array at depth %d", depth)
			}
			for i := 0; i < v.Len(); i++ {
				if err := walk(v.Index(i), depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("unsupported element type %s", v.Type())
		}
		out = append(out, f)
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	}
	return 0, false
}

// attrFloat reads a numeric attribute stored either as a scalar or as a
// one-element slice.
func attrFloat(v interface{}) (float64, bool) {
	data, _, err := flatten(v)
	if err != nil || len(data) == 0 {
		return 0, false
	}
	return data[0], true
}

func unpack(data []float64, attrs map[string]interface{}) {
	var fills []float64
	for _, key := range []string{"_FillValue", "missing_value"} {
		if raw, ok := attrs[key]; ok {
			if f, ok := attrFloat(raw); ok {
				fills = append(fills, f)
			}
		}
	}

	scale, offset := 1.0, 0.0
	if raw, ok := attrs["scale_factor"]; ok {
		if f, ok := attrFloat(raw); ok {
			scale = f
		}
	}
	if raw, ok := attrs["add_offset"]; ok {
		if f, ok := attrFloat(raw); ok {
			offset = f
		}
	}

	for i, v := range data {
		if isFill(v, fills) {
			data[i] = seaice.Missing()
			continue
		}
		data[i] = v*scale + offset
	}
}

func isFill(v float64, fills []float64) bool {
	for _, f := range fills {
		if v == f || (math.IsNaN(f) && math.IsNaN(v)) {
			return true
		}
	}
	return false
}
