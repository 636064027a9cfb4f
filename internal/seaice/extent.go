package seaice

import (
	"math"
)

// KmToMillionKm converts km² to the 10⁶ km² unit extents are reported in.
const KmToMillionKm = 1e6

// ExtentReducer turns a concentration field into one extent value per step.
type ExtentReducer struct {
	Threshold float64
	Mask      []float64
	Areas     []float64
}

// NewExtentReducer checks the threshold and that mask and areas cover the same cells.
func NewExtentReducer(threshold float64, mask, areas []float64) (*ExtentReducer, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if len(mask) != len(areas) {
		return nil, &ShapePreconditionError{What: "mask vs cell areas", Want: []int{len(mask)}, Got: []int{len(areas)}}
	}
	return &ExtentReducer{Threshold: threshold, Mask: mask, Areas: areas}, nil
}

// ValidateThreshold accepts concentration thresholds in (0, 100] percent.
// Zero is refused because masked-out cells become 0 and would count as ice.
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 100 {
		return &ConfigError{Field: "threshold", Reason: "must be in (0, 100] percent"}
	}
	return nil
}

// Classify marks each cell of layer as ice (1) or not ice (missing) after
// applying the region mask.
func (r *ExtentReducer) Classify(layer []float64) []float64 {
	out := make([]float64, len(layer))
	for i, c := range layer {
		v := c * r.Mask[i]
		if v >= r.Threshold {
			out[i] = 1
		} else {
			out[i] = Missing()
		}
	}
	return out
}

// Step returns the extent of a single layer in 10⁶ km².
func (r *ExtentReducer) Step(layer []float64) float64 {
	total := 0.0
	for i, c := range layer {
		if IsMissing(c) {
			continue
		}
		if c*r.Mask[i] >= r.Threshold {
			total += r.Areas[i]
		}
	}
	return total / KmToMillionKm
}

// Reduce returns the extent series of f, one value per step.
func (r *ExtentReducer) Reduce(f *Field) ([]float64, error) {
	if f.Rows*f.Cols != len(r.Mask) {
		return nil, &ShapePreconditionError{What: "field vs mask", Want: []int{len(r.Mask)}, Got: []int{f.Rows, f.Cols}}
	}
	ext := make([]float64, f.Steps)
	for t := 0; t < f.Steps; t++ {
		ext[t] = r.Step(f.Layer(t))
	}
	return ext, nil
}
