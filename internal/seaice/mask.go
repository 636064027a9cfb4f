package seaice

import (
	"math"
)

// MaskDirection names which side of the latitude cutoff is dropped.
type MaskDirection string

const (
	ExcludeAbove MaskDirection = "exclude-above"
	ExcludeBelow MaskDirection = "exclude-below"
)

// BuildRegionMask returns 1 for cells south of cutoff and 0 for cells at or
// north of it.
func BuildRegionMask(lat []float64, cutoff float64) []float64 {
	mask, _ := BuildDirectionalMask(lat, cutoff, ExcludeAbove)
	return mask
}

// BuildDirectionalMask builds a binary mask from a latitude cutoff. Cells
// exactly on the cutoff are excluded in both directions. This differs from
// the published atlas extents, which dropped only lat > 67 and so kept a
// row lying exactly on 67 N; on such grids the totals differ by that row.
func BuildDirectionalMask(lat []float64, cutoff float64, dir MaskDirection) ([]float64, error) {
	if cutoff < -90 || cutoff > 90 || math.IsNaN(cutoff) {
		return nil, &ConfigError{Field: "latitude_cutoff", Reason: "must be within [-90, 90]"}
	}

	mask := make([]float64, len(lat))
	for i, v := range lat {
		switch dir {
		case ExcludeAbove, "":
			if v < cutoff {
				mask[i] = 1
			}
		case ExcludeBelow:
			if v > cutoff {
				mask[i] = 1
			}
		default:
			return nil, &ConfigError{Field: "mask_direction", Reason: "unknown direction " + string(dir)}
		}
	}
	return mask, nil
}

// RestrictLongitude zeroes mask cells whose longitude falls outside
// [lonMin, lonMax]. Longitudes are compared on a 0-360 circle, so a box
// such as 167..218 spans the dateline.
func RestrictLongitude(mask, lon []float64, lonMin, lonMax float64) error {
	if len(mask) != len(lon) {
		return &ShapePreconditionError{What: "mask vs longitude", Want: []int{len(mask)}, Got: []int{len(lon)}}
	}
	lo, hi := wrap360(lonMin), wrap360(lonMax)
	for i, v := range lon {
		l := wrap360(v)
		var inside bool
		if lo <= hi {
			inside = l >= lo && l <= hi
		} else {
			inside = l >= lo || l <= hi
		}
		if !inside {
			mask[i] = 0
		}
	}
	return nil
}

func wrap360(lon float64) float64 {
	l := math.Mod(lon, 360)
	if l < 0 {
		l += 360
	}
	return l
}
