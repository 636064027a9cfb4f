package seaice

import (
	"math"
)

// AtlasCellAreaKm2 is the equatorial area of a 0.25 degree cell,
// (111.32/4) * (110.57/4) km².
const AtlasCellAreaKm2 = 769.3

// AMSR2CellAreaKm2 is the area of a 3.125 km polar stereographic cell.
const AMSR2CellAreaKm2 = 3.125 * 3.125

// Weighting selects how a cell's area is derived from its latitude.
type Weighting string

const (
	// CosineLatitude corrects an equirectangular cell for meridian convergence.
	CosineLatitude Weighting = "cosine-latitude"

	// ConstantArea gives every cell the base area (equal-area projections).
	ConstantArea Weighting = "constant"
)

// CellArea returns the surface area in km² of a cell centred at lat degrees
// whose equatorial area is base.
func CellArea(base, lat float64) float64 {
	a := base * math.Cos(lat*math.Pi/180)
	if a < 0 {
		// cos(±90°) rounds to a tiny positive number; anything below zero is noise
		return 0
	}
	return a
}

// CellAreas returns the area of every cell of g.
func CellAreas(g *Grid, base float64, w Weighting) ([]float64, error) {
	areas := make([]float64, g.Size())
	switch w {
	case CosineLatitude, "":
		for i, lat := range g.Lat {
			areas[i] = CellArea(base, lat)
		}
	case ConstantArea:
		for i := range areas {
			areas[i] = base
		}
	default:
		return nil, &ConfigError{Field: "area_weighting", Reason: "unknown weighting " + string(w)}
	}
	return areas, nil
}
