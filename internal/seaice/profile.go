package seaice

import (
	"sort"
)

// Profile is a named extent configuration. Different datasets use different
// thresholds and mask directions, so each keeps its own profile instead of
// sharing one set of constants.
type Profile struct {
	Name            string
	Threshold       float64
	LatitudeCutoff  float64
	Direction       MaskDirection
	Weighting       Weighting
	BaseCellAreaKm2 float64
}

var profiles = map[string]Profile{
	"atlas-sie85": {
		Name:            "atlas-sie85",
		Threshold:       85,
		LatitudeCutoff:  67,
		Direction:       ExcludeAbove,
		Weighting:       CosineLatitude,
		BaseCellAreaKm2: AtlasCellAreaKm2,
	},
	"atlas-sie15": {
		Name:            "atlas-sie15",
		Threshold:       15,
		LatitudeCutoff:  67,
		Direction:       ExcludeAbove,
		Weighting:       CosineLatitude,
		BaseCellAreaKm2: AtlasCellAreaKm2,
	},
	"amsr2-sie15": {
		Name:            "amsr2-sie15",
		Threshold:       15,
		LatitudeCutoff:  50,
		Direction:       ExcludeBelow,
		Weighting:       ConstantArea,
		BaseCellAreaKm2: AMSR2CellAreaKm2,
	},
}

// LookupProfile returns the profile registered under name.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, &ConfigError{Field: "profile", Reason: "unknown profile " + name}
	}
	return p, nil
}

// ProfileNames lists the registered profiles in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WithOverrides returns a copy of p with a non-zero threshold and a non-nil
// cutoff applied.
func (p Profile) WithOverrides(threshold float64, cutoff *float64) Profile {
	if threshold != 0 {
		p.Threshold = threshold
	}
	if cutoff != nil {
		p.LatitudeCutoff = *cutoff
	}
	return p
}

// Validate checks the profile's settings.
func (p Profile) Validate() error {
	if err := ValidateThreshold(p.Threshold); err != nil {
		return err
	}
	if p.LatitudeCutoff < -90 || p.LatitudeCutoff > 90 {
		return &ConfigError{Field: "latitude_cutoff", Reason: "must be within [-90, 90]"}
	}
	if p.BaseCellAreaKm2 <= 0 {
		return &ConfigError{Field: "base_cell_area", Reason: "must be positive"}
	}
	return nil
}

// Reducer builds the mask and cell areas for g and returns a ready reducer.
func (p Profile) Reducer(g *Grid) (*ExtentReducer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	mask, err := BuildDirectionalMask(g.Lat, p.LatitudeCutoff, p.Direction)
	if err != nil {
		return nil, err
	}
	areas, err := CellAreas(g, p.BaseCellAreaKm2, p.Weighting)
	if err != nil {
		return nil, err
	}
	return NewExtentReducer(p.Threshold, mask, areas)
}
