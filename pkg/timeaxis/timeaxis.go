// Package timeaxis decodes CF-style time coordinates and handles inclusive year ranges.
package timeaxis

import (
	"fmt"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// YearRange is an inclusive range of calendar years.
type YearRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Validate checks that the range is non-empty.
func (r YearRange) Validate() error {
	if r.Start == 0 && r.End == 0 {
		return fmt.Errorf("year range is not set")
	}
	if r.End < r.Start {
		return fmt.Errorf("year range %d-%d ends before it starts", r.Start, r.End)
	}
	return nil
}

// Len returns the number of years in the range.
func (r YearRange) Len() int { return r.End - r.Start + 1 }

// Contains reports whether year lies within the range.
func (r YearRange) Contains(year int) bool { return year >= r.Start && year <= r.End }

// Index returns the position of year within the range, or -1.
func (r YearRange) Index(year int) int {
	if !r.Contains(year) {
		return -1
	}
	return year - r.Start
}

// Years lists every year in the range.
func (r YearRange) Years() []int {
	years := make([]int, 0, r.Len())
	for y := r.Start; y <= r.End; y++ {
		years = append(years, y)
	}
	return years
}

// Indices returns the positions within r of the years also in sub.
func (r YearRange) Indices(sub YearRange) []int {
	var idx []int
	for y := sub.Start; y <= sub.End; y++ {
		if i := r.Index(y); i >= 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

func (r YearRange) String() string { return fmt.Sprintf("%d-%d", r.Start, r.End) }

// Units is a parsed "<unit> since <epoch>" time coordinate.
type Units struct {
	Step    float64 // days per unit
	EpochJD float64
}

// ParseUnits parses CF time units such as "days since 1850-01-01 00:00:00".
func ParseUnits(s string) (Units, error) {
	parts := strings.SplitN(strings.TrimSpace(s), " since ", 2)
	if len(parts) != 2 {
		return Units{}, fmt.Errorf("time units %q: expected \"<unit> since <date>\"", s)
	}

	var step float64
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day", "d":
		step = 1
	case "hours", "hour", "h":
		step = 1.0 / 24
	case "minutes", "minute":
		step = 1.0 / 1440
	case "seconds", "second", "s":
		step = 1.0 / 86400
	default:
		return Units{}, fmt.Errorf("time units %q: unsupported unit %q", s, parts[0])
	}

	epoch, err := parseEpoch(strings.TrimSpace(parts[1]))
	if err != nil {
		return Units{}, fmt.Errorf("time units %q: %w", s, err)
	}

	return Units{Step: step, EpochJD: julian.TimeToJD(epoch)}, nil
}

func parseEpoch(s string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05Z",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006-1-2 15:04:05",
		"2006-1-2",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized epoch %q", s)
}

// Decode converts coordinate values to UTC times.
func (u Units) Decode(values []float64) []time.Time {
	times := make([]time.Time, len(values))
	for i, v := range values {
		times[i] = julian.JDToTime(u.EpochJD + v*u.Step).UTC().Round(time.Second)
	}
	return times
}

// MonthIndices returns the positions of times that fall in month (1-12) and
// whose year lies within years.
func MonthIndices(times []time.Time, month time.Month, years YearRange) []int {
	var idx []int
	for i, t := range times {
		if t.Month() == month && years.Contains(t.Year()) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Stride returns offset, offset+step, offset+2*step, ... below n.
func Stride(n, offset, step int) []int {
	if step <= 0 {
		step = 1
	}
	var idx []int
	for i := offset; i < n; i += step {
		idx = append(idx, i)
	}
	return idx
}
