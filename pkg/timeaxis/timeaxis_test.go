package timeaxis

import (
	"testing"
	"time"
)

func TestParseUnitsDecode(t *testing.T) {
	tests := []struct {
		name     string
		units    string
		values   []float64
		expected []time.Time
	}{
		{
			name:   "days since atlas epoch",
			units:  "days since 1850-01-01 00:00:00",
			values: []float64{0, 31, 365},
			expected: []time.Time{
				time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1850, 2, 1, 0, 0, 0, 0, time.UTC),
				time.Date(1851, 1, 1, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:   "hours since",
			units:  "hours since 2018-03-01",
			values: []float64{36},
			expected: []time.Time{
				time.Date(2018, 3, 2, 12, 0, 0, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseUnits(tt.units)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := u.Decode(tt.values)
			for i := range tt.expected {
				if !got[i].Equal(tt.expected[i]) {
					t.Errorf("value %d = %v, expected %v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestParseUnitsErrors(t *testing.T) {
	for _, s := range []string{"days", "fortnights since 1850-01-01", "days since yesterday"} {
		if _, err := ParseUnits(s); err == nil {
			t.Errorf("ParseUnits(%q): expected error", s)
		}
	}
}

func TestYearRange(t *testing.T) {
	r := YearRange{Start: 1850, End: 2018}
	if r.Len() != 169 {
		t.Errorf("Len = %d, expected 169", r.Len())
	}
	if r.Index(1979) != 129 {
		t.Errorf("Index(1979) = %d, expected 129", r.Index(1979))
	}
	if r.Index(2019) != -1 {
		t.Errorf("Index(2019) = %d, expected -1", r.Index(2019))
	}

	idx := r.Indices(YearRange{Start: 2017, End: 2020})
	if len(idx) != 2 || idx[0] != 167 || idx[1] != 168 {
		t.Errorf("Indices = %v, expected [167 168]", idx)
	}

	if err := (YearRange{Start: 2000, End: 1999}).Validate(); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestMonthIndicesAndStride(t *testing.T) {
	times := []time.Time{
		time.Date(1850, 2, 15, 0, 0, 0, 0, time.UTC),
		time.Date(1850, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(1851, 2, 15, 0, 0, 0, 0, time.UTC),
	}
	idx := MonthIndices(times, time.February, YearRange{Start: 1850, End: 1851})
	if len(idx) != 2 || idx[0] != 0 || idx[1] != 2 {
		t.Errorf("MonthIndices = %v", idx)
	}

	s := Stride(30, 2, 12)
	if len(s) != 3 || s[0] != 2 || s[1] != 14 || s[2] != 26 {
		t.Errorf("Stride = %v", s)
	}
}
