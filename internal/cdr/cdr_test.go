package cdr

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/beringseaice/internal/gridded"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

func TestSatelliteSchedule(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  string
	}{
		{1979, time.January, "n07"},
		{1987, time.July, "n07"},
		{1987, time.August, "f08"},
		{1991, time.December, "f08"},
		{1992, time.January, "f11"},
		{1995, time.September, "f11"},
		{1995, time.October, "f13"},
		{2007, time.December, "f13"},
		{2008, time.January, "f17"},
		{2018, time.December, "f17"},
	}
	for _, tt := range tests {
		got, err := Satellite(tt.year, tt.month)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%d-%02d", tt.year, tt.month)
	}

	_, err := Satellite(2019, time.January)
	assert.Error(t, err)
	_, err = Satellite(1978, time.December)
	assert.Error(t, err)
}

func TestFilename(t *testing.T) {
	name, err := Filename(2018, time.February)
	require.NoError(t, err)
	assert.Equal(t, "seaice_conc_monthly_nh_f17_201802_v03r01.nc", name)
	assert.True(t, IsGap(1988, time.January))
	assert.False(t, IsGap(1988, time.February))
}

func TestToPercent(t *testing.T) {
	got := ToPercent([]float64{0.5, 2.53, math.NaN(), 1})
	assert.Equal(t, 50.0, got[0])
	assert.True(t, math.IsNaN(got[1]))
	assert.True(t, math.IsNaN(got[2]))
	assert.Equal(t, 100.0, got[3])
}

func TestReadSkipsGapMonth(t *testing.T) {
	dir := t.TempDir()
	g := seaice.Meshgrid([]float64{60, 61}, []float64{180, 181})
	for m := time.January; m <= time.December; m++ {
		if IsGap(1988, m) {
			continue
		}
		name, err := Filename(1988, m)
		require.NoError(t, err)
		p := gridded.NewProduct("cdr", "", "", "")
		p.Variables = append(p.Variables,
			gridded.OutputVariable{Name: "latitude", Dimensions: []string{"y", "x"}, Shape: []int{2, 2}, Data: g.Lat, Double: true},
			gridded.OutputVariable{Name: "longitude", Dimensions: []string{"y", "x"}, Shape: []int{2, 2}, Data: g.Lon, Double: true},
		)
		p.AddLayer(Variable, 2, 2, []float64{0.25, 0.5, 2.54, float64(m) / 100})
		require.NoError(t, gridded.WriteFile(filepath.Join(dir, name), p))
	}

	grid, stack, err := NewReader(dir, zap.NewNop().Sugar()).Read(timeaxis.YearRange{Start: 1988, End: 1988})
	require.NoError(t, err)
	assert.Equal(t, 4, grid.Size())

	assert.True(t, math.IsNaN(stack.Layer(0, 0)[0]), "January 1988 is a gap")
	feb := stack.Layer(0, 1)
	assert.InDelta(t, 25.0, feb[0], 1e-4)
	assert.True(t, math.IsNaN(feb[2]))
	assert.InDelta(t, 2.0, feb[3], 1e-4)
}
