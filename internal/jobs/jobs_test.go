package jobs

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/chrissnell/beringseaice/internal/cdr"
	"github.com/chrissnell/beringseaice/internal/gridded"
	"github.com/chrissnell/beringseaice/internal/gridstore"
	"github.com/chrissnell/beringseaice/internal/piomas"
	"github.com/chrissnell/beringseaice/internal/seaice"
	"github.com/chrissnell/beringseaice/internal/series"
	"github.com/chrissnell/beringseaice/pkg/config"
	"github.com/chrissnell/beringseaice/pkg/timeaxis"
)

func testDeps() Deps {
	return Deps{Logger: zap.NewNop().Sugar()}
}

func run(t *testing.T, cfg config.JobData, deps Deps) (*Result, error) {
	t.Helper()
	job, err := New(cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, cfg.Name, job.Name())
	assert.Equal(t, cfg.Type, job.Type())
	return job.Run(context.Background())
}

func readSeries(t *testing.T, path string) *series.Series {
	t.Helper()
	s, err := series.ReadFile(path, series.ReadOptions{})
	require.NoError(t, err)
	return s
}

func writeSeries(t *testing.T, path string, values ...float64) string {
	t.Helper()
	require.NoError(t, series.WriteFile(path, &series.Series{Values: values}))
	return path
}

// writeAtlas writes a two-step field on a 3x2 grid at 60, 66 and 70 N. The
// first step is 90 % everywhere; the second keeps 90 % only on the 60 N row.
func writeAtlas(t *testing.T, path string) *seaice.Grid {
	t.Helper()
	g := seaice.Meshgrid([]float64{60, 66, 70}, []float64{180, 181})
	f := seaice.NewField(2, 3, 2)
	for i := range f.Data {
		f.Data[i] = 90
	}
	second := f.Layer(1)
	for i := 2; i < len(second); i++ {
		second[i] = 10
	}

	p := gridded.NewProduct("atlas", "", "test", "")
	p.AddGrid(g)
	p.AddField("sic", f)
	require.NoError(t, gridded.WriteFile(path, p))
	return g
}

func cosd(deg float64) float64 { return math.Cos(deg * math.Pi / 180) }

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(config.JobData{Name: "x", Type: "plot", OutputPath: "out.txt"}, testDeps())
	var cfgErr *seaice.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "x.type", cfgErr.Field)
}

func TestExtentJob(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "atlas.nc")
	writeAtlas(t, in)

	base := config.JobData{
		Name:       "sie",
		Type:       config.JobExtent,
		InputPath:  in,
		OutputPath: filepath.Join(dir, "out", "sie.txt"),
		YearRange:  timeaxis.YearRange{Start: 2000, End: 2001},
	}
	row60 := 2 * seaice.AtlasCellAreaKm2 * cosd(60) / 1e6
	row66 := 2 * seaice.AtlasCellAreaKm2 * cosd(66) / 1e6

	t.Run("default profile", func(t *testing.T) {
		res, err := run(t, base, testDeps())
		require.NoError(t, err)
		assert.Equal(t, []string{base.OutputPath}, res.Outputs)

		s := readSeries(t, base.OutputPath)
		require.Len(t, s.Values, 2)
		assert.InDelta(t, row60+row66, s.Values[0], 1e-12)
		assert.InDelta(t, row60, s.Values[1], 1e-12)
		assert.Contains(t, strings.Join(s.Header, "\n"), "covering 2000-2001")
		assert.Equal(t, s.Values, res.Series["extent"])
	})

	t.Run("threshold override", func(t *testing.T) {
		cfg := base
		cfg.Threshold = 5
		_, err := run(t, cfg, testDeps())
		require.NoError(t, err)
		s := readSeries(t, base.OutputPath)
		assert.InDelta(t, row60+row66, s.Values[1], 1e-12)
	})

	t.Run("longitude box", func(t *testing.T) {
		cfg := base
		lo, hi := 180.5, 181.5
		cfg.Extent = &config.ExtentData{LonMin: &lo, LonMax: &hi}
		_, err := run(t, cfg, testDeps())
		require.NoError(t, err)
		s := readSeries(t, base.OutputPath)
		assert.InDelta(t, (row60+row66)/2, s.Values[0], 1e-12)
	})

	t.Run("year range mismatch", func(t *testing.T) {
		cfg := base
		cfg.YearRange.End = 2005
		_, err := run(t, cfg, testDeps())
		var shapeErr *seaice.ShapePreconditionError
		assert.ErrorAs(t, err, &shapeErr)
	})

	t.Run("missing input", func(t *testing.T) {
		cfg := base
		cfg.InputPath = filepath.Join(dir, "nope.nc")
		_, err := run(t, cfg, testDeps())
		var loadErr *seaice.DataLoadError
		assert.ErrorAs(t, err, &loadErr)
	})
}

func TestSeasonalMeanJob(t *testing.T) {
	dir := t.TempDir()
	cfg := config.JobData{
		Name:       "jan-feb",
		Type:       config.JobSeasonalMean,
		OutputPath: filepath.Join(dir, "mean.txt"),
		YearRange:  timeaxis.YearRange{Start: 1979, End: 1981},
		Series: &config.SeriesData{
			Inputs: []string{
				writeSeries(t, filepath.Join(dir, "jan.txt"), 1e6, 2e6, 3e6),
				writeSeries(t, filepath.Join(dir, "feb.txt"), 3e6, 4e6, math.NaN()),
			},
			Scale: 1e-6,
		},
	}
	res, err := run(t, cfg, testDeps())
	require.NoError(t, err)

	s := readSeries(t, cfg.OutputPath)
	assert.InDelta(t, 2.0, s.Values[0], 1e-12)
	assert.InDelta(t, 3.0, s.Values[1], 1e-12)
	assert.True(t, math.IsNaN(s.Values[2]))
	assert.Len(t, res.Series["mean"], 3)

	cfg.YearRange.End = 1990
	_, err = run(t, cfg, testDeps())
	var shapeErr *seaice.ShapePreconditionError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestRunningMeanJob(t *testing.T) {
	dir := t.TempDir()
	cfg := config.JobData{
		Name:       "smooth",
		Type:       config.JobRunningMean,
		InputPath:  writeSeries(t, filepath.Join(dir, "daily.txt"), 1, 2, 3, 4),
		OutputPath: filepath.Join(dir, "smooth.txt"),
		Series:     &config.SeriesData{Window: 2},
	}
	_, err := run(t, cfg, testDeps())
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5, 2.5, 1.5, 2.5, 3.5}, readSeries(t, cfg.OutputPath).Values)
}

func TestSeriesStatsJob(t *testing.T) {
	dir := t.TempDir()
	values := []float64{5, 4, 6, 3, math.NaN(), 2, 1, 2, 1, 0.5}
	ref := make([]float64, 6)
	for i := range ref {
		// reference covers 2004-2009
		ref[i] = 2*values[4+i] + 0.1*float64(i%2)
	}
	ref[0] = 3

	cfg := config.JobData{
		Name:       "ttest",
		Type:       config.JobSeriesStats,
		InputPath:  writeSeries(t, filepath.Join(dir, "sie.txt"), values...),
		OutputPath: filepath.Join(dir, "report.yaml"),
		YearRange:  timeaxis.YearRange{Start: 2000, End: 2009},
		Stats: &config.StatsData{
			ReferencePath:  writeSeries(t, filepath.Join(dir, "nsidc.txt"), ref...),
			ReferenceYears: timeaxis.YearRange{Start: 2004, End: 2009},
			WindowA:        timeaxis.YearRange{Start: 2000, End: 2004},
			WindowB:        timeaxis.YearRange{Start: 2005, End: 2009},
			Baseline:       timeaxis.YearRange{Start: 2000, End: 2001},
		},
	}
	_, err := run(t, cfg, testDeps())
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.OutputPath)
	require.NoError(t, err)
	var report Report
	require.NoError(t, yaml.Unmarshal(data, &report))

	assert.Equal(t, 9, report.Valid)
	assert.Equal(t, YearValue{Year: 2009, Value: 0.5}, report.Min)
	assert.Equal(t, YearValue{Year: 2002, Value: 6}, report.Max)
	require.NotNil(t, report.Baseline)
	assert.InDelta(t, 4.5, report.Baseline.Mean, 1e-12)

	require.NotNil(t, report.TTest)
	assert.InDelta(t, 4.5, report.TTest.MeanA, 1e-12)
	assert.InDelta(t, 1.3, report.TTest.MeanB, 1e-12)
	assert.Greater(t, report.TTest.T, 0.0)

	require.NotNil(t, report.Correlation)
	assert.Equal(t, timeaxis.YearRange{Start: 2004, End: 2009}, report.Correlation.Years)
	// 2004 is missing in the series, so one pair drops out
	assert.Equal(t, 5, report.Correlation.N)
	assert.Greater(t, report.Correlation.R, 0.99)
}

func TestSeriesStatsWindowOutsideRange(t *testing.T) {
	dir := t.TempDir()
	cfg := config.JobData{
		Name:       "ttest",
		Type:       config.JobSeriesStats,
		InputPath:  writeSeries(t, filepath.Join(dir, "sie.txt"), 1, 2, 3),
		OutputPath: filepath.Join(dir, "report.yaml"),
		YearRange:  timeaxis.YearRange{Start: 2000, End: 2002},
		Stats: &config.StatsData{
			WindowA: timeaxis.YearRange{Start: 1990, End: 2000},
			WindowB: timeaxis.YearRange{Start: 2001, End: 2002},
		},
	}
	_, err := run(t, cfg, testDeps())
	var cfgErr *seaice.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "ttest.stats.window_a", cfgErr.Field)
}

// writeSource writes a 3x3 field on 60-62 N, 179-181 E whose value is lat+add.
func writeSource(t *testing.T, path string, add float64) {
	t.Helper()
	g := seaice.Meshgrid([]float64{60, 61, 62}, []float64{179, 180, 181})
	layer := make([]float64, g.Size())
	for i, lat := range g.Lat {
		layer[i] = lat + add
	}
	p := gridded.NewProduct("daily", "", "test", "")
	p.AddGrid(g)
	p.AddLayer("ice_conc", g.Rows, g.Cols, layer)
	require.NoError(t, gridded.WriteFile(path, p))
}

func TestRegridJob(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, filepath.Join(dir, "daily", "d1.nc"), 0)
	writeSource(t, filepath.Join(dir, "daily", "d2.nc"), 2)

	target := filepath.Join(dir, "atlas.nc")
	tp := gridded.NewProduct("target", "", "test", "")
	tp.AddGrid(seaice.Meshgrid([]float64{61}, []float64{180}))
	require.NoError(t, gridded.WriteFile(target, tp))

	store, err := gridstore.Open(filepath.Join(dir, "store"), 2, zap.NewNop().Sugar())
	require.NoError(t, err)
	deps := testDeps()
	deps.Store = store

	cfg := config.JobData{
		Name:       "osisaf",
		Type:       config.JobRegrid,
		OutputPath: filepath.Join(dir, "out", "sic.nc"),
		Regrid: &config.RegridData{
			Inputs:     []string{filepath.Join(dir, "daily", "*.nc")},
			Variable:   "ice_conc",
			TargetGrid: target,
			StoreName:  "osisaf-feb",
		},
	}
	_, err = run(t, cfg, deps)
	require.NoError(t, err)

	ds, err := gridded.Open(cfg.OutputPath)
	require.NoError(t, err)
	defer ds.Close()
	f, err := ds.Field("sic")
	require.NoError(t, err)
	require.Equal(t, []int{1, 1, 1}, f.Shape())
	assert.InDelta(t, 62.0, f.Data[0], 1e-4)

	entry, err := store.Get("osisaf-feb")
	require.NoError(t, err)
	assert.InDelta(t, 62.0, entry.Data[0], 1e-6)

	cfg.Regrid.Inputs = []string{filepath.Join(dir, "none", "*.nc")}
	_, err = run(t, cfg, deps)
	var loadErr *seaice.DataLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestRegridMasksFillPerDay(t *testing.T) {
	dir := t.TempDir()
	g := seaice.Meshgrid([]float64{60, 61, 62}, []float64{179, 180, 181})
	for name, v := range map[string]float64{"d1.nc": 50, "d2.nc": -999} {
		layer := make([]float64, g.Size())
		for i := range layer {
			layer[i] = v
		}
		p := gridded.NewProduct("daily", "", "test", "")
		p.AddGrid(g)
		p.AddLayer("ice_conc", g.Rows, g.Cols, layer)
		require.NoError(t, gridded.WriteFile(filepath.Join(dir, "daily", name), p))
	}

	target := filepath.Join(dir, "atlas.nc")
	tp := gridded.NewProduct("target", "", "test", "")
	tp.AddGrid(seaice.Meshgrid([]float64{61}, []float64{180}))
	require.NoError(t, gridded.WriteFile(target, tp))

	cfg := config.JobData{
		Name:       "osisaf",
		Type:       config.JobRegrid,
		OutputPath: filepath.Join(dir, "sic.nc"),
		Regrid: &config.RegridData{
			Inputs:     []string{filepath.Join(dir, "daily", "*.nc")},
			Variable:   "ice_conc",
			TargetGrid: target,
		},
	}
	_, err := run(t, cfg, testDeps())
	require.NoError(t, err)

	ds, err := gridded.Open(cfg.OutputPath)
	require.NoError(t, err)
	defer ds.Close()
	f, err := ds.Field("sic")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, f.Data[0], 1e-4, "a fill day must not blank the monthly mean")
}

// writePIOMAS writes a full-size grid and one file per year whose every
// value is (year-first)*step.
func writePIOMAS(t *testing.T, dir, variable string, first, last int, step float32) {
	t.Helper()
	n := piomas.Rows * piomas.Cols
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%d ", i%piomas.Cols)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%.2f ", 45+float64(i/piomas.Cols)*0.375)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grid.txt"), []byte(sb.String()), 0o644))

	for y := first; y <= last; y++ {
		var buf bytes.Buffer
		v := float32(y-first) * step
		for i := 0; i < 12*n; i++ {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%s_%d.H", variable, y)), buf.Bytes(), 0o644))
	}
}

func TestPIOMASAnomalyJob(t *testing.T) {
	dir := t.TempDir()
	writePIOMAS(t, dir, "heff", 2000, 2002, 10)

	cfg := config.JobData{
		Name:       "sit",
		Type:       config.JobPIOMASAnomaly,
		InputPath:  dir,
		OutputPath: filepath.Join(dir, "out", "sit.nc"),
		YearRange:  timeaxis.YearRange{Start: 2000, End: 2002},
		Anomaly: &config.AnomalyData{
			Variable:   "heff",
			Months:     []int{12, 1, 2},
			TargetYear: 2002,
			Baseline:   timeaxis.YearRange{Start: 2000, End: 2002},
		},
	}
	res, err := run(t, cfg, testDeps())
	require.NoError(t, err)
	// Dec 2001 is 0 from the mean of 10; Jan and Feb 2002 are +10
	assert.InDelta(t, 20.0/3, res.Series["mean_anomaly"][0], 1e-9)

	ds, err := gridded.Open(cfg.OutputPath)
	require.NoError(t, err)
	defer ds.Close()

	anom, err := ds.Field("heff_anomaly")
	require.NoError(t, err)
	assert.Equal(t, []int{1, piomas.Rows, piomas.Cols}, anom.Shape())
	assert.InDelta(t, 20.0/3, anom.Data[0], 1e-4)

	mean, err := ds.Field("heff")
	require.NoError(t, err)
	assert.InDelta(t, 50.0/3, mean.Data[len(mean.Data)-1], 1e-4)
}

func TestPIOMASAreaInPercent(t *testing.T) {
	dir := t.TempDir()
	writePIOMAS(t, dir, "area", 2000, 2002, 0.1)

	cfg := config.JobData{
		Name:       "area",
		Type:       config.JobPIOMASAnomaly,
		InputPath:  dir,
		OutputPath: filepath.Join(dir, "out", "area.nc"),
		YearRange:  timeaxis.YearRange{Start: 2000, End: 2002},
		Anomaly: &config.AnomalyData{
			Variable:   "area",
			Months:     []int{1, 2, 3, 4},
			TargetYear: 2002,
			Baseline:   timeaxis.YearRange{Start: 2000, End: 2002},
			Scale:      100,
			Units:      "%",
		},
	}
	res, err := run(t, cfg, testDeps())
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.Series["mean_anomaly"][0], 1e-4)

	ds, err := gridded.Open(cfg.OutputPath)
	require.NoError(t, err)
	defer ds.Close()

	anom, err := ds.Variable("area_anomaly")
	require.NoError(t, err)
	assert.Equal(t, "%", anom.Attributes["units"])
	assert.InDelta(t, 10.0, anom.Data[0], 1e-4)

	mean, err := ds.Variable("area")
	require.NoError(t, err)
	assert.Equal(t, "%", mean.Attributes["units"])
	assert.InDelta(t, 20.0, mean.Data[0], 1e-4)
}

func TestAtlasSubsetJob(t *testing.T) {
	dir := t.TempDir()
	g := seaice.Meshgrid([]float64{60, 61}, []float64{180, 181})

	monthly := seaice.NewField(24, 2, 2)
	for s := 0; s < monthly.Steps; s++ {
		for i := range monthly.Layer(s) {
			monthly.Layer(s)[i] = float64(s)
		}
	}
	atlas := gridded.NewProduct("atlas", "", "test", "")
	atlas.AddGrid(g)
	atlas.AddField("sic_con_pct", monthly)
	in := filepath.Join(dir, "atlas.nc")
	require.NoError(t, gridded.WriteFile(in, atlas))

	recent := gridded.NewProduct("recent", "", "test", "")
	recent.AddGrid(g)
	recent.AddLayer("sic", 2, 2, []float64{99, 99, 99, 99})
	extra := filepath.Join(dir, "sic_2002.nc")
	require.NoError(t, gridded.WriteFile(extra, recent))

	cfg := config.JobData{
		Name:       "jan",
		Type:       config.JobAtlasSubset,
		InputPath:  in,
		OutputPath: filepath.Join(dir, "jan.nc"),
		YearRange:  timeaxis.YearRange{Start: 2000, End: 2002},
		Subset:     &config.SubsetData{Step: 12, Append: []string{extra}},
	}
	_, err := run(t, cfg, testDeps())
	require.NoError(t, err)

	ds, err := gridded.Open(cfg.OutputPath)
	require.NoError(t, err)
	defer ds.Close()

	f, err := ds.Field("sic")
	require.NoError(t, err)
	require.Equal(t, 3, f.Steps)
	assert.Equal(t, 0.0, f.Layer(0)[0])
	assert.Equal(t, 12.0, f.Layer(1)[3])
	assert.Equal(t, 99.0, f.Layer(2)[1])

	years, err := ds.Variable("year")
	require.NoError(t, err)
	assert.Equal(t, []float64{2000, 2001, 2002}, years.Data)

	cfg.YearRange.End = 2003
	_, err = run(t, cfg, testDeps())
	var shapeErr *seaice.ShapePreconditionError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestClipAMSR2(t *testing.T) {
	got := ClipAMSR2([]float64{10, 15, 15.5, 99.95, 100, 101, math.NaN()})
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsNaN(got[1]))
	assert.Equal(t, 15.5, got[2])
	assert.Equal(t, 99.9, got[3])
	assert.Equal(t, 99.9, got[4])
	assert.True(t, math.IsNaN(got[5]))
	assert.True(t, math.IsNaN(got[6]))
}

func TestAtlasSubsetByMonth(t *testing.T) {
	dir := t.TempDir()
	g := seaice.Meshgrid([]float64{60, 61}, []float64{180, 181})

	epoch := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	monthly := seaice.NewField(24, 2, 2)
	days := make([]float64, monthly.Steps)
	for s := range days {
		mid := time.Date(2000+s/12, time.Month(s%12+1), 15, 0, 0, 0, 0, time.UTC)
		days[s] = mid.Sub(epoch).Hours() / 24
		for i := range monthly.Layer(s) {
			monthly.Layer(s)[i] = float64(s)
		}
	}
	atlas := gridded.NewProduct("atlas", "", "Walsh atlas", "")
	atlas.AddGrid(g)
	atlas.AddVector("time", gridded.DimTime, days, gridded.Attr{Name: "units", Value: "days since 2000-01-01 00:00:00"})
	atlas.AddField("sic_con_pct", monthly)
	in := filepath.Join(dir, "atlas.nc")
	require.NoError(t, gridded.WriteFile(in, atlas))

	store, err := gridstore.Open(filepath.Join(dir, "store"), 2, zap.NewNop().Sugar())
	require.NoError(t, err)
	recent, err := seaice.FieldFromData(1, 2, 2, []float64{77, 77, 77, 77})
	require.NoError(t, err)
	entry, err := gridstore.NewEntry("mar-2002", g, recent)
	require.NoError(t, err)
	require.NoError(t, store.Put(entry))

	// a fresh store over the same directory reads the entry back from disk
	reopened, err := gridstore.Open(filepath.Join(dir, "store"), 2, zap.NewNop().Sugar())
	require.NoError(t, err)
	deps := testDeps()
	deps.Store = reopened

	cfg := config.JobData{
		Name:       "mar",
		Type:       config.JobAtlasSubset,
		InputPath:  in,
		OutputPath: filepath.Join(dir, "mar.nc"),
		Subset:     &config.SubsetData{Month: 3, AppendStored: []string{"mar-2002"}},
	}
	_, err = run(t, cfg, deps)
	require.NoError(t, err)

	ds, err := gridded.Open(cfg.OutputPath)
	require.NoError(t, err)
	defer ds.Close()

	f, err := ds.Field("sic")
	require.NoError(t, err)
	require.Equal(t, 3, f.Steps)
	assert.Equal(t, 2.0, f.Layer(0)[0])
	assert.Equal(t, 14.0, f.Layer(1)[2])
	assert.Equal(t, 77.0, f.Layer(2)[3])

	years, err := ds.Variable("year")
	require.NoError(t, err)
	assert.Equal(t, []float64{2000, 2001, 2002}, years.Data)

	source, ok := ds.Attribute("source")
	require.True(t, ok)
	assert.Equal(t, "Walsh atlas (atlas.nc)", source)

	cfg.Subset.AppendStored = []string{"apr-2002"}
	_, err = run(t, cfg, deps)
	var cfgErr *seaice.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "mar-2002")

	_, err = run(t, cfg, testDeps())
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "mar.subset.append_stored", cfgErr.Field)
}

// writeCDRMonth writes one monthly CDR file on a single row of two cells.
func writeCDRMonth(t *testing.T, dir string, year int, month time.Month, conc ...float64) {
	t.Helper()
	name, err := cdr.Filename(year, month)
	require.NoError(t, err)
	shape := []int{1, len(conc)}
	lat := []float64{65, 65}
	lon := []float64{190, 191}
	p := gridded.NewProduct("cdr", "", "test", "")
	p.Variables = append(p.Variables,
		gridded.OutputVariable{Name: "latitude", Dimensions: []string{gridded.DimY, gridded.DimX}, Shape: shape, Data: lat, Double: true},
		gridded.OutputVariable{Name: "longitude", Dimensions: []string{gridded.DimY, gridded.DimX}, Shape: shape, Data: lon, Double: true},
	)
	p.AddLayer(cdr.Variable, 1, len(conc), conc)
	require.NoError(t, gridded.WriteFile(filepath.Join(dir, name), p))
}

func TestCDRAnomalyJob(t *testing.T) {
	dir := t.TempDir()
	for year, frac := range map[int]float64{2000: 0.5, 2001: 0.7} {
		for m := time.January; m <= time.December; m++ {
			// the second cell carries the land flag
			writeCDRMonth(t, dir, year, m, frac, 2.54)
		}
	}

	zero := 0.0
	cfg := config.JobData{
		Name:       "cdr",
		Type:       config.JobCDRAnomaly,
		InputPath:  dir,
		OutputPath: filepath.Join(dir, "out", "cdr.nc"),
		YearRange:  timeaxis.YearRange{Start: 2000, End: 2001},
		Anomaly: &config.AnomalyData{
			Months:      []int{1, 2, 3, 4},
			TargetYear:  2001,
			Baseline:    timeaxis.YearRange{Start: 2000, End: 2001},
			FillMissing: &zero,
		},
	}
	res, err := run(t, cfg, testDeps())
	require.NoError(t, err)
	assert.InDelta(t, 5.0, res.Series["mean_anomaly"][0], 1e-4)

	ds, err := gridded.Open(cfg.OutputPath)
	require.NoError(t, err)
	defer ds.Close()

	anom, err := ds.Variable("sic_anomaly")
	require.NoError(t, err)
	assert.Equal(t, "%", anom.Attributes["units"])
	assert.InDelta(t, 10.0, anom.Data[0], 1e-4)
	assert.Equal(t, 0.0, anom.Data[1])

	mean, err := ds.Variable("sic")
	require.NoError(t, err)
	assert.InDelta(t, 70.0, mean.Data[0], 1e-4)
	assert.True(t, math.IsNaN(mean.Data[1]))

	cfg.Anomaly.FillMissing = nil
	res, err = run(t, cfg, testDeps())
	require.NoError(t, err)
	assert.InDelta(t, 10.0, res.Series["mean_anomaly"][0], 1e-4)
}

// gzippedAMSR2Day returns a gzipped one-row AMSR2 file at 60 N.
func gzippedAMSR2Day(t *testing.T, dir string, conc ...float64) []byte {
	t.Helper()
	shape := []int{1, len(conc)}
	p := gridded.NewProduct("amsr2", "", "test", "")
	p.Variables = append(p.Variables,
		gridded.OutputVariable{Name: "latitude", Dimensions: []string{gridded.DimY, gridded.DimX}, Shape: shape, Data: []float64{60, 60, 60}, Double: true},
		gridded.OutputVariable{Name: "longitude", Dimensions: []string{gridded.DimY, gridded.DimX}, Shape: shape, Data: []float64{160, 180, 200}, Double: true},
	)
	p.AddLayer("sea_ice_concentration", 1, len(conc), conc)
	path := filepath.Join(dir, fmt.Sprintf("day-%v.nc", conc))
	require.NoError(t, gridded.WriteFile(path, p))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err = zw.Write(raw)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestAMSR2ExtentJob(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"/amsr2/Arc_20190101_res3.125_pyres.nc.gz": gzippedAMSR2Day(t, dir, 90, 90, 10),
		"/amsr2/Arc_20190102_res3.125_pyres.nc.gz": gzippedAMSR2Day(t, dir, 90, 100, 50),
	}
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	deps := testDeps()
	deps.Client = srv.Client()
	cfg := config.JobData{
		Name:       "amsr2",
		Type:       config.JobAMSR2Extent,
		InputPath:  filepath.Join(dir, "downloads"),
		OutputPath: filepath.Join(dir, "amsr2.txt"),
		AMSR2: &config.AMSR2Data{
			BaseURL:     srv.URL + "/amsr2",
			Start:       "2019-01-01",
			End:         "2019-01-02",
			Parallelism: 2,
		},
	}
	res, err := run(t, cfg, deps)
	require.NoError(t, err)

	// 160 E lies outside the Bering Sea box; 10 % is clipped to missing
	cell := seaice.AMSR2CellAreaKm2 / seaice.KmToMillionKm
	want := []float64{cell, 2 * cell}
	got := res.Series["extent"]
	require.Len(t, got, 2)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}
	assert.Equal(t, int32(2), requests.Load())

	s := readSeries(t, cfg.OutputPath)
	require.Len(t, s.Values, 2)
	assert.InDelta(t, 2*cell, s.Values[1], 1e-12)
	_, err = os.Stat(filepath.Join(dir, "downloads", "Arc_20190101_res3.125_pyres.nc"))
	assert.NoError(t, err)

	// already downloaded days are not fetched again
	_, err = run(t, cfg, deps)
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())

	cfg.AMSR2.End = "2019-01-03"
	_, err = run(t, cfg, deps)
	var loadErr *seaice.DataLoadError
	assert.ErrorAs(t, err, &loadErr)
}
