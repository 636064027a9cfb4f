// Package stats holds the series statistics used to compare extent records:
// correlation, two-sample t-tests, rankings and running means.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrTooFewSamples is returned when a statistic needs more valid values.
var ErrTooFewSamples = errors.New("not enough valid samples")

// Correlation is a Pearson correlation with its two-sided p-value.
type Correlation struct {
	R      float64 `yaml:"r"`
	PValue float64 `yaml:"p_value"`
	N      int     `yaml:"n"`
}

// PairwiseValid returns the entries of x and y where both are non-NaN.
func PairwiseValid(x, y []float64) ([]float64, []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}

// Pearson correlates x and y over the positions where both are valid.
func Pearson(x, y []float64) (Correlation, error) {
	xs, ys := PairwiseValid(x, y)
	n := len(xs)
	if n < 3 {
		return Correlation{N: n}, ErrTooFewSamples
	}

	r := stat.Correlation(xs, ys, nil)
	c := Correlation{R: r, N: n}

	df := float64(n - 2)
	if math.Abs(r) >= 1 {
		c.PValue = 0
		return c, nil
	}
	t := r * math.Sqrt(df/(1-r*r))
	c.PValue = twoSided(t, df)
	return c, nil
}

// TTest is the result of a two-sample Student's t-test.
type TTest struct {
	T      float64 `yaml:"t"`
	PValue float64 `yaml:"p_value"`
	DF     float64 `yaml:"df"`
	MeanA  float64 `yaml:"mean_a"`
	MeanB  float64 `yaml:"mean_b"`
}

// IndependentTTest compares the means of a and b assuming equal variances.
// NaN entries are dropped first.
func IndependentTTest(a, b []float64) (TTest, error) {
	a, b = DropNaN(a), DropNaN(b)
	na, nb := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return TTest{}, ErrTooFewSamples
	}

	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	df := na + nb - 2
	pooled := ((na-1)*va + (nb-1)*vb) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))

	res := TTest{DF: df, MeanA: ma, MeanB: mb}
	if se == 0 {
		res.T = math.Copysign(math.Inf(1), ma-mb)
		if ma == mb {
			res.T = math.NaN()
			res.PValue = math.NaN()
		}
		return res, nil
	}
	res.T = (ma - mb) / se
	res.PValue = twoSided(res.T, df)
	return res, nil
}

func twoSided(t, df float64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * dist.CDF(-math.Abs(t))
}

// DropNaN returns x without its NaN entries.
func DropNaN(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// NanMean averages the non-NaN entries of x; NaN when there are none.
func NanMean(x []float64) float64 {
	v := DropNaN(x)
	if len(v) == 0 {
		return math.NaN()
	}
	return floats.Sum(v) / float64(len(v))
}

// Extremes holds the smallest and largest valid values and their positions.
type Extremes struct {
	Min      float64 `yaml:"min"`
	MinIndex int     `yaml:"min_index"`
	Max      float64 `yaml:"max"`
	MaxIndex int     `yaml:"max_index"`
}

// Rank finds the extremes of x, ignoring NaN. Ties resolve to the first position.
func Rank(x []float64) (Extremes, error) {
	e := Extremes{MinIndex: -1, MaxIndex: -1}
	for i, v := range x {
		if math.IsNaN(v) {
			continue
		}
		if e.MinIndex < 0 || v < e.Min {
			e.Min, e.MinIndex = v, i
		}
		if e.MaxIndex < 0 || v > e.Max {
			e.Max, e.MaxIndex = v, i
		}
	}
	if e.MinIndex < 0 {
		return e, ErrTooFewSamples
	}
	return e, nil
}

// RunningMean smooths x with a trailing window of n values. The last n
// values are prepended first so a seasonal cycle wraps around, and the
// result has len(x)+1 entries, the first covering the wrapped prefix.
// NaN propagates through any window that contains it.
func RunningMean(x []float64, n int) ([]float64, error) {
	if n <= 0 || n > len(x) {
		return nil, ErrTooFewSamples
	}
	ext := make([]float64, 0, len(x)+n)
	ext = append(ext, x[len(x)-n:]...)
	ext = append(ext, x...)

	out := make([]float64, len(ext)-n+1)
	for k := range out {
		out[k] = floats.Sum(ext[k:k+n]) / float64(n)
	}
	return out, nil
}

// AverageSeries averages several equally long series element-wise. NaN
// propagates, matching a plain (a+b+...)/n.
func AverageSeries(series ...[]float64) ([]float64, error) {
	if len(series) == 0 {
		return nil, ErrTooFewSamples
	}
	n := len(series[0])
	for _, s := range series[1:] {
		if len(s) != n {
			return nil, errors.New("series lengths differ")
		}
	}
	out := make([]float64, n)
	for _, s := range series {
		floats.Add(out, s)
	}
	floats.Scale(1/float64(len(series)), out)
	return out, nil
}
