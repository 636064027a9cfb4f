// Package regrid moves gridded fields from one curvilinear grid onto another.
//
// Source cells are indexed in a kd-tree on unit-sphere coordinates, so
// nearest-neighbour lookups are correct across the antimeridian and near the
// pole. Linear interpolation uses the triangles of the source's structured
// mesh around the nearest source node.
package regrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/chrissnell/beringseaice/internal/seaice"
)

// Method selects the interpolation scheme.
type Method string

const (
	NearestNeighbour Method = "nearest"
	Linear           Method = "linear"
)

// ParseMethod validates a configured method name. Empty means linear.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", Linear:
		return Linear, nil
	case NearestNeighbour:
		return NearestNeighbour, nil
	}
	return "", &seaice.ConfigError{Field: "method", Reason: fmt.Sprintf("unknown regrid method %q", s)}
}

// Regridder maps values defined on Source onto other grids.
type Regridder struct {
	Source *seaice.Grid
	tree   *kdtree.Tree
	xyz    [][3]float64
}

// New indexes src. Cells with a missing coordinate are left out of the index.
func New(src *seaice.Grid) (*Regridder, error) {
	if src.Size() == 0 {
		return nil, &seaice.ShapePreconditionError{What: "source grid", Want: []int{1, 1}, Got: []int{src.Rows, src.Cols}}
	}
	r := &Regridder{Source: src, xyz: make([][3]float64, src.Size())}
	pts := make(nodes, 0, src.Size())
	for i := range r.xyz {
		lat, lon := src.Lat[i], src.Lon[i]
		r.xyz[i] = toXYZ(lat, lon)
		if seaice.IsMissing(lat) || seaice.IsMissing(lon) {
			continue
		}
		pts = append(pts, node{p: r.xyz[i], idx: i})
	}
	if len(pts) == 0 {
		return nil, &seaice.DataLoadError{Path: "source grid", Err: fmt.Errorf("no valid coordinates")}
	}
	r.tree = kdtree.New(pts, false)
	return r, nil
}

// nearest returns the source index closest to (lat, lon).
func (r *Regridder) nearest(q [3]float64) int {
	got, _ := r.tree.Nearest(node{p: q, idx: -1})
	return got.(node).idx
}

// Layer regrids one source layer onto dst.
func (r *Regridder) Layer(values []float64, dst *seaice.Grid, method Method) ([]float64, error) {
	if len(values) != r.Source.Size() {
		return nil, &seaice.ShapePreconditionError{What: "layer vs source grid", Want: []int{r.Source.Rows, r.Source.Cols}, Got: []int{len(values)}}
	}
	switch method {
	case NearestNeighbour:
		return r.nearestLayer(values, dst), nil
	case Linear, "":
		return r.linearLayer(values, dst), nil
	}
	return nil, &seaice.ConfigError{Field: "method", Reason: fmt.Sprintf("unknown regrid method %q", method)}
}

// Field regrids every step of f onto dst.
func (r *Regridder) Field(f *seaice.Field, dst *seaice.Grid, method Method) (*seaice.Field, error) {
	if err := f.CheckGrid(r.Source); err != nil {
		return nil, err
	}
	out := seaice.NewField(f.Steps, dst.Rows, dst.Cols)
	for t := 0; t < f.Steps; t++ {
		layer, err := r.Layer(f.Layer(t), dst, method)
		if err != nil {
			return nil, err
		}
		copy(out.Layer(t), layer)
	}
	return out, nil
}

func (r *Regridder) nearestLayer(values []float64, dst *seaice.Grid) []float64 {
	out := make([]float64, dst.Size())
	for i := range out {
		if seaice.IsMissing(dst.Lat[i]) || seaice.IsMissing(dst.Lon[i]) {
			out[i] = seaice.Missing()
			continue
		}
		out[i] = values[r.nearest(toXYZ(dst.Lat[i], dst.Lon[i]))]
	}
	return out
}

// barycentric tolerance for points lying on a shared triangle edge
const edgeEps = 1e-9

func (r *Regridder) linearLayer(values []float64, dst *seaice.Grid) []float64 {
	out := make([]float64, dst.Size())
	for i := range out {
		out[i] = seaice.Missing()
		lat, lon := dst.Lat[i], dst.Lon[i]
		if seaice.IsMissing(lat) || seaice.IsMissing(lon) {
			continue
		}
		q := toXYZ(lat, lon)
		k := r.nearest(q)
		proj := tangentPlane(lat, lon)
		for _, tri := range r.trianglesAround(k) {
			var p [3][2]float64
			for v, idx := range tri {
				p[v] = proj(r.xyz[idx])
			}
			w, ok := weights(p, proj(q))
			if !ok {
				continue
			}
			a, b, c := values[tri[0]], values[tri[1]], values[tri[2]]
			if seaice.IsMissing(a) || seaice.IsMissing(b) || seaice.IsMissing(c) {
				break
			}
			out[i] = w[0]*a + w[1]*b + w[2]*c
			break
		}
	}
	return out
}

// trianglesAround lists the triangles of the structured-mesh quads that
// share source node k. Each quad (i,j)-(i+1,j+1) is split along its main
// diagonal.
func (r *Regridder) trianglesAround(k int) [][3]int {
	rows, cols := r.Source.Rows, r.Source.Cols
	ki, kj := k/cols, k%cols
	tris := make([][3]int, 0, 8)
	for i := ki - 1; i <= ki; i++ {
		for j := kj - 1; j <= kj; j++ {
			if i < 0 || j < 0 || i+1 >= rows || j+1 >= cols {
				continue
			}
			a := i*cols + j
			b := a + 1
			c := a + cols
			d := c + 1
			for _, tri := range [][3]int{{a, b, d}, {a, d, c}} {
				if r.validNode(tri[0]) && r.validNode(tri[1]) && r.validNode(tri[2]) {
					tris = append(tris, tri)
				}
			}
		}
	}
	return tris
}

func (r *Regridder) validNode(i int) bool {
	return !seaice.IsMissing(r.Source.Lat[i]) && !seaice.IsMissing(r.Source.Lon[i])
}

// weights returns the barycentric weights of q in triangle p, and whether q
// lies inside it.
func weights(p [3][2]float64, q [2]float64) ([3]float64, bool) {
	var w [3]float64
	det := (p[1][1]-p[2][1])*(p[0][0]-p[2][0]) + (p[2][0]-p[1][0])*(p[0][1]-p[2][1])
	if math.Abs(det) < 1e-18 {
		return w, false
	}
	w[0] = ((p[1][1]-p[2][1])*(q[0]-p[2][0]) + (p[2][0]-p[1][0])*(q[1]-p[2][1])) / det
	w[1] = ((p[2][1]-p[0][1])*(q[0]-p[2][0]) + (p[0][0]-p[2][0])*(q[1]-p[2][1])) / det
	w[2] = 1 - w[0] - w[1]
	for _, v := range w {
		if v < -edgeEps {
			return w, false
		}
	}
	return w, true
}

func toXYZ(lat, lon float64) [3]float64 {
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180
	return [3]float64{math.Cos(phi) * math.Cos(lam), math.Cos(phi) * math.Sin(lam), math.Sin(phi)}
}

// tangentPlane projects unit vectors onto the plane tangent to the sphere at
// (lat, lon), in east/north coordinates.
func tangentPlane(lat, lon float64) func([3]float64) [2]float64 {
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180
	east := [3]float64{-math.Sin(lam), math.Cos(lam), 0}
	north := [3]float64{-math.Sin(phi) * math.Cos(lam), -math.Sin(phi) * math.Sin(lam), math.Cos(phi)}
	return func(p [3]float64) [2]float64 {
		return [2]float64{dot(p, east), dot(p, north)}
	}
}

func dot(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
