package regrid

import "gonum.org/v1/gonum/spatial/kdtree"

// node is a source cell centre on the unit sphere.
type node struct {
	p   [3]float64
	idx int
}

func (n node) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return n.p[d] - c.(node).p[d]
}

func (n node) Dims() int { return 3 }

// Distance is the squared chord length, which orders points the same way
// as great-circle distance.
func (n node) Distance(c kdtree.Comparable) float64 {
	o := c.(node)
	dx, dy, dz := n.p[0]-o.p[0], n.p[1]-o.p[1], n.p[2]-o.p[2]
	return dx*dx + dy*dy + dz*dz
}

type nodes []node

func (n nodes) Index(i int) kdtree.Comparable { return n[i] }
func (n nodes) Len() int                      { return len(n) }
func (n nodes) Pivot(d kdtree.Dim) int        { return plane{nodes: n, Dim: d}.Pivot() }
func (n nodes) Slice(start, end int) kdtree.Interface {
	return n[start:end]
}

// plane sorts nodes along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	nodes
}

func (p plane) Less(i, j int) bool { return p.nodes[i].p[p.Dim] < p.nodes[j].p[p.Dim] }
func (p plane) Pivot() int         { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.nodes = p.nodes[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.nodes[i], p.nodes[j] = p.nodes[j], p.nodes[i] }
