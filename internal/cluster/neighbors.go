package cluster

import (
	"math/rand"
	"slices"

	"github.com/coder/hnsw"
	"gonum.org/v1/gonum/floats"
)

// NeighborIndex answers radius queries over a fixed set of points.
type NeighborIndex interface {
	// Neighbors returns the positions within eps of point i, i itself included,
	// in ascending order.
	Neighbors(i int, eps float64) []int
}

// NewNeighborIndex builds the index selected by p.Index over points.
func NewNeighborIndex(points [][]float64, p Params) NeighborIndex {
	if p.Index == IndexHNSW {
		return newHNSWIndex(points, p.SearchWidth)
	}
	return linearIndex(points)
}

// linearIndex is the exact pairwise scan.
type linearIndex [][]float64

func (l linearIndex) Neighbors(i int, eps float64) []int {
	var out []int
	for j, q := range l {
		if floats.Distance(l[i], q, 2) <= eps {
			out = append(out, j)
		}
	}
	return out
}

// Graph parameters for the approximate index.
const (
	hnswMaxNeighbors = 16
	hnswSeed         = 1
)

// hnswIndex narrows each query to the nearest SearchWidth candidates from an HNSW graph and
// keeps those within eps by exact distance. Well separated groups of points can form
// disconnected graph components that a search never crosses, so a query whose candidates
// miss the point itself, or come back short of the width, is answered by the exact scan.
// Results are approximate only when a point has more than SearchWidth true neighbours.
type hnswIndex struct {
	points [][]float64
	graph  *hnsw.Graph[int]
	width  int
	exact  linearIndex
}

func newHNSWIndex(points [][]float64, width int) *hnswIndex {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.EuclideanDistance
	g.Rng = rand.New(rand.NewSource(hnswSeed))
	g.EfSearch = max(width, hnswMaxNeighbors)

	for i, p := range points {
		g.Add(hnsw.MakeNode(i, toFloat32(p)))
	}
	return &hnswIndex{
		points: points,
		graph:  g,
		width:  min(width, len(points)),
		exact:  linearIndex(points),
	}
}

func (h *hnswIndex) Neighbors(i int, eps float64) []int {
	candidates := h.graph.Search(toFloat32(h.points[i]), h.width)
	if len(candidates) < h.width || !slices.ContainsFunc(candidates, func(n hnsw.Node[int]) bool { return n.Key == i }) {
		return h.exact.Neighbors(i, eps)
	}
	out := []int{i}
	for _, c := range candidates {
		if c.Key == i {
			continue
		}
		if floats.Distance(h.points[i], h.points[c.Key], 2) <= eps {
			out = append(out, c.Key)
		}
	}
	slices.Sort(out)
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
