package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// isDegenerate reports whether v cannot be unit-normalized.
func isDegenerate(v []float64) bool {
	if len(v) == 0 {
		return true
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return true
		}
	}
	n := floats.Norm(v, 2)
	return n == 0 || math.IsInf(n, 0)
}

// Normalize returns a copy of v scaled to unit Euclidean length.
func Normalize(v []float64) ([]float64, error) {
	if isDegenerate(v) {
		return nil, ErrDegenerateVector
	}
	out := make([]float64, len(v))
	floats.ScaleTo(out, 1/floats.Norm(v, 2), v)
	return out, nil
}

// Standardize rescales every column of the rows to zero mean and unit population variance.
// Constant columns, including every column of a single-row batch, become zero.
func Standardize(rows [][]float64) *mat.Dense {
	n, d := len(rows), len(rows[0])
	x := mat.NewDense(n, d, nil)
	for i, r := range rows {
		x.SetRow(i, r)
	}

	col := make([]float64, n)
	for j := range d {
		mat.Col(col, j, x)
		mean, std := stat.PopMeanStdDev(col, nil)
		constant := std == 0 || floats.Max(col) == floats.Min(col)
		for i := range col {
			if constant {
				col[i] = 0
				continue
			}
			col[i] = (col[i] - mean) / std
		}
		x.SetCol(j, col)
	}
	return x
}

// Project fits principal components on x and returns each row projected onto the first k.
func Project(x *mat.Dense, k int) ([][]float64, error) {
	n, d := x.Dims()
	if k < 1 || k > min(n, d) {
		return nil, fmt.Errorf("%w: %d components requested for %dx%d batch", ErrProjection, k, n, d)
	}
	if n == 1 {
		// A single point has no variance to explain.
		return [][]float64{make([]float64, k)}, nil
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, ErrProjection
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	centered := mat.DenseCopyOf(x)
	col := make([]float64, n)
	for j := range d {
		mat.Col(col, j, centered)
		floats.AddConst(-stat.Mean(col, nil), col)
		centered.SetCol(j, col)
	}

	var proj mat.Dense
	proj.Mul(centered, vecs.Slice(0, d, 0, k))

	out := make([][]float64, n)
	for i := range n {
		row := mat.Row(nil, i, &proj)
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite projection", ErrProjection)
			}
		}
		out[i] = row
	}
	return out, nil
}

// ReducedDim is K = min(cap, n, d).
func ReducedDim(capDims, n, d int) int {
	return min(capDims, n, d)
}

// Preprocess normalizes, standardizes and projects a batch of raw embeddings.
// The output is index-aligned with raw. Every vector must share one dimensionality
// and be non-degenerate; callers filter degenerate vectors beforehand.
func Preprocess(raw [][]float64, capDims int) ([][]float64, error) {
	if len(raw) == 0 {
		return nil, ErrNoValidInput
	}
	d := len(raw[0])
	normalized := make([][]float64, len(raw))
	for i, v := range raw {
		if len(v) != d {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), d)
		}
		nv, err := Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("embedding %d: %w", i, err)
		}
		normalized[i] = nv
	}

	x := Standardize(normalized)
	return Project(x, ReducedDim(capDims, len(raw), d))
}
