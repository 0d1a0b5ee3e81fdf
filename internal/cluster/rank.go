package cluster

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Centroid is the coordinate-wise mean of the vectors.
func Centroid(vectors [][]float64) []float64 {
	c := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		floats.Add(c, v)
	}
	floats.Scale(1/float64(len(vectors)), c)
	return c
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|).
// Identical vectors score 1 even when both are zero; otherwise a zero vector is degenerate.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	if floats.Equal(a, b) {
		return 1, nil
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, ErrDegenerateVector
	}
	s := floats.Dot(a, b) / (na * nb)
	// Clamp floating point drift.
	return max(-1, min(1, s)), nil
}

// Rank scores every member against the members' centroid and returns the topK best,
// highest first. Equal scores keep member order. Members whose similarity is undefined
// because the centroid is the zero vector are returned as degenerate.
func Rank(reduced [][]float64, members []int, topK int) (ranked []Ranked, degenerate []int) {
	vecs := make([][]float64, len(members))
	for i, pos := range members {
		vecs[i] = reduced[pos]
	}
	centroid := Centroid(vecs)

	scored := make([]Ranked, 0, len(members))
	for i, pos := range members {
		s, err := CosineSimilarity(vecs[i], centroid)
		if err != nil {
			degenerate = append(degenerate, pos)
			continue
		}
		scored = append(scored, Ranked{Position: pos, Score: s})
	}

	slices.SortStableFunc(scored, func(a, b Ranked) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, degenerate
}
