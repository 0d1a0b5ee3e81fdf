package cluster

import (
	"fmt"
	"math"
)

// Neighbour index implementations selectable through Params.Index.
const (
	IndexLinear = "linear"
	IndexHNSW   = "hnsw"
)

// Default parameter values.
const (
	DefaultCap         = 200
	DefaultEps         = 0.4
	DefaultMinPts      = 10
	DefaultTopK        = 5
	DefaultSearchWidth = 64
)

// Params is the explicit parameter bundle for one pipeline invocation.
type Params struct {
	Cap    int     `json:"cap" yaml:"cap"`         // max projected dimensions
	Eps    float64 `json:"eps" yaml:"eps"`         // DBSCAN neighbourhood radius (inclusive)
	MinPts int     `json:"min_pts" yaml:"min_pts"` // DBSCAN core density, self included
	TopK   int     `json:"top_k" yaml:"top_k"`

	Index       string `json:"index" yaml:"index"`               // "linear" or "hnsw"
	SearchWidth int    `json:"search_width" yaml:"search_width"` // hnsw candidates per query

	// ExcludeNoise keeps the noise label from winning while any real cluster exists.
	ExcludeNoise bool `json:"exclude_noise" yaml:"exclude_noise"`
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		Cap:         DefaultCap,
		Eps:         DefaultEps,
		MinPts:      DefaultMinPts,
		TopK:        DefaultTopK,
		Index:       IndexLinear,
		SearchWidth: DefaultSearchWidth,
	}
}

// Validate reports the first invalid field wrapped in ErrInvalidParams.
func (p Params) Validate() error {
	switch {
	case p.Cap < 1:
		return fmt.Errorf("%w: cap must be >= 1, got %d", ErrInvalidParams, p.Cap)
	case math.IsNaN(p.Eps) || math.IsInf(p.Eps, 0) || p.Eps < 0:
		return fmt.Errorf("%w: eps must be a finite non-negative number, got %v", ErrInvalidParams, p.Eps)
	case p.MinPts < 1:
		return fmt.Errorf("%w: min_pts must be >= 1, got %d", ErrInvalidParams, p.MinPts)
	case p.TopK < 1:
		return fmt.Errorf("%w: top_k must be >= 1, got %d", ErrInvalidParams, p.TopK)
	}
	switch p.Index {
	case "", IndexLinear:
	case IndexHNSW:
		if p.SearchWidth < 1 {
			return fmt.Errorf("%w: search_width must be >= 1, got %d", ErrInvalidParams, p.SearchWidth)
		}
	default:
		return fmt.Errorf("%w: unknown index %q", ErrInvalidParams, p.Index)
	}
	return nil
}
