package cluster

import (
	"errors"
	"math"
	"slices"
	"testing"
)

func TestCentroid(t *testing.T) {
	got := Centroid([][]float64{{1, 0}, {1, 1}, {0, 1}, {2, 0}})
	if !slices.Equal(got, []float64{1, 0.5}) {
		t.Errorf("Centroid() = %v, want [1 0.5]", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float64
		want    float64
		wantErr error
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1, nil},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0, nil},
		{"opposite", []float64{1, 0}, []float64{-2, 0}, -1, nil},
		{"scale invariant", []float64{1, 1}, []float64{5, 5}, 1, nil},
		{"both zero", []float64{0, 0}, []float64{0, 0}, 1, nil},
		{"zero against non-zero", []float64{0, 0}, []float64{1, 0}, 0, ErrDegenerateVector},
		{"length mismatch", []float64{1}, []float64{1, 0}, 0, ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestRank_OrderAndStableTies(t *testing.T) {
	// Centroid is (1, 0.5); positions 0 and 3 tie at 1/sqrt(1.25).
	reduced := [][]float64{{1, 0}, {1, 1}, {0, 1}, {2, 0}}

	ranked, degenerate := Rank(reduced, []int{0, 1, 2, 3}, 10)
	if len(degenerate) != 0 {
		t.Fatalf("unexpected degenerate members: %v", degenerate)
	}

	var order []int
	for _, r := range ranked {
		order = append(order, r.Position)
	}
	if !slices.Equal(order, []int{1, 0, 3, 2}) {
		t.Errorf("order = %v, want [1 0 3 2]", order)
	}
	if ranked[1].Score != ranked[2].Score {
		t.Errorf("expected tied scores, got %v and %v", ranked[1].Score, ranked[2].Score)
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].Score < ranked[i].Score {
			t.Errorf("scores not descending at %d: %v < %v", i, ranked[i-1].Score, ranked[i].Score)
		}
	}
}

func TestRank_Truncation(t *testing.T) {
	reduced := [][]float64{{1, 0}, {1, 1}, {0, 1}, {2, 0}}

	tests := []struct {
		name string
		topK int
		want int
	}{
		{"fewer members than topK", 5, 4},
		{"exactly topK", 4, 4},
		{"truncated", 2, 2},
		{"single", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, _ := Rank(reduced, []int{0, 1, 2, 3}, tt.topK)
			if len(ranked) != tt.want {
				t.Errorf("len(ranked) = %d, want %d", len(ranked), tt.want)
			}
		})
	}
}

func TestRank_SubsetOfPositions(t *testing.T) {
	reduced := [][]float64{{9, 9}, {1, 0}, {9, -9}, {0, 1}}

	ranked, _ := Rank(reduced, []int{1, 3}, 5)
	if len(ranked) != 2 {
		t.Fatalf("len(ranked) = %d, want 2", len(ranked))
	}
	for _, r := range ranked {
		if r.Position != 1 && r.Position != 3 {
			t.Errorf("ranked non-member position %d", r.Position)
		}
		if math.Abs(r.Score-math.Sqrt2/2) > 1e-12 {
			t.Errorf("score = %v, want %v", r.Score, math.Sqrt2/2)
		}
	}
}

func TestRank_ZeroCentroid(t *testing.T) {
	reduced := [][]float64{{1, 0}, {-1, 0}}

	ranked, degenerate := Rank(reduced, []int{0, 1}, 5)
	if len(ranked) != 0 {
		t.Errorf("expected no ranked members, got %v", ranked)
	}
	if !slices.Equal(degenerate, []int{0, 1}) {
		t.Errorf("degenerate = %v, want [0 1]", degenerate)
	}
}

func TestRank_SingleMemberAtOrigin(t *testing.T) {
	ranked, degenerate := Rank([][]float64{{0}}, []int{0}, 5)
	if len(degenerate) != 0 {
		t.Fatalf("unexpected degenerate members: %v", degenerate)
	}
	if len(ranked) != 1 || ranked[0].Score != 1 {
		t.Errorf("ranked = %+v, want one member scored 1", ranked)
	}
}
