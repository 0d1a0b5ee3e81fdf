package cluster

import (
	"errors"
	"reflect"
	"slices"
	"testing"
)

// scenarioA builds 12 outcomes: ten near-identical faces and two unrelated faces at
// input indices 3 and 7.
func scenarioA() []Outcome {
	var out []Outcome
	jitter := 0
	for i := range 12 {
		var emb []float64
		switch i {
		case 3:
			emb = []float64{0, 1, 0}
		case 7:
			emb = []float64{0, 0, 1}
		default:
			emb = []float64{1, 0.002 * float64(jitter), 0}
			jitter++
		}
		out = append(out, Outcome{Index: i, Embedding: emb})
	}
	return out
}

// scenarioB builds n one-hot embeddings, pairwise far apart after standardization.
func scenarioB(n int) []Outcome {
	out := make([]Outcome, n)
	for i := range n {
		emb := make([]float64, n)
		emb[i] = 1
		out[i] = Outcome{Index: i, Embedding: emb}
	}
	return out
}

func assertDescending(t *testing.T, ranked []Ranked) {
	t.Helper()
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].Score < ranked[i].Score {
			t.Errorf("scores not descending at %d: %v < %v", i, ranked[i-1].Score, ranked[i].Score)
		}
	}
}

func TestRun_ScenarioA(t *testing.T) {
	res, err := Run(scenarioA(), DefaultParams())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	wantLabels := []int{0, 0, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0}
	if !slices.Equal(res.Labels, wantLabels) {
		t.Errorf("labels = %v, want %v", res.Labels, wantLabels)
	}
	if res.Dominant.Label != 0 || res.Dominant.Count != 10 {
		t.Errorf("dominant = %+v, want label 0 with 10 members", res.Dominant)
	}
	if len(res.Ranked) != 5 {
		t.Fatalf("len(ranked) = %d, want 5", len(res.Ranked))
	}
	for _, r := range res.Ranked {
		if r.Index == 3 || r.Index == 7 {
			t.Errorf("noise image %d returned in ranking", r.Index)
		}
	}
	assertDescending(t, res.Ranked)
	if res.InputDim != 3 || res.ReducedDim != 3 {
		t.Errorf("dims = %d -> %d, want 3 -> 3", res.InputDim, res.ReducedDim)
	}
}

func TestRun_ScenarioA_HNSWIndex(t *testing.T) {
	p := DefaultParams()
	p.Index = IndexHNSW

	res, err := Run(scenarioA(), p)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	want := []int{0, 0, 0, -1, 0, 0, 0, -1, 0, 0, 0, 0}
	if !slices.Equal(res.Labels, want) {
		t.Errorf("labels = %v, want %v", res.Labels, want)
	}
}

func TestRun_ScenarioB_AllNoise(t *testing.T) {
	outcomes := scenarioB(12)
	raw := make([][]float64, len(outcomes))
	for i, o := range outcomes {
		raw[i] = o.Embedding
	}

	reduced, err := Preprocess(raw, DefaultCap)
	if err != nil {
		t.Fatalf("Preprocess() error: %v", err)
	}
	p := DefaultParams()
	// A low density threshold still finds nothing: no two points are within eps.
	labels := DBSCAN(NewNeighborIndex(reduced, p), len(reduced), p.Eps, 2)
	for i, l := range labels {
		if l != NoiseLabel {
			t.Errorf("label[%d] = %d, want noise", i, l)
		}
	}

	dominant, ok := SelectDominant(labels, false)
	if !ok || dominant.Label != NoiseLabel || dominant.Count != 12 {
		t.Fatalf("dominant = %+v, want noise with 12 members", dominant)
	}

	ranked, degenerate := Rank(reduced, dominant.Members, 20)
	if len(ranked) != 12 || len(degenerate) != 0 {
		t.Errorf("ranked %d, degenerate %v, want all 12 ranked", len(ranked), degenerate)
	}
	assertDescending(t, ranked)

	p.TopK = len(outcomes)
	res, err := Run(outcomes, p)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if res.Dominant.Label != NoiseLabel || res.Dominant.Count != 12 {
		t.Errorf("dominant = %+v, want noise with 12 members", res.Dominant)
	}
	if len(res.Ranked) != 12 || len(res.Skipped) != 0 {
		t.Errorf("ranked %d, skipped %v, want all 12 ranked", len(res.Ranked), res.Skipped)
	}
	assertDescending(t, res.Ranked)
}

func TestRun_TwoDistinctFacesHaveZeroCentroid(t *testing.T) {
	res, err := Run(scenarioB(2), DefaultParams())
	if res != nil {
		t.Errorf("expected nil result, got %+v", res)
	}
	if KindOf(err) != KindInputEmpty {
		t.Errorf("kind = %v, want input_empty (err: %v)", KindOf(err), err)
	}
	if !errors.Is(err, ErrNoDominantCluster) || !errors.Is(err, ErrDegenerateCentroid) {
		t.Errorf("error = %v, want no dominant cluster with a zero centroid", err)
	}
}

func TestRun_SeparatedGroupsSameDominantForBothIndexes(t *testing.T) {
	pts := twoGroups(30)
	outcomes := make([]Outcome, len(pts))
	for i, pt := range pts {
		outcomes[i] = Outcome{Index: i, Embedding: pt}
	}

	p := DefaultParams()
	p.MinPts = 5
	lin, err := Run(outcomes, p)
	if err != nil {
		t.Fatalf("Run(linear) error: %v", err)
	}

	p.Index = IndexHNSW
	approx, err := Run(outcomes, p)
	if err != nil {
		t.Fatalf("Run(hnsw) error: %v", err)
	}

	if !slices.Equal(approx.Labels, lin.Labels) {
		t.Errorf("hnsw labels = %v, linear = %v", approx.Labels, lin.Labels)
	}
	if approx.Dominant.Label != lin.Dominant.Label || lin.Dominant.Label == NoiseLabel {
		t.Errorf("dominant: hnsw %d, linear %d, want the same real cluster", approx.Dominant.Label, lin.Dominant.Label)
	}
}

func TestRun_ScenarioC_NoValidInput(t *testing.T) {
	failed := errors.New("no face detected")
	tests := []struct {
		name     string
		outcomes []Outcome
	}{
		{"no images", nil},
		{"all failed", []Outcome{{Index: 0, Err: failed}, {Index: 1, Err: failed}}},
		{"only degenerate", []Outcome{{Index: 0, Embedding: []float64{0, 0}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(tt.outcomes, DefaultParams())
			if res != nil {
				t.Errorf("expected nil result, got %+v", res)
			}
			if KindOf(err) != KindInputEmpty {
				t.Errorf("kind = %v, want input_empty (err: %v)", KindOf(err), err)
			}
			if !errors.Is(err, ErrNoValidInput) {
				t.Errorf("error = %v, want ErrNoValidInput", err)
			}
		})
	}
}

func TestRun_IndexAlignment(t *testing.T) {
	base := scenarioA()
	failed := errors.New("corrupt image")

	// Interleave failures so retained positions and input indices diverge.
	var outcomes []Outcome
	next := 0
	for i, o := range base {
		if i%4 == 1 {
			outcomes = append(outcomes, Outcome{Index: next, Err: failed})
			next++
		}
		o.Index = next
		outcomes = append(outcomes, o)
		next++
	}

	res, err := Run(outcomes, DefaultParams())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Labels) != len(base) || len(res.RetainedIndices) != len(base) {
		t.Fatalf("got %d labels / %d indices, want %d", len(res.Labels), len(res.RetainedIndices), len(base))
	}
	if len(res.Skipped) != 3 {
		t.Errorf("len(skipped) = %d, want 3", len(res.Skipped))
	}

	outliers := map[int]bool{}
	for pos, idx := range res.RetainedIndices {
		o := outcomes[idx]
		if o.Embedding == nil {
			t.Fatalf("retained index %d points at a failed outcome", idx)
		}
		if !reflect.DeepEqual(o.Embedding, base[pos].Embedding) {
			t.Errorf("position %d maps to index %d with a different embedding", pos, idx)
		}
		if res.Labels[pos] == NoiseLabel {
			outliers[idx] = true
		}
	}
	if len(outliers) != 2 {
		t.Errorf("noise indices = %v, want 2", outliers)
	}
	for _, r := range res.Ranked {
		if r.Index != res.RetainedIndices[r.Position] {
			t.Errorf("ranked index %d does not match position %d", r.Index, r.Position)
		}
	}
}

func TestRun_Determinism(t *testing.T) {
	first, err := Run(scenarioA(), DefaultParams())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for range 5 {
		again, err := Run(scenarioA(), DefaultParams())
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Run() not deterministic:\n%+v\n%+v", first, again)
		}
	}
}

func TestRun_SingleEmbedding(t *testing.T) {
	tests := []struct {
		name      string
		minPts    int
		wantLabel int
	}{
		{"single-member cluster", 1, 0},
		{"all noise", 10, NoiseLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.MinPts = tt.minPts

			res, err := Run([]Outcome{{Index: 4, Embedding: []float64{0.1, 0.7, -0.3}}}, p)
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if !slices.Equal(res.Labels, []int{tt.wantLabel}) {
				t.Errorf("labels = %v, want [%d]", res.Labels, tt.wantLabel)
			}
			if res.ReducedDim != 1 {
				t.Errorf("reduced dim = %d, want 1", res.ReducedDim)
			}
			if len(res.Ranked) != 1 || res.Ranked[0].Index != 4 || res.Ranked[0].Score != 1 {
				t.Errorf("ranked = %+v, want index 4 at 1.0", res.Ranked)
			}
		})
	}
}

func TestRun_SkipsDegenerateEmbeddings(t *testing.T) {
	outcomes := scenarioA()
	outcomes = append(outcomes, Outcome{Index: 12, Embedding: []float64{0, 0, 0}})

	res, err := Run(outcomes, DefaultParams())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Index != 12 || res.Skipped[0].Kind != KindDegenerate {
		t.Errorf("skipped = %+v, want index 12 as degenerate", res.Skipped)
	}
	if slices.Contains(res.RetainedIndices, 12) {
		t.Error("degenerate embedding was retained")
	}
}

func TestRun_DimensionMismatch(t *testing.T) {
	outcomes := []Outcome{
		{Index: 0, Embedding: []float64{1, 0, 0}},
		{Index: 1, Embedding: []float64{1, 0}},
	}

	_, err := Run(outcomes, DefaultParams())
	if KindOf(err) != KindComputation {
		t.Errorf("kind = %v, want computation", KindOf(err))
	}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestRun_InvalidParams(t *testing.T) {
	p := DefaultParams()
	p.TopK = 0

	_, err := Run(scenarioA(), p)
	if !errors.Is(err, ErrInvalidParams) {
		t.Errorf("error = %v, want ErrInvalidParams", err)
	}
}

func TestRun_TopKLargerThanCluster(t *testing.T) {
	p := DefaultParams()
	p.TopK = 50

	res, err := Run(scenarioA(), p)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(res.Ranked) != 10 {
		t.Errorf("len(ranked) = %d, want all 10 members", len(res.Ranked))
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindComputation {
		t.Errorf("KindOf(plain) = %v, want computation", got)
	}
	wrapped := newError(KindInputEmpty, "op", ErrNoValidInput)
	if got := KindOf(wrapped); got != KindInputEmpty {
		t.Errorf("KindOf(wrapped) = %v, want input_empty", got)
	}
	if wrapped.Error() != "op: no valid input" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}
