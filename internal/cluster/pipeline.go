package cluster

import (
	"fmt"
	"log/slog"
)

// Run executes the full pipeline over one batch of extraction outcomes.
//
// Outcomes without an embedding and vectors that cannot be normalized are skipped and
// listed in Result.Skipped. The remaining embeddings are clustered and the dominant
// cluster's members are ranked. A request with nothing left to cluster or rank fails with
// KindInputEmpty; numeric failures fail with KindComputation.
func Run(outcomes []Outcome, p Params) (*Result, error) {
	const op = "cluster.Run"

	if err := p.Validate(); err != nil {
		return nil, newError(KindComputation, op, err)
	}

	res := &Result{}
	var raw [][]float64
	for _, o := range outcomes {
		switch {
		case o.Embedding == nil:
			reason := "extraction failed"
			if o.Err != nil {
				reason = o.Err.Error()
			}
			res.Skipped = append(res.Skipped, Skipped{Index: o.Index, Kind: KindExtraction, Reason: reason})
			slog.Warn("skipping image", "index", o.Index, "reason", reason)
		case isDegenerate(o.Embedding):
			res.Skipped = append(res.Skipped, Skipped{Index: o.Index, Kind: KindDegenerate, Reason: ErrDegenerateVector.Error()})
			slog.Warn("skipping degenerate embedding", "index", o.Index, "dim", len(o.Embedding))
		default:
			raw = append(raw, o.Embedding)
			res.RetainedIndices = append(res.RetainedIndices, o.Index)
		}
	}

	if len(raw) == 0 {
		return nil, newError(KindInputEmpty, op, ErrNoValidInput)
	}
	res.InputDim = len(raw[0])
	slog.Info("processed embeddings", "count", len(raw), "skipped", len(res.Skipped), "dim", res.InputDim)

	reduced, err := Preprocess(raw, p.Cap)
	if err != nil {
		return nil, newError(KindComputation, op, fmt.Errorf("preprocessing: %w", err))
	}
	res.ReducedDim = len(reduced[0])
	slog.Debug("reduced embeddings", "components", res.ReducedDim)

	idx := NewNeighborIndex(reduced, p)
	res.Labels = DBSCAN(idx, len(reduced), p.Eps, p.MinPts)
	res.Clusters = Summaries(res.Labels)
	slog.Info("clustering finished", "labels", len(res.Clusters), "index", p.Index)

	dominant, ok := SelectDominant(res.Labels, p.ExcludeNoise)
	if !ok {
		return nil, newError(KindInputEmpty, op, ErrNoDominantCluster)
	}
	res.Dominant = dominant

	ranked, degenerate := Rank(reduced, dominant.Members, p.TopK)
	for _, pos := range degenerate {
		res.Skipped = append(res.Skipped, Skipped{
			Index:  res.RetainedIndices[pos],
			Kind:   KindDegenerate,
			Reason: ErrDegenerateCentroid.Error(),
		})
	}
	if len(ranked) == 0 {
		return nil, newError(KindInputEmpty, op, fmt.Errorf("%w: %w", ErrNoDominantCluster, ErrDegenerateCentroid))
	}
	for i := range ranked {
		ranked[i].Index = res.RetainedIndices[ranked[i].Position]
	}
	res.Ranked = ranked
	slog.Info("ranked dominant cluster", "label", dominant.Label, "members", dominant.Count, "returned", len(ranked))

	return res, nil
}
