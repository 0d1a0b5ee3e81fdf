// Package cluster finds the dominant identity in a batch of face embeddings.
//
// The pipeline runs in four request-local stages:
//
//	outcomes -> Preprocess (normalize, standardize, PCA)
//	         -> DBSCAN labels
//	         -> SelectDominant
//	         -> Rank (cosine similarity to the centroid)
//
// Every stage keeps positions aligned with the retained embeddings, and Result maps those
// positions back to the caller's original input indices.
package cluster

// NoiseLabel marks points that belong to no dense cluster.
const NoiseLabel = -1

// Outcome is the extraction result for one submitted image.
// Embedding is nil when extraction failed, in which case Err says why.
type Outcome struct {
	Index     int
	Embedding []float64
	Err       error
}

// Skipped records an input that was excluded from the numeric stages.
type Skipped struct {
	Index  int    `json:"index"`
	Kind   Kind   `json:"-"`
	Reason string `json:"reason"`
}

// Summary describes one cluster label. Members are positions in the retained set.
type Summary struct {
	Label   int   `json:"label"`
	Count   int   `json:"count"`
	Members []int `json:"-"`
}

// Ranked is one scored member of the dominant cluster.
// Position indexes the retained set; Index is the original input index.
type Ranked struct {
	Index    int     `json:"index"`
	Position int     `json:"-"`
	Score    float64 `json:"score"`
}

// Result is the full output of Run.
type Result struct {
	// Labels[i] is the cluster of the i-th retained embedding.
	Labels []int
	// RetainedIndices[i] is the original input index of the i-th retained embedding.
	RetainedIndices []int
	Dominant        Summary
	Clusters        []Summary
	Ranked          []Ranked
	Skipped         []Skipped
	// InputDim is D, ReducedDim is K.
	InputDim   int
	ReducedDim int
}
