// Package identity connects face extraction to the clustering pipeline: it fans a batch of
// images out to an Extractor and runs the dominant-identity pipeline on the results.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-cluster/internal/cluster"
	"github.com/kozaktomas/face-cluster/internal/constants"
	"golang.org/x/sync/errgroup"
)

// Extractor turns one encoded image into one face embedding.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float64, error)
}

// Input is one submitted image. Err is set when the transport could not produce the bytes
// (bad base64, unreadable file); such inputs are reported as failures without extraction.
type Input struct {
	Data []byte
	Err  error
}

// Inputs wraps raw payloads that were received without transport errors.
func Inputs(images [][]byte) []Input {
	out := make([]Input, len(images))
	for i, img := range images {
		out[i] = Input{Data: img}
	}
	return out
}

// ExtractAll runs ex over every input with at most concurrency calls in flight.
// The returned outcomes are in input order with Outcome.Index set to the input position.
// Per-image failures are recorded in the outcome; only context cancellation aborts the batch.
// onDone, if non-nil, is called once per finished input and may be called concurrently.
func ExtractAll(ctx context.Context, ex Extractor, inputs []Input, concurrency int, onDone func()) ([]cluster.Outcome, error) {
	if concurrency < 1 {
		concurrency = constants.DefaultConcurrency
	}

	outcomes := make([]cluster.Outcome, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, in := range inputs {
		if in.Err != nil {
			outcomes[i] = cluster.Outcome{Index: i, Err: in.Err}
			if onDone != nil {
				onDone()
			}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			emb, err := ex.Extract(gctx, in.Data)
			outcomes[i] = cluster.Outcome{Index: i, Embedding: emb, Err: err}
			if err != nil {
				slog.Debug("face extraction failed", "index", i, "error", err)
			}
			if onDone != nil {
				onDone()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extracting faces: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extracting faces: %w", err)
	}
	return outcomes, nil
}

// Report is the outcome of one identification run.
type Report struct {
	RunID    string
	Result   *cluster.Result
	Extract  time.Duration
	Cluster  time.Duration
	Received int
}

// Service identifies the dominant person in a batch of images.
type Service struct {
	extractor   Extractor
	concurrency int
}

// NewService creates a service. concurrency < 1 uses constants.DefaultConcurrency.
func NewService(ex Extractor, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = constants.DefaultConcurrency
	}
	return &Service{extractor: ex, concurrency: concurrency}
}

// Identify extracts embeddings from the inputs and runs the clustering pipeline on them.
// Errors from the pipeline keep their cluster.Kind; a cancelled context is returned wrapped.
func (s *Service) Identify(ctx context.Context, inputs []Input, p cluster.Params, onDone func()) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Received: len(inputs)}
	log := slog.With("run_id", report.RunID)

	start := time.Now()
	outcomes, err := ExtractAll(ctx, s.extractor, inputs, s.concurrency, onDone)
	if err != nil {
		return nil, err
	}
	report.Extract = time.Since(start)
	log.Info("extraction finished", "images", len(inputs), "duration", report.Extract)

	start = time.Now()
	res, err := cluster.Run(outcomes, p)
	report.Cluster = time.Since(start)
	if err != nil {
		log.Warn("identification failed", "kind", cluster.KindOf(err), "error", err)
		return nil, err
	}
	report.Result = res
	log.Info("identification finished",
		"dominant_label", res.Dominant.Label,
		"dominant_size", res.Dominant.Count,
		"skipped", len(res.Skipped),
		"duration", report.Cluster,
	)
	return report, nil
}
