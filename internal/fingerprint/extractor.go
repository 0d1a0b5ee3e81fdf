// Package fingerprint turns uploaded images into face embeddings using an external face
// detection and embedding server.
package fingerprint

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-cluster/internal/constants"
)

var (
	ErrEmptyImage  = errors.New("empty image")
	ErrUndecodable = errors.New("image could not be decoded")
	ErrNoFace      = errors.New("no face detected")
)

// FaceExtractor produces one embedding per image: the face the detector is most sure of.
type FaceExtractor struct {
	client       *EmbeddingClient
	maxImageSize int
}

// NewFaceExtractor creates an extractor. maxImageSize <= 0 uses constants.MaxImageSize.
func NewFaceExtractor(client *EmbeddingClient, maxImageSize int) *FaceExtractor {
	if maxImageSize <= 0 {
		maxImageSize = constants.MaxImageSize
	}
	return &FaceExtractor{client: client, maxImageSize: maxImageSize}
}

// Extract returns the embedding of the highest scoring face in the image.
func (e *FaceExtractor) Extract(ctx context.Context, imageData []byte) ([]float64, error) {
	if len(imageData) == 0 {
		return nil, ErrEmptyImage
	}

	prepared, err := PrepareImage(imageData, e.maxImageSize)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.ComputeFaceEmbeddings(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("computing face embeddings: %w", err)
	}

	face, ok := bestFace(resp.Faces)
	if !ok {
		return nil, ErrNoFace
	}
	if len(face.Embedding) == 0 {
		return nil, fmt.Errorf("face %d: empty embedding returned", face.FaceIndex)
	}

	out := make([]float64, len(face.Embedding))
	for i, v := range face.Embedding {
		out[i] = float64(v)
	}
	return out, nil
}

// bestFace picks the detection with the highest det_score; the first one wins ties.
func bestFace(faces []FaceDetection) (FaceDetection, bool) {
	if len(faces) == 0 {
		return FaceDetection{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}
	return best, true
}
