package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-cluster/internal/cluster"
	"github.com/kozaktomas/face-cluster/internal/config"
	"github.com/kozaktomas/face-cluster/internal/identity"
)

const (
	errNoImages      = "No images provided"
	errNoValidImages = "No valid images processed"
)

// multipartMemory is how much of a multipart body is kept in memory before spilling to disk.
const multipartMemory = 32 << 20

var errInvalidBase64 = errors.New("invalid base64 image data")

// Identifier runs face extraction and clustering for one batch.
type Identifier interface {
	Identify(ctx context.Context, inputs []identity.Input, p cluster.Params, onDone func()) (*identity.Report, error)
}

// ClusterHandler handles dominant-identity clustering requests
type ClusterHandler struct {
	config     *config.Config
	identifier Identifier
}

// NewClusterHandler creates a new cluster handler
func NewClusterHandler(cfg *config.Config, identifier Identifier) *ClusterHandler {
	return &ClusterHandler{
		config:     cfg,
		identifier: identifier,
	}
}

// ClusterRequest is the JSON body of a clustering request.
// Params, when present, overrides individual fields of the configured parameters.
type ClusterRequest struct {
	Images []string        `json:"images"`
	Params json.RawMessage `json:"params,omitempty"`
}

// TopImage is one ranked image of the dominant identity.
type TopImage struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
	Image string  `json:"image"`
}

// ClusterResponse is the result of a clustering request.
// Clusters holds one label per retained image, aligned with RetainedIndices.
type ClusterResponse struct {
	RequestID       string            `json:"request_id"`
	Clusters        []int             `json:"clusters"`
	RetainedIndices []int             `json:"retained_indices"`
	DominantLabel   int               `json:"dominant_label"`
	ClusterSizes    []cluster.Summary `json:"cluster_sizes"`
	TopImages       []TopImage        `json:"top_images"`
	Top5Images      []string          `json:"top_5_images"`
	Skipped         []cluster.Skipped `json:"skipped"`
	InputDim        int               `json:"input_dim"`
	ReducedDim      int               `json:"reduced_dim"`
}

// decodeImage accepts plain base64 or a data URL.
func decodeImage(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			s = s[i+1:]
		}
	}
	if s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidBase64, err)
	}
	return data, nil
}

// mergeParams applies a partial JSON override on top of base.
func mergeParams(base cluster.Params, override json.RawMessage) (cluster.Params, error) {
	if len(override) == 0 || string(override) == "null" {
		return base, nil
	}
	p := base
	dec := json.NewDecoder(bytes.NewReader(override))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return base, fmt.Errorf("%w: %w", cluster.ErrInvalidParams, err)
	}
	if err := p.Validate(); err != nil {
		return base, err
	}
	return p, nil
}

// parseJSON reads a ClusterRequest body.
func parseJSON(r *http.Request) (*ClusterRequest, error) {
	var req ClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// parseMultipart reads uploaded "files" and an optional JSON "params" field.
// Uploaded bytes are base64 encoded so the response can echo them like JSON submissions.
func parseMultipart(r *http.Request) (*ClusterRequest, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	req := &ClusterRequest{}
	if p := r.FormValue("params"); p != "" {
		req.Params = json.RawMessage(p)
	}
	for _, fh := range r.MultipartForm.File["files"] {
		data, err := readFormFile(fh)
		if err != nil {
			return nil, err
		}
		req.Images = append(req.Images, base64.StdEncoding.EncodeToString(data))
	}
	return req, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %s", fh.Filename)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// clusterBatch is a validated clustering request ready for the identifier.
type clusterBatch struct {
	images []string
	inputs []identity.Input
	params cluster.Params
}

// readBatch parses and validates a JSON or multipart clustering request.
// On failure it writes the error response and returns false.
func (h *ClusterHandler) readBatch(w http.ResponseWriter, r *http.Request) (*clusterBatch, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxRequestBytes)

	var (
		req *ClusterRequest
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		req, err = parseMultipart(r)
	} else {
		req, err = parseJSON(r)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return nil, false
	}

	if len(req.Images) == 0 {
		respondError(w, http.StatusBadRequest, errNoImages)
		return nil, false
	}

	params, err := mergeParams(h.config.Params(), req.Params)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	inputs := make([]identity.Input, len(req.Images))
	for i, s := range req.Images {
		data, err := decodeImage(s)
		inputs[i] = identity.Input{Data: data, Err: err}
	}
	return &clusterBatch{images: req.Images, inputs: inputs, params: params}, true
}

// Cluster handles POST /api/v1/cluster.
func (h *ClusterHandler) Cluster(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.readBatch(w, r)
	if !ok {
		return
	}

	report, err := h.identifier.Identify(r.Context(), batch.inputs, batch.params, nil)
	if err != nil {
		h.respondIdentifyError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, buildClusterResponse(report, batch.images))
}

func (h *ClusterHandler) respondIdentifyError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "clustering timed out")
		return
	case errors.Is(err, context.Canceled):
		slog.Info("clustering request cancelled", "remote", sanitizeForLog(r.RemoteAddr))
		respondError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}

	kind := cluster.KindOf(err)
	switch {
	case kind == cluster.KindInputEmpty:
		respondErrorKind(w, http.StatusBadRequest, inputEmptyMessage(err), kind.String())
	case errors.Is(err, cluster.ErrInvalidParams):
		respondErrorKind(w, http.StatusBadRequest, err.Error(), kind.String())
	default:
		slog.Error("clustering failed", "error", err)
		respondErrorKind(w, http.StatusInternalServerError, err.Error(), kind.String())
	}
}

// inputEmptyMessage tells "nothing usable was uploaded" apart from "the faces were valid but
// no dominant person could be established".
func inputEmptyMessage(err error) string {
	if errors.Is(err, cluster.ErrNoDominantCluster) {
		return err.Error()
	}
	return errNoValidImages
}

func buildClusterResponse(report *identity.Report, images []string) ClusterResponse {
	res := report.Result
	resp := ClusterResponse{
		RequestID:       report.RunID,
		Clusters:        res.Labels,
		RetainedIndices: res.RetainedIndices,
		DominantLabel:   res.Dominant.Label,
		ClusterSizes:    res.Clusters,
		TopImages:       make([]TopImage, 0, len(res.Ranked)),
		Top5Images:      make([]string, 0, len(res.Ranked)),
		Skipped:         res.Skipped,
		InputDim:        res.InputDim,
		ReducedDim:      res.ReducedDim,
	}
	if resp.Skipped == nil {
		resp.Skipped = []cluster.Skipped{}
	}
	for _, r := range res.Ranked {
		resp.TopImages = append(resp.TopImages, TopImage{Index: r.Index, Score: r.Score, Image: images[r.Index]})
		resp.Top5Images = append(resp.Top5Images, images[r.Index])
	}
	return resp
}
