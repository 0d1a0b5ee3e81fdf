package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-cluster/internal/cluster"
	"github.com/kozaktomas/face-cluster/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Pipeline        cluster.Params `json:"pipeline"`
	MaxRequestBytes int64          `json:"max_request_bytes"`
	Concurrency     int            `json:"concurrency"`
	MaxImageSize    int            `json:"max_image_size"`
}

// Get returns the parameters a clustering request runs with unless it overrides them
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		Pipeline:        h.config.Params(),
		MaxRequestBytes: h.config.Server.MaxRequestBytes,
		Concurrency:     h.config.Embedding.Concurrency,
		MaxImageSize:    h.config.Embedding.MaxImageSize,
	})
}
