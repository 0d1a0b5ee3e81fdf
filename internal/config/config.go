package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-cluster/internal/cluster"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Pipeline  cluster.Params  `yaml:"pipeline"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	MaxRequestBytes int64         `yaml:"max_request_bytes"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // CORS origins besides localhost
}

type EmbeddingConfig struct {
	URL          string        `yaml:"url"`            // face server base URL
	Concurrency  int           `yaml:"concurrency"`    // images extracted in parallel
	MaxImageSize int           `yaml:"max_image_size"` // longest side sent to the face server
	Timeout      time.Duration `yaml:"timeout"`        // per image
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a non-negative finite float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && !math.IsInf(f, 0) {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList reads a comma-separated list, falling back to defaultVal when unset.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// applyEnv overrides settings from environment variables.
func (c *Config) applyEnv() {
	c.Server.Host = envString("WEB_HOST", c.Server.Host)
	c.Server.Port = envInt("WEB_PORT", c.Server.Port)
	c.Server.MaxRequestBytes = int64(envInt("MAX_REQUEST_BYTES", int(c.Server.MaxRequestBytes)))
	c.Server.RequestTimeout = envDuration("REQUEST_TIMEOUT", c.Server.RequestTimeout)
	c.Server.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Embedding.URL = envString("EMBEDDING_URL", c.Embedding.URL)
	c.Embedding.Concurrency = envInt("EMBEDDING_CONCURRENCY", c.Embedding.Concurrency)
	c.Embedding.MaxImageSize = envInt("EMBEDDING_MAX_IMAGE_SIZE", c.Embedding.MaxImageSize)
	c.Embedding.Timeout = envDuration("EMBEDDING_TIMEOUT", c.Embedding.Timeout)

	c.Pipeline.Cap = envInt("CLUSTER_CAP", c.Pipeline.Cap)
	c.Pipeline.Eps = envFloat("CLUSTER_EPS", c.Pipeline.Eps)
	c.Pipeline.MinPts = envInt("CLUSTER_MIN_PTS", c.Pipeline.MinPts)
	c.Pipeline.TopK = envInt("CLUSTER_TOP_K", c.Pipeline.TopK)
	c.Pipeline.Index = envString("CLUSTER_INDEX", c.Pipeline.Index)
	c.Pipeline.SearchWidth = envInt("CLUSTER_SEARCH_WIDTH", c.Pipeline.SearchWidth)
	c.Pipeline.ExcludeNoise = envBool("CLUSTER_EXCLUDE_NOISE", c.Pipeline.ExcludeNoise)

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString("LOG_FORMAT", c.Log.Format)
}

// Load returns the embedded defaults overridden by environment variables.
func Load() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile layers a YAML file between the embedded defaults and the environment.
// An empty path behaves like Load followed by Validate.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late at request time.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Server.MaxRequestBytes < 1 {
		return fmt.Errorf("max_request_bytes must be positive, got %d", c.Server.MaxRequestBytes)
	}
	if c.Embedding.Concurrency < 1 {
		return fmt.Errorf("embedding concurrency must be >= 1, got %d", c.Embedding.Concurrency)
	}
	if c.Embedding.MaxImageSize < 1 {
		return fmt.Errorf("embedding max_image_size must be >= 1, got %d", c.Embedding.MaxImageSize)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// Params returns the clustering parameters for one request.
func (c *Config) Params() cluster.Params {
	return c.Pipeline
}
