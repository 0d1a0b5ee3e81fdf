// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Image preparation constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the face server
	MaxImageSize = 1920

	// JPEGQuality is the quality used when re-encoding images for the face server
	JPEGQuality = 90
)

// Extraction constants
const (
	// DefaultConcurrency is the default number of images extracted in parallel
	DefaultConcurrency = 5

	// DefaultEmbeddingTimeout bounds a single call to the face server
	DefaultEmbeddingTimeout = 60 * time.Second
)

// HTTP server constants
const (
	// MaxRequestBytes caps the body of a clustering request (50MB)
	MaxRequestBytes = 50 << 20

	// DefaultRequestTimeout bounds one clustering request end to end
	DefaultRequestTimeout = 10 * time.Minute

	// ShutdownTimeout is how long in-flight requests get to finish on shutdown
	ShutdownTimeout = 30 * time.Second
)

// Async job constants
const (
	// EventChannelBuffer is the buffer size of each SSE listener channel
	EventChannelBuffer = 100

	// JobRetention is how long finished clustering jobs stay queryable
	JobRetention = time.Hour
)
