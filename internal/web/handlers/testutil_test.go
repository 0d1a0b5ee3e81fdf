package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-cluster/internal/config"
	"github.com/kozaktomas/face-cluster/internal/identity"
)

// testConfig returns the embedded defaults without environment overrides.
func testConfig() *config.Config {
	cfg := config.Load()
	cfg.Server.MaxRequestBytes = 1 << 20
	return cfg
}

var errTestNoFace = errors.New("no face detected")

// fakeExtractor maps image payloads to embeddings; unknown payloads have no face.
type fakeExtractor map[string][]float64

func (f fakeExtractor) Extract(_ context.Context, image []byte) ([]float64, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}
	emb, ok := f[string(image)]
	if !ok {
		return nil, errTestNoFace
	}
	return emb, nil
}

// faceBatch returns base64 payloads for ten similar faces plus unrelated faces at 3 and 7,
// and an identity service that understands them.
func faceBatch() ([]string, *identity.Service) {
	ex := fakeExtractor{}
	var images []string
	jitter := 0
	for i := range 12 {
		key := "face-" + strconv.Itoa(i)
		switch i {
		case 3:
			ex[key] = []float64{0, 1, 0}
		case 7:
			ex[key] = []float64{0, 0, 1}
		default:
			ex[key] = []float64{1, 0.002 * float64(jitter), 0}
			jitter++
		}
		images = append(images, base64.StdEncoding.EncodeToString([]byte(key)))
	}
	return images, identity.NewService(ex, 4)
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// requestWithChiParams adds chi URL parameters to a request
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
