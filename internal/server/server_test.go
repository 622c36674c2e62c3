package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/chew-z/workers-ai-proxy/internal/ai"
	"github.com/chew-z/workers-ai-proxy/internal/config"
)

const testToken = "test-access-token"

// fakeRunner scripts backend behavior per test.
type fakeRunner struct {
	run func(ctx context.Context, model string, input map[string]any) (ai.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, model string, input map[string]any) (ai.Result, error) {
	return f.run(ctx, model, input)
}

type fakeLister struct {
	models []ai.CatalogModel
	err    error
}

func (f *fakeLister) ListModels(ctx context.Context) ([]ai.CatalogModel, error) {
	return f.models, f.err
}

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		AccessToken: testToken,
		Storage: config.StorageConfig{
			Backend:   "local",
			Directory: t.TempDir(),
		},
	}
	s, err := NewServer(cfg, "localhost", 0)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	s.lister = &fakeLister{}
	return s
}

func authorized(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/", "/"},
		{"//", "/"},
		{"/models", "/models"},
		{"/models/", "/models"},
		{"//models", "/models"},
		{"/v1///chat//completions/", "/v1/chat/completions"},
		{"///", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := normalizePath(tt.input)
			assert.Equal(t, tt.expected, result)
			// Normalization is idempotent.
			assert.Equal(t, result, normalizePath(result))
		})
	}
}

func TestPathNormalizationRedirect(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name         string
		target       string
		wantLocation string
	}{
		{"duplicate slashes", "http://example.com//models", "/models"},
		{"trailing slash", "http://example.com/models/", "/models"},
		{"query preserved", "http://example.com/v1//models/?limit=5", "/v1/models?limit=5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", tt.target, nil)
			s.router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusPermanentRedirect, w.Code)
			assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))
		})
	}
}

func TestPathNormalizationNoRedirectWhenClean(t *testing.T) {
	s := setupTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "http://example.com/models", nil)
	s.router.ServeHTTP(w, authorized(req))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthGate(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"Missing header", "", http.StatusUnauthorized, "AUTH_NO_HEADER"},
		{"Wrong scheme", "Basic " + testToken, http.StatusForbidden, "AUTH_INVALID_TOKEN"},
		{"Wrong token", "Bearer nope", http.StatusForbidden, "AUTH_INVALID_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/models", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			s.router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestAuthGate_ValidToken(t *testing.T) {
	s := setupTestServer(t)
	s.lister = &fakeLister{models: []ai.CatalogModel{{Name: "@cf/meta/llama-2-7b-chat-int8", Source: 1}}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/models", nil)
	s.router.ServeHTTP(w, authorized(req))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "@cf/meta/llama-2-7b-chat-int8")
	assert.Contains(t, w.Body.String(), `"owned_by":"cloudflare"`)
}

func TestRoot_Liveness(t *testing.T) {
	s := setupTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestUndefinedRoute_NotFound(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{"DELETE", "/chat/completions"},
		{"GET", "/chat/completions"},
		{"POST", "/nope"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			s.router.ServeHTTP(w, authorized(req))

			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestPreflight(t *testing.T) {
	s := setupTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/chat/completions", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflight_WithoutCORSHeaders(t *testing.T) {
	s := setupTestServer(t)

	// A bare OPTIONS never reaches the route table either.
	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/models", nil)
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORSHeadersOnRegularResponse(t *testing.T) {
	s := setupTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://example.com")
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery_UncaughtPanic(t *testing.T) {
	s := setupTestServer(t)
	s.ai = &fakeRunner{run: func(ctx context.Context, model string, input map[string]any) (ai.Result, error) {
		panic("boom")
	}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/chat/completions",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, authorized(req))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal Server Error")
	assert.Contains(t, w.Body.String(), "boom")
}

func TestModels_FailSoft(t *testing.T) {
	s := setupTestServer(t)
	s.lister = &fakeLister{err: context.DeadlineExceeded}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/models", nil)
	s.router.ServeHTTP(w, authorized(req))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"object":"list","data":[]}`, w.Body.String())
}
