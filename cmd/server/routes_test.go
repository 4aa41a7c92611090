package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aigateway/aigateway/internal/api"
	"github.com/aigateway/aigateway/internal/config"
	"github.com/aigateway/aigateway/internal/provider/custom"
	"github.com/aigateway/aigateway/pkg/types"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) ChatCompletions(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	return custom.New(nil).ChatCompletions(ctx, req)
}

func (stubProvider) ListModels(ctx context.Context) (*types.ModelList, error) {
	return custom.New(nil).ListModels(ctx)
}

func (stubProvider) CreateEmbeddings(ctx context.Context, req *types.CreateEmbeddingsRequest) (*types.CreateEmbeddingsResponse, error) {
	return custom.New(nil).CreateEmbeddings(ctx, req)
}

func TestNamespacePrefix(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"custom", "/v1"},
		{"cerebras", "/cerebras/v1"},
		{"ollama", "/ollama/v1"},
	}
	for _, tt := range tests {
		if got := namespacePrefix(tt.name); got != tt.want {
			t.Errorf("namespacePrefix(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestRegisterRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := api.NewHandler(logger)
	cfg := config.DefaultConfig()

	backends := []api.Backend{
		{Name: "custom", Provider: stubProvider{}},
		{Name: "cerebras", Provider: stubProvider{}},
		{Name: "ollama", Provider: stubProvider{}},
	}

	mux := http.NewServeMux()
	registerRoutes(mux, handler, backends, cfg)

	chatBody := `{"model": "m", "messages": [{"role": "user", "content": "hi"}]}`
	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{"POST", "/v1/chat/completions", chatBody, http.StatusOK},
		{"GET", "/v1/models", "", http.StatusOK},
		{"POST", "/v1/embeddings", `{"model": "m", "input": "hi"}`, http.StatusOK},
		{"POST", "/cerebras/v1/chat/completions", chatBody, http.StatusOK},
		{"GET", "/cerebras/v1/models", "", http.StatusOK},
		{"POST", "/ollama/v1/chat/completions", chatBody, http.StatusOK},
		{"GET", "/ollama/v1/models", "", http.StatusOK},
		{"GET", "/healthz", "", http.StatusOK},
		{"GET", "/metrics", "", http.StatusOK},
		{"GET", "/v1/chat/completions", "", http.StatusMethodNotAllowed},
		{"POST", "/nope/v1/chat/completions", chatBody, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestMetricsRouteDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	cfg.Metrics.Enabled = false

	mux := http.NewServeMux()
	registerRoutes(mux, api.NewHandler(logger), nil, cfg)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("metrics status = %d, want 404", rec.Code)
	}
}
