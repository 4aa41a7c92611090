// Package api provides HTTP handlers for the gateway API. It implements
// OpenAI-compatible endpoints for chat completions, model listing, and
// embeddings across multiple provider namespaces.
package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/aigateway/aigateway/internal/metrics"
	"github.com/aigateway/aigateway/internal/observability"
	"github.com/aigateway/aigateway/internal/provider"
	"github.com/aigateway/aigateway/internal/streaming"
	apperrors "github.com/aigateway/aigateway/pkg/errors"
	"github.com/aigateway/aigateway/pkg/types"
)

// Backend binds one URL namespace to a provider. Streamer is nil when the
// provider cannot stream; streaming requests against it get a 501.
type Backend struct {
	Name     string
	Provider provider.Provider
	Streamer provider.Streamer
}

// Handler handles HTTP requests for the gateway.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger}
}

// ChatCompletions returns the handler for POST {ns}/chat/completions.
func (h *Handler) ChatCompletions(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		req, appErr := decodeChatRequest(r)
		if appErr != nil {
			h.writeError(w, r, appErr)
			return
		}

		if req.Stream {
			h.streamChatCompletions(w, r, b, req, start)
			return
		}

		resp, err := b.Provider.ChatCompletions(r.Context(), req)
		if err != nil {
			h.writeProviderError(w, r, b, req.Model, err, start)
			return
		}

		metrics.RecordRequest(b.Name, req.Model, http.StatusOK, time.Since(start))
		metrics.RecordTokens(b.Name, req.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		h.writeJSON(w, r, http.StatusOK, resp)
	}
}

// streamChatCompletions translates a provider stream into SSE. The
// terminal [DONE] frame is written even when the upstream stream breaks so
// clients always see explicit termination.
func (h *Handler) streamChatCompletions(w http.ResponseWriter, r *http.Request, b Backend, req *types.ChatCompletionRequest, start time.Time) {
	logger := observability.WithRequestID(r.Context(), h.logger)

	if b.Streamer == nil {
		h.writeError(w, r, apperrors.NewNotImplementedError("Streaming is not supported for this provider"))
		return
	}

	stream, err := b.Streamer.StreamChatCompletions(r.Context(), req)
	if err != nil {
		h.writeProviderError(w, r, b, req.Model, err, start)
		return
	}
	defer stream.Close()

	sse, err := streaming.NewSSEWriter(w)
	if err != nil {
		h.writeError(w, r, apperrors.NewInternalError())
		return
	}

	metrics.StreamsActive.WithLabelValues(b.Name).Inc()
	defer metrics.StreamsActive.WithLabelValues(b.Name).Dec()

	for {
		chunk, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				// Headers are out the door; all we can do is log
				// and terminate the stream cleanly.
				logger.Warn("stream interrupted", "provider", b.Name, "model", req.Model, "error", err)
			}
			break
		}
		if err := sse.WriteChunk(chunk); err != nil {
			logger.Warn("client write failed", "provider", b.Name, "error", err)
			break
		}
	}

	if err := sse.WriteDone(); err != nil {
		logger.Warn("terminal frame write failed", "provider", b.Name, "error", err)
	}
	metrics.RecordRequest(b.Name, req.Model, http.StatusOK, time.Since(start))
}

// ListModels returns the handler for GET {ns}/models.
func (h *Handler) ListModels(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		list, err := b.Provider.ListModels(r.Context())
		if err != nil {
			h.writeProviderError(w, r, b, "", err, start)
			return
		}

		metrics.RecordRequest(b.Name, "", http.StatusOK, time.Since(start))
		h.writeJSON(w, r, http.StatusOK, list)
	}
}

// CreateEmbeddings returns the handler for POST {ns}/embeddings.
func (h *Handler) CreateEmbeddings(b Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req types.CreateEmbeddingsRequest
		if err := decodeJSON(r, &req); err != nil {
			h.writeError(w, r, err)
			return
		}
		if err := req.Validate(); err != nil {
			h.writeError(w, r, apperrors.NewValidationError(err.Error()))
			return
		}

		resp, err := b.Provider.CreateEmbeddings(r.Context(), &req)
		if err != nil {
			h.writeProviderError(w, r, b, req.Model, err, start)
			return
		}

		metrics.RecordRequest(b.Name, req.Model, http.StatusOK, time.Since(start))
		h.writeJSON(w, r, http.StatusOK, resp)
	}
}

// Healthz returns the liveness handler.
func (h *Handler) Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func decodeChatRequest(r *http.Request) (*types.ChatCompletionRequest, *apperrors.Error) {
	var req types.ChatCompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	return &req, nil
}

func decodeJSON(r *http.Request, v any) *apperrors.Error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return apperrors.NewValidationError("Failed to read request body")
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.NewValidationError("Invalid JSON payload: " + err.Error())
	}
	return nil
}

// writeProviderError records metrics for a failed upstream call before
// writing the normalized error.
func (h *Handler) writeProviderError(w http.ResponseWriter, r *http.Request, b Backend, model string, err error, start time.Time) {
	appErr := apperrors.AsError(err)
	if appErr == nil {
		appErr = apperrors.NewInternalError()
	}

	errorType := appErr.Type
	if apperrors.IsTimeout(appErr) {
		errorType = "timeout"
	}
	metrics.RecordError(b.Name, errorType)
	metrics.RecordRequest(b.Name, model, appErr.HTTPStatusCode(), time.Since(start))

	h.writeError(w, r, appErr)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.AsError(err)
	if appErr == nil {
		observability.WithRequestID(r.Context(), h.logger).Error("unclassified error", "error", err)
		appErr = apperrors.NewInternalError()
	}

	w.Header().Set("Content-Type", "application/json")
	if rid := observability.RequestIDFromContext(r.Context()); rid != "" {
		observability.SetRequestIDHeaders(w.Header(), rid)
	}
	w.WriteHeader(appErr.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(appErr.Payload())
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if rid := observability.RequestIDFromContext(r.Context()); rid != "" {
		observability.SetRequestIDHeaders(w.Header(), rid)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observability.WithRequestID(r.Context(), h.logger).Error("response encode failed", "error", err)
	}
}
