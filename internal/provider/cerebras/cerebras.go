// Package cerebras implements the Cerebras provider adapter. It maps
// canonical chat requests onto the Cerebras Chat Completions API over HTTPS
// and normalizes every upstream failure into the gateway error taxonomy.
package cerebras

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aigateway/aigateway/internal/embedding"
	"github.com/aigateway/aigateway/internal/observability"
	"github.com/aigateway/aigateway/internal/provider"
	apperrors "github.com/aigateway/aigateway/pkg/errors"
	"github.com/aigateway/aigateway/pkg/types"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "cerebras"

	// DefaultBaseURL is the default Cerebras API endpoint.
	DefaultBaseURL = "https://api.cerebras.ai/v1"

	// DefaultTimeout bounds a single upstream call.
	DefaultTimeout = 30 * time.Second
)

// Config contains the adapter configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Provider is the remote-API adapter. One shared http.Client pools
// connections across requests; the adapter itself is stateless.
type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a new Cerebras provider instance.
func New(cfg Config) *Provider {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		tracer:  otel.Tracer("aigateway/provider/cerebras"),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// chatRequest is the backend chat completion wire shape.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the backend chat completion response shape.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *types.Usage `json:"usage"`
}

// ChatCompletions maps the canonical request to the backend wire shape,
// issues a single HTTPS call, and maps the response back. Every transport
// failure, non-2xx status, or malformed payload becomes a provider error.
func (p *Provider) ChatCompletions(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	ctx, span := p.tracer.Start(ctx, "cerebras.chat_completions",
		trace.WithAttributes(attribute.String("gen_ai.request.model", req.Model)))
	defer span.End()

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content.Flatten()})
	}

	body := chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	raw, err := p.post(ctx, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var upstream chatResponse
	if err := json.Unmarshal(raw, &upstream); err != nil {
		p.logger.WarnContext(ctx, "cerebras response decode failed", "error", err)
		return nil, apperrors.NewProviderError("Upstream provider error")
	}
	if len(upstream.Choices) == 0 {
		return nil, apperrors.NewProviderError("Upstream provider error")
	}

	first := upstream.Choices[0]
	usage := types.Usage{}
	if upstream.Usage != nil {
		// Totals are preserved as supplied by the backend.
		usage = *upstream.Usage
	}

	return &types.ChatCompletionResponse{
		ID:      provider.NewCompletionID(),
		Object:  types.ObjectChatCompletion,
		Created: provider.NowEpoch(),
		Model:   req.Model,
		Choices: []types.Choice{{
			Index:        0,
			Message:      types.ChatMessage{Role: types.RoleAssistant, Content: types.NewTextContent(first.Message.Content)},
			FinishReason: types.MapFinishReason(first.FinishReason),
		}},
		Usage: usage,
	}, nil
}

// modelsResponse is the backend model listing shape.
type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

// ListModels maps GET /models into the canonical listing.
func (p *Provider) ListModels(ctx context.Context) (*types.ModelList, error) {
	ctx, span := p.tracer.Start(ctx, "cerebras.list_models")
	defer span.End()

	raw, err := p.get(ctx, "/models")
	if err != nil {
		return nil, err
	}

	var upstream modelsResponse
	if err := json.Unmarshal(raw, &upstream); err != nil {
		return nil, apperrors.NewProviderError("Upstream provider error")
	}

	now := provider.NowEpoch()
	models := make([]types.Model, 0, len(upstream.Data))
	for _, m := range upstream.Data {
		if m.ID == "" {
			continue
		}
		created := m.Created
		if created <= 0 {
			created = now
		}
		ownedBy := m.OwnedBy
		if ownedBy == "" {
			ownedBy = ProviderName
		}
		models = append(models, types.Model{
			ID:         m.ID,
			Object:     types.ObjectModel,
			Created:    created,
			OwnedBy:    ownedBy,
			Permission: []types.ModelPermission{provider.DefaultPermission(created)},
		})
	}
	return types.NewModelList(models), nil
}

// CreateEmbeddings satisfies the embeddings contract. The backend has no
// native embedding endpoint, so vectors come from the deterministic
// generator.
func (p *Provider) CreateEmbeddings(ctx context.Context, req *types.CreateEmbeddingsRequest) (*types.CreateEmbeddingsResponse, error) {
	dim := req.Dimensions
	if dim <= 0 {
		dim = embedding.DefaultDim
	}

	inputs := req.Input.Strings()
	data := make([]types.EmbeddingItem, 0, len(inputs))
	for i, text := range inputs {
		data = append(data, types.EmbeddingItem{
			Object:    types.ObjectEmbedding,
			Embedding: embedding.Vector(text, dim),
			Index:     i,
		})
	}

	return &types.CreateEmbeddingsResponse{
		Object: types.ObjectList,
		Data:   data,
		Model:  req.Model,
		Usage:  types.EmbeddingUsage{},
	}, nil
}

func (p *Provider) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewProviderError("Upstream provider error")
	}
	return p.do(ctx, http.MethodPost, path, bytes.NewReader(body))
}

func (p *Provider) get(ctx context.Context, path string) ([]byte, error) {
	return p.do(ctx, http.MethodGet, path, nil)
}

func (p *Provider) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, apperrors.NewProviderError("Upstream provider error")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	if rid := observability.RequestIDFromContext(ctx); rid != "" {
		httpReq.Header.Set(observability.RequestIDHeader, rid)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.logger.WarnContext(ctx, "cerebras upstream call failed", "error", err)
		return nil, apperrors.NewProviderError("Upstream provider error")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewProviderError("Upstream provider error")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.WarnContext(ctx, "cerebras upstream status", "status", resp.StatusCode)
		return nil, apperrors.NewProviderError("Upstream provider error").
			WithDetails(map[string]any{"status_code": resp.StatusCode})
	}
	return raw, nil
}
