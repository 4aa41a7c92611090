// Package custom implements the in-process provider adapter. It performs no
// network I/O and produces deterministic responses, making it suitable for
// contract testing and early integration against the canonical schema.
package custom

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aigateway/aigateway/internal/embedding"
	"github.com/aigateway/aigateway/internal/provider"
	"github.com/aigateway/aigateway/pkg/types"
)

// ProviderName is the identifier for this provider.
const ProviderName = "custom"

// DefaultModels are the model records reported by the listing endpoint.
var DefaultModels = []string{"custom-processing-v1", "custom-processing-mini"}

// Provider is the deterministic local adapter. It is stateless and safe to
// share across concurrent requests.
type Provider struct {
	logger *slog.Logger
}

// New creates a new custom provider instance.
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{logger: logger}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return ProviderName }

// ChatCompletions returns a deterministic canned completion. Message
// contents are never echoed back or logged.
func (p *Provider) ChatCompletions(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	created := provider.NowEpoch()
	id := provider.NewCompletionID()

	p.logger.DebugContext(ctx, "custom provider request",
		"model", req.Model, "n_messages", len(req.Messages))

	resp := &types.ChatCompletionResponse{
		ID:      id,
		Object:  types.ObjectChatCompletion,
		Created: created,
		Model:   req.Model,
		Choices: []types.Choice{{
			Index:        0,
			Message:      types.ChatMessage{Role: types.RoleAssistant, Content: types.NewTextContent(fmt.Sprintf("Hello from the custom processing provider (%s).", req.Model))},
			FinishReason: types.FinishStop,
		}},
		Usage: types.Usage{},
	}
	return resp, nil
}

// ListModels returns the fixed model listing.
func (p *Provider) ListModels(ctx context.Context) (*types.ModelList, error) {
	created := provider.NowEpoch()
	models := make([]types.Model, 0, len(DefaultModels))
	for _, id := range DefaultModels {
		models = append(models, types.Model{
			ID:         id,
			Object:     types.ObjectModel,
			Created:    created,
			OwnedBy:    ProviderName,
			Permission: []types.ModelPermission{provider.DefaultPermission(created)},
		})
	}
	return types.NewModelList(models), nil
}

// CreateEmbeddings produces deterministic vectors for every input item.
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
