// Package provider defines the capability contract implemented by every
// backend adapter. Adapters translate between the canonical schema and one
// backend's wire format and normalize every failure into the pkg/errors
// taxonomy before it crosses this boundary.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aigateway/aigateway/internal/streaming"
	"github.com/aigateway/aigateway/pkg/types"
)

// Provider is the capability contract shared by all adapters.
type Provider interface {
	// Name returns the provider identifier (e.g., "custom", "cerebras").
	Name() string

	// ChatCompletions creates a non-streaming chat completion. Backend
	// unreachability, timeouts, and malformed payloads surface as
	// provider errors, never as raw transport failures.
	ChatCompletions(ctx context.Context, req *types.ChatCompletionRequest) (*types.ChatCompletionResponse, error)

	// ListModels returns the canonical model listing.
	ListModels(ctx context.Context) (*types.ModelList, error)

	// CreateEmbeddings creates embeddings, degrading to the deterministic
	// generator when the backend cannot supply vectors.
	CreateEmbeddings(ctx context.Context, req *types.CreateEmbeddingsRequest) (*types.CreateEmbeddingsResponse, error)
}

// Streamer is the optional streaming capability. It is wired explicitly at
// construction time; a namespace without a Streamer answers stream requests
// with 501. Streams are single-consume per request.
type Streamer interface {
	StreamChatCompletions(ctx context.Context, req *types.ChatCompletionRequest) (*streaming.Stream, error)
}

// NewCompletionID generates a fresh chat completion identifier.
func NewCompletionID() string {
	return fmt.Sprintf("chatcmpl-%s", uuid.New().String())
}

// NewPermissionID generates a fresh model permission identifier.
func NewPermissionID() string {
	return fmt.Sprintf("perm-%s", uuid.New().String())
}

// NowEpoch returns the current time as epoch seconds.
func NowEpoch() int64 {
	return time.Now().Unix()
}

// DefaultPermission builds the baseline permission record attached to
// listed models.
func DefaultPermission(created int64) types.ModelPermission {
	return types.ModelPermission{
		ID:            NewPermissionID(),
		Object:        types.ObjectModelPermission,
		Created:       created,
		AllowSampling: true,
		AllowView:     true,
	}
}
