package cerebras

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/aigateway/aigateway/pkg/errors"
	"github.com/aigateway/aigateway/pkg/types"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "test-key", BaseURL: srv.URL})
}

func chatReq() *types.ChatCompletionRequest {
	return &types.ChatCompletionRequest{
		Model: "llama3.1-8b",
		Messages: []types.ChatMessage{
			{Role: types.RoleUser, Content: types.NewTextContent("Say hello")},
		},
	}
}

func TestChatCompletionsMapsResponse(t *testing.T) {
	temp := 0.7
	maxTokens := 128

	var captured map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "Hello there"}, "finish_reason": "length"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 5, "total_tokens": 9}
		}`))
	})

	req := chatReq()
	req.Temperature = &temp
	req.MaxTokens = &maxTokens

	resp, err := p.ChatCompletions(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, resp.Validate())

	assert.Equal(t, "llama3.1-8b", captured["model"])
	assert.Equal(t, 0.7, captured["temperature"])
	assert.Equal(t, float64(128), captured["max_tokens"])

	require.Len(t, resp.Choices, 1)
	assert.Equal(t, types.RoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, "Hello there", resp.Choices[0].Message.Content.Flatten())
	assert.Equal(t, types.FinishLength, resp.Choices[0].FinishReason)
	// Totals are passed through untouched even when inconsistent.
	assert.Equal(t, 9, resp.Usage.TotalTokens)
}

func TestChatCompletionsOmitsUnsetSampling(t *testing.T) {
	var captured map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}, "finish_reason": "stop"}]}`))
	})

	_, err := p.ChatCompletions(context.Background(), chatReq())
	require.NoError(t, err)
	assert.NotContains(t, captured, "temperature")
	assert.NotContains(t, captured, "max_tokens")
}

func TestChatCompletionsClampsUnknownFinishReason(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "ok"}, "finish_reason": "eos_token"}]}`))
	})

	resp, err := p.ChatCompletions(context.Background(), chatReq())
	require.NoError(t, err)
	assert.Equal(t, types.FinishStop, resp.Choices[0].FinishReason)
}

func TestChatCompletionsErrorNormalization(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "upstream 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "upstream 401",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "bad key", http.StatusUnauthorized)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices": [`))
			},
		},
		{
			name: "empty choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"choices": []}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.handler)
			_, err := p.ChatCompletions(context.Background(), chatReq())
			require.Error(t, err)

			appErr := apperrors.AsError(err)
			require.NotNil(t, appErr, "adapter must return a normalized error")
			assert.Equal(t, apperrors.TypeProvider, appErr.Type)
			assert.Equal(t, http.StatusBadGateway, appErr.HTTPStatusCode())
			assert.NotContains(t, appErr.Message, "boom")
		})
	}
}

func TestChatCompletionsConnectionRefused(t *testing.T) {
	p := New(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	_, err := p.ChatCompletions(context.Background(), chatReq())

	appErr := apperrors.AsError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.TypeProvider, appErr.Type)
}

func TestListModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data": [
			{"id": "llama3.1-8b", "created": 1700000000, "owned_by": "Cerebras"},
			{"id": "llama3.1-70b"},
			{"id": ""}
		]}`))
	})

	list, err := p.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, list.Data, 2)

	assert.Equal(t, "llama3.1-8b", list.Data[0].ID)
	assert.Equal(t, int64(1700000000), list.Data[0].Created)
	assert.Equal(t, "Cerebras", list.Data[0].OwnedBy)
	require.NoError(t, list.Data[0].Validate())

	// Missing fields are filled with sane defaults.
	assert.Equal(t, ProviderName, list.Data[1].OwnedBy)
	assert.Positive(t, list.Data[1].Created)
}

func TestListModelsUpstreamFailure(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	})

	_, err := p.ListModels(context.Background())
	appErr := apperrors.AsError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.TypeProvider, appErr.Type)
}

func TestCreateEmbeddingsDeterministic(t *testing.T) {
	p := New(Config{APIKey: "k"})

	req := &types.CreateEmbeddingsRequest{
		Model: "llama3.1-8b",
		Input: types.EmbeddingInput{Texts: []string{"alpha", "beta"}},
	}

	first, err := p.CreateEmbeddings(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, first.Validate())
	require.Len(t, first.Data, 2)
	assert.Equal(t, 0, first.Data[0].Index)
	assert.Equal(t, 1, first.Data[1].Index)

	second, err := p.CreateEmbeddings(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
	assert.NotEqual(t, first.Data[0].Embedding, first.Data[1].Embedding)
}
