package types

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRequestUnmarshal_ExtraFieldsCaptured(t *testing.T) {
	data := []byte(`{
		"model": "gpt-4",
		"messages": [{"role": "user", "content": "hi"}],
		"temperature": 0.5,
		"foo": "bar",
		"nested": {"enabled": true}
	}`)

	var req ChatCompletionRequest
	err := json.Unmarshal(data, &req)
	require.NoError(t, err)

	require.NotNil(t, req.Extra)
	assert.JSONEq(t, `"bar"`, string(req.Extra["foo"]))
	assert.JSONEq(t, `{"enabled": true}`, string(req.Extra["nested"]))
	assert.NotContains(t, req.Extra, "model")
	assert.NotContains(t, req.Extra, "messages")
	assert.NotContains(t, req.Extra, "temperature")
}

func TestChatRequestUnmarshal_NoExtraFields(t *testing.T) {
	data := []byte(`{
		"model": "gpt-4",
		"messages": [{"role": "user", "content": "hi"}],
		"stream": true
	}`)

	var req ChatCompletionRequest
	err := json.Unmarshal(data, &req)
	require.NoError(t, err)

	assert.True(t, req.Stream)
	assert.Nil(t, req.Extra)
}

func TestChatRequestMarshal_ExtraMergedWithoutOverride(t *testing.T) {
	var req ChatCompletionRequest
	require.NoError(t, json.Unmarshal([]byte(`{
		"model": "gpt-4",
		"messages": [{"role": "user", "content": "hi"}],
		"custom_param": 7
	}`), &req))

	out, err := json.Marshal(req)
	require.NoError(t, err)

	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &payload))
	assert.JSONEq(t, `7`, string(payload["custom_param"]))
	assert.JSONEq(t, `"gpt-4"`, string(payload["model"]))
}

func TestChatRequestValidate(t *testing.T) {
	temp := func(v float64) *float64 { return &v }
	count := func(v int) *int { return &v }

	valid := func() ChatCompletionRequest {
		return ChatCompletionRequest{
			Model:    "gpt",
			Messages: []ChatMessage{{Role: RoleUser, Content: NewTextContent("Hello")}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ChatCompletionRequest)
		wantErr string
	}{
		{"valid", func(r *ChatCompletionRequest) {}, ""},
		{"empty model", func(r *ChatCompletionRequest) { r.Model = "   " }, "model"},
		{"empty messages", func(r *ChatCompletionRequest) { r.Messages = nil }, "messages"},
		{"whitespace content", func(r *ChatCompletionRequest) {
			r.Messages[0].Content = NewTextContent("   ")
		}, "content"},
		{"bad role", func(r *ChatCompletionRequest) { r.Messages[0].Role = "robot" }, "role"},
		{"temperature too high", func(r *ChatCompletionRequest) { r.Temperature = temp(2.5) }, "temperature"},
		{"temperature negative", func(r *ChatCompletionRequest) { r.Temperature = temp(-0.1) }, "temperature"},
		{"top_p too high", func(r *ChatCompletionRequest) { r.TopP = temp(1.5) }, "top_p"},
		{"max_tokens zero", func(r *ChatCompletionRequest) { r.MaxTokens = count(0) }, "max_tokens"},
		{"n zero", func(r *ChatCompletionRequest) { r.N = count(0) }, "n must"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMessageContent_PartsRoundTrip(t *testing.T) {
	data := []byte(`[{"type":"text","text":"look at "},{"type":"image_url","image_url":{"url":"https://example.com/cat.png"}}]`)

	var content MessageContent
	require.NoError(t, json.Unmarshal(data, &content))
	require.Nil(t, content.Text)
	require.Len(t, content.Parts, 2)
	assert.Equal(t, "text", content.Parts[0].Type)
	assert.Equal(t, "https://example.com/cat.png", content.Parts[1].ImageURL.URL)
	assert.NoError(t, content.Validate())
	assert.Equal(t, "look at ", content.Flatten())
}

func TestMessageContent_RejectsOtherShapes(t *testing.T) {
	var content MessageContent
	err := json.Unmarshal([]byte(`{"text": "hi"}`), &content)
	assert.Error(t, err)
}

func TestStopSequences(t *testing.T) {
	var req ChatCompletionRequest
	require.NoError(t, json.Unmarshal([]byte(`{"model":"m","messages":[{"role":"user","content":"x"}],"stop":"END"}`), &req))
	assert.Equal(t, []string{"END"}, req.StopSequences())

	require.NoError(t, json.Unmarshal([]byte(`{"model":"m","messages":[{"role":"user","content":"x"}],"stop":["a","b"]}`), &req))
	assert.Equal(t, []string{"a", "b"}, req.StopSequences())

	require.NoError(t, json.Unmarshal([]byte(`{"model":"m","messages":[{"role":"user","content":"x"}]}`), &req))
	assert.Nil(t, req.StopSequences())
}

func TestChatResponseValidate(t *testing.T) {
	valid := func() ChatCompletionResponse {
		return ChatCompletionResponse{
			ID:      "chatcmpl-1",
			Object:  ObjectChatCompletion,
			Created: 1700000000,
			Model:   "gpt",
			Choices: []Choice{{
				Index:        0,
				Message:      ChatMessage{Role: RoleAssistant, Content: NewTextContent("hi")},
				FinishReason: FinishStop,
			}},
		}
	}

	t.Run("valid", func(t *testing.T) {
		resp := valid()
		assert.NoError(t, resp.Validate())
	})

	t.Run("empty id", func(t *testing.T) {
		resp := valid()
		resp.ID = "  "
		assert.Error(t, resp.Validate())
	})

	t.Run("negative created", func(t *testing.T) {
		resp := valid()
		resp.Created = -1
		assert.Error(t, resp.Validate())
	})

	t.Run("created rejects floats at decode time", func(t *testing.T) {
		var resp ChatCompletionResponse
		err := json.Unmarshal([]byte(`{"id":"x","object":"chat.completion","created":12.5,"model":"m","choices":[]}`), &resp)
		assert.Error(t, err)
	})

	t.Run("created rejects booleans at decode time", func(t *testing.T) {
		var resp ChatCompletionResponse
		err := json.Unmarshal([]byte(`{"id":"x","object":"chat.completion","created":true,"model":"m","choices":[]}`), &resp)
		assert.Error(t, err)
	})

	t.Run("empty choices", func(t *testing.T) {
		resp := valid()
		resp.Choices = nil
		assert.Error(t, resp.Validate())
	})

	t.Run("out-of-enum finish reason", func(t *testing.T) {
		resp := valid()
		resp.Choices[0].FinishReason = "halted"
		assert.Error(t, resp.Validate())
	})
}

func TestMapFinishReason(t *testing.T) {
	assert.Equal(t, "length", MapFinishReason("length"))
	assert.Equal(t, "stop", MapFinishReason("max_output"))
	assert.Equal(t, "stop", MapFinishReason(""))
}

func TestStreamChoiceFinishReasonSerializesNull(t *testing.T) {
	chunk := StreamChunk{
		ID:      "chatcmpl-1",
		Object:  ObjectChatCompletionChunk,
		Created: 1700000000,
		Model:   "m",
		Choices: []StreamChoice{{Index: 0, Delta: StreamDelta{Content: "Hel"}}},
	}

	out, err := json.Marshal(chunk)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"finish_reason":null`)
}
