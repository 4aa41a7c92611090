// Package types defines the canonical data structures for gateway requests
// and responses. All types are compatible with OpenAI's Chat Completion API
// format; every provider adapter produces and consumes these shapes.
package types

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Roles accepted on chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleDeveloper = "developer"
	RoleFunction  = "function"
)

// Finish reasons in the canonical enum.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
	FinishToolCalls     = "tool_calls"
)

var validRoles = map[string]struct{}{
	RoleSystem:    {},
	RoleUser:      {},
	RoleAssistant: {},
	RoleTool:      {},
	RoleDeveloper: {},
	RoleFunction:  {},
}

// ValidFinishReason reports whether reason is in the canonical enum.
func ValidFinishReason(reason string) bool {
	switch reason {
	case FinishStop, FinishLength, FinishContentFilter, FinishToolCalls:
		return true
	}
	return false
}

// MapFinishReason clamps an upstream finish reason into the canonical enum,
// defaulting to "stop" for anything outside it.
func MapFinishReason(reason string) string {
	if ValidFinishReason(reason) {
		return reason
	}
	return FinishStop
}

// ContentPart is one element of structured message content.
// Minimal typed parts: {type:"text", text} or {type:"image_url", image_url:{url}}.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL is an image reference inside structured content.
type ImageURL struct {
	URL string `json:"url"`
}

// MessageContent is a union of plain-string content and an ordered sequence
// of typed content parts. Exactly one of Text/Parts is set.
type MessageContent struct {
	Text  *string       `json:"-"`
	Parts []ContentPart `json:"-"`
}

// UnmarshalJSON infers the content form: string first, then part list.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	c.Text = nil
	c.Parts = nil

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Text = &s
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		c.Parts = parts
		return nil
	}

	return fmt.Errorf("content must be a string or a list of content parts")
}

// MarshalJSON serializes whichever form is set; empty content marshals as "".
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Text != nil {
		return json.Marshal(*c.Text)
	}
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return json.Marshal("")
}

// Validate enforces the content invariant: a string must be non-empty after
// trimming; each part must be a typed object carrying text or an image ref.
func (c *MessageContent) Validate() error {
	if c.Text != nil {
		if strings.TrimSpace(*c.Text) == "" {
			return fmt.Errorf("content must be a non-empty string")
		}
		return nil
	}
	if c.Parts != nil {
		for i, part := range c.Parts {
			if part.Type == "" && part.Text == "" && part.ImageURL == nil {
				return fmt.Errorf("content part %d must include a type or a text/image_url payload", i)
			}
		}
		return nil
	}
	return fmt.Errorf("content must be a string or a list of content parts")
}

// Flatten joins structured content into a single string for backends that
// reject part lists. String content is returned as-is.
func (c *MessageContent) Flatten() string {
	if c.Text != nil {
		return *c.Text
	}
	var b strings.Builder
	for _, part := range c.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// NewTextContent builds string-form message content.
func NewTextContent(s string) MessageContent {
	return MessageContent{Text: &s}
}

// ChatMessage is a single message in the conversation.
type ChatMessage struct {
	Role       string         `json:"role"`
	Content    MessageContent `json:"content"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

// Validate checks the role enum and the content invariant.
func (m *ChatMessage) Validate() error {
	if _, ok := validRoles[m.Role]; !ok {
		return fmt.Errorf("role %q is not one of system, user, assistant, tool, developer, function", m.Role)
	}
	return m.Content.Validate()
}

// ResponseFormat selects the output format for the model.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatCompletionRequest is the canonical chat completion request. Unknown
// fields are preserved in Extra rather than rejected, so fast-evolving SDK
// parameters pass through unchanged.
type ChatCompletionRequest struct {
	Model            string          `json:"model"`
	Messages         []ChatMessage   `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	N                *int            `json:"n,omitempty"`
	Stop             json.RawMessage `json:"stop,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	Tools            json.RawMessage `json:"tools,omitempty"`
	ToolChoice       json.RawMessage `json:"tool_choice,omitempty"`
	ResponseFormat   *ResponseFormat `json:"response_format,omitempty"`
	Seed             *int            `json:"seed,omitempty"`
	User             string          `json:"user,omitempty"`

	// Extra holds unrecognized fields for zero-copy forwarding.
	Extra map[string]json.RawMessage `json:"-"`
}

var chatRequestKnownFields = map[string]struct{}{
	"model":             {},
	"messages":          {},
	"temperature":       {},
	"max_tokens":        {},
	"top_p":             {},
	"n":                 {},
	"stop":              {},
	"presence_penalty":  {},
	"frequency_penalty": {},
	"stream":            {},
	"tools":             {},
	"tool_choice":       {},
	"response_format":   {},
	"seed":              {},
	"user":              {},
}

// UnmarshalJSON captures unknown fields into Extra for passthrough.
func (r *ChatCompletionRequest) UnmarshalJSON(data []byte) error {
	type alias ChatCompletionRequest

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	var parsed alias
	if err := json.Unmarshal(data, &parsed); err != nil {
		return err
	}

	*r = ChatCompletionRequest(parsed)
	for key := range chatRequestKnownFields {
		delete(payload, key)
	}
	if len(payload) > 0 {
		r.Extra = payload
	} else {
		r.Extra = nil
	}
	return nil
}

// MarshalJSON merges Extra fields without overriding explicitly set fields.
func (r ChatCompletionRequest) MarshalJSON() ([]byte, error) {
	type alias ChatCompletionRequest

	base, err := json.Marshal(alias(r))
	if err != nil || len(r.Extra) == 0 {
		return base, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(base, &payload); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, exists := payload[key]; !exists {
			payload[key] = value
		}
	}
	return json.Marshal(payload)
}

// StopSequences decodes the stop field, accepting a single string or a list.
func (r *ChatCompletionRequest) StopSequences() []string {
	if len(r.Stop) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(r.Stop, &one); err == nil {
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(r.Stop, &many); err == nil {
		return many
	}
	return nil
}

// Validate enforces the canonical request invariants.
func (r *ChatCompletionRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("model must be a non-empty string")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must contain at least one message")
	}
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return fmt.Errorf("messages[%d]: %w", i, err)
		}
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return fmt.Errorf("top_p must be between 0 and 1")
	}
	if r.MaxTokens != nil && *r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be greater than zero")
	}
	if r.N != nil && *r.N < 1 {
		return fmt.Errorf("n must be at least 1")
	}
	return nil
}

// Usage is token usage accounting. Backend-supplied totals are preserved
// as-is; nothing recomputes total from prompt+completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Validate checks non-negative token counts.
func (u *Usage) Validate() error {
	if u.PromptTokens < 0 || u.CompletionTokens < 0 || u.TotalTokens < 0 {
		return fmt.Errorf("token counts must be non-negative")
	}
	return nil
}

// Choice is one completion choice.
type Choice struct {
	Index        int             `json:"index"`
	Message      ChatMessage     `json:"message"`
	FinishReason string          `json:"finish_reason"`
	Logprobs     json.RawMessage `json:"logprobs,omitempty"`
}

// Validate checks the index bound and finish-reason enum.
func (c *Choice) Validate() error {
	if c.Index < 0 {
		return fmt.Errorf("choice index must be non-negative")
	}
	if !ValidFinishReason(c.FinishReason) {
		return fmt.Errorf("finish_reason %q is not one of stop, length, content_filter, tool_calls", c.FinishReason)
	}
	return nil
}

// ChatCompletionResponse is the canonical chat completion response.
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// ObjectChatCompletion is the literal object tag on non-streaming responses.
const ObjectChatCompletion = "chat.completion"

// ObjectChatCompletionChunk is the literal object tag on stream chunks.
const ObjectChatCompletionChunk = "chat.completion.chunk"

// Validate enforces the canonical response invariants.
// Non-integer created values (floats, booleans, lists) are already rejected
// during JSON decoding by the int64 field type.
func (r *ChatCompletionResponse) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("id must be a non-empty string")
	}
	if r.Object != ObjectChatCompletion {
		return fmt.Errorf("object must be %q", ObjectChatCompletion)
	}
	if r.Created < 0 {
		return fmt.Errorf("created must be a non-negative integer epoch timestamp")
	}
	if len(r.Choices) == 0 {
		return fmt.Errorf("choices must contain at least one item")
	}
	for i := range r.Choices {
		if err := r.Choices[i].Validate(); err != nil {
			return fmt.Errorf("choices[%d]: %w", i, err)
		}
	}
	return r.Usage.Validate()
}

// StreamDelta carries the incremental content of a stream chunk.
type StreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamChoice is a choice inside a stream chunk. FinishReason serializes
// as null until the final chunk.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// StreamChunk is one incremental unit of a streamed chat completion.
// Chunks are transient and never persisted.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}
