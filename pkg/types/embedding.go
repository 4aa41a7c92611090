package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// EmbeddingInput is the union of input forms accepted by the embeddings
// endpoint: a single string, an array of strings, an array of token IDs,
// or an array of token-ID arrays. Exactly one field is set after decoding;
// mixed-type arrays fail to decode and surface as a validation error.
type EmbeddingInput struct {
	Text       *string  `json:"-"`
	Texts      []string `json:"-"`
	Tokens     []int    `json:"-"`
	TokensList [][]int  `json:"-"`
}

// UnmarshalJSON infers the input type in order:
// string -> []string -> []int -> [][]int.
func (e *EmbeddingInput) UnmarshalJSON(data []byte) error {
	e.Text = nil
	e.Texts = nil
	e.Tokens = nil
	e.TokensList = nil

	if string(data) == "null" {
		return fmt.Errorf("input must not be null")
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Text = &s
		return nil
	}

	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		e.Texts = ss
		return nil
	}

	var tokens []int
	if err := json.Unmarshal(data, &tokens); err == nil {
		e.Tokens = tokens
		return nil
	}

	var tokensList [][]int
	if err := json.Unmarshal(data, &tokensList); err == nil {
		e.TokensList = tokensList
		return nil
	}

	return fmt.Errorf("input must be a string, []string, []int, or [][]int")
}

// MarshalJSON serializes whichever form is set.
func (e EmbeddingInput) MarshalJSON() ([]byte, error) {
	switch {
	case e.Text != nil:
		return json.Marshal(*e.Text)
	case e.Texts != nil:
		return json.Marshal(e.Texts)
	case e.Tokens != nil:
		return json.Marshal(e.Tokens)
	case e.TokensList != nil:
		return json.Marshal(e.TokensList)
	}
	return nil, fmt.Errorf("embedding input is empty")
}

// Validate checks that exactly one non-empty input form is present.
func (e *EmbeddingInput) Validate() error {
	switch {
	case e.Text != nil:
		return nil
	case e.Texts != nil:
		if len(e.Texts) == 0 {
			return fmt.Errorf("input array must not be empty")
		}
		return nil
	case e.Tokens != nil:
		if len(e.Tokens) == 0 {
			return fmt.Errorf("token array must not be empty")
		}
		return nil
	case e.TokensList != nil:
		if len(e.TokensList) == 0 {
			return fmt.Errorf("token list must not be empty")
		}
		for i, tokens := range e.TokensList {
			if len(tokens) == 0 {
				return fmt.Errorf("token list contains an empty array at index %d", i)
			}
		}
		return nil
	}
	return fmt.Errorf("input must be set")
}

// Strings normalizes the input to a list of strings: token IDs are
// stringified and space-joined, one output string per token array.
func (e *EmbeddingInput) Strings() []string {
	switch {
	case e.Text != nil:
		return []string{*e.Text}
	case e.Texts != nil:
		return e.Texts
	case e.Tokens != nil:
		return []string{joinTokens(e.Tokens)}
	case e.TokensList != nil:
		out := make([]string, 0, len(e.TokensList))
		for _, tokens := range e.TokensList {
			out = append(out, joinTokens(tokens))
		}
		return out
	}
	return nil
}

func joinTokens(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, tok := range tokens {
		parts[i] = strconv.Itoa(tok)
	}
	return strings.Join(parts, " ")
}

// CreateEmbeddingsRequest is the canonical embeddings request. Unknown
// fields are ignored for forward compatibility.
type CreateEmbeddingsRequest struct {
	Model          string         `json:"model"`
	Input          EmbeddingInput `json:"input"`
	EncodingFormat string         `json:"encoding_format,omitempty"`
	Dimensions     int            `json:"dimensions,omitempty"`
	User           string         `json:"user,omitempty"`
}

// Validate enforces the canonical embeddings request invariants.
func (r *CreateEmbeddingsRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("model must be a non-empty string")
	}
	if r.Dimensions < 0 {
		return fmt.Errorf("dimensions must be greater than zero")
	}
	return r.Input.Validate()
}

// EmbeddingItem is a single embedding vector with its input index.
type EmbeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// ObjectEmbedding is the literal object tag on embedding items.
const ObjectEmbedding = "embedding"

// Validate checks the vector is non-empty and the index non-negative.
func (i *EmbeddingItem) Validate() error {
	if len(i.Embedding) == 0 {
		return fmt.Errorf("embedding must contain at least one float")
	}
	if i.Index < 0 {
		return fmt.Errorf("embedding index must be non-negative")
	}
	return nil
}

// EmbeddingUsage is token accounting for embedding requests.
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// CreateEmbeddingsResponse is the canonical embeddings response.
type CreateEmbeddingsResponse struct {
	Object string          `json:"object"`
	Data   []EmbeddingItem `json:"data"`
	Model  string          `json:"model"`
	Usage  EmbeddingUsage  `json:"usage"`
}

// Validate enforces a non-empty data sequence.
func (r *CreateEmbeddingsResponse) Validate() error {
	if len(r.Data) == 0 {
		return fmt.Errorf("data must contain at least one embedding")
	}
	for i := range r.Data {
		if err := r.Data[i].Validate(); err != nil {
			return fmt.Errorf("data[%d]: %w", i, err)
		}
	}
	return nil
}
