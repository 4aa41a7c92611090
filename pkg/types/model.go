package types

import (
	"fmt"
	"strings"
)

// ObjectList is the literal object tag on list responses.
const ObjectList = "list"

// ObjectModel is the literal object tag on model records.
const ObjectModel = "model"

// ObjectModelPermission is the literal object tag on permission records.
const ObjectModelPermission = "model_permission"

// ModelPermission describes what a caller may do with a model.
type ModelPermission struct {
	ID                 string  `json:"id"`
	Object             string  `json:"object"`
	Created            int64   `json:"created"`
	AllowCreateEngine  bool    `json:"allow_create_engine"`
	AllowSampling      bool    `json:"allow_sampling"`
	AllowLogprobs      bool    `json:"allow_logprobs"`
	AllowSearchIndices bool    `json:"allow_search_indices"`
	AllowView          bool    `json:"allow_view"`
	AllowFineTuning    bool    `json:"allow_fine_tuning"`
	Organization       *string `json:"organization"`
	Group              *string `json:"group"`
	IsBlocking         bool    `json:"is_blocking"`
}

// Validate checks the permission record invariants.
func (p *ModelPermission) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("id must be a non-empty string")
	}
	if p.Created < 0 {
		return fmt.Errorf("created must be non-negative")
	}
	return nil
}

// Model is a single model listing record.
type Model struct {
	ID         string            `json:"id"`
	Object     string            `json:"object"`
	Created    int64             `json:"created"`
	OwnedBy    string            `json:"owned_by"`
	Permission []ModelPermission `json:"permission"`
	Root       *string           `json:"root"`
	Parent     *string           `json:"parent"`
}

// Validate checks the model record invariants.
func (m *Model) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("id must be a non-empty string")
	}
	if strings.TrimSpace(m.OwnedBy) == "" {
		return fmt.Errorf("owned_by must be a non-empty string")
	}
	if m.Created < 0 {
		return fmt.Errorf("created must be non-negative")
	}
	if len(m.Permission) == 0 {
		return fmt.Errorf("permission must contain at least one item")
	}
	for i := range m.Permission {
		if err := m.Permission[i].Validate(); err != nil {
			return fmt.Errorf("permission[%d]: %w", i, err)
		}
	}
	return nil
}

// ModelList is the canonical model-listing response.
type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// NewModelList wraps models in the canonical list shape.
func NewModelList(models []Model) *ModelList {
	return &ModelList{Object: ObjectList, Data: models}
}
