package model

import (
	"encoding/json"
	"time"
)

// Prompt is a named, versioned prompt template.
type Prompt struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	CurrentVersion int       `json:"current_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Latest is populated by queries, not stored in the prompts table.
	Latest *PromptVersion `json:"latest,omitempty"`
}

// PromptVersion is an immutable revision of a prompt's templates.
type PromptVersion struct {
	PromptID       string          `json:"prompt_id"`
	Version        int             `json:"version"`
	SystemTemplate string          `json:"system_template,omitempty"`
	UserTemplate   string          `json:"user_template,omitempty"`
	Variables      json.RawMessage `json:"variables,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
