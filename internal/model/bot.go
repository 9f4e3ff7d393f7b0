package model

import (
	"encoding/json"
	"time"
)

// Bot is a configured LLM persona a user can start, stop and chat with.
type Bot struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Model        string    `json:"model,omitempty"`
	PromptID     string    `json:"prompt_id,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Temperature  float64   `json:"temperature"`
	ToolIDs      []string  `json:"tool_ids"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToolType selects how a BotTool is executed.
type ToolType string

const (
	ToolTypeHTTP  ToolType = "http"
	ToolTypeShell ToolType = "shell"
	ToolTypeFile  ToolType = "file"
)

// IsValid checks whether the tool type is a known value.
func (t ToolType) IsValid() bool {
	switch t {
	case ToolTypeHTTP, ToolTypeShell, ToolTypeFile:
		return true
	}
	return false
}

// BotTool is an action a bot may invoke while answering.
type BotTool struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        ToolType        `json:"type"`
	Config      json.RawMessage `json:"config,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
