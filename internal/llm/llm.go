// Package llm talks to the generative model that writes bot replies.
package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotConfigured is returned by providers that have no credentials.
var ErrNotConfigured = errors.New("llm provider is not configured")

// Message roles understood by chat-completion providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role       string
	Content    string
	ToolCallID string     // set on tool results
	ToolCalls  []ToolCall // set on assistant turns that requested tools
}

// ToolCall is the model's request to run a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolSpec advertises a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage // JSON Schema object
}

// Request is a single completion call.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []ToolSpec
	Temperature float64
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the model's reply. Either Content or ToolCalls is populated.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Usage        Usage
}

// Provider completes chat conversations.
type Provider interface {
	Complete(ctx context.Context, req Request) (Response, error)
	// Configured reports whether Complete can succeed at all.
	Configured() bool
}

// Unconfigured is the Provider used when no API key is set.
type Unconfigured struct{}

func (Unconfigured) Complete(context.Context, Request) (Response, error) {
	return Response{}, ErrNotConfigured
}

func (Unconfigured) Configured() bool { return false }
