// Package client provides the interface the lc CLI uses to talk to the
// lowcode server and an HTTP/JSON implementation of it.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// Client is implemented by HTTPClient and by fakes in CLI tests.
type Client interface {
	Health(ctx context.Context) (string, error)

	// Accounts
	Register(ctx context.Context, email, password, name string) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Me(ctx context.Context) (*model.User, error)

	// Applications
	ListApplications(ctx context.Context, opts *ListOptions) (*ApplicationList, error)
	CreateApplication(ctx context.Context, req *ApplicationRequest) (*model.Application, error)
	GetApplication(ctx context.Context, id string) (*model.Application, error)
	DeleteApplication(ctx context.Context, id string) error

	// Schemas
	ListSchemas(ctx context.Context, opts *ListOptions) (*SchemaList, error)
	CreateSchema(ctx context.Context, req *SchemaRequest) (*model.Schema, error)
	GetSchema(ctx context.Context, id string) (*model.Schema, error)
	UpdateSchema(ctx context.Context, id string, req *SchemaRequest) (*model.Schema, error)
	DeleteSchema(ctx context.Context, id string) error

	// Entities
	ListEntities(ctx context.Context, opts *ListOptions) (*EntityList, error)
	CreateEntity(ctx context.Context, schemaID string, data json.RawMessage) (*model.Entity, error)
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	UpdateEntity(ctx context.Context, id string, data json.RawMessage) (*model.Entity, error)
	DeleteEntity(ctx context.Context, id string) error

	// Tools
	ListTools(ctx context.Context, opts *ListOptions) (*ToolList, error)
	CreateTool(ctx context.Context, req *ToolRequest) (*model.BotTool, error)
	DeleteTool(ctx context.Context, id string) error
	ExecuteTool(ctx context.Context, id string, input json.RawMessage) (*ToolResult, error)

	// Bots
	ListBots(ctx context.Context, opts *ListOptions) (*BotList, error)
	CreateBot(ctx context.Context, req *BotRequest) (*model.Bot, error)
	GetBot(ctx context.Context, id string) (*model.Bot, error)
	DeleteBot(ctx context.Context, id string) error
	StartBot(ctx context.Context, id string) (*model.BotInstance, error)
	StopBot(ctx context.Context, id string) (*model.BotInstance, error)
	BotStatus(ctx context.Context, id string) (*model.BotInstance, error)
	Chat(ctx context.Context, id, message string) (*ChatResult, error)
	History(ctx context.Context, id string, limit int) ([]*model.ChatMessage, error)

	// Builds
	RequestBuild(ctx context.Context, applicationID string) (*model.Build, error)
	ListBuilds(ctx context.Context, applicationID string) (*BuildList, error)
	GetBuild(ctx context.Context, id string) (*model.Build, error)

	Close() error
}

// Session is returned by Register and Login.
type Session struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// ListOptions holds the paging and scoping query parameters of list calls.
// Zero fields are omitted.
type ListOptions struct {
	ApplicationID string
	SchemaID      string
	Search        string
	Limit         int
	Offset        int
}

// ApplicationRequest creates an application.
type ApplicationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SchemaRequest creates or replaces a schema's definition.
type SchemaRequest struct {
	ApplicationID string           `json:"application_id,omitempty"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Fields        []model.FieldDef `json:"fields"`
}

// ToolRequest creates a bot tool.
type ToolRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"type"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// ToolResult is the response of ExecuteTool. Error is set when the tool ran
// but failed.
type ToolResult struct {
	ToolID    string        `json:"tool_id"`
	Output    string        `json:"output"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// BotRequest creates a bot.
type BotRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Model        string   `json:"model,omitempty"`
	PromptID     string   `json:"prompt_id,omitempty"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	ToolIDs      []string `json:"tool_ids,omitempty"`
}

// ChatResult is one chat turn: the stored user message, any tool runs and
// the bot's reply.
type ChatResult struct {
	Message  *model.ChatMessage   `json:"message"`
	Reply    *model.ChatMessage   `json:"reply"`
	ToolRuns []*model.ChatMessage `json:"tool_runs"`
}

// ApplicationList is a page of applications.
type ApplicationList struct {
	Applications []*model.Application `json:"applications"`
	Total        int                  `json:"total"`
}

// SchemaList is a page of schemas.
type SchemaList struct {
	Schemas []*model.Schema `json:"schemas"`
	Total   int             `json:"total"`
}

// EntityList is a page of entities.
type EntityList struct {
	Entities []*model.Entity `json:"entities"`
	Total    int             `json:"total"`
}

// ToolList is a page of tools.
type ToolList struct {
	Tools []*model.BotTool `json:"tools"`
	Total int              `json:"total"`
}

// BotList is a page of bots.
type BotList struct {
	Bots  []*model.Bot `json:"bots"`
	Total int          `json:"total"`
}

// BuildList is a page of builds.
type BuildList struct {
	Builds []*model.Build `json:"builds"`
	Total  int            `json:"total"`
}
