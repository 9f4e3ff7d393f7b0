package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

var (
	// ErrConflict is returned when a write would violate a uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrInvalidReference is returned when a write names a row that does not exist.
	ErrInvalidReference = errors.New("invalid reference")
)

// Store defines the persistence interface for the platform. Lookups of
// missing rows return sql.ErrNoRows.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserSettings(ctx context.Context, id string, settings json.RawMessage) (*model.User, error)

	// Applications
	CreateApplication(ctx context.Context, app *model.Application) error
	GetApplication(ctx context.Context, id string) (*model.Application, error)
	ListApplications(ctx context.Context, opts model.ListOptions) ([]*model.Application, int, error)
	UpdateApplication(ctx context.Context, app *model.Application) error
	DeleteApplication(ctx context.Context, id string) error

	// Components
	CreateComponent(ctx context.Context, c *model.Component) error
	GetComponent(ctx context.Context, id string) (*model.Component, error)
	ListComponents(ctx context.Context, applicationID string) ([]*model.Component, error)
	DeleteComponent(ctx context.Context, id string) error

	// Features
	CreateFeature(ctx context.Context, f *model.Feature) error
	GetFeature(ctx context.Context, id string) (*model.Feature, error)
	ListFeatures(ctx context.Context, opts model.ListOptions) ([]*model.Feature, int, error)
	UpdateFeature(ctx context.Context, f *model.Feature) error
	DeleteFeature(ctx context.Context, id string) error

	// Schemas
	CreateSchema(ctx context.Context, s *model.Schema) error
	GetSchema(ctx context.Context, id string) (*model.Schema, error)
	ListSchemas(ctx context.Context, opts model.ListOptions) ([]*model.Schema, int, error)
	UpdateSchema(ctx context.Context, s *model.Schema) error
	DeleteSchema(ctx context.Context, id string) error

	// Entities
	CreateEntity(ctx context.Context, e *model.Entity) error
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	ListEntities(ctx context.Context, opts model.ListOptions) ([]*model.Entity, int, error)
	UpdateEntity(ctx context.Context, e *model.Entity) error
	DeleteEntity(ctx context.Context, id string) error

	// Relationships
	CreateRelationship(ctx context.Context, r *model.Relationship) error
	GetRelationship(ctx context.Context, id string) (*model.Relationship, error)
	ListRelationships(ctx context.Context, opts model.ListOptions) ([]*model.Relationship, int, error)
	DeleteRelationship(ctx context.Context, id string) error

	// Prompts
	CreatePrompt(ctx context.Context, p *model.Prompt, first *model.PromptVersion) error
	GetPrompt(ctx context.Context, id string) (*model.Prompt, error)
	ListPrompts(ctx context.Context, opts model.ListOptions) ([]*model.Prompt, int, error)
	DeletePrompt(ctx context.Context, id string) error
	AddPromptVersion(ctx context.Context, v *model.PromptVersion) error
	GetPromptVersion(ctx context.Context, promptID string, version int) (*model.PromptVersion, error)
	ListPromptVersions(ctx context.Context, promptID string) ([]*model.PromptVersion, error)

	// Tools
	CreateTool(ctx context.Context, t *model.BotTool) error
	GetTool(ctx context.Context, id string) (*model.BotTool, error)
	GetToolsByIDs(ctx context.Context, ids []string) ([]*model.BotTool, error)
	ListTools(ctx context.Context, opts model.ListOptions) ([]*model.BotTool, int, error)
	UpdateTool(ctx context.Context, t *model.BotTool) error
	DeleteTool(ctx context.Context, id string) error

	// Bots
	CreateBot(ctx context.Context, b *model.Bot) error
	GetBot(ctx context.Context, id string) (*model.Bot, error)
	ListBots(ctx context.Context, opts model.ListOptions) ([]*model.Bot, int, error)
	UpdateBot(ctx context.Context, b *model.Bot) error
	DeleteBot(ctx context.Context, id string) error

	// Bot instances
	GetInstance(ctx context.Context, botID, userID string) (*model.BotInstance, error)
	SaveInstance(ctx context.Context, inst *model.BotInstance) error
	StampHealthy(ctx context.Context, at time.Time) (int64, error)
	FailStaleInstances(ctx context.Context, before time.Time, reason string) ([]*model.BotInstance, error)

	// Chat messages
	CreateMessage(ctx context.Context, m *model.ChatMessage) error
	ListMessages(ctx context.Context, botID, userID string, limit int) ([]*model.ChatMessage, error)

	// Workflows
	CreateWorkflow(ctx context.Context, w *model.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*model.Workflow, error)
	ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.Workflow, int, error)
	UpdateWorkflow(ctx context.Context, w *model.Workflow) error
	DeleteWorkflow(ctx context.Context, id string) error
	AddWorkflowAction(ctx context.Context, a *model.WorkflowAction) error
	DeleteWorkflowAction(ctx context.Context, workflowID, actionID string) error

	// Builds
	CreateBuild(ctx context.Context, b *model.Build) error
	GetBuild(ctx context.Context, id string) (*model.Build, error)
	ListBuilds(ctx context.Context, opts model.ListOptions) ([]*model.Build, int, error)
	UpdateBuild(ctx context.Context, b *model.Build) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context, opts model.ListOptions) ([]*model.Event, int, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
