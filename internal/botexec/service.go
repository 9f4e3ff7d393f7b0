// Package botexec runs bots: per-user instance lifecycle, chat turns with
// the LLM and its tool calls, and the instance health monitor.
package botexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/llm"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/tools"
)

var (
	ErrAlreadyRunning = errors.New("bot already running")
	ErrNotRunning     = errors.New("bot is not running")
	ErrBusy           = errors.New("bot is stopping")
	ErrEmptyMessage   = errors.New("message is required")
	ErrForbidden      = errors.New("bot belongs to another user")
	// ErrUpstream wraps failures of the LLM provider.
	ErrUpstream = errors.New("llm request failed")
)

// Store is the persistence the service needs.
type Store interface {
	GetBot(ctx context.Context, id string) (*model.Bot, error)
	GetPrompt(ctx context.Context, id string) (*model.Prompt, error)
	GetToolsByIDs(ctx context.Context, ids []string) ([]*model.BotTool, error)
	GetInstance(ctx context.Context, botID, userID string) (*model.BotInstance, error)
	SaveInstance(ctx context.Context, inst *model.BotInstance) error
	StampHealthy(ctx context.Context, at time.Time) (int64, error)
	FailStaleInstances(ctx context.Context, before time.Time, reason string) ([]*model.BotInstance, error)
	CreateMessage(ctx context.Context, m *model.ChatMessage) error
	ListMessages(ctx context.Context, botID, userID string, limit int) ([]*model.ChatMessage, error)
}

// ToolRunner executes a bot tool.
type ToolRunner interface {
	Execute(ctx context.Context, tool *model.BotTool, input map[string]any) (tools.Result, error)
}

// Broadcaster pushes chat messages to live listeners.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg *model.ChatMessage)
}

// Recorder writes audit events.
type Recorder interface {
	Record(ctx context.Context, topic, resourceID, actor string, payload any)
}

// Options configures a Service.
type Options struct {
	Store    Store
	Provider llm.Provider
	Tools    ToolRunner
	Hub      Broadcaster // optional
	Recorder Recorder    // optional
	Logger   *slog.Logger
}

// Service coordinates bot instances and chat.
type Service struct {
	store    Store
	provider llm.Provider
	tools    ToolRunner
	hub      Broadcaster
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New returns a Service.
func New(opts Options) *Service {
	s := &Service{
		store:    opts.Store,
		provider: opts.Provider,
		tools:    opts.Tools,
		hub:      opts.Hub,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.provider == nil {
		s.provider = llm.Unconfigured{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Service) record(ctx context.Context, topic, resourceID, actor string, payload any) {
	if s.recorder != nil {
		s.recorder.Record(ctx, topic, resourceID, actor, payload)
	}
}

func (s *Service) broadcast(ctx context.Context, msg *model.ChatMessage) {
	if s.hub != nil {
		s.hub.Broadcast(ctx, msg)
	}
}

// InstanceEvent is the payload of bot lifecycle events.
type InstanceEvent struct {
	Instance *model.BotInstance `json:"instance"`
}

// loadInstance returns the stored instance or a fresh stopped one.
func (s *Service) loadInstance(ctx context.Context, botID, userID string) (*model.BotInstance, bool, error) {
	inst, err := s.store.GetInstance(ctx, botID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.BotInstance{BotID: botID, UserID: userID, Status: model.InstanceStopped}, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get instance: %w", err)
	}
	return inst, true, nil
}

func (s *Service) transition(ctx context.Context, inst *model.BotInstance, next model.InstanceStatus) error {
	if !inst.Status.CanTransition(next) {
		return fmt.Errorf("invalid transition %s -> %s", inst.Status, next)
	}
	inst.Status = next
	if err := s.store.SaveInstance(ctx, inst); err != nil {
		return fmt.Errorf("save instance: %w", err)
	}
	return nil
}

// ownedBot loads botID and checks that userID owns it.
func (s *Service) ownedBot(ctx context.Context, botID, userID string) (*model.Bot, error) {
	b, err := s.store.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}

// Start moves the user's instance of botID to running.
func (s *Service) Start(ctx context.Context, botID, userID string) (*model.BotInstance, error) {
	if _, err := s.ownedBot(ctx, botID, userID); err != nil {
		return nil, err
	}
	inst, _, err := s.loadInstance(ctx, botID, userID)
	if err != nil {
		return nil, err
	}
	switch {
	case inst.Status.IsActive():
		return inst, ErrAlreadyRunning
	case inst.Status == model.InstanceStopping:
		return inst, ErrBusy
	}
	if inst.ID == "" {
		inst.ID = idgen.MustGenerate(idgen.PrefixInstance)
	}

	now := s.now()
	inst.LastError = ""
	inst.StartedAt = &now
	inst.StoppedAt = nil
	if err := s.transition(ctx, inst, model.InstanceStarting); err != nil {
		return nil, err
	}

	if !s.provider.Configured() {
		inst.LastError = llm.ErrNotConfigured.Error()
		if err := s.transition(ctx, inst, model.InstanceError); err != nil {
			return nil, err
		}
		s.record(ctx, events.TopicBotFailed, botID, userID, InstanceEvent{Instance: inst})
		return inst, llm.ErrNotConfigured
	}

	inst.LastHealthAt = &now
	if err := s.transition(ctx, inst, model.InstanceRunning); err != nil {
		return nil, err
	}
	s.logger.Info("bot started", "bot", botID, "user", userID, "instance", inst.ID)
	s.record(ctx, events.TopicBotStarted, botID, userID, InstanceEvent{Instance: inst})
	return inst, nil
}

// Stop moves a running instance to stopped.
func (s *Service) Stop(ctx context.Context, botID, userID string) (*model.BotInstance, error) {
	if _, err := s.ownedBot(ctx, botID, userID); err != nil {
		return nil, err
	}
	inst, found, err := s.loadInstance(ctx, botID, userID)
	if err != nil {
		return nil, err
	}
	if !found || inst.Status != model.InstanceRunning {
		return inst, ErrNotRunning
	}
	if err := s.transition(ctx, inst, model.InstanceStopping); err != nil {
		return nil, err
	}
	now := s.now()
	inst.StoppedAt = &now
	if err := s.transition(ctx, inst, model.InstanceStopped); err != nil {
		return nil, err
	}
	s.logger.Info("bot stopped", "bot", botID, "user", userID, "instance", inst.ID)
	s.record(ctx, events.TopicBotStopped, botID, userID, InstanceEvent{Instance: inst})
	return inst, nil
}

// Status returns the user's instance, or a stopped placeholder when the
// bot was never started.
func (s *Service) Status(ctx context.Context, botID, userID string) (*model.BotInstance, error) {
	if _, err := s.ownedBot(ctx, botID, userID); err != nil {
		return nil, err
	}
	inst, _, err := s.loadInstance(ctx, botID, userID)
	return inst, err
}
