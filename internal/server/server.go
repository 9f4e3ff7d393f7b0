// Package server implements the REST API, the event stream and the gRPC
// health endpoint.
package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alfredjeanlab/lowcode/internal/auth"
	"github.com/alfredjeanlab/lowcode/internal/botexec"
	"github.com/alfredjeanlab/lowcode/internal/chat"
	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/llm"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/presence"
	"github.com/alfredjeanlab/lowcode/internal/queue"
	"github.com/alfredjeanlab/lowcode/internal/store"
	"github.com/alfredjeanlab/lowcode/internal/tools"
)

// ToolRunner executes a tool outside of a chat, for POST /api/tools/{id}/execute.
type ToolRunner interface {
	Execute(ctx context.Context, tool *model.BotTool, input map[string]any) (tools.Result, error)
}

// Options wires a Server. Only Store and Issuer are required.
type Options struct {
	Store    store.Store
	Issuer   *auth.Issuer
	Recorder *events.Recorder
	Provider llm.Provider // used when Bots is nil
	Tools    ToolRunner
	Bots     *botexec.Service
	Hub      *chat.Hub
	Presence *presence.Tracker
	Queue    queue.Queue
	Logger   *slog.Logger
}

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	store    store.Store
	issuer   *auth.Issuer
	recorder *events.Recorder
	tools    ToolRunner
	bots     *botexec.Service
	hub      *chat.Hub
	presence *presence.Tracker
	queue    queue.Queue
	logger   *slog.Logger
	sseHub   *sseHub
}

// New returns a Server. Missing optional dependencies get working defaults:
// a recorder with no bus, a tool executor with shell disabled, an
// unconfigured LLM provider and a queue that rejects builds.
func New(opts Options) *Server {
	s := &Server{
		store:    opts.Store,
		issuer:   opts.Issuer,
		recorder: opts.Recorder,
		tools:    opts.Tools,
		bots:     opts.Bots,
		hub:      opts.Hub,
		presence: opts.Presence,
		queue:    opts.Queue,
		logger:   opts.Logger,
		sseHub:   newSSEHub(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.recorder == nil {
		s.recorder = events.NewRecorder(opts.Store, nil)
	}
	s.recorder.AddSink(s.broadcastEvent)
	if s.tools == nil {
		s.tools = tools.New(tools.Config{})
	}
	if s.presence == nil {
		s.presence = presence.New()
	}
	if s.hub == nil {
		s.hub = chat.NewHub(chat.Config{}, s.presence, nil)
	}
	if s.queue == nil {
		s.queue = queue.Unavailable{}
	}
	if s.bots == nil {
		s.bots = botexec.New(botexec.Options{
			Store:    opts.Store,
			Provider: opts.Provider,
			Tools:    s.tools,
			Hub:      s.hub,
			Recorder: s.recorder,
			Logger:   s.logger,
		})
	}
	return s
}

// record persists, publishes and streams a mutation event.
func (s *Server) record(ctx context.Context, topic, resourceID, actor string, payload any) {
	s.recorder.Record(ctx, topic, resourceID, actor, payload)
}

// inputError indicates invalid user input and maps to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// errForbidden is returned when a caller touches another user's resource.
var errForbidden = errors.New("forbidden")

// statusFor maps err to an HTTP status and a client-safe message. resource
// names the thing being looked up for 404 messages.
func statusFor(err error, resource string) (int, string) {
	var ie inputError
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ie):
		return http.StatusBadRequest, ie.Error()
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, resource + " not found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, resource + " already exists"
	case errors.Is(err, store.ErrInvalidReference):
		return http.StatusBadRequest, "referenced record does not exist"
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, errForbidden), errors.Is(err, botexec.ErrForbidden):
		return http.StatusForbidden, "you do not have access to this " + resource
	case errors.Is(err, botexec.ErrAlreadyRunning),
		errors.Is(err, botexec.ErrNotRunning),
		errors.Is(err, botexec.ErrBusy):
		return http.StatusConflict, err.Error()
	case errors.Is(err, botexec.ErrEmptyMessage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, tools.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, tools.ErrDisabled):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, botexec.ErrUpstream):
		return http.StatusBadGateway, "language model request failed"
	case errors.Is(err, llm.ErrNotConfigured), errors.Is(err, queue.ErrUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// fail writes the error response for err and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, resource string) {
	code, msg := statusFor(err, resource)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID(r.Context()),
			"status", code,
			"error", err,
		)
	}
	writeError(w, code, msg)
}
