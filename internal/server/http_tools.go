package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/lowcode/internal/botexec"
	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/tools"
)

type toolInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Type        *model.ToolType  `json:"type"`
	Config      *json.RawMessage `json:"config"`
}

func (in toolInput) apply(t *model.BotTool) {
	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Type != nil {
		t.Type = *in.Type
	}
	if in.Config != nil {
		t.Config = *in.Config
	}
	if len(t.Config) == 0 {
		t.Config = json.RawMessage(`{}`)
	}
}

// handleListTools handles GET /api/tools.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	list, total, err := s.store.ListTools(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	writeList(w, "tools", list, total)
}

// handleCreateTool handles POST /api/tools.
func (s *Server) handleCreateTool(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in toolInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	t := &model.BotTool{ID: idgen.MustGenerate(idgen.PrefixTool)}
	in.apply(t)
	if err := model.ValidateTool(t); err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	if err := s.store.CreateTool(r.Context(), t); err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	s.record(r.Context(), events.TopicToolCreated, t.ID, uid, map[string]any{"tool": t})
	writeJSON(w, http.StatusCreated, t)
}

// handleGetTool handles GET /api/tools/{id}.
func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	t, err := s.store.GetTool(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleUpdateTool handles PATCH /api/tools/{id}.
func (s *Server) handleUpdateTool(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in toolInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	t, err := s.store.GetTool(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	in.apply(t)
	if err := model.ValidateTool(t); err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	if err := s.store.UpdateTool(r.Context(), t); err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	s.record(r.Context(), events.TopicToolUpdated, t.ID, uid, map[string]any{"tool": t})
	writeJSON(w, http.StatusOK, t)
}

// handleDeleteTool handles DELETE /api/tools/{id}.
func (s *Server) handleDeleteTool(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := s.store.DeleteTool(r.Context(), id); err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	s.record(r.Context(), events.TopicToolDeleted, id, uid, map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

type executeToolInput struct {
	Input json.RawMessage `json:"input"`
}

type executeToolResponse struct {
	ToolID string `json:"tool_id"`
	tools.Result
	Error string `json:"error,omitempty"`
}

// handleExecuteTool handles POST /api/tools/{id}/execute. A tool that runs
// but fails (non-2xx, non-zero exit) answers 200 with "error" set; config
// problems and disabled tool types are client errors.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in executeToolInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	t, err := s.store.GetTool(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	args, err := tools.ParseArguments(in.Input)
	if err != nil {
		s.fail(w, r, err, "tool")
		return
	}
	res, err := s.tools.Execute(r.Context(), t, args)
	if err != nil && (errors.Is(err, tools.ErrDisabled) || errors.Is(err, tools.ErrInvalidInput)) {
		s.fail(w, r, err, "tool")
		return
	}
	out := executeToolResponse{ToolID: t.ID, Result: res}
	if err != nil {
		out.Error = err.Error()
	}
	s.record(r.Context(), events.TopicToolExecuted, t.ID, uid, botexec.ToolExecuted{
		ToolID: t.ID,
		OK:     err == nil,
		Error:  out.Error,
	})
	writeJSON(w, http.StatusOK, out)
}
