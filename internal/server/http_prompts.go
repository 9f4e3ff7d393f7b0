package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/render"
)

type promptVersionInput struct {
	SystemTemplate string          `json:"system_template"`
	UserTemplate   string          `json:"user_template"`
	Variables      json.RawMessage `json:"variables"`
}

func (in promptVersionInput) version(promptID string) *model.PromptVersion {
	v := &model.PromptVersion{
		PromptID:       promptID,
		SystemTemplate: in.SystemTemplate,
		UserTemplate:   in.UserTemplate,
		Variables:      in.Variables,
	}
	if len(v.Variables) == 0 {
		v.Variables = json.RawMessage(`{}`)
	}
	return v
}

type createPromptInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	promptVersionInput
}

// handleListPrompts handles GET /api/prompts.
func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	prompts, total, err := s.store.ListPrompts(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	writeList(w, "prompts", prompts, total)
}

// handleCreatePrompt handles POST /api/prompts. The templates in the body
// become version 1.
func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in createPromptInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	p := &model.Prompt{
		ID:          idgen.MustGenerate(idgen.PrefixPrompt),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
	}
	first := in.version(p.ID)
	if err := model.ValidatePromptVersion(first); err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	if err := s.store.CreatePrompt(r.Context(), p, first); err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	s.record(r.Context(), events.TopicPromptCreated, p.ID, uid, map[string]any{"prompt": p})
	writeJSON(w, http.StatusCreated, p)
}

// handleGetPrompt handles GET /api/prompts/{id}.
func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPrompt(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleDeletePrompt handles DELETE /api/prompts/{id}.
func (s *Server) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := s.store.DeletePrompt(r.Context(), id); err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	s.record(r.Context(), events.TopicPromptDeleted, id, uid, map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// handleListPromptVersions handles GET /api/prompts/{id}/versions.
func (s *Server) handleListPromptVersions(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetPrompt(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	versions, err := s.store.ListPromptVersions(r.Context(), p.ID)
	if err != nil {
		s.fail(w, r, err, "prompt version")
		return
	}
	writeList(w, "versions", versions, len(versions))
}

// handleAddPromptVersion handles POST /api/prompts/{id}/versions.
func (s *Server) handleAddPromptVersion(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in promptVersionInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	v := in.version(r.PathValue("id"))
	if err := model.ValidatePromptVersion(v); err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	if err := s.store.AddPromptVersion(r.Context(), v); err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	s.record(r.Context(), events.TopicPromptVersioned, v.PromptID, uid, map[string]any{"version": v})
	writeJSON(w, http.StatusCreated, v)
}

type renderInput struct {
	Version   int            `json:"version"` // 0 = current
	Variables map[string]any `json:"variables"`
}

// handleRenderPrompt handles POST /api/prompts/{id}/render.
func (s *Server) handleRenderPrompt(w http.ResponseWriter, r *http.Request) {
	var in renderInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	p, err := s.store.GetPrompt(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	v := p.Latest
	if in.Version != 0 && in.Version != p.CurrentVersion {
		if v, err = s.store.GetPromptVersion(r.Context(), p.ID, in.Version); err != nil {
			s.fail(w, r, err, "prompt version")
			return
		}
	}
	if v == nil {
		writeError(w, http.StatusNotFound, "prompt version not found")
		return
	}
	out, err := render.Prompt(v, in.Variables)
	if err != nil {
		s.fail(w, r, err, "prompt")
		return
	}
	writeJSON(w, http.StatusOK, out)
}
