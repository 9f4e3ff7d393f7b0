package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/model"
)

type botInput struct {
	Name         *string   `json:"name"`
	Description  *string   `json:"description"`
	Model        *string   `json:"model"`
	PromptID     *string   `json:"prompt_id"`
	SystemPrompt *string   `json:"system_prompt"`
	Temperature  *float64  `json:"temperature"`
	ToolIDs      *[]string `json:"tool_ids"`
}

func (in botInput) apply(b *model.Bot) {
	if in.Name != nil {
		b.Name = *in.Name
	}
	if in.Description != nil {
		b.Description = *in.Description
	}
	if in.Model != nil {
		b.Model = *in.Model
	}
	if in.PromptID != nil {
		b.PromptID = *in.PromptID
	}
	if in.SystemPrompt != nil {
		b.SystemPrompt = *in.SystemPrompt
	}
	if in.Temperature != nil {
		b.Temperature = *in.Temperature
	}
	if in.ToolIDs != nil {
		b.ToolIDs = *in.ToolIDs
	}
	if b.ToolIDs == nil {
		b.ToolIDs = []string{}
	}
}

// checkBotRefs verifies the prompt and tools a bot points at exist.
func (s *Server) checkBotRefs(ctx context.Context, b *model.Bot) error {
	if b.PromptID != "" {
		if _, err := s.store.GetPrompt(ctx, b.PromptID); err != nil {
			return referenceError(err, "prompt_id")
		}
	}
	if len(b.ToolIDs) == 0 {
		return nil
	}
	found, err := s.store.GetToolsByIDs(ctx, b.ToolIDs)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(found))
	for _, t := range found {
		known[t.ID] = true
	}
	for _, id := range b.ToolIDs {
		if !known[id] {
			return inputError("tool_ids: tool " + strconv.Quote(id) + " does not exist")
		}
	}
	return nil
}

// ownedBot loads a bot and checks that uid owns it.
func (s *Server) ownedBot(ctx context.Context, id, uid string) (*model.Bot, error) {
	b, err := s.store.GetBot(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != uid {
		return nil, errForbidden
	}
	return b, nil
}

// handleListBots handles GET /api/bots.
func (s *Server) handleListBots(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	opts.OwnerID = uid
	bots, total, err := s.store.ListBots(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	writeList(w, "bots", bots, total)
}

// handleCreateBot handles POST /api/bots.
func (s *Server) handleCreateBot(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in botInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	b := &model.Bot{ID: idgen.MustGenerate(idgen.PrefixBot), OwnerID: uid, Temperature: 0.7}
	in.apply(b)
	if err := model.ValidateBot(b); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	if err := s.checkBotRefs(r.Context(), b); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	if err := s.store.CreateBot(r.Context(), b); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	s.record(r.Context(), events.TopicBotCreated, b.ID, uid, map[string]any{"bot": b})
	writeJSON(w, http.StatusCreated, b)
}

// handleGetBot handles GET /api/bots/{id}.
func (s *Server) handleGetBot(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	b, err := s.ownedBot(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleUpdateBot handles PATCH /api/bots/{id}.
func (s *Server) handleUpdateBot(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in botInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	b, err := s.ownedBot(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	in.apply(b)
	if err := model.ValidateBot(b); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	if err := s.checkBotRefs(r.Context(), b); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	if err := s.store.UpdateBot(r.Context(), b); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	s.record(r.Context(), events.TopicBotUpdated, b.ID, uid, map[string]any{"bot": b})
	writeJSON(w, http.StatusOK, b)
}

// handleDeleteBot handles DELETE /api/bots/{id}.
func (s *Server) handleDeleteBot(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	b, err := s.ownedBot(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	if err := s.store.DeleteBot(r.Context(), b.ID); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	s.record(r.Context(), events.TopicBotDeleted, b.ID, uid, map[string]any{"id": b.ID})
	w.WriteHeader(http.StatusNoContent)
}

// --- execution ---

// handleStartBot handles POST /api/bots/{id}/start.
func (s *Server) handleStartBot(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	inst, err := s.bots.Start(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// handleStopBot handles POST /api/bots/{id}/stop.
func (s *Server) handleStopBot(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	inst, err := s.bots.Stop(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// handleBotStatus handles GET /api/bots/{id}/status.
func (s *Server) handleBotStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	inst, err := s.bots.Status(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type chatInput struct {
	Message string `json:"message"`
}

// handleChat handles POST /api/bots/{id}/chat.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in chatInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	res, err := s.bots.Chat(r.Context(), r.PathValue("id"), uid, in.Message)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleHistory handles GET /api/bots/{id}/history?limit=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	msgs, err := s.bots.History(r.Context(), r.PathValue("id"), uid, opts.Limit)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	writeList(w, "messages", msgs, len(msgs))
}

// handlePresence handles GET /api/bots/{id}/presence?stale=<duration>.
func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	b, err := s.ownedBot(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "bot")
		return
	}
	var stale time.Duration
	if v := r.URL.Query().Get("stale"); v != "" {
		if stale, err = time.ParseDuration(v); err != nil || stale < 0 {
			writeError(w, http.StatusBadRequest, "stale must be a duration such as 5m")
			return
		}
	}
	roster := s.presence.Roster(b.ID, stale)
	writeJSON(w, http.StatusOK, map[string]any{"participants": roster, "total": len(roster)})
}

// handleWebSocket handles GET /api/ws.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	s.hub.ServeWS(w, r, uid)
}
