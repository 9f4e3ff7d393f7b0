package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/model"
)

type workflowInput struct {
	ApplicationID string                  `json:"application_id"`
	Name          *string                 `json:"name"`
	Description   *string                 `json:"description"`
	Trigger       *model.WorkflowTrigger  `json:"trigger"`
	Enabled       *bool                   `json:"enabled"`
	Actions       []*model.WorkflowAction `json:"actions"` // create only
}

func (in workflowInput) apply(wf *model.Workflow) {
	if in.Name != nil {
		wf.Name = *in.Name
	}
	if in.Description != nil {
		wf.Description = *in.Description
	}
	if in.Trigger != nil {
		wf.Trigger = *in.Trigger
	}
	if in.Enabled != nil {
		wf.Enabled = *in.Enabled
	}
}

// ownedWorkflow loads a workflow whose application uid owns.
func (s *Server) ownedWorkflow(ctx context.Context, id, uid string) (*model.Workflow, error) {
	wf, err := s.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedApplication(ctx, wf.ApplicationID, uid); err != nil {
		return nil, err
	}
	return wf, nil
}

func newAction(workflowID string, position int, a *model.WorkflowAction) *model.WorkflowAction {
	a.ID = idgen.MustGenerate(idgen.PrefixAction)
	a.WorkflowID = workflowID
	if a.Position == 0 {
		a.Position = position
	}
	if len(a.Config) == 0 {
		a.Config = json.RawMessage(`{}`)
	}
	return a
}

// handleListWorkflows handles GET /api/workflows?application_id=.
func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	opts.ApplicationID = r.URL.Query().Get("application_id")
	if opts.ApplicationID == "" {
		writeError(w, http.StatusBadRequest, "application_id is required")
		return
	}
	if _, err := s.ownedApplication(r.Context(), opts.ApplicationID, uid); err != nil {
		s.fail(w, r, err, "application")
		return
	}
	wfs, total, err := s.store.ListWorkflows(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	writeList(w, "workflows", wfs, total)
}

// handleCreateWorkflow handles POST /api/workflows.
func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in workflowInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	wf := &model.Workflow{
		ID:            idgen.MustGenerate(idgen.PrefixWorkflow),
		ApplicationID: in.ApplicationID,
		Trigger:       model.TriggerManual,
		Enabled:       true,
		Actions:       []*model.WorkflowAction{},
	}
	in.apply(wf)
	for i, a := range in.Actions {
		if a != nil {
			wf.Actions = append(wf.Actions, newAction(wf.ID, i+1, a))
		}
	}
	if err := model.ValidateWorkflow(wf); err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	if _, err := s.ownedApplication(r.Context(), wf.ApplicationID, uid); err != nil {
		s.fail(w, r, referenceError(err, "application_id"), "application")
		return
	}
	if err := s.store.CreateWorkflow(r.Context(), wf); err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	s.record(r.Context(), events.TopicWorkflowCreated, wf.ID, uid, map[string]any{"workflow": wf})
	writeJSON(w, http.StatusCreated, wf)
}

// handleGetWorkflow handles GET /api/workflows/{id}.
func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	wf, err := s.ownedWorkflow(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// handleUpdateWorkflow handles PATCH /api/workflows/{id}. Actions are
// managed through their own routes.
func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in workflowInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	wf, err := s.ownedWorkflow(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	in.apply(wf)
	if err := model.ValidateWorkflow(wf); err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	if err := s.store.UpdateWorkflow(r.Context(), wf); err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	s.record(r.Context(), events.TopicWorkflowUpdated, wf.ID, uid, map[string]any{"workflow": wf})
	writeJSON(w, http.StatusOK, wf)
}

// handleDeleteWorkflow handles DELETE /api/workflows/{id}.
func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	wf, err := s.ownedWorkflow(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	if err := s.store.DeleteWorkflow(r.Context(), wf.ID); err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	s.record(r.Context(), events.TopicWorkflowDeleted, wf.ID, uid, map[string]any{"id": wf.ID})
	w.WriteHeader(http.StatusNoContent)
}

// handleAddWorkflowAction handles POST /api/workflows/{id}/actions. Without
// a position the action is appended.
func (s *Server) handleAddWorkflowAction(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var a model.WorkflowAction
	if err := decodeBody(r, &a); err != nil {
		s.fail(w, r, err, "workflow action")
		return
	}
	wf, err := s.ownedWorkflow(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	next := 1
	for _, existing := range wf.Actions {
		if existing.Position >= next {
			next = existing.Position + 1
		}
	}
	action := newAction(wf.ID, next, &a)
	check := *wf
	check.Actions = []*model.WorkflowAction{action}
	if err := model.ValidateWorkflow(&check); err != nil {
		s.fail(w, r, err, "workflow action")
		return
	}
	if err := s.store.AddWorkflowAction(r.Context(), action); err != nil {
		s.fail(w, r, err, "workflow action")
		return
	}
	s.record(r.Context(), events.TopicWorkflowActionAdded, wf.ID, uid, map[string]any{"action": action})
	writeJSON(w, http.StatusCreated, action)
}

// handleDeleteWorkflowAction handles DELETE /api/workflows/{id}/actions/{action_id}.
func (s *Server) handleDeleteWorkflowAction(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	wf, err := s.ownedWorkflow(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "workflow")
		return
	}
	actionID := r.PathValue("action_id")
	if err := s.store.DeleteWorkflowAction(r.Context(), wf.ID, actionID); err != nil {
		s.fail(w, r, err, "workflow action")
		return
	}
	s.record(r.Context(), events.TopicWorkflowActionRemoved, wf.ID, uid, map[string]any{"action_id": actionID})
	w.WriteHeader(http.StatusNoContent)
}

// handleListEvents handles GET /api/events?resource_id=. Callers see only
// the events of their own mutations.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "event")
		return
	}
	opts.ResourceID = r.URL.Query().Get("resource_id")
	opts.ActorID = uid
	evts, total, err := s.store.ListEvents(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "event")
		return
	}
	writeList(w, "events", evts, total)
}
