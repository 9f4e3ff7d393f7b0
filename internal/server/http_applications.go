package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alfredjeanlab/lowcode/internal/build"
	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/queue"
)

// ownedApplication loads an application and checks that uid owns it.
func (s *Server) ownedApplication(ctx context.Context, id, uid string) (*model.Application, error) {
	app, err := s.store.GetApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.OwnerID != uid {
		return nil, errForbidden
	}
	return app, nil
}

type applicationInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// handleListApplications handles GET /api/applications.
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "application")
		return
	}
	opts.OwnerID = uid
	apps, total, err := s.store.ListApplications(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "application")
		return
	}
	writeList(w, "applications", apps, total)
}

// handleCreateApplication handles POST /api/applications.
func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in applicationInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "application")
		return
	}
	app := &model.Application{ID: idgen.MustGenerate(idgen.PrefixApplication), OwnerID: uid}
	in.apply(app)
	if err := model.ValidateApplication(app); err != nil {
		s.fail(w, r, err, "application")
		return
	}
	if err := s.store.CreateApplication(r.Context(), app); err != nil {
		s.fail(w, r, err, "application")
		return
	}
	s.record(r.Context(), events.TopicApplicationCreated, app.ID, uid, map[string]any{"application": app})
	writeJSON(w, http.StatusCreated, app)
}

func (in applicationInput) apply(app *model.Application) {
	if in.Name != nil {
		app.Name = *in.Name
	}
	if in.Description != nil {
		app.Description = *in.Description
	}
}

// handleGetApplication handles GET /api/applications/{id}.
func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	app, err := s.ownedApplication(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "application")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// handleUpdateApplication handles PATCH /api/applications/{id}.
func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in applicationInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "application")
		return
	}
	app, err := s.ownedApplication(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "application")
		return
	}
	in.apply(app)
	if err := model.ValidateApplication(app); err != nil {
		s.fail(w, r, err, "application")
		return
	}
	if err := s.store.UpdateApplication(r.Context(), app); err != nil {
		s.fail(w, r, err, "application")
		return
	}
	s.record(r.Context(), events.TopicApplicationUpdated, app.ID, uid, map[string]any{"application": app})
	writeJSON(w, http.StatusOK, app)
}

// handleDeleteApplication handles DELETE /api/applications/{id}.
func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	app, err := s.ownedApplication(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "application")
		return
	}
	if err := s.store.DeleteApplication(r.Context(), app.ID); err != nil {
		s.fail(w, r, err, "application")
		return
	}
	s.record(r.Context(), events.TopicApplicationDeleted, app.ID, uid, map[string]any{"id": app.ID})
	w.WriteHeader(http.StatusNoContent)
}

// --- components ---

// handleListComponents handles GET /api/applications/{id}/components.
func (s *Server) handleListComponents(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	app, err := s.ownedApplication(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "application")
		return
	}
	comps, err := s.store.ListComponents(r.Context(), app.ID)
	if err != nil {
		s.fail(w, r, err, "component")
		return
	}
	writeList(w, "components", comps, len(comps))
}

// handleCreateComponent handles POST /api/applications/{id}/components.
func (s *Server) handleCreateComponent(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var c model.Component
	if err := decodeBody(r, &c); err != nil {
		s.fail(w, r, err, "component")
		return
	}
	app, err := s.ownedApplication(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "application")
		return
	}
	c.ID = idgen.MustGenerate(idgen.PrefixComponent)
	c.ApplicationID = app.ID
	if len(c.Config) == 0 {
		c.Config = json.RawMessage(`{}`)
	}
	if err := model.ValidateComponent(&c); err != nil {
		s.fail(w, r, err, "component")
		return
	}
	if err := s.store.CreateComponent(r.Context(), &c); err != nil {
		s.fail(w, r, err, "component")
		return
	}
	s.record(r.Context(), events.TopicComponentCreated, c.ID, uid, map[string]any{"component": &c})
	writeJSON(w, http.StatusCreated, &c)
}

// handleDeleteComponent handles DELETE /api/components/{id}.
func (s *Server) handleDeleteComponent(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	c, err := s.store.GetComponent(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "component")
		return
	}
	if _, err := s.ownedApplication(r.Context(), c.ApplicationID, uid); err != nil {
		s.fail(w, r, err, "component")
		return
	}
	if err := s.store.DeleteComponent(r.Context(), c.ID); err != nil {
		s.fail(w, r, err, "component")
		return
	}
	s.record(r.Context(), events.TopicComponentDeleted, c.ID, uid, map[string]any{"id": c.ID, "application_id": c.ApplicationID})
	w.WriteHeader(http.StatusNoContent)
}

// --- features ---

type featureInput struct {
	ApplicationID string  `json:"application_id"`
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Enabled       *bool   `json:"enabled"`
}

func (in featureInput) apply(f *model.Feature) {
	if in.Name != nil {
		f.Name = *in.Name
	}
	if in.Description != nil {
		f.Description = *in.Description
	}
	if in.Enabled != nil {
		f.Enabled = *in.Enabled
	}
}

// ownedFeature loads a feature whose application uid owns.
func (s *Server) ownedFeature(ctx context.Context, id, uid string) (*model.Feature, error) {
	f, err := s.store.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedApplication(ctx, f.ApplicationID, uid); err != nil {
		return nil, err
	}
	return f, nil
}

// handleListFeatures handles GET /api/features?application_id=.
func (s *Server) handleListFeatures(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "feature")
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
	feats, total, err := s.store.ListFeatures(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	writeList(w, "features", feats, total)
}

// handleCreateFeature handles POST /api/features.
func (s *Server) handleCreateFeature(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in featureInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	f := &model.Feature{ID: idgen.MustGenerate(idgen.PrefixFeature), ApplicationID: in.ApplicationID}
	in.apply(f)
	if err := model.ValidateFeature(f); err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	if _, err := s.ownedApplication(r.Context(), f.ApplicationID, uid); err != nil {
		s.fail(w, r, referenceError(err, "application_id"), "application")
		return
	}
	if err := s.store.CreateFeature(r.Context(), f); err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	s.record(r.Context(), events.TopicFeatureCreated, f.ID, uid, map[string]any{"feature": f})
	writeJSON(w, http.StatusCreated, f)
}

// handleGetFeature handles GET /api/features/{id}.
func (s *Server) handleGetFeature(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	f, err := s.ownedFeature(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleUpdateFeature handles PATCH /api/features/{id}.
func (s *Server) handleUpdateFeature(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in featureInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	f, err := s.ownedFeature(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	in.apply(f)
	if err := model.ValidateFeature(f); err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	if err := s.store.UpdateFeature(r.Context(), f); err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	s.record(r.Context(), events.TopicFeatureUpdated, f.ID, uid, map[string]any{"feature": f})
	writeJSON(w, http.StatusOK, f)
}

// handleDeleteFeature handles DELETE /api/features/{id}.
func (s *Server) handleDeleteFeature(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	f, err := s.ownedFeature(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	if err := s.store.DeleteFeature(r.Context(), f.ID); err != nil {
		s.fail(w, r, err, "feature")
		return
	}
	s.record(r.Context(), events.TopicFeatureDeleted, f.ID, uid, map[string]any{"id": f.ID})
	w.WriteHeader(http.StatusNoContent)
}

// --- builds ---

// handleRequestBuild handles POST /api/applications/{id}/builds.
func (s *Server) handleRequestBuild(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	app, err := s.ownedApplication(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "application")
		return
	}
	b, err := build.Request(r.Context(), s.store, s.queue, s.recorder, app.ID, uid)
	if err != nil {
		if errors.Is(err, queue.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "build queue is not available")
			return
		}
		s.fail(w, r, err, "build")
		return
	}
	writeJSON(w, http.StatusAccepted, b)
}

// handleListBuilds handles GET /api/applications/{id}/builds.
func (s *Server) handleListBuilds(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "build")
		return
	}
	app, err := s.ownedApplication(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "application")
		return
	}
	opts.ApplicationID = app.ID
	builds, total, err := s.store.ListBuilds(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "build")
		return
	}
	writeList(w, "builds", builds, total)
}

// handleGetBuild handles GET /api/builds/{id}.
func (s *Server) handleGetBuild(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	b, err := s.store.GetBuild(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "build")
		return
	}
	if _, err := s.ownedApplication(r.Context(), b.ApplicationID, uid); err != nil {
		s.fail(w, r, err, "build")
		return
	}
	writeJSON(w, http.StatusOK, b)
}
