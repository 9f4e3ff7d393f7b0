package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/alfredjeanlab/lowcode/internal/events"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/model"
)

// referenceError turns a missing referenced row into a 400 naming field.
func referenceError(err error, field string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return inputError(field + " does not exist")
	}
	return err
}

// checkSchemaWrite allows writes to schemas of applications uid owns and to
// schemas not bound to an application.
func (s *Server) checkSchemaWrite(ctx context.Context, sc *model.Schema, uid string) error {
	if sc.ApplicationID == "" {
		return nil
	}
	_, err := s.ownedApplication(ctx, sc.ApplicationID, uid)
	return err
}

type schemaInput struct {
	ApplicationID *string           `json:"application_id"`
	Name          *string           `json:"name"`
	Description   *string           `json:"description"`
	Fields        *[]model.FieldDef `json:"fields"`
}

func (in schemaInput) apply(sc *model.Schema) {
	if in.Name != nil {
		sc.Name = *in.Name
	}
	if in.Description != nil {
		sc.Description = *in.Description
	}
	if in.Fields != nil {
		sc.Fields = *in.Fields
	}
	if sc.Fields == nil {
		sc.Fields = []model.FieldDef{}
	}
}

// handleListSchemas handles GET /api/schemas (and /api/models).
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	opts.ApplicationID = r.URL.Query().Get("application_id")
	schemas, total, err := s.store.ListSchemas(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	writeList(w, "schemas", schemas, total)
}

// handleCreateSchema handles POST /api/schemas.
func (s *Server) handleCreateSchema(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in schemaInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	sc := &model.Schema{ID: idgen.MustGenerate(idgen.PrefixSchema), CreatedBy: uid}
	if in.ApplicationID != nil {
		sc.ApplicationID = *in.ApplicationID
	}
	in.apply(sc)
	if err := model.ValidateSchema(sc); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	if err := s.checkSchemaWrite(r.Context(), sc, uid); err != nil {
		s.fail(w, r, referenceError(err, "application_id"), "application")
		return
	}
	if err := s.store.CreateSchema(r.Context(), sc); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	s.record(r.Context(), events.TopicSchemaCreated, sc.ID, uid, map[string]any{"schema": sc})
	writeJSON(w, http.StatusCreated, sc)
}

// handleGetSchema handles GET /api/schemas/{id}.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetSchema(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// handleUpdateSchema handles PATCH /api/schemas/{id}. The application a
// schema belongs to cannot change.
func (s *Server) handleUpdateSchema(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in schemaInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	sc, err := s.store.GetSchema(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	if err := s.checkSchemaWrite(r.Context(), sc, uid); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	in.apply(sc)
	if err := model.ValidateSchema(sc); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	if err := s.store.UpdateSchema(r.Context(), sc); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	s.record(r.Context(), events.TopicSchemaUpdated, sc.ID, uid, map[string]any{"schema": sc})
	writeJSON(w, http.StatusOK, sc)
}

// handleDeleteSchema handles DELETE /api/schemas/{id}.
func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	sc, err := s.store.GetSchema(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	if err := s.checkSchemaWrite(r.Context(), sc, uid); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	if err := s.store.DeleteSchema(r.Context(), sc.ID); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	s.record(r.Context(), events.TopicSchemaDeleted, sc.ID, uid, map[string]any{"id": sc.ID})
	w.WriteHeader(http.StatusNoContent)
}

// handleListSchemaEntities handles GET /api/schemas/{id}/entities.
func (s *Server) handleListSchemaEntities(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetSchema(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	s.listEntities(w, r, sc.ID)
}

// --- entities ---

// handleListEntities handles GET /api/entities?schema_id=.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	s.listEntities(w, r, r.URL.Query().Get("schema_id"))
}

func (s *Server) listEntities(w http.ResponseWriter, r *http.Request, schemaID string) {
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	opts.SchemaID = schemaID
	ents, total, err := s.store.ListEntities(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	writeList(w, "entities", ents, total)
}

type entityInput struct {
	SchemaID string          `json:"schema_id"`
	Data     json.RawMessage `json:"data"`
}

// validateEntityData checks data against the schema's fields and that
// every reference names an existing entity of the target schema.
func (s *Server) validateEntityData(ctx context.Context, sc *model.Schema, data json.RawMessage) error {
	if err := model.ValidateFields(data, sc.Fields); err != nil {
		return err
	}
	targets := make(map[string]string, len(sc.Fields))
	for _, d := range sc.Fields {
		targets[d.Name] = d.Target
	}
	for field, id := range model.ReferencedIDs(data, sc.Fields) {
		ref, err := s.store.GetEntity(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return inputError(fmt.Sprintf("%s: entity %q does not exist", field, id))
		}
		if err != nil {
			return fmt.Errorf("check reference %s: %w", field, err)
		}
		if ref.SchemaID != targets[field] {
			return inputError(fmt.Sprintf("%s: entity %q is not a %s", field, id, targets[field]))
		}
	}
	return nil
}

// writableEntity loads an entity and its schema, failing with errForbidden
// when uid may not write to the schema.
func (s *Server) writableEntity(ctx context.Context, id, uid string) (*model.Entity, *model.Schema, error) {
	e, err := s.store.GetEntity(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sc, err := s.store.GetSchema(ctx, e.SchemaID)
	if err != nil {
		return nil, nil, fmt.Errorf("load schema of entity %s: %w", e.ID, err)
	}
	if err := s.checkSchemaWrite(ctx, sc, uid); err != nil {
		return nil, nil, err
	}
	return e, sc, nil
}

// handleCreateEntity handles POST /api/entities.
func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in entityInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	e := &model.Entity{
		ID:        idgen.MustGenerate(idgen.PrefixEntity),
		SchemaID:  in.SchemaID,
		Data:      in.Data,
		CreatedBy: uid,
	}
	if len(e.Data) == 0 {
		e.Data = json.RawMessage(`{}`)
	}
	if err := model.ValidateEntity(e); err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	sc, err := s.store.GetSchema(r.Context(), e.SchemaID)
	if err != nil {
		s.fail(w, r, referenceError(err, "schema_id"), "schema")
		return
	}
	if err := s.checkSchemaWrite(r.Context(), sc, uid); err != nil {
		s.fail(w, r, err, "schema")
		return
	}
	if err := s.validateEntityData(r.Context(), sc, e.Data); err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	if err := s.store.CreateEntity(r.Context(), e); err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	s.record(r.Context(), events.TopicEntityCreated, e.ID, uid, map[string]any{"entity": e})
	writeJSON(w, http.StatusCreated, e)
}

// handleGetEntity handles GET /api/entities/{id}.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEntity(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleUpdateEntity handles PATCH /api/entities/{id}. Top-level keys of
// data are merged into the stored data; a null value removes the key.
func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in entityInput
	if err := decodeBody(r, &in); err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	var patch map[string]any
	if err := json.Unmarshal(in.Data, &patch); err != nil || patch == nil {
		writeError(w, http.StatusBadRequest, "data must be a JSON object")
		return
	}
	e, sc, err := s.writableEntity(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	var merged map[string]any
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &merged)
	}
	if merged == nil {
		merged = make(map[string]any)
	}
	for k, v := range patch {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		s.fail(w, r, fmt.Errorf("marshal entity data: %w", err), "entity")
		return
	}
	if err := s.validateEntityData(r.Context(), sc, data); err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	e.Data = data
	if err := s.store.UpdateEntity(r.Context(), e); err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	s.record(r.Context(), events.TopicEntityUpdated, e.ID, uid, map[string]any{"entity": e})
	writeJSON(w, http.StatusOK, e)
}

// handleDeleteEntity handles DELETE /api/entities/{id}.
func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	e, _, err := s.writableEntity(r.Context(), r.PathValue("id"), uid)
	if err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	if err := s.store.DeleteEntity(r.Context(), e.ID); err != nil {
		s.fail(w, r, err, "entity")
		return
	}
	s.record(r.Context(), events.TopicEntityDeleted, e.ID, uid, map[string]any{"id": e.ID})
	w.WriteHeader(http.StatusNoContent)
}

// --- relationships ---

// handleListRelationships handles GET /api/relationships?schema_id=.
func (s *Server) handleListRelationships(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		s.fail(w, r, err, "relationship")
		return
	}
	opts.SchemaID = r.URL.Query().Get("schema_id")
	rels, total, err := s.store.ListRelationships(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err, "relationship")
		return
	}
	writeList(w, "relationships", rels, total)
}

// handleCreateRelationship handles POST /api/relationships.
func (s *Server) handleCreateRelationship(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	var rel model.Relationship
	if err := decodeBody(r, &rel); err != nil {
		s.fail(w, r, err, "relationship")
		return
	}
	rel.ID = idgen.MustGenerate(idgen.PrefixRelationship)
	if err := model.ValidateRelationship(&rel); err != nil {
		s.fail(w, r, err, "relationship")
		return
	}
	for field, id := range map[string]string{"source_schema_id": rel.SourceSchemaID, "target_schema_id": rel.TargetSchemaID} {
		if _, err := s.store.GetSchema(r.Context(), id); err != nil {
			s.fail(w, r, referenceError(err, field), "schema")
			return
		}
	}
	if err := s.store.CreateRelationship(r.Context(), &rel); err != nil {
		s.fail(w, r, err, "relationship")
		return
	}
	s.record(r.Context(), events.TopicRelationshipCreated, rel.ID, uid, map[string]any{"relationship": &rel})
	writeJSON(w, http.StatusCreated, &rel)
}

// handleGetRelationship handles GET /api/relationships/{id}.
func (s *Server) handleGetRelationship(w http.ResponseWriter, r *http.Request) {
	rel, err := s.store.GetRelationship(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, "relationship")
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

// handleDeleteRelationship handles DELETE /api/relationships/{id}.
func (s *Server) handleDeleteRelationship(w http.ResponseWriter, r *http.Request) {
	uid, ok := currentUser(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	if err := s.store.DeleteRelationship(r.Context(), id); err != nil {
		s.fail(w, r, err, "relationship")
		return
	}
	s.record(r.Context(), events.TopicRelationshipDeleted, id, uid, map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
