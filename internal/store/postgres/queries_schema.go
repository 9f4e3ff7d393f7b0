package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

const (
	schemaColumns       = `id, application_id, name, description, fields, created_by, created_at, updated_at`
	entityColumns       = `id, schema_id, data, created_by, created_at, updated_at`
	relationshipColumns = `id, name, type, source_schema_id, target_schema_id, source_field, description, created_at`
)

func fieldsJSON(defs []model.FieldDef) ([]byte, error) {
	if defs == nil {
		defs = []model.FieldDef{}
	}
	b, err := json.Marshal(defs)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return b, nil
}

// --- schemas ---

func queryCreateSchema(ctx context.Context, db executor, s *model.Schema) error {
	fields, err := fieldsJSON(s.Fields)
	if err != nil {
		return err
	}
	return db.QueryRowContext(ctx, `
		INSERT INTO schemas (id, application_id, name, description, fields, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		s.ID, nullString(s.ApplicationID), s.Name, s.Description, fields, s.CreatedBy,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func queryGetSchema(ctx context.Context, db executor, id string) (*model.Schema, error) {
	row := db.QueryRowContext(ctx, `SELECT `+schemaColumns+` FROM schemas WHERE id = $1`, id)
	return scanSchema(row)
}

func queryListSchemas(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Schema, int, error) {
	var w whereBuilder
	w.addIf("application_id = %s", opts.ApplicationID)
	if opts.Search != "" {
		w.add("name ILIKE %s", likePattern(opts.Search))
	}
	query := `SELECT COUNT(*) OVER() AS total_count, ` + schemaColumns +
		` FROM schemas` + w.where() + ` ORDER BY name, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanSchema)
}

func queryUpdateSchema(ctx context.Context, db executor, s *model.Schema) error {
	fields, err := fieldsJSON(s.Fields)
	if err != nil {
		return err
	}
	return db.QueryRowContext(ctx, `
		UPDATE schemas SET name = $2, description = $3, fields = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		s.ID, s.Name, s.Description, fields,
	).Scan(&s.UpdatedAt)
}

func queryDeleteSchema(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM schemas WHERE id = $1`, id)
}

// --- entities ---

func queryCreateEntity(ctx context.Context, db executor, e *model.Entity) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO entities (id, schema_id, data, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		e.ID, e.SchemaID, jsonbBytes(e.Data, "{}"), e.CreatedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func queryGetEntity(ctx context.Context, db executor, id string) (*model.Entity, error) {
	row := db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)
	return scanEntity(row)
}

func queryListEntities(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Entity, int, error) {
	var w whereBuilder
	w.addIf("schema_id = %s", opts.SchemaID)
	if opts.Search != "" {
		w.add("data::text ILIKE %s", likePattern(opts.Search))
	}
	query := `SELECT COUNT(*) OVER() AS total_count, ` + entityColumns +
		` FROM entities` + w.where() + ` ORDER BY created_at DESC, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanEntity)
}

func queryUpdateEntity(ctx context.Context, db executor, e *model.Entity) error {
	return db.QueryRowContext(ctx, `
		UPDATE entities SET data = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		e.ID, jsonbBytes(e.Data, "{}"),
	).Scan(&e.UpdatedAt)
}

func queryDeleteEntity(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM entities WHERE id = $1`, id)
}

// --- relationships ---

func queryCreateRelationship(ctx context.Context, db executor, r *model.Relationship) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO relationships (id, name, type, source_schema_id, target_schema_id, source_field, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		r.ID, r.Name, string(r.Type), r.SourceSchemaID, r.TargetSchemaID, r.SourceField, r.Description,
	).Scan(&r.CreatedAt)
}

func queryGetRelationship(ctx context.Context, db executor, id string) (*model.Relationship, error) {
	row := db.QueryRowContext(ctx, `SELECT `+relationshipColumns+` FROM relationships WHERE id = $1`, id)
	return scanRelationship(row)
}

// queryListRelationships matches SchemaID against either end of the relationship.
func queryListRelationships(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Relationship, int, error) {
	var w whereBuilder
	w.addIf("(source_schema_id = %s OR target_schema_id = %s)", opts.SchemaID)
	query := `SELECT COUNT(*) OVER() AS total_count, ` + relationshipColumns +
		` FROM relationships` + w.where() + ` ORDER BY created_at, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanRelationship)
}

func queryDeleteRelationship(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM relationships WHERE id = $1`, id)
}
