// Package build exports applications as JSONL bundles in the background.
package build

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// BundleVersion is written in every bundle header.
const BundleVersion = "1"

// BundleStore is the read access an export needs.
type BundleStore interface {
	GetApplication(ctx context.Context, id string) (*model.Application, error)
	ListSchemas(ctx context.Context, opts model.ListOptions) ([]*model.Schema, int, error)
	ListRelationships(ctx context.Context, opts model.ListOptions) ([]*model.Relationship, int, error)
	ListComponents(ctx context.Context, applicationID string) ([]*model.Component, error)
	ListFeatures(ctx context.Context, opts model.ListOptions) ([]*model.Feature, int, error)
	ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.Workflow, int, error)
	GetWorkflow(ctx context.Context, id string) (*model.Workflow, error)
	ListEntities(ctx context.Context, opts model.ListOptions) ([]*model.Entity, int, error)
}

// header is the first JSONL record of a bundle.
type header struct {
	Version           string    `json:"version"`
	Type              string    `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	ApplicationID     string    `json:"application_id"`
	SchemaCount       int       `json:"schema_count"`
	RelationshipCount int       `json:"relationship_count"`
	ComponentCount    int       `json:"component_count"`
	FeatureCount      int       `json:"feature_count"`
	WorkflowCount     int       `json:"workflow_count"`
	EntityCount       int       `json:"entity_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// listAll pages through a list query until every row is read.
func listAll[T any](ctx context.Context, opts model.ListOptions, list func(context.Context, model.ListOptions) ([]T, int, error)) ([]T, error) {
	opts.Limit = model.MaxLimit
	opts.Offset = 0
	var out []T
	for {
		page, total, err := list(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		opts.Offset += len(page)
		if len(page) == 0 || opts.Offset >= total {
			return out, nil
		}
	}
}

// ExportBundle writes application appID and everything it owns as JSONL to
// w. Records appear in the order header, application, schemas,
// relationships, components, features, workflows, entities.
func ExportBundle(ctx context.Context, s BundleStore, appID string, w io.Writer) error {
	app, err := s.GetApplication(ctx, appID)
	if err != nil {
		return fmt.Errorf("get application: %w", err)
	}

	schemas, err := listAll(ctx, model.ListOptions{ApplicationID: appID}, s.ListSchemas)
	if err != nil {
		return fmt.Errorf("list schemas: %w", err)
	}

	// Relationships are reachable from either side; dedupe by id.
	relSeen := map[string]bool{}
	var rels []*model.Relationship
	for _, sc := range schemas {
		rs, err := listAll(ctx, model.ListOptions{SchemaID: sc.ID}, s.ListRelationships)
		if err != nil {
			return fmt.Errorf("list relationships for %s: %w", sc.ID, err)
		}
		for _, r := range rs {
			if !relSeen[r.ID] {
				relSeen[r.ID] = true
				rels = append(rels, r)
			}
		}
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i].ID < rels[j].ID })

	components, err := s.ListComponents(ctx, appID)
	if err != nil {
		return fmt.Errorf("list components: %w", err)
	}
	features, err := listAll(ctx, model.ListOptions{ApplicationID: appID}, s.ListFeatures)
	if err != nil {
		return fmt.Errorf("list features: %w", err)
	}

	summaries, err := listAll(ctx, model.ListOptions{ApplicationID: appID}, s.ListWorkflows)
	if err != nil {
		return fmt.Errorf("list workflows: %w", err)
	}
	workflows := make([]*model.Workflow, 0, len(summaries))
	for _, wf := range summaries {
		full, err := s.GetWorkflow(ctx, wf.ID)
		if err != nil {
			return fmt.Errorf("get workflow %s: %w", wf.ID, err)
		}
		workflows = append(workflows, full)
	}

	var entities []*model.Entity
	for _, sc := range schemas {
		es, err := listAll(ctx, model.ListOptions{SchemaID: sc.ID}, s.ListEntities)
		if err != nil {
			return fmt.Errorf("list entities for %s: %w", sc.ID, err)
		}
		entities = append(entities, es...)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:           BundleVersion,
		Type:              "header",
		Timestamp:         time.Now().UTC(),
		ApplicationID:     appID,
		SchemaCount:       len(schemas),
		RelationshipCount: len(rels),
		ComponentCount:    len(components),
		FeatureCount:      len(features),
		WorkflowCount:     len(workflows),
		EntityCount:       len(entities),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if err := enc.Encode(record{Type: "application", Data: app}); err != nil {
		return fmt.Errorf("encode application: %w", err)
	}

	sections := []struct {
		typ  string
		rows []any
	}{
		{"schema", asAny(schemas)},
		{"relationship", asAny(rels)},
		{"component", asAny(components)},
		{"feature", asAny(features)},
		{"workflow", asAny(workflows)},
		{"entity", asAny(entities)},
	}
	for _, sec := range sections {
		for _, row := range sec.rows {
			if err := enc.Encode(record{Type: sec.typ, Data: row}); err != nil {
				return fmt.Errorf("encode %s: %w", sec.typ, err)
			}
		}
	}
	return nil
}

func asAny[T any](rows []T) []any {
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
