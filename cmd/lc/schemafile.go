package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/client"
	"github.com/alfredjeanlab/lowcode/internal/idgen"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"gopkg.in/yaml.v3"
)

// schemaDoc is one schema definition in a file read by "lc schema apply".
// A reference field's target may name another schema in the same
// application instead of giving its id.
type schemaDoc struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Fields      []model.FieldDef `yaml:"fields"`
}

// schemaFile holds either a single schema at the top level or a list under
// "schemas". JSON files parse the same way since JSON is valid YAML.
type schemaFile struct {
	Application string           `yaml:"application,omitempty"`
	Schemas     []schemaDoc      `yaml:"schemas,omitempty"`
	Name        string           `yaml:"name,omitempty"`
	Description string           `yaml:"description,omitempty"`
	Fields      []model.FieldDef `yaml:"fields,omitempty"`
}

func parseSchemaFile(data []byte) (appID string, docs []schemaDoc, err error) {
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return "", nil, fmt.Errorf("parsing schema file: %w", err)
	}
	switch {
	case f.Name != "" && len(f.Schemas) > 0:
		return "", nil, errors.New("schema file has both a top-level name and a schemas list")
	case f.Name != "":
		docs = []schemaDoc{{Name: f.Name, Description: f.Description, Fields: f.Fields}}
	case len(f.Schemas) > 0:
		docs = f.Schemas
	default:
		return "", nil, errors.New("schema file defines no schemas")
	}

	seen := make(map[string]bool, len(docs))
	for i, d := range docs {
		if strings.TrimSpace(d.Name) == "" {
			return "", nil, fmt.Errorf("schema %d has no name", i+1)
		}
		if seen[d.Name] {
			return "", nil, fmt.Errorf("schema %q is defined twice", d.Name)
		}
		seen[d.Name] = true
	}
	return f.Application, docs, nil
}

// applyResult reports what applySchemas did with one schema.
type applyResult struct {
	Name   string `json:"name"`
	ID     string `json:"id,omitempty"`
	Action string `json:"action"` // created, updated, or would-create/would-update on dry runs
}

// applySchemas creates the schemas in docs that do not exist yet in appID
// and replaces the fields of those that do, in file order. Reference
// targets naming a schema are rewritten to its id.
func applySchemas(ctx context.Context, c client.Client, appID string, docs []schemaDoc, dryRun bool) ([]applyResult, error) {
	existing, err := existingSchemas(ctx, c, appID)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(existing))
	for name, s := range existing {
		ids[name] = s.ID
	}

	results := make([]applyResult, 0, len(docs))
	for _, d := range docs {
		fields, err := resolveTargets(d, ids, dryRun)
		if err != nil {
			return results, err
		}
		req := &client.SchemaRequest{
			ApplicationID: appID,
			Name:          d.Name,
			Description:   d.Description,
			Fields:        fields,
		}

		cur, ok := existing[d.Name]
		switch {
		case ok && dryRun:
			results = append(results, applyResult{Name: d.Name, ID: cur.ID, Action: "would-update"})
		case ok:
			s, err := c.UpdateSchema(ctx, cur.ID, req)
			if err != nil {
				return results, fmt.Errorf("updating schema %q: %w", d.Name, err)
			}
			results = append(results, applyResult{Name: d.Name, ID: s.ID, Action: "updated"})
		case dryRun:
			// Later documents may reference this one by name.
			ids[d.Name] = "(new)"
			results = append(results, applyResult{Name: d.Name, Action: "would-create"})
		default:
			s, err := c.CreateSchema(ctx, req)
			if err != nil {
				return results, fmt.Errorf("creating schema %q: %w", d.Name, err)
			}
			ids[d.Name] = s.ID
			results = append(results, applyResult{Name: d.Name, ID: s.ID, Action: "created"})
		}
	}
	return results, nil
}

// existingSchemas pages through the schemas of appID keyed by name. Only
// schemas bound to appID count; shared schemas are matched when appID is
// empty.
func existingSchemas(ctx context.Context, c client.Client, appID string) (map[string]*model.Schema, error) {
	out := make(map[string]*model.Schema)
	opts := &client.ListOptions{ApplicationID: appID, Limit: model.MaxLimit}
	for {
		page, err := c.ListSchemas(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing schemas: %w", err)
		}
		for _, s := range page.Schemas {
			if s.ApplicationID == appID {
				out[s.Name] = s
			}
		}
		opts.Offset += len(page.Schemas)
		if len(page.Schemas) == 0 || opts.Offset >= page.Total {
			return out, nil
		}
	}
}

func resolveTargets(d schemaDoc, ids map[string]string, dryRun bool) ([]model.FieldDef, error) {
	fields := make([]model.FieldDef, len(d.Fields))
	copy(fields, d.Fields)
	for i, f := range fields {
		if f.Type != model.FieldTypeReference || f.Target == "" {
			continue
		}
		if id, ok := ids[f.Target]; ok {
			fields[i].Target = id
			continue
		}
		if dryRun || strings.HasPrefix(f.Target, idgen.PrefixSchema) {
			continue
		}
		return nil, fmt.Errorf("schema %q field %q: target %q is not a known schema; define it earlier in the file", d.Name, f.Name, f.Target)
	}
	return fields, nil
}

func printApplyResults(w io.Writer, results []applyResult) {
	for _, r := range results {
		id := r.ID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(w, "%-12s %-24s %s\n", r.Action, r.Name, id)
	}
}
