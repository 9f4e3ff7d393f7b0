package build

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// mockStore is an in-memory Store for build tests.
type mockStore struct {
	mu            sync.Mutex
	apps          map[string]*model.Application
	schemas       []*model.Schema
	relationships []*model.Relationship
	components    []*model.Component
	features      []*model.Feature
	workflows     []*model.Workflow
	entities      []*model.Entity
	builds        map[string]*model.Build
	updates       []model.BuildStatus
}

func newMockStore() *mockStore {
	return &mockStore{apps: map[string]*model.Application{}, builds: map[string]*model.Build{}}
}

// page applies offset/limit the way the SQL store does.
func page[T any](all []T, opts model.ListOptions) ([]T, int, error) {
	opts = opts.Normalize()
	total := len(all)
	if opts.Offset >= total {
		return []T{}, total, nil
	}
	end := opts.Offset + opts.Limit
	if end > total {
		end = total
	}
	return all[opts.Offset:end], total, nil
}

func (m *mockStore) GetApplication(_ context.Context, id string) (*model.Application, error) {
	if a, ok := m.apps[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStore) ListSchemas(_ context.Context, opts model.ListOptions) ([]*model.Schema, int, error) {
	var out []*model.Schema
	for _, s := range m.schemas {
		if s.ApplicationID == opts.ApplicationID {
			out = append(out, s)
		}
	}
	return page(out, opts)
}

func (m *mockStore) ListRelationships(_ context.Context, opts model.ListOptions) ([]*model.Relationship, int, error) {
	var out []*model.Relationship
	for _, r := range m.relationships {
		if r.SourceSchemaID == opts.SchemaID || r.TargetSchemaID == opts.SchemaID {
			out = append(out, r)
		}
	}
	return page(out, opts)
}

func (m *mockStore) ListComponents(_ context.Context, appID string) ([]*model.Component, error) {
	var out []*model.Component
	for _, c := range m.components {
		if c.ApplicationID == appID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) ListFeatures(_ context.Context, opts model.ListOptions) ([]*model.Feature, int, error) {
	var out []*model.Feature
	for _, f := range m.features {
		if f.ApplicationID == opts.ApplicationID {
			out = append(out, f)
		}
	}
	return page(out, opts)
}

func (m *mockStore) ListWorkflows(_ context.Context, opts model.ListOptions) ([]*model.Workflow, int, error) {
	var out []*model.Workflow
	for _, w := range m.workflows {
		if w.ApplicationID == opts.ApplicationID {
			summary := *w
			summary.Actions = nil
			out = append(out, &summary)
		}
	}
	return page(out, opts)
}

func (m *mockStore) GetWorkflow(_ context.Context, id string) (*model.Workflow, error) {
	for _, w := range m.workflows {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStore) ListEntities(_ context.Context, opts model.ListOptions) ([]*model.Entity, int, error) {
	var out []*model.Entity
	for _, e := range m.entities {
		if e.SchemaID == opts.SchemaID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, opts)
}

func (m *mockStore) CreateBuild(_ context.Context, b *model.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.builds[b.ID] = &cp
	return nil
}

func (m *mockStore) GetBuild(_ context.Context, id string) (*model.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.builds[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStore) UpdateBuild(_ context.Context, b *model.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.builds[b.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *b
	m.builds[b.ID] = &cp
	m.updates = append(m.updates, b.Status)
	return nil
}

func (m *mockStore) build(id string) *model.Build {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.builds[id]
}
