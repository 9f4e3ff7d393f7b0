package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/store"
)

// mockStore is an in-memory store.Store for handler tests.
type mockStore struct {
	mu            sync.Mutex
	users         map[string]*model.User
	apps          map[string]*model.Application
	components    map[string]*model.Component
	features      map[string]*model.Feature
	schemas       map[string]*model.Schema
	entities      map[string]*model.Entity
	relationships map[string]*model.Relationship
	prompts       map[string]*model.Prompt
	versions      map[string][]*model.PromptVersion
	tools         map[string]*model.BotTool
	bots          map[string]*model.Bot
	instances     map[string]*model.BotInstance
	messages      []*model.ChatMessage
	workflows     map[string]*model.Workflow
	builds        map[string]*model.Build
	events        []*model.Event
}

var _ store.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		users:         map[string]*model.User{},
		apps:          map[string]*model.Application{},
		components:    map[string]*model.Component{},
		features:      map[string]*model.Feature{},
		schemas:       map[string]*model.Schema{},
		entities:      map[string]*model.Entity{},
		relationships: map[string]*model.Relationship{},
		prompts:       map[string]*model.Prompt{},
		versions:      map[string][]*model.PromptVersion{},
		tools:         map[string]*model.BotTool{},
		bots:          map[string]*model.Bot{},
		instances:     map[string]*model.BotInstance{},
		workflows:     map[string]*model.Workflow{},
		builds:        map[string]*model.Build{},
	}
}

func utcNow() time.Time { return time.Now().UTC() }

func clone[T any](v *T) *T {
	cp := *v
	return &cp
}

// get returns a copy of m[id] or sql.ErrNoRows.
func get[T any](m map[string]*T, id string) (*T, error) {
	v, ok := m[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return clone(v), nil
}

// remove deletes m[id] or reports sql.ErrNoRows.
func remove[T any](m map[string]*T, id string) error {
	if _, ok := m[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m, id)
	return nil
}

// filtered returns copies of the values kept by keep, ordered by id.
func filtered[T any](m map[string]*T, keep func(*T) bool) []*T {
	var out []*T
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if keep(m[k]) {
			out = append(out, clone(m[k]))
		}
	}
	return out
}

// page applies offset/limit the way the SQL store does.
func page[T any](all []T, opts model.ListOptions) ([]T, int, error) {
	opts = opts.Normalize()
	total := len(all)
	if opts.Offset >= total {
		return []T{}, total, nil
	}
	end := min(opts.Offset+opts.Limit, total)
	return all[opts.Offset:end], total, nil
}

func matchesSearch(name, q string) bool {
	return q == "" || strings.Contains(strings.ToLower(name), strings.ToLower(q))
}

// --- users ---

func (m *mockStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return store.ErrConflict
		}
	}
	u.CreatedAt, u.UpdatedAt = utcNow(), utcNow()
	m.users[u.ID] = clone(u)
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.users, id)
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return clone(u), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStore) UpdateUserSettings(_ context.Context, id string, settings json.RawMessage) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	u.Settings = settings
	u.UpdatedAt = utcNow()
	return clone(u), nil
}

// --- applications ---

func (m *mockStore) CreateApplication(_ context.Context, app *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app.CreatedAt, app.UpdatedAt = utcNow(), utcNow()
	m.apps[app.ID] = clone(app)
	return nil
}

func (m *mockStore) GetApplication(_ context.Context, id string) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.apps, id)
}

func (m *mockStore) ListApplications(_ context.Context, opts model.ListOptions) ([]*model.Application, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.apps, func(a *model.Application) bool {
		return (opts.OwnerID == "" || a.OwnerID == opts.OwnerID) && matchesSearch(a.Name, opts.Search)
	}), opts)
}

func (m *mockStore) UpdateApplication(_ context.Context, app *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[app.ID]; !ok {
		return sql.ErrNoRows
	}
	app.UpdatedAt = utcNow()
	m.apps[app.ID] = clone(app)
	return nil
}

func (m *mockStore) DeleteApplication(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.apps, id)
}

// --- components ---

func (m *mockStore) CreateComponent(_ context.Context, c *model.Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.apps[c.ApplicationID]; !ok {
		return store.ErrInvalidReference
	}
	c.CreatedAt, c.UpdatedAt = utcNow(), utcNow()
	m.components[c.ID] = clone(c)
	return nil
}

func (m *mockStore) GetComponent(_ context.Context, id string) (*model.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.components, id)
}

func (m *mockStore) ListComponents(_ context.Context, applicationID string) ([]*model.Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return filtered(m.components, func(c *model.Component) bool { return c.ApplicationID == applicationID }), nil
}

func (m *mockStore) DeleteComponent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.components, id)
}

// --- features ---

func (m *mockStore) CreateFeature(_ context.Context, f *model.Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.CreatedAt, f.UpdatedAt = utcNow(), utcNow()
	m.features[f.ID] = clone(f)
	return nil
}

func (m *mockStore) GetFeature(_ context.Context, id string) (*model.Feature, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.features, id)
}

func (m *mockStore) ListFeatures(_ context.Context, opts model.ListOptions) ([]*model.Feature, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.features, func(f *model.Feature) bool { return f.ApplicationID == opts.ApplicationID }), opts)
}

func (m *mockStore) UpdateFeature(_ context.Context, f *model.Feature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.features[f.ID]; !ok {
		return sql.ErrNoRows
	}
	f.UpdatedAt = utcNow()
	m.features[f.ID] = clone(f)
	return nil
}

func (m *mockStore) DeleteFeature(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.features, id)
}

// --- schemas ---

func (m *mockStore) CreateSchema(_ context.Context, s *model.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.schemas {
		if existing.ApplicationID == s.ApplicationID && existing.Name == s.Name {
			return store.ErrConflict
		}
	}
	s.CreatedAt, s.UpdatedAt = utcNow(), utcNow()
	m.schemas[s.ID] = clone(s)
	return nil
}

func (m *mockStore) GetSchema(_ context.Context, id string) (*model.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.schemas, id)
}

func (m *mockStore) ListSchemas(_ context.Context, opts model.ListOptions) ([]*model.Schema, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.schemas, func(s *model.Schema) bool {
		return (opts.ApplicationID == "" || s.ApplicationID == opts.ApplicationID) && matchesSearch(s.Name, opts.Search)
	}), opts)
}

func (m *mockStore) UpdateSchema(_ context.Context, s *model.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schemas[s.ID]; !ok {
		return sql.ErrNoRows
	}
	s.UpdatedAt = utcNow()
	m.schemas[s.ID] = clone(s)
	return nil
}

func (m *mockStore) DeleteSchema(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.schemas, id)
}

// --- entities ---

func (m *mockStore) CreateEntity(_ context.Context, e *model.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.CreatedAt, e.UpdatedAt = utcNow(), utcNow()
	m.entities[e.ID] = clone(e)
	return nil
}

func (m *mockStore) GetEntity(_ context.Context, id string) (*model.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.entities, id)
}

func (m *mockStore) ListEntities(_ context.Context, opts model.ListOptions) ([]*model.Entity, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.entities, func(e *model.Entity) bool {
		return opts.SchemaID == "" || e.SchemaID == opts.SchemaID
	}), opts)
}

func (m *mockStore) UpdateEntity(_ context.Context, e *model.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entities[e.ID]; !ok {
		return sql.ErrNoRows
	}
	e.UpdatedAt = utcNow()
	m.entities[e.ID] = clone(e)
	return nil
}

func (m *mockStore) DeleteEntity(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.entities, id)
}

// --- relationships ---

func (m *mockStore) CreateRelationship(_ context.Context, r *model.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.CreatedAt = utcNow()
	m.relationships[r.ID] = clone(r)
	return nil
}

func (m *mockStore) GetRelationship(_ context.Context, id string) (*model.Relationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.relationships, id)
}

func (m *mockStore) ListRelationships(_ context.Context, opts model.ListOptions) ([]*model.Relationship, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.relationships, func(r *model.Relationship) bool {
		return opts.SchemaID == "" || r.SourceSchemaID == opts.SchemaID || r.TargetSchemaID == opts.SchemaID
	}), opts)
}

func (m *mockStore) DeleteRelationship(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.relationships, id)
}

// --- prompts ---

func (m *mockStore) CreatePrompt(_ context.Context, p *model.Prompt, first *model.PromptVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.CreatedAt, p.UpdatedAt = utcNow(), utcNow()
	p.CurrentVersion = 1
	first.PromptID = p.ID
	first.Version = 1
	first.CreatedAt = p.CreatedAt
	p.Latest = first
	m.prompts[p.ID] = clone(p)
	m.versions[p.ID] = []*model.PromptVersion{clone(first)}
	return nil
}

func (m *mockStore) GetPrompt(_ context.Context, id string) (*model.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := get(m.prompts, id)
	if err != nil {
		return nil, err
	}
	vs := m.versions[id]
	p.Latest = clone(vs[len(vs)-1])
	return p, nil
}

func (m *mockStore) ListPrompts(_ context.Context, opts model.ListOptions) ([]*model.Prompt, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.prompts, func(p *model.Prompt) bool { return matchesSearch(p.Name, opts.Search) }), opts)
}

func (m *mockStore) DeletePrompt(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.versions, id)
	return remove(m.prompts, id)
}

func (m *mockStore) AddPromptVersion(_ context.Context, v *model.PromptVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[v.PromptID]
	if !ok {
		return sql.ErrNoRows
	}
	p.CurrentVersion++
	p.UpdatedAt = utcNow()
	v.Version = p.CurrentVersion
	v.CreatedAt = p.UpdatedAt
	m.versions[p.ID] = append(m.versions[p.ID], clone(v))
	return nil
}

func (m *mockStore) GetPromptVersion(_ context.Context, promptID string, version int) (*model.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.versions[promptID] {
		if v.Version == version {
			return clone(v), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStore) ListPromptVersions(_ context.Context, promptID string) ([]*model.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PromptVersion
	for _, v := range slices.Backward(m.versions[promptID]) {
		out = append(out, clone(v))
	}
	return out, nil
}

// --- tools ---

func (m *mockStore) CreateTool(_ context.Context, t *model.BotTool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tools {
		if existing.Name == t.Name {
			return store.ErrConflict
		}
	}
	t.CreatedAt, t.UpdatedAt = utcNow(), utcNow()
	m.tools[t.ID] = clone(t)
	return nil
}

func (m *mockStore) GetTool(_ context.Context, id string) (*model.BotTool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.tools, id)
}

func (m *mockStore) GetToolsByIDs(_ context.Context, ids []string) ([]*model.BotTool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.BotTool
	for _, id := range ids {
		if t, ok := m.tools[id]; ok {
			out = append(out, clone(t))
		}
	}
	return out, nil
}

func (m *mockStore) ListTools(_ context.Context, opts model.ListOptions) ([]*model.BotTool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.tools, func(t *model.BotTool) bool { return matchesSearch(t.Name, opts.Search) }), opts)
}

func (m *mockStore) UpdateTool(_ context.Context, t *model.BotTool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tools[t.ID]; !ok {
		return sql.ErrNoRows
	}
	t.UpdatedAt = utcNow()
	m.tools[t.ID] = clone(t)
	return nil
}

func (m *mockStore) DeleteTool(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.tools, id)
}

// --- bots ---

func (m *mockStore) CreateBot(_ context.Context, b *model.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.CreatedAt, b.UpdatedAt = utcNow(), utcNow()
	m.bots[b.ID] = clone(b)
	return nil
}

func (m *mockStore) GetBot(_ context.Context, id string) (*model.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.bots, id)
}

func (m *mockStore) ListBots(_ context.Context, opts model.ListOptions) ([]*model.Bot, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.bots, func(b *model.Bot) bool {
		return (opts.OwnerID == "" || b.OwnerID == opts.OwnerID) && matchesSearch(b.Name, opts.Search)
	}), opts)
}

func (m *mockStore) UpdateBot(_ context.Context, b *model.Bot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bots[b.ID]; !ok {
		return sql.ErrNoRows
	}
	b.UpdatedAt = utcNow()
	m.bots[b.ID] = clone(b)
	return nil
}

func (m *mockStore) DeleteBot(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.bots, id)
}

// --- bot instances ---

func (m *mockStore) GetInstance(_ context.Context, botID, userID string) (*model.BotInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.instances, botID+"/"+userID)
}

func (m *mockStore) SaveInstance(_ context.Context, inst *model.BotInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst.UpdatedAt = utcNow()
	m.instances[inst.BotID+"/"+inst.UserID] = clone(inst)
	return nil
}

func (m *mockStore) StampHealthy(_ context.Context, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, inst := range m.instances {
		if inst.Status == model.InstanceRunning {
			t := at
			inst.LastHealthAt = &t
			n++
		}
	}
	return n, nil
}

func (m *mockStore) FailStaleInstances(_ context.Context, before time.Time, reason string) ([]*model.BotInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.BotInstance
	for _, inst := range m.instances {
		if (inst.Status == model.InstanceStarting || inst.Status == model.InstanceStopping) && inst.UpdatedAt.Before(before) {
			inst.Status = model.InstanceError
			inst.LastError = reason
			out = append(out, clone(inst))
		}
	}
	return out, nil
}

// --- chat messages ---

func (m *mockStore) CreateMessage(_ context.Context, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.CreatedAt = utcNow()
	m.messages = append(m.messages, clone(msg))
	return nil
}

func (m *mockStore) ListMessages(_ context.Context, botID, userID string, limit int) ([]*model.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ChatMessage
	for _, msg := range m.messages {
		if msg.BotID == botID && msg.UserID == userID {
			out = append(out, clone(msg))
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// --- workflows ---

func (m *mockStore) CreateWorkflow(_ context.Context, w *model.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.CreatedAt, w.UpdatedAt = utcNow(), utcNow()
	for _, a := range w.Actions {
		a.CreatedAt = w.CreatedAt
	}
	cp := clone(w)
	cp.Actions = slices.Clone(w.Actions)
	m.workflows[w.ID] = cp
	return nil
}

func (m *mockStore) GetWorkflow(_ context.Context, id string) (*model.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, err := get(m.workflows, id)
	if err != nil {
		return nil, err
	}
	w.Actions = slices.Clone(w.Actions)
	return w, nil
}

func (m *mockStore) ListWorkflows(_ context.Context, opts model.ListOptions) ([]*model.Workflow, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.workflows, func(w *model.Workflow) bool { return w.ApplicationID == opts.ApplicationID }), opts)
}

func (m *mockStore) UpdateWorkflow(_ context.Context, w *model.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.workflows[w.ID]
	if !ok {
		return sql.ErrNoRows
	}
	w.UpdatedAt = utcNow()
	cp := clone(w)
	cp.Actions = existing.Actions
	m.workflows[w.ID] = cp
	return nil
}

func (m *mockStore) DeleteWorkflow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return remove(m.workflows, id)
}

func (m *mockStore) AddWorkflowAction(_ context.Context, a *model.WorkflowAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[a.WorkflowID]
	if !ok {
		return sql.ErrNoRows
	}
	a.CreatedAt = utcNow()
	w.Actions = append(w.Actions, clone(a))
	return nil
}

func (m *mockStore) DeleteWorkflowAction(_ context.Context, workflowID, actionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[workflowID]
	if !ok {
		return sql.ErrNoRows
	}
	for i, a := range w.Actions {
		if a.ID == actionID {
			w.Actions = slices.Delete(w.Actions, i, i+1)
			return nil
		}
	}
	return sql.ErrNoRows
}

// --- builds ---

func (m *mockStore) CreateBuild(_ context.Context, b *model.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.CreatedAt = utcNow()
	m.builds[b.ID] = clone(b)
	return nil
}

func (m *mockStore) GetBuild(_ context.Context, id string) (*model.Build, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get(m.builds, id)
}

func (m *mockStore) ListBuilds(_ context.Context, opts model.ListOptions) ([]*model.Build, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return page(filtered(m.builds, func(b *model.Build) bool { return b.ApplicationID == opts.ApplicationID }), opts)
}

func (m *mockStore) UpdateBuild(_ context.Context, b *model.Build) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.builds[b.ID]; !ok {
		return sql.ErrNoRows
	}
	m.builds[b.ID] = clone(b)
	return nil
}

// --- events ---

func (m *mockStore) RecordEvent(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.events) + 1)
	e.CreatedAt = utcNow()
	m.events = append(m.events, clone(e))
	return nil
}

func (m *mockStore) ListEvents(_ context.Context, opts model.ListOptions) ([]*model.Event, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range slices.Backward(m.events) {
		if (opts.ResourceID == "" || e.ResourceID == opts.ResourceID) && (opts.ActorID == "" || e.Actor == opts.ActorID) {
			out = append(out, clone(e))
		}
	}
	return page(out, opts)
}

func (m *mockStore) topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Topic
	}
	return out
}

func (m *mockStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *mockStore) Close() error { return nil }
