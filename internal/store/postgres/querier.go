package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// querier binds the query functions to an executor and maps driver errors.
// PostgresStore and txStore embed it with a *sql.DB and a *sql.Tx.
type querier struct {
	db executor
}

func (q querier) CreateUser(ctx context.Context, u *model.User) error {
	return mapError(queryCreateUser(ctx, q.db, u))
}

func (q querier) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := queryGetUser(ctx, q.db, id)
	return u, mapError(err)
}

func (q querier) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := queryGetUserByEmail(ctx, q.db, email)
	return u, mapError(err)
}

func (q querier) UpdateUserSettings(ctx context.Context, id string, settings json.RawMessage) (*model.User, error) {
	u, err := queryUpdateUserSettings(ctx, q.db, id, settings)
	return u, mapError(err)
}

func (q querier) CreateApplication(ctx context.Context, a *model.Application) error {
	return mapError(queryCreateApplication(ctx, q.db, a))
}

func (q querier) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	a, err := queryGetApplication(ctx, q.db, id)
	return a, mapError(err)
}

func (q querier) ListApplications(ctx context.Context, opts model.ListOptions) ([]*model.Application, int, error) {
	apps, total, err := queryListApplications(ctx, q.db, opts)
	return apps, total, mapError(err)
}

func (q querier) UpdateApplication(ctx context.Context, a *model.Application) error {
	return mapError(queryUpdateApplication(ctx, q.db, a))
}

func (q querier) DeleteApplication(ctx context.Context, id string) error {
	return mapError(queryDeleteApplication(ctx, q.db, id))
}

func (q querier) CreateComponent(ctx context.Context, c *model.Component) error {
	return mapError(queryCreateComponent(ctx, q.db, c))
}

func (q querier) GetComponent(ctx context.Context, id string) (*model.Component, error) {
	c, err := queryGetComponent(ctx, q.db, id)
	return c, mapError(err)
}

func (q querier) ListComponents(ctx context.Context, applicationID string) ([]*model.Component, error) {
	cs, err := queryListComponents(ctx, q.db, applicationID)
	return cs, mapError(err)
}

func (q querier) DeleteComponent(ctx context.Context, id string) error {
	return mapError(queryDeleteComponent(ctx, q.db, id))
}

func (q querier) CreateFeature(ctx context.Context, f *model.Feature) error {
	return mapError(queryCreateFeature(ctx, q.db, f))
}

func (q querier) GetFeature(ctx context.Context, id string) (*model.Feature, error) {
	f, err := queryGetFeature(ctx, q.db, id)
	return f, mapError(err)
}

func (q querier) ListFeatures(ctx context.Context, opts model.ListOptions) ([]*model.Feature, int, error) {
	fs, total, err := queryListFeatures(ctx, q.db, opts)
	return fs, total, mapError(err)
}

func (q querier) UpdateFeature(ctx context.Context, f *model.Feature) error {
	return mapError(queryUpdateFeature(ctx, q.db, f))
}

func (q querier) DeleteFeature(ctx context.Context, id string) error {
	return mapError(queryDeleteFeature(ctx, q.db, id))
}

func (q querier) CreateSchema(ctx context.Context, s *model.Schema) error {
	return mapError(queryCreateSchema(ctx, q.db, s))
}

func (q querier) GetSchema(ctx context.Context, id string) (*model.Schema, error) {
	s, err := queryGetSchema(ctx, q.db, id)
	return s, mapError(err)
}

func (q querier) ListSchemas(ctx context.Context, opts model.ListOptions) ([]*model.Schema, int, error) {
	ss, total, err := queryListSchemas(ctx, q.db, opts)
	return ss, total, mapError(err)
}

func (q querier) UpdateSchema(ctx context.Context, s *model.Schema) error {
	return mapError(queryUpdateSchema(ctx, q.db, s))
}

func (q querier) DeleteSchema(ctx context.Context, id string) error {
	return mapError(queryDeleteSchema(ctx, q.db, id))
}

func (q querier) CreateEntity(ctx context.Context, e *model.Entity) error {
	return mapError(queryCreateEntity(ctx, q.db, e))
}

func (q querier) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	e, err := queryGetEntity(ctx, q.db, id)
	return e, mapError(err)
}

func (q querier) ListEntities(ctx context.Context, opts model.ListOptions) ([]*model.Entity, int, error) {
	es, total, err := queryListEntities(ctx, q.db, opts)
	return es, total, mapError(err)
}

func (q querier) UpdateEntity(ctx context.Context, e *model.Entity) error {
	return mapError(queryUpdateEntity(ctx, q.db, e))
}

func (q querier) DeleteEntity(ctx context.Context, id string) error {
	return mapError(queryDeleteEntity(ctx, q.db, id))
}

func (q querier) CreateRelationship(ctx context.Context, r *model.Relationship) error {
	return mapError(queryCreateRelationship(ctx, q.db, r))
}

func (q querier) GetRelationship(ctx context.Context, id string) (*model.Relationship, error) {
	r, err := queryGetRelationship(ctx, q.db, id)
	return r, mapError(err)
}

func (q querier) ListRelationships(ctx context.Context, opts model.ListOptions) ([]*model.Relationship, int, error) {
	rs, total, err := queryListRelationships(ctx, q.db, opts)
	return rs, total, mapError(err)
}

func (q querier) DeleteRelationship(ctx context.Context, id string) error {
	return mapError(queryDeleteRelationship(ctx, q.db, id))
}

func (q querier) CreatePrompt(ctx context.Context, p *model.Prompt, first *model.PromptVersion) error {
	return mapError(queryCreatePrompt(ctx, q.db, p, first))
}

func (q querier) GetPrompt(ctx context.Context, id string) (*model.Prompt, error) {
	p, err := queryGetPrompt(ctx, q.db, id)
	return p, mapError(err)
}

func (q querier) ListPrompts(ctx context.Context, opts model.ListOptions) ([]*model.Prompt, int, error) {
	ps, total, err := queryListPrompts(ctx, q.db, opts)
	return ps, total, mapError(err)
}

func (q querier) DeletePrompt(ctx context.Context, id string) error {
	return mapError(queryDeletePrompt(ctx, q.db, id))
}

func (q querier) AddPromptVersion(ctx context.Context, v *model.PromptVersion) error {
	return mapError(queryAddPromptVersion(ctx, q.db, v))
}

func (q querier) GetPromptVersion(ctx context.Context, promptID string, version int) (*model.PromptVersion, error) {
	v, err := queryGetPromptVersion(ctx, q.db, promptID, version)
	return v, mapError(err)
}

func (q querier) ListPromptVersions(ctx context.Context, promptID string) ([]*model.PromptVersion, error) {
	vs, err := queryListPromptVersions(ctx, q.db, promptID)
	return vs, mapError(err)
}

func (q querier) CreateTool(ctx context.Context, t *model.BotTool) error {
	return mapError(queryCreateTool(ctx, q.db, t))
}

func (q querier) GetTool(ctx context.Context, id string) (*model.BotTool, error) {
	t, err := queryGetTool(ctx, q.db, id)
	return t, mapError(err)
}

func (q querier) GetToolsByIDs(ctx context.Context, ids []string) ([]*model.BotTool, error) {
	ts, err := queryGetToolsByIDs(ctx, q.db, ids)
	return ts, mapError(err)
}

func (q querier) ListTools(ctx context.Context, opts model.ListOptions) ([]*model.BotTool, int, error) {
	ts, total, err := queryListTools(ctx, q.db, opts)
	return ts, total, mapError(err)
}

func (q querier) UpdateTool(ctx context.Context, t *model.BotTool) error {
	return mapError(queryUpdateTool(ctx, q.db, t))
}

func (q querier) DeleteTool(ctx context.Context, id string) error {
	return mapError(queryDeleteTool(ctx, q.db, id))
}

func (q querier) CreateBot(ctx context.Context, b *model.Bot) error {
	return mapError(queryCreateBot(ctx, q.db, b))
}

func (q querier) GetBot(ctx context.Context, id string) (*model.Bot, error) {
	b, err := queryGetBot(ctx, q.db, id)
	return b, mapError(err)
}

func (q querier) ListBots(ctx context.Context, opts model.ListOptions) ([]*model.Bot, int, error) {
	bs, total, err := queryListBots(ctx, q.db, opts)
	return bs, total, mapError(err)
}

func (q querier) UpdateBot(ctx context.Context, b *model.Bot) error {
	return mapError(queryUpdateBot(ctx, q.db, b))
}

func (q querier) DeleteBot(ctx context.Context, id string) error {
	return mapError(queryDeleteBot(ctx, q.db, id))
}

func (q querier) GetInstance(ctx context.Context, botID, userID string) (*model.BotInstance, error) {
	i, err := queryGetInstance(ctx, q.db, botID, userID)
	return i, mapError(err)
}

func (q querier) SaveInstance(ctx context.Context, i *model.BotInstance) error {
	return mapError(querySaveInstance(ctx, q.db, i))
}

func (q querier) StampHealthy(ctx context.Context, at time.Time) (int64, error) {
	n, err := queryStampHealthy(ctx, q.db, at)
	return n, mapError(err)
}

func (q querier) FailStaleInstances(ctx context.Context, before time.Time, reason string) ([]*model.BotInstance, error) {
	is, err := queryFailStaleInstances(ctx, q.db, before, reason)
	return is, mapError(err)
}

func (q querier) CreateMessage(ctx context.Context, m *model.ChatMessage) error {
	return mapError(queryCreateMessage(ctx, q.db, m))
}

func (q querier) ListMessages(ctx context.Context, botID, userID string, limit int) ([]*model.ChatMessage, error) {
	ms, err := queryListMessages(ctx, q.db, botID, userID, limit)
	return ms, mapError(err)
}

func (q querier) CreateWorkflow(ctx context.Context, w *model.Workflow) error {
	return mapError(queryCreateWorkflow(ctx, q.db, w))
}

func (q querier) GetWorkflow(ctx context.Context, id string) (*model.Workflow, error) {
	w, err := queryGetWorkflow(ctx, q.db, id)
	return w, mapError(err)
}

func (q querier) ListWorkflows(ctx context.Context, opts model.ListOptions) ([]*model.Workflow, int, error) {
	ws, total, err := queryListWorkflows(ctx, q.db, opts)
	return ws, total, mapError(err)
}

func (q querier) UpdateWorkflow(ctx context.Context, w *model.Workflow) error {
	return mapError(queryUpdateWorkflow(ctx, q.db, w))
}

func (q querier) DeleteWorkflow(ctx context.Context, id string) error {
	return mapError(queryDeleteWorkflow(ctx, q.db, id))
}

func (q querier) AddWorkflowAction(ctx context.Context, a *model.WorkflowAction) error {
	return mapError(queryAddWorkflowAction(ctx, q.db, a))
}

func (q querier) DeleteWorkflowAction(ctx context.Context, workflowID, actionID string) error {
	return mapError(queryDeleteWorkflowAction(ctx, q.db, workflowID, actionID))
}

func (q querier) CreateBuild(ctx context.Context, b *model.Build) error {
	return mapError(queryCreateBuild(ctx, q.db, b))
}

func (q querier) GetBuild(ctx context.Context, id string) (*model.Build, error) {
	b, err := queryGetBuild(ctx, q.db, id)
	return b, mapError(err)
}

func (q querier) ListBuilds(ctx context.Context, opts model.ListOptions) ([]*model.Build, int, error) {
	bs, total, err := queryListBuilds(ctx, q.db, opts)
	return bs, total, mapError(err)
}

func (q querier) UpdateBuild(ctx context.Context, b *model.Build) error {
	return mapError(queryUpdateBuild(ctx, q.db, b))
}

func (q querier) RecordEvent(ctx context.Context, e *model.Event) error {
	return mapError(queryRecordEvent(ctx, q.db, e))
}

func (q querier) ListEvents(ctx context.Context, opts model.ListOptions) ([]*model.Event, int, error) {
	es, total, err := queryListEvents(ctx, q.db, opts)
	return es, total, mapError(err)
}
