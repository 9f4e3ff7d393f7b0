package postgres

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

const (
	workflowColumns = `id, application_id, name, description, trigger, enabled, created_at, updated_at`
	actionColumns   = `id, workflow_id, position, type, config, created_at`
	buildColumns    = `id, application_id, status, requested_by, artifacts, bytes, error, created_at, started_at, finished_at`
	eventColumns    = `id, topic, resource_id, actor, payload, created_at`
)

// --- workflows ---

// queryCreateWorkflow inserts w and its actions. Callers outside a
// transaction should wrap it in one.
func queryCreateWorkflow(ctx context.Context, db executor, w *model.Workflow) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO workflows (id, application_id, name, description, trigger, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		w.ID, w.ApplicationID, w.Name, w.Description, string(w.Trigger), w.Enabled,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return err
	}
	for _, a := range w.Actions {
		a.WorkflowID = w.ID
		if err := queryAddWorkflowAction(ctx, db, a); err != nil {
			return fmt.Errorf("add action: %w", err)
		}
	}
	if w.Actions == nil {
		w.Actions = []*model.WorkflowAction{}
	}
	return nil
}

func queryGetWorkflow(ctx context.Context, db executor, id string) (*model.Workflow, error) {
	row := db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE id = $1`, id)
	w, err := scanWorkflow(row)
	if err != nil {
		return nil, err
	}
	actions, err := queryListWorkflowActions(ctx, db, id)
	if err != nil {
		return nil, err
	}
	w.Actions = actions
	return w, nil
}

func queryListWorkflowActions(ctx context.Context, db executor, workflowID string) ([]*model.WorkflowAction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+actionColumns+` FROM workflow_actions
		WHERE workflow_id = $1
		ORDER BY position, created_at`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list workflow actions: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanWorkflowAction)
}

// queryListWorkflows returns workflows without their actions.
func queryListWorkflows(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Workflow, int, error) {
	var w whereBuilder
	w.addIf("application_id = %s", opts.ApplicationID)
	query := `SELECT COUNT(*) OVER() AS total_count, ` + workflowColumns +
		` FROM workflows` + w.where() + ` ORDER BY name, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanWorkflow)
}

func queryUpdateWorkflow(ctx context.Context, db executor, w *model.Workflow) error {
	return db.QueryRowContext(ctx, `
		UPDATE workflows SET name = $2, description = $3, trigger = $4, enabled = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		w.ID, w.Name, w.Description, string(w.Trigger), w.Enabled,
	).Scan(&w.UpdatedAt)
}

func queryDeleteWorkflow(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM workflows WHERE id = $1`, id)
}

// queryAddWorkflowAction appends a to its workflow. A zero Position places
// the action after the current last one.
func queryAddWorkflowAction(ctx context.Context, db executor, a *model.WorkflowAction) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO workflow_actions (id, workflow_id, position, type, config)
		VALUES ($1, $2,
			COALESCE(NULLIF($3::int, 0), (SELECT COALESCE(MAX(position), 0) + 1 FROM workflow_actions WHERE workflow_id = $2)),
			$4, $5)
		RETURNING position, created_at`,
		a.ID, a.WorkflowID, a.Position, a.Type, jsonbBytes(a.Config, "{}"),
	).Scan(&a.Position, &a.CreatedAt)
}

func queryDeleteWorkflowAction(ctx context.Context, db executor, workflowID, actionID string) error {
	return execAffecting(ctx, db, `DELETE FROM workflow_actions WHERE id = $1 AND workflow_id = $2`, actionID, workflowID)
}

// --- builds ---

func queryCreateBuild(ctx context.Context, db executor, b *model.Build) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO builds (id, application_id, status, requested_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		b.ID, b.ApplicationID, string(b.Status), b.RequestedBy,
	).Scan(&b.CreatedAt)
}

func queryGetBuild(ctx context.Context, db executor, id string) (*model.Build, error) {
	row := db.QueryRowContext(ctx, `SELECT `+buildColumns+` FROM builds WHERE id = $1`, id)
	return scanBuild(row)
}

func queryListBuilds(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Build, int, error) {
	var w whereBuilder
	w.addIf("application_id = %s", opts.ApplicationID)
	query := `SELECT COUNT(*) OVER() AS total_count, ` + buildColumns +
		` FROM builds` + w.where() + ` ORDER BY created_at DESC, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanBuild)
}

func queryUpdateBuild(ctx context.Context, db executor, b *model.Build) error {
	return execAffecting(ctx, db, `
		UPDATE builds SET
			status = $2,
			artifacts = $3,
			bytes = $4,
			error = $5,
			started_at = $6,
			finished_at = $7
		WHERE id = $1`,
		b.ID, string(b.Status), stringArray(b.Artifacts), b.Bytes, b.Error,
		nullTimePtr(b.StartedAt), nullTimePtr(b.FinishedAt),
	)
}

// --- events ---

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, resource_id, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.Topic, e.ResourceID, e.Actor, jsonbOrNull(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

// queryListEvents returns events newest first, optionally for one resource
// or one actor.
func queryListEvents(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Event, int, error) {
	var w whereBuilder
	w.addIf("resource_id = %s", opts.ResourceID)
	w.addIf("actor = %s", opts.ActorID)
	if opts.Search != "" {
		w.add("topic LIKE %s", opts.Search+"%")
	}
	query := `SELECT COUNT(*) OVER() AS total_count, ` + eventColumns +
		` FROM events` + w.where() + ` ORDER BY id DESC` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanEvent)
}
