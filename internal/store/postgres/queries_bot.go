package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

const (
	promptColumns        = `id, name, description, current_version, created_at, updated_at`
	promptVersionColumns = `prompt_id, version, system_template, user_template, variables, created_at`
	toolColumns          = `id, name, description, type, config, created_at, updated_at`
	botColumns           = `id, owner_id, name, description, model, prompt_id, system_prompt, temperature, tool_ids, created_at, updated_at`
	instanceColumns      = `id, bot_id, user_id, status, last_error, started_at, stopped_at, last_health_at, updated_at`
	messageColumns       = `id, bot_id, user_id, instance_id, role, content, tool_name, created_at`
)

// --- prompts ---

// queryCreatePrompt inserts p at version 1 along with its first version.
// Callers outside a transaction should wrap it in one.
func queryCreatePrompt(ctx context.Context, db executor, p *model.Prompt, first *model.PromptVersion) error {
	p.CurrentVersion = 1
	err := db.QueryRowContext(ctx, `
		INSERT INTO prompts (id, name, description, current_version)
		VALUES ($1, $2, $3, 1)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Description,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}
	first.PromptID = p.ID
	first.Version = 1
	if err := queryInsertPromptVersion(ctx, db, first); err != nil {
		return err
	}
	p.Latest = first
	return nil
}

func queryInsertPromptVersion(ctx context.Context, db executor, v *model.PromptVersion) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO prompt_versions (prompt_id, version, system_template, user_template, variables)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		v.PromptID, v.Version, v.SystemTemplate, v.UserTemplate, jsonbBytes(v.Variables, "{}"),
	).Scan(&v.CreatedAt)
}

// queryAddPromptVersion bumps the prompt's current_version and stores v under
// the new number. The UPDATE row lock serializes concurrent appends.
func queryAddPromptVersion(ctx context.Context, db executor, v *model.PromptVersion) error {
	err := db.QueryRowContext(ctx, `
		UPDATE prompts SET current_version = current_version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING current_version`,
		v.PromptID,
	).Scan(&v.Version)
	if err != nil {
		return err
	}
	return queryInsertPromptVersion(ctx, db, v)
}

func queryGetPrompt(ctx context.Context, db executor, id string) (*model.Prompt, error) {
	row := db.QueryRowContext(ctx, `SELECT `+promptColumns+` FROM prompts WHERE id = $1`, id)
	p, err := scanPrompt(row)
	if err != nil {
		return nil, err
	}
	if p.CurrentVersion > 0 {
		latest, err := queryGetPromptVersion(ctx, db, id, p.CurrentVersion)
		if err != nil {
			return nil, fmt.Errorf("get latest version of prompt %s: %w", id, err)
		}
		p.Latest = latest
	}
	return p, nil
}

func queryListPrompts(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Prompt, int, error) {
	var w whereBuilder
	if opts.Search != "" {
		w.add("name ILIKE %s", likePattern(opts.Search))
	}
	query := `SELECT COUNT(*) OVER() AS total_count, ` + promptColumns +
		` FROM prompts` + w.where() + ` ORDER BY name, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanPrompt)
}

func queryDeletePrompt(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM prompts WHERE id = $1`, id)
}

func queryGetPromptVersion(ctx context.Context, db executor, promptID string, version int) (*model.PromptVersion, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+promptVersionColumns+` FROM prompt_versions
		WHERE prompt_id = $1 AND version = $2`, promptID, version)
	return scanPromptVersion(row)
}

func queryListPromptVersions(ctx context.Context, db executor, promptID string) ([]*model.PromptVersion, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+promptVersionColumns+` FROM prompt_versions
		WHERE prompt_id = $1
		ORDER BY version`, promptID)
	if err != nil {
		return nil, fmt.Errorf("list prompt versions: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanPromptVersion)
}

// --- tools ---

func queryCreateTool(ctx context.Context, db executor, t *model.BotTool) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO tools (id, name, description, type, config)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		t.ID, t.Name, t.Description, string(t.Type), jsonbBytes(t.Config, "{}"),
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func queryGetTool(ctx context.Context, db executor, id string) (*model.BotTool, error) {
	row := db.QueryRowContext(ctx, `SELECT `+toolColumns+` FROM tools WHERE id = $1`, id)
	return scanTool(row)
}

func queryGetToolsByIDs(ctx context.Context, db executor, ids []string) ([]*model.BotTool, error) {
	if len(ids) == 0 {
		return []*model.BotTool{}, nil
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+toolColumns+` FROM tools
		WHERE id = ANY($1)
		ORDER BY name`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get tools: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanTool)
}

func queryListTools(ctx context.Context, db executor, opts model.ListOptions) ([]*model.BotTool, int, error) {
	var w whereBuilder
	if opts.Search != "" {
		w.add("name ILIKE %s", likePattern(opts.Search))
	}
	query := `SELECT COUNT(*) OVER() AS total_count, ` + toolColumns +
		` FROM tools` + w.where() + ` ORDER BY name, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanTool)
}

func queryUpdateTool(ctx context.Context, db executor, t *model.BotTool) error {
	return db.QueryRowContext(ctx, `
		UPDATE tools SET name = $2, description = $3, type = $4, config = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Name, t.Description, string(t.Type), jsonbBytes(t.Config, "{}"),
	).Scan(&t.UpdatedAt)
}

func queryDeleteTool(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM tools WHERE id = $1`, id)
}

// --- bots ---

func queryCreateBot(ctx context.Context, db executor, b *model.Bot) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO bots (id, owner_id, name, description, model, prompt_id, system_prompt, temperature, tool_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		b.ID, b.OwnerID, b.Name, b.Description, b.Model, nullString(b.PromptID),
		b.SystemPrompt, b.Temperature, stringArray(b.ToolIDs),
	).Scan(&b.CreatedAt, &b.UpdatedAt)
}

func queryGetBot(ctx context.Context, db executor, id string) (*model.Bot, error) {
	row := db.QueryRowContext(ctx, `SELECT `+botColumns+` FROM bots WHERE id = $1`, id)
	return scanBot(row)
}

func queryListBots(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Bot, int, error) {
	var w whereBuilder
	w.addIf("owner_id = %s", opts.OwnerID)
	if opts.Search != "" {
		w.add("name ILIKE %s", likePattern(opts.Search))
	}
	query := `SELECT COUNT(*) OVER() AS total_count, ` + botColumns +
		` FROM bots` + w.where() + ` ORDER BY created_at DESC, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanBot)
}

func queryUpdateBot(ctx context.Context, db executor, b *model.Bot) error {
	return db.QueryRowContext(ctx, `
		UPDATE bots SET
			name = $2,
			description = $3,
			model = $4,
			prompt_id = $5,
			system_prompt = $6,
			temperature = $7,
			tool_ids = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		b.ID, b.Name, b.Description, b.Model, nullString(b.PromptID),
		b.SystemPrompt, b.Temperature, stringArray(b.ToolIDs),
	).Scan(&b.UpdatedAt)
}

func queryDeleteBot(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM bots WHERE id = $1`, id)
}

// --- bot instances ---

func queryGetInstance(ctx context.Context, db executor, botID, userID string) (*model.BotInstance, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+` FROM bot_instances
		WHERE bot_id = $1 AND user_id = $2`, botID, userID)
	return scanInstance(row)
}

// querySaveInstance upserts on (bot_id, user_id); an existing row keeps its id.
func querySaveInstance(ctx context.Context, db executor, i *model.BotInstance) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO bot_instances (id, bot_id, user_id, status, last_error, started_at, stopped_at, last_health_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (bot_id, user_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_error = EXCLUDED.last_error,
			started_at = EXCLUDED.started_at,
			stopped_at = EXCLUDED.stopped_at,
			last_health_at = EXCLUDED.last_health_at,
			updated_at = NOW()
		RETURNING id, updated_at`,
		i.ID, i.BotID, i.UserID, string(i.Status), i.LastError,
		nullTimePtr(i.StartedAt), nullTimePtr(i.StoppedAt), nullTimePtr(i.LastHealthAt),
	).Scan(&i.ID, &i.UpdatedAt)
}

func queryStampHealthy(ctx context.Context, db executor, at time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		UPDATE bot_instances SET last_health_at = $1
		WHERE status = 'running'`, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// queryFailStaleInstances moves instances stuck in a transitional state since
// before the cutoff into error and returns them.
func queryFailStaleInstances(ctx context.Context, db executor, before time.Time, reason string) ([]*model.BotInstance, error) {
	rows, err := db.QueryContext(ctx, `
		UPDATE bot_instances SET status = 'error', last_error = $2, updated_at = NOW()
		WHERE status IN ('starting', 'stopping') AND updated_at < $1
		RETURNING `+instanceColumns, before, reason)
	if err != nil {
		return nil, fmt.Errorf("fail stale instances: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanInstance)
}

// --- chat messages ---

func queryCreateMessage(ctx context.Context, db executor, m *model.ChatMessage) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (id, bot_id, user_id, instance_id, role, content, tool_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		m.ID, m.BotID, m.UserID, nullString(m.InstanceID), string(m.Role), m.Content, m.ToolName,
	).Scan(&m.CreatedAt)
}

// queryListMessages returns the most recent limit messages of a conversation,
// oldest first.
func queryListMessages(ctx context.Context, db executor, botID, userID string, limit int) ([]*model.ChatMessage, error) {
	limit = model.ListOptions{Limit: limit}.Normalize().Limit
	rows, err := db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM (
			SELECT seq, `+messageColumns+` FROM chat_messages
			WHERE bot_id = $1 AND user_id = $2
			ORDER BY seq DESC
			LIMIT $3
		) recent
		ORDER BY seq`, botID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanMessage)
}
