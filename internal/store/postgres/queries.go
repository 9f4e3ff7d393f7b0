package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	userColumns        = `id, email, name, password_hash, settings, created_at, updated_at`
	applicationColumns = `id, owner_id, name, description, created_at, updated_at`
	componentColumns   = `id, application_id, name, type, config, position, created_at, updated_at`
	featureColumns     = `id, application_id, name, description, enabled, created_at, updated_at`
)

// execAffecting runs a statement and reports sql.ErrNoRows when it matched no rows.
func execAffecting(ctx context.Context, db executor, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// stringArray wraps s for a NOT NULL TEXT[] column.
func stringArray(s []string) any {
	if s == nil {
		s = []string{}
	}
	return pq.Array(s)
}

func jsonbOrNull(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}

// --- users ---

func queryCreateUser(ctx context.Context, db executor, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, settings)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Name, u.PasswordHash, jsonbBytes(u.Settings, "{}"),
	).Scan(&u.CreatedAt, &u.UpdatedAt)
}

func queryGetUser(ctx context.Context, db executor, id string) (*model.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func queryGetUserByEmail(ctx context.Context, db executor, email string) (*model.User, error) {
	row := db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func queryUpdateUserSettings(ctx context.Context, db executor, id string, settings json.RawMessage) (*model.User, error) {
	row := db.QueryRowContext(ctx, `
		UPDATE users SET settings = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, jsonbBytes(settings, "{}"),
	)
	return scanUser(row)
}

// --- applications ---

func queryCreateApplication(ctx context.Context, db executor, a *model.Application) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO applications (id, owner_id, name, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		a.ID, a.OwnerID, a.Name, a.Description,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func queryGetApplication(ctx context.Context, db executor, id string) (*model.Application, error) {
	row := db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	return scanApplication(row)
}

func queryListApplications(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Application, int, error) {
	var w whereBuilder
	w.addIf("owner_id = %s", opts.OwnerID)
	if opts.Search != "" {
		w.add("name ILIKE %s", likePattern(opts.Search))
	}
	query := `SELECT COUNT(*) OVER() AS total_count, ` + applicationColumns +
		` FROM applications` + w.where() + ` ORDER BY created_at DESC, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanApplication)
}

func queryUpdateApplication(ctx context.Context, db executor, a *model.Application) error {
	return db.QueryRowContext(ctx, `
		UPDATE applications SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Name, a.Description,
	).Scan(&a.UpdatedAt)
}

func queryDeleteApplication(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM applications WHERE id = $1`, id)
}

// --- components ---

func queryCreateComponent(ctx context.Context, db executor, c *model.Component) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO components (id, application_id, name, type, config, position)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		c.ID, c.ApplicationID, c.Name, c.Type, jsonbBytes(c.Config, "{}"), c.Position,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func queryGetComponent(ctx context.Context, db executor, id string) (*model.Component, error) {
	row := db.QueryRowContext(ctx, `SELECT `+componentColumns+` FROM components WHERE id = $1`, id)
	return scanComponent(row)
}

func queryListComponents(ctx context.Context, db executor, applicationID string) ([]*model.Component, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+componentColumns+` FROM components
		WHERE application_id = $1
		ORDER BY position, created_at`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanComponent)
}

func queryDeleteComponent(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM components WHERE id = $1`, id)
}

// --- features ---

func queryCreateFeature(ctx context.Context, db executor, f *model.Feature) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO features (id, application_id, name, description, enabled)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		f.ID, f.ApplicationID, f.Name, f.Description, f.Enabled,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
}

func queryGetFeature(ctx context.Context, db executor, id string) (*model.Feature, error) {
	row := db.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id = $1`, id)
	return scanFeature(row)
}

func queryListFeatures(ctx context.Context, db executor, opts model.ListOptions) ([]*model.Feature, int, error) {
	var w whereBuilder
	w.addIf("application_id = %s", opts.ApplicationID)
	if opts.Search != "" {
		w.add("name ILIKE %s", likePattern(opts.Search))
	}
	query := `SELECT COUNT(*) OVER() AS total_count, ` + featureColumns +
		` FROM features` + w.where() + ` ORDER BY name, id` + w.page(opts)
	rows, err := db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list features: %w", err)
	}
	defer rows.Close()
	return scanAllWithTotal(rows, scanFeature)
}

func queryUpdateFeature(ctx context.Context, db executor, f *model.Feature) error {
	return db.QueryRowContext(ctx, `
		UPDATE features SET name = $2, description = $3, enabled = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		f.ID, f.Name, f.Description, f.Enabled,
	).Scan(&f.UpdatedAt)
}

func queryDeleteFeature(ctx context.Context, db executor, id string) error {
	return execAffecting(ctx, db, `DELETE FROM features WHERE id = $1`, id)
}
