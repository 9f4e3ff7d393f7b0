package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// Every scanX function accepts optional leading destinations so list queries
// can read total_count from COUNT(*) OVER() ahead of the record columns.

func scanUser(row scannable, lead ...any) (*model.User, error) {
	var u model.User
	var settings []byte
	err := row.Scan(append(lead,
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &settings, &u.CreatedAt, &u.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	u.Settings = rawOrNil(settings)
	return &u, nil
}

func scanApplication(row scannable, lead ...any) (*model.Application, error) {
	var a model.Application
	err := row.Scan(append(lead,
		&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.CreatedAt, &a.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanComponent(row scannable, lead ...any) (*model.Component, error) {
	var c model.Component
	var config []byte
	err := row.Scan(append(lead,
		&c.ID, &c.ApplicationID, &c.Name, &c.Type, &config, &c.Position, &c.CreatedAt, &c.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	c.Config = rawOrNil(config)
	return &c, nil
}

func scanFeature(row scannable, lead ...any) (*model.Feature, error) {
	var f model.Feature
	err := row.Scan(append(lead,
		&f.ID, &f.ApplicationID, &f.Name, &f.Description, &f.Enabled, &f.CreatedAt, &f.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func scanSchema(row scannable, lead ...any) (*model.Schema, error) {
	var s model.Schema
	var (
		applicationID sql.NullString
		fields        []byte
	)
	err := row.Scan(append(lead,
		&s.ID, &applicationID, &s.Name, &s.Description, &fields, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	s.ApplicationID = applicationID.String
	s.Fields = []model.FieldDef{}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &s.Fields); err != nil {
			return nil, fmt.Errorf("decode fields of schema %s: %w", s.ID, err)
		}
	}
	return &s, nil
}

func scanEntity(row scannable, lead ...any) (*model.Entity, error) {
	var e model.Entity
	var data []byte
	err := row.Scan(append(lead,
		&e.ID, &e.SchemaID, &data, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	e.Data = rawOrNil(data)
	return &e, nil
}

func scanRelationship(row scannable, lead ...any) (*model.Relationship, error) {
	var r model.Relationship
	err := row.Scan(append(lead,
		&r.ID, &r.Name, &r.Type, &r.SourceSchemaID, &r.TargetSchemaID, &r.SourceField, &r.Description, &r.CreatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanPrompt(row scannable, lead ...any) (*model.Prompt, error) {
	var p model.Prompt
	err := row.Scan(append(lead,
		&p.ID, &p.Name, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPromptVersion(row scannable, lead ...any) (*model.PromptVersion, error) {
	var v model.PromptVersion
	var variables []byte
	err := row.Scan(append(lead,
		&v.PromptID, &v.Version, &v.SystemTemplate, &v.UserTemplate, &variables, &v.CreatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	v.Variables = rawOrNil(variables)
	return &v, nil
}

func scanTool(row scannable, lead ...any) (*model.BotTool, error) {
	var t model.BotTool
	var config []byte
	err := row.Scan(append(lead,
		&t.ID, &t.Name, &t.Description, &t.Type, &config, &t.CreatedAt, &t.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	t.Config = rawOrNil(config)
	return &t, nil
}

func scanBot(row scannable, lead ...any) (*model.Bot, error) {
	var b model.Bot
	var promptID sql.NullString
	err := row.Scan(append(lead,
		&b.ID, &b.OwnerID, &b.Name, &b.Description, &b.Model, &promptID,
		&b.SystemPrompt, &b.Temperature, pq.Array(&b.ToolIDs), &b.CreatedAt, &b.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	b.PromptID = promptID.String
	if b.ToolIDs == nil {
		b.ToolIDs = []string{}
	}
	return &b, nil
}

func scanInstance(row scannable, lead ...any) (*model.BotInstance, error) {
	var i model.BotInstance
	var startedAt, stoppedAt, lastHealthAt sql.NullTime
	err := row.Scan(append(lead,
		&i.ID, &i.BotID, &i.UserID, &i.Status, &i.LastError,
		&startedAt, &stoppedAt, &lastHealthAt, &i.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	i.StartedAt = timePtr(startedAt)
	i.StoppedAt = timePtr(stoppedAt)
	i.LastHealthAt = timePtr(lastHealthAt)
	return &i, nil
}

func scanMessage(row scannable, lead ...any) (*model.ChatMessage, error) {
	var m model.ChatMessage
	var instanceID sql.NullString
	err := row.Scan(append(lead,
		&m.ID, &m.BotID, &m.UserID, &instanceID, &m.Role, &m.Content, &m.ToolName, &m.CreatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	m.InstanceID = instanceID.String
	return &m, nil
}

func scanWorkflow(row scannable, lead ...any) (*model.Workflow, error) {
	var w model.Workflow
	err := row.Scan(append(lead,
		&w.ID, &w.ApplicationID, &w.Name, &w.Description, &w.Trigger, &w.Enabled, &w.CreatedAt, &w.UpdatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	w.Actions = []*model.WorkflowAction{}
	return &w, nil
}

func scanWorkflowAction(row scannable, lead ...any) (*model.WorkflowAction, error) {
	var a model.WorkflowAction
	var config []byte
	err := row.Scan(append(lead,
		&a.ID, &a.WorkflowID, &a.Position, &a.Type, &config, &a.CreatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	a.Config = rawOrNil(config)
	return &a, nil
}

func scanBuild(row scannable, lead ...any) (*model.Build, error) {
	var b model.Build
	var startedAt, finishedAt sql.NullTime
	err := row.Scan(append(lead,
		&b.ID, &b.ApplicationID, &b.Status, &b.RequestedBy, pq.Array(&b.Artifacts),
		&b.Bytes, &b.Error, &b.CreatedAt, &startedAt, &finishedAt,
	)...)
	if err != nil {
		return nil, err
	}
	b.StartedAt = timePtr(startedAt)
	b.FinishedAt = timePtr(finishedAt)
	return &b, nil
}

func scanEvent(row scannable, lead ...any) (*model.Event, error) {
	var e model.Event
	var payload []byte
	err := row.Scan(append(lead,
		&e.ID, &e.Topic, &e.ResourceID, &e.Actor, &payload, &e.CreatedAt,
	)...)
	if err != nil {
		return nil, err
	}
	e.Payload = rawOrNil(payload)
	return &e, nil
}

// scanAll drains rows with scan. The result is never nil.
func scanAll[T any](rows *sql.Rows, scan func(scannable, ...any) (T, error)) ([]T, error) {
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanAllWithTotal is scanAll for rows led by a total_count column.
func scanAllWithTotal[T any](rows *sql.Rows, scan func(scannable, ...any) (T, error)) ([]T, int, error) {
	out := []T{}
	var total int
	for rows.Next() {
		v, err := scan(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns,
// substituting fallback when the message is empty.
func jsonbBytes(m json.RawMessage, fallback string) []byte {
	if len(m) == 0 {
		return []byte(fallback)
	}
	return []byte(m)
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
