package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/alfredjeanlab/lowcode/internal/client"
	"github.com/alfredjeanlab/lowcode/internal/model"
)

// fakeClient records calls and serves canned data. Methods not overridden
// panic through the nil embedded interface.
type fakeClient struct {
	client.Client

	schemas []*model.Schema
	nextID  int
	created []*client.SchemaRequest
	updated map[string]*client.SchemaRequest
	listErr error

	entityData json.RawMessage
	entitySch  string

	chatText string
	chat     *client.ChatResult

	toolInput json.RawMessage
	toolRes   *client.ToolResult

	builds    []*model.Build // returned in order by GetBuild
	buildGets int

	session *client.Session
	loginPW string
}

// useFakeClient installs f as the CLI's client for the test.
func useFakeClient(t *testing.T, f *fakeClient) {
	t.Helper()
	prev := apiClient
	apiClient = f
	t.Cleanup(func() { apiClient = prev })
}

func (f *fakeClient) ListSchemas(_ context.Context, opts *client.ListOptions) (*client.SchemaList, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var matched []*model.Schema
	for _, s := range f.schemas {
		if opts.ApplicationID == "" || s.ApplicationID == opts.ApplicationID {
			matched = append(matched, s)
		}
	}
	total := len(matched)
	start := min(opts.Offset, total)
	end := total
	if opts.Limit > 0 {
		end = min(start+opts.Limit, total)
	}
	return &client.SchemaList{Schemas: matched[start:end], Total: total}, nil
}

func (f *fakeClient) CreateSchema(_ context.Context, req *client.SchemaRequest) (*model.Schema, error) {
	f.nextID++
	s := &model.Schema{
		ID:            fmt.Sprintf("sch-%d", f.nextID),
		ApplicationID: req.ApplicationID,
		Name:          req.Name,
		Fields:        req.Fields,
	}
	f.created = append(f.created, req)
	f.schemas = append(f.schemas, s)
	return s, nil
}

func (f *fakeClient) UpdateSchema(_ context.Context, id string, req *client.SchemaRequest) (*model.Schema, error) {
	if f.updated == nil {
		f.updated = map[string]*client.SchemaRequest{}
	}
	f.updated[id] = req
	for _, s := range f.schemas {
		if s.ID == id {
			s.Fields = req.Fields
			return s, nil
		}
	}
	return nil, &client.APIError{StatusCode: 404, Message: "schema not found"}
}

func (f *fakeClient) CreateEntity(_ context.Context, schemaID string, data json.RawMessage) (*model.Entity, error) {
	f.entitySch, f.entityData = schemaID, data
	return &model.Entity{ID: "ent-1", SchemaID: schemaID, Data: data}, nil
}

func (f *fakeClient) Chat(_ context.Context, _ string, text string) (*client.ChatResult, error) {
	f.chatText = text
	if f.chat == nil {
		return nil, &client.APIError{StatusCode: 409, Message: "bot is not running"}
	}
	return f.chat, nil
}

func (f *fakeClient) ExecuteTool(_ context.Context, id string, input json.RawMessage) (*client.ToolResult, error) {
	f.toolInput = input
	res := *f.toolRes
	res.ToolID = id
	return &res, nil
}

func (f *fakeClient) GetBuild(_ context.Context, id string) (*model.Build, error) {
	if f.buildGets >= len(f.builds) {
		return nil, sql.ErrNoRows
	}
	b := f.builds[f.buildGets]
	f.buildGets++
	return b, nil
}

func (f *fakeClient) Login(_ context.Context, email, password string) (*client.Session, error) {
	f.loginPW = password
	if f.session == nil {
		return nil, &client.APIError{StatusCode: 401, Message: "invalid email or password"}
	}
	return f.session, nil
}
