package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, "tok-123")
	return c, srv
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		t.Fatalf("request body is not JSON: %v (%q)", err, body)
	}
	return m
}

func TestHTTPClient_Health(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if status != "ok" {
		t.Errorf("status = %q, want ok", status)
	}
	if h.method != http.MethodGet || h.path != "/api/health" {
		t.Errorf("request = %s %s, want GET /api/health", h.method, h.path)
	}
}

func TestHTTPClient_BearerToken(t *testing.T) {
	h := &testHandler{responseBody: `{"id":"usr-1","email":"a@example.com"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.Me(context.Background()); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if h.auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want 'Bearer tok-123'", h.auth)
	}

	anon := NewHTTPClient(srv.URL+"/", "")
	if _, err := anon.Me(context.Background()); err != nil {
		t.Fatalf("Me: %v", err)
	}
	if h.auth != "" {
		t.Errorf("Authorization = %q, want empty without a token", h.auth)
	}
	if h.path != "/api/users/me" {
		t.Errorf("path = %q, trailing slash on base URL should be trimmed", h.path)
	}
}

func TestHTTPClient_Register(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"user":{"id":"usr-1","email":"a@example.com","name":"Ann"},"token":"jwt.abc"}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	sess, err := c.Register(context.Background(), "a@example.com", "hunter22", "Ann")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.method != http.MethodPost || h.path != "/api/users/register" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("Content-Type = %q", h.contentType)
	}
	body := decodeBody(t, h.body)
	if body["email"] != "a@example.com" || body["password"] != "hunter22" || body["name"] != "Ann" {
		t.Errorf("body = %v", body)
	}
	if sess.Token != "jwt.abc" || sess.User == nil || sess.User.ID != "usr-1" {
		t.Errorf("session = %+v", sess)
	}
}

func TestHTTPClient_Login(t *testing.T) {
	h := &testHandler{responseBody: `{"user":{"id":"usr-1","email":"a@example.com"},"token":"jwt.xyz"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	sess, err := c.Login(context.Background(), "a@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if h.path != "/api/users/login" {
		t.Errorf("path = %q", h.path)
	}
	if _, ok := decodeBody(t, h.body)["name"]; ok {
		t.Error("login body should not carry a name")
	}
	if sess.Token != "jwt.xyz" {
		t.Errorf("token = %q", sess.Token)
	}
}

func TestHTTPClient_ListApplications(t *testing.T) {
	h := &testHandler{responseBody: `{"applications":[{"id":"app-1","name":"CRM"}],"total":3}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	list, err := c.ListApplications(context.Background(), &ListOptions{Search: "crm", Limit: 1, Offset: 2})
	if err != nil {
		t.Fatalf("ListApplications: %v", err)
	}
	if h.path != "/api/applications" {
		t.Errorf("path = %q", h.path)
	}
	if h.query != "limit=1&offset=2&search=crm" {
		t.Errorf("query = %q", h.query)
	}
	if list.Total != 3 || len(list.Applications) != 1 || list.Applications[0].Name != "CRM" {
		t.Errorf("list = %+v", list)
	}
}

func TestHTTPClient_ApplicationCRUD(t *testing.T) {
	h := &testHandler{statusCode: http.StatusCreated, responseBody: `{"id":"app-1","name":"CRM"}`}
	c, srv := newTestClient(h)
	defer srv.Close()
	ctx := context.Background()

	app, err := c.CreateApplication(ctx, &ApplicationRequest{Name: "CRM"})
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	if app.ID != "app-1" {
		t.Errorf("id = %q", app.ID)
	}
	if _, ok := decodeBody(t, h.body)["description"]; ok {
		t.Error("empty description should be omitted")
	}

	h.statusCode = http.StatusOK
	if _, err := c.GetApplication(ctx, "app-1"); err != nil {
		t.Fatalf("GetApplication: %v", err)
	}
	if h.method != http.MethodGet || h.path != "/api/applications/app-1" {
		t.Errorf("request = %s %s", h.method, h.path)
	}

	h.statusCode = http.StatusNoContent
	h.responseBody = ""
	if err := c.DeleteApplication(ctx, "app-1"); err != nil {
		t.Fatalf("DeleteApplication: %v", err)
	}
	if h.method != http.MethodDelete || h.path != "/api/applications/app-1" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
}

func TestHTTPClient_CreateSchema(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusCreated,
		responseBody: `{"id":"sch-1","name":"contact","fields":[{"name":"email","type":"string","required":true}]}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	s, err := c.CreateSchema(context.Background(), &SchemaRequest{
		ApplicationID: "app-1",
		Name:          "contact",
		Fields:        []model.FieldDef{{Name: "email", Type: model.FieldTypeString, Required: true}},
	})
	if err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}
	body := decodeBody(t, h.body)
	if body["application_id"] != "app-1" || body["name"] != "contact" {
		t.Errorf("body = %v", body)
	}
	fields, ok := body["fields"].([]any)
	if !ok || len(fields) != 1 {
		t.Fatalf("fields = %v", body["fields"])
	}
	if len(s.Fields) != 1 || !s.Fields[0].Required {
		t.Errorf("schema = %+v", s)
	}
}

func TestHTTPClient_UpdateSchema_OmitsApplication(t *testing.T) {
	h := &testHandler{responseBody: `{"id":"sch-1","name":"contact","fields":[]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.UpdateSchema(context.Background(), "sch-1", &SchemaRequest{ApplicationID: "app-1", Name: "contact"})
	if err != nil {
		t.Fatalf("UpdateSchema: %v", err)
	}
	if h.method != http.MethodPatch || h.path != "/api/schemas/sch-1" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	body := decodeBody(t, h.body)
	if _, ok := body["application_id"]; ok {
		t.Error("update should not send application_id")
	}
	if body["fields"] != nil {
		t.Errorf("fields = %v, want null for nil slice", body["fields"])
	}
}

func TestHTTPClient_ListSchemas_ByApplication(t *testing.T) {
	h := &testHandler{responseBody: `{"schemas":[],"total":0}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	list, err := c.ListSchemas(context.Background(), &ListOptions{ApplicationID: "app-1"})
	if err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	if h.query != "application_id=app-1" {
		t.Errorf("query = %q", h.query)
	}
	if list.Schemas == nil {
		t.Error("schemas should decode as an empty slice")
	}
}

func TestHTTPClient_Entities(t *testing.T) {
	h := &testHandler{statusCode: http.StatusCreated, responseBody: `{"id":"ent-1","schema_id":"sch-1","data":{"email":"a@example.com"}}`}
	c, srv := newTestClient(h)
	defer srv.Close()
	ctx := context.Background()

	e, err := c.CreateEntity(ctx, "sch-1", json.RawMessage(`{"email":"a@example.com"}`))
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if h.path != "/api/entities" {
		t.Errorf("path = %q", h.path)
	}
	if !strings.Contains(h.body, `"schema_id":"sch-1"`) || !strings.Contains(h.body, `"data":{"email":"a@example.com"}`) {
		t.Errorf("body = %s", h.body)
	}
	if string(e.Data) != `{"email":"a@example.com"}` {
		t.Errorf("data = %s", e.Data)
	}

	h.statusCode = http.StatusOK
	if _, err := c.UpdateEntity(ctx, "ent-1", json.RawMessage(`{"phone":null}`)); err != nil {
		t.Fatalf("UpdateEntity: %v", err)
	}
	if h.method != http.MethodPatch || h.body != `{"data":{"phone":null}}` {
		t.Errorf("request = %s %s", h.method, h.body)
	}

	h.responseBody = `{"entities":[],"total":0}`
	if _, err := c.ListEntities(ctx, &ListOptions{SchemaID: "sch-1", Search: "ann"}); err != nil {
		t.Fatalf("ListEntities: %v", err)
	}
	if h.query != "schema_id=sch-1&search=ann" {
		t.Errorf("query = %q", h.query)
	}
}

func TestHTTPClient_ExecuteTool(t *testing.T) {
	h := &testHandler{responseBody: `{"tool_id":"tool-1","output":"teapot","duration_ns":1500,"error":"upstream returned 418"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	res, err := c.ExecuteTool(context.Background(), "tool-1", json.RawMessage(`{"q":"x"}`))
	if err != nil {
		t.Fatalf("ExecuteTool: %v", err)
	}
	if h.path != "/api/tools/tool-1/execute" || h.body != `{"input":{"q":"x"}}` {
		t.Errorf("request = %s %s", h.path, h.body)
	}
	if res.Output != "teapot" || res.Error != "upstream returned 418" || res.Duration != 1500 {
		t.Errorf("result = %+v", res)
	}
}

func TestHTTPClient_BotLifecycle(t *testing.T) {
	h := &testHandler{}
	c, srv := newTestClient(h)
	defer srv.Close()
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func() (*model.BotInstance, error)
		method string
		path   string
	}{
		{"start", func() (*model.BotInstance, error) { return c.StartBot(ctx, "bot-1") }, http.MethodPost, "/api/bots/bot-1/start"},
		{"stop", func() (*model.BotInstance, error) { return c.StopBot(ctx, "bot-1") }, http.MethodPost, "/api/bots/bot-1/stop"},
		{"status", func() (*model.BotInstance, error) { return c.BotStatus(ctx, "bot-1") }, http.MethodGet, "/api/bots/bot-1/status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.responseBody = `{"id":"inst-1","bot_id":"bot-1","status":"running"}`
			inst, err := tt.call()
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if h.method != tt.method || h.path != tt.path {
				t.Errorf("request = %s %s, want %s %s", h.method, h.path, tt.method, tt.path)
			}
			if inst.Status != model.InstanceRunning {
				t.Errorf("status = %q", inst.Status)
			}
		})
	}
}

func TestHTTPClient_Chat(t *testing.T) {
	h := &testHandler{responseBody: `{
		"message":{"id":"msg-1","role":"user","content":"hi"},
		"reply":{"id":"msg-2","role":"assistant","content":"hello"},
		"tool_runs":[]
	}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	res, err := c.Chat(context.Background(), "bot-1", "hi")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if h.path != "/api/bots/bot-1/chat" || h.body != `{"message":"hi"}` {
		t.Errorf("request = %s %s", h.path, h.body)
	}
	if res.Reply == nil || res.Reply.Content != "hello" || res.Reply.Role != model.RoleAssistant {
		t.Errorf("reply = %+v", res.Reply)
	}
}

func TestHTTPClient_History(t *testing.T) {
	h := &testHandler{responseBody: `{"messages":[{"id":"msg-1","content":"hi"},{"id":"msg-2","content":"hello"}],"total":2}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	msgs, err := c.History(context.Background(), "bot-1", 20)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if h.path != "/api/bots/bot-1/history" || h.query != "limit=20" {
		t.Errorf("request = %s?%s", h.path, h.query)
	}
	if len(msgs) != 2 || msgs[1].Content != "hello" {
		t.Errorf("messages = %+v", msgs)
	}

	if _, err := c.History(context.Background(), "bot-1", 0); err != nil {
		t.Fatalf("History: %v", err)
	}
	if h.query != "" {
		t.Errorf("query = %q, want none for zero limit", h.query)
	}
}

func TestHTTPClient_Builds(t *testing.T) {
	h := &testHandler{statusCode: http.StatusAccepted, responseBody: `{"id":"bld-1","application_id":"app-1","status":"queued"}`}
	c, srv := newTestClient(h)
	defer srv.Close()
	ctx := context.Background()

	b, err := c.RequestBuild(ctx, "app-1")
	if err != nil {
		t.Fatalf("RequestBuild: %v", err)
	}
	if h.method != http.MethodPost || h.path != "/api/applications/app-1/builds" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.contentType != "" {
		t.Errorf("Content-Type = %q, want none without a body", h.contentType)
	}
	if b.Status != model.BuildQueued {
		t.Errorf("status = %q", b.Status)
	}

	h.statusCode = http.StatusOK
	h.responseBody = `{"id":"bld-1","status":"succeeded","artifacts":["s3://bucket/app-1.tar.gz"]}`
	b, err = c.GetBuild(ctx, "bld-1")
	if err != nil {
		t.Fatalf("GetBuild: %v", err)
	}
	if h.path != "/api/builds/bld-1" || !b.Status.IsDone() || len(b.Artifacts) != 1 {
		t.Errorf("build = %+v (path %s)", b, h.path)
	}
}

func TestHTTPClient_PathEscape(t *testing.T) {
	h := &testHandler{responseBody: `{"id":"a/b"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.GetBot(context.Background(), "a/b"); err != nil {
		t.Fatalf("GetBot: %v", err)
	}
	if h.path != "/api/bots/a/b" {
		t.Errorf("decoded path = %q", h.path)
	}
}

// --- Error handling ---

func TestHTTPClient_Error_JSONBody(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusBadRequest,
		responseBody: `{"error": "name is required"}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.CreateBot(context.Background(), &BotRequest{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.Message != "name is required" {
		t.Errorf("message = %q, want 'name is required'", apiErr.Message)
	}
	if err.Error() != "HTTP 400: name is required" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestHTTPClient_Error_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway\n"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.GetSchema(context.Background(), "sch-1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "bad gateway" {
		t.Errorf("error = %+v", apiErr)
	}
}

func TestHTTPClient_Error_Conflict(t *testing.T) {
	h := &testHandler{statusCode: http.StatusConflict, responseBody: `{"error":"bot is already running"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.StartBot(context.Background(), "bot-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("err = %v, want 409 APIError", err)
	}
}

func TestHTTPClient_Error_BadResponse(t *testing.T) {
	h := &testHandler{responseBody: `not json`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.GetEntity(context.Background(), "ent-1")
	if err == nil || !strings.Contains(err.Error(), "decoding response") {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestHTTPClient_Error_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, "")
	_, err := c.Health(context.Background())
	if err == nil || !strings.Contains(err.Error(), "performing request") {
		t.Fatalf("err = %v, want transport error", err)
	}
}

func TestWithQuery(t *testing.T) {
	tests := []struct {
		opts *ListOptions
		want string
	}{
		{nil, "/x"},
		{&ListOptions{}, "/x"},
		{&ListOptions{Limit: 5}, "/x?limit=5"},
		{&ListOptions{ApplicationID: "app 1"}, "/x?application_id=app+1"},
		{&ListOptions{Limit: -1, Offset: 0}, "/x"},
	}
	for _, tt := range tests {
		if got := withQuery("/x", tt.opts); got != tt.want {
			t.Errorf("withQuery(%+v) = %q, want %q", tt.opts, got, tt.want)
		}
	}
}
