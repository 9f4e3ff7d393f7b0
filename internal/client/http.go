package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// HTTPClient implements Client using the lowcode REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a client targeting baseURL (e.g.
// "http://localhost:8080"). When token is non-empty it is sent as a bearer
// token on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- accounts ---

func (c *HTTPClient) Register(ctx context.Context, email, password, name string) (*Session, error) {
	body := map[string]string{"email": email, "password": password, "name": name}
	var s Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/register", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var s Session
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/login", body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// --- applications ---

func (c *HTTPClient) ListApplications(ctx context.Context, opts *ListOptions) (*ApplicationList, error) {
	var resp ApplicationList
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/applications", opts), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateApplication(ctx context.Context, req *ApplicationRequest) (*model.Application, error) {
	var app model.Application
	if err := c.doJSON(ctx, http.MethodPost, "/api/applications", req, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *HTTPClient) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	var app model.Application
	if err := c.doJSON(ctx, http.MethodGet, "/api/applications/"+url.PathEscape(id), nil, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (c *HTTPClient) DeleteApplication(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/applications/"+url.PathEscape(id), nil, nil)
}

// --- schemas ---

func (c *HTTPClient) ListSchemas(ctx context.Context, opts *ListOptions) (*SchemaList, error) {
	var resp SchemaList
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/schemas", opts), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateSchema(ctx context.Context, req *SchemaRequest) (*model.Schema, error) {
	var s model.Schema
	if err := c.doJSON(ctx, http.MethodPost, "/api/schemas", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) GetSchema(ctx context.Context, id string) (*model.Schema, error) {
	var s model.Schema
	if err := c.doJSON(ctx, http.MethodGet, "/api/schemas/"+url.PathEscape(id), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSchema replaces the name, description and fields of a schema. The
// application a schema belongs to cannot change, so it is not sent.
func (c *HTTPClient) UpdateSchema(ctx context.Context, id string, req *SchemaRequest) (*model.Schema, error) {
	body := map[string]any{"name": req.Name, "description": req.Description, "fields": req.Fields}
	var s model.Schema
	if err := c.doJSON(ctx, http.MethodPatch, "/api/schemas/"+url.PathEscape(id), body, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *HTTPClient) DeleteSchema(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/schemas/"+url.PathEscape(id), nil, nil)
}

// --- entities ---

func (c *HTTPClient) ListEntities(ctx context.Context, opts *ListOptions) (*EntityList, error) {
	var resp EntityList
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/entities", opts), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateEntity(ctx context.Context, schemaID string, data json.RawMessage) (*model.Entity, error) {
	body := map[string]any{"schema_id": schemaID, "data": data}
	var e model.Entity
	if err := c.doJSON(ctx, http.MethodPost, "/api/entities", body, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *HTTPClient) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	var e model.Entity
	if err := c.doJSON(ctx, http.MethodGet, "/api/entities/"+url.PathEscape(id), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEntity merges data into the entity's stored data; null values
// remove keys.
func (c *HTTPClient) UpdateEntity(ctx context.Context, id string, data json.RawMessage) (*model.Entity, error) {
	var e model.Entity
	if err := c.doJSON(ctx, http.MethodPatch, "/api/entities/"+url.PathEscape(id), map[string]any{"data": data}, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *HTTPClient) DeleteEntity(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/entities/"+url.PathEscape(id), nil, nil)
}

// --- tools ---

func (c *HTTPClient) ListTools(ctx context.Context, opts *ListOptions) (*ToolList, error) {
	var resp ToolList
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/tools", opts), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateTool(ctx context.Context, req *ToolRequest) (*model.BotTool, error) {
	var t model.BotTool
	if err := c.doJSON(ctx, http.MethodPost, "/api/tools", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *HTTPClient) DeleteTool(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/tools/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ExecuteTool(ctx context.Context, id string, input json.RawMessage) (*ToolResult, error) {
	var res ToolResult
	body := map[string]any{"input": input}
	if err := c.doJSON(ctx, http.MethodPost, "/api/tools/"+url.PathEscape(id)+"/execute", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- bots ---

func (c *HTTPClient) ListBots(ctx context.Context, opts *ListOptions) (*BotList, error) {
	var resp BotList
	if err := c.doJSON(ctx, http.MethodGet, withQuery("/api/bots", opts), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateBot(ctx context.Context, req *BotRequest) (*model.Bot, error) {
	var b model.Bot
	if err := c.doJSON(ctx, http.MethodPost, "/api/bots", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPClient) GetBot(ctx context.Context, id string) (*model.Bot, error) {
	var b model.Bot
	if err := c.doJSON(ctx, http.MethodGet, "/api/bots/"+url.PathEscape(id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPClient) DeleteBot(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/bots/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) StartBot(ctx context.Context, id string) (*model.BotInstance, error) {
	return c.instance(ctx, http.MethodPost, id, "start")
}

func (c *HTTPClient) StopBot(ctx context.Context, id string) (*model.BotInstance, error) {
	return c.instance(ctx, http.MethodPost, id, "stop")
}

func (c *HTTPClient) BotStatus(ctx context.Context, id string) (*model.BotInstance, error) {
	return c.instance(ctx, http.MethodGet, id, "status")
}

func (c *HTTPClient) instance(ctx context.Context, method, id, action string) (*model.BotInstance, error) {
	var inst model.BotInstance
	if err := c.doJSON(ctx, method, "/api/bots/"+url.PathEscape(id)+"/"+action, nil, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (c *HTTPClient) Chat(ctx context.Context, id, message string) (*ChatResult, error) {
	var res ChatResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/bots/"+url.PathEscape(id)+"/chat", map[string]string{"message": message}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) History(ctx context.Context, id string, limit int) ([]*model.ChatMessage, error) {
	var resp struct {
		Messages []*model.ChatMessage `json:"messages"`
	}
	path := withQuery("/api/bots/"+url.PathEscape(id)+"/history", &ListOptions{Limit: limit})
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// --- builds ---

func (c *HTTPClient) RequestBuild(ctx context.Context, applicationID string) (*model.Build, error) {
	var b model.Build
	if err := c.doJSON(ctx, http.MethodPost, "/api/applications/"+url.PathEscape(applicationID)+"/builds", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *HTTPClient) ListBuilds(ctx context.Context, applicationID string) (*BuildList, error) {
	var resp BuildList
	if err := c.doJSON(ctx, http.MethodGet, "/api/applications/"+url.PathEscape(applicationID)+"/builds", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetBuild(ctx context.Context, id string) (*model.Build, error) {
	var b model.Build
	if err := c.doJSON(ctx, http.MethodGet, "/api/builds/"+url.PathEscape(id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// --- internal helpers ---

// withQuery appends the non-zero list options to path.
func withQuery(path string, opts *ListOptions) string {
	if opts == nil {
		return path
	}
	q := url.Values{}
	if opts.ApplicationID != "" {
		q.Set("application_id", opts.ApplicationID)
	}
	if opts.SchemaID != "" {
		q.Set("schema_id", opts.SchemaID)
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
