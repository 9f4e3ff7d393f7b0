package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// Every route except health, register and login requires a bearer token.
func (s *Server) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/users/register", s.handleRegister)
	mux.HandleFunc("POST /api/users/login", s.handleLogin)
	mux.HandleFunc("GET /api/users/me", s.handleMe)
	mux.HandleFunc("GET /api/users/me/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/users/me/settings", s.handlePutSettings)

	mux.HandleFunc("GET /api/applications", s.handleListApplications)
	mux.HandleFunc("POST /api/applications", s.handleCreateApplication)
	mux.HandleFunc("GET /api/applications/{id}", s.handleGetApplication)
	mux.HandleFunc("PATCH /api/applications/{id}", s.handleUpdateApplication)
	mux.HandleFunc("DELETE /api/applications/{id}", s.handleDeleteApplication)
	mux.HandleFunc("GET /api/applications/{id}/components", s.handleListComponents)
	mux.HandleFunc("POST /api/applications/{id}/components", s.handleCreateComponent)
	mux.HandleFunc("DELETE /api/components/{id}", s.handleDeleteComponent)
	mux.HandleFunc("POST /api/applications/{id}/builds", s.handleRequestBuild)
	mux.HandleFunc("GET /api/applications/{id}/builds", s.handleListBuilds)
	mux.HandleFunc("GET /api/builds/{id}", s.handleGetBuild)

	mux.HandleFunc("GET /api/features", s.handleListFeatures)
	mux.HandleFunc("POST /api/features", s.handleCreateFeature)
	mux.HandleFunc("GET /api/features/{id}", s.handleGetFeature)
	mux.HandleFunc("PATCH /api/features/{id}", s.handleUpdateFeature)
	mux.HandleFunc("DELETE /api/features/{id}", s.handleDeleteFeature)

	// Models are schemas under their front-end name.
	for _, base := range []string{"/api/schemas", "/api/models"} {
		mux.HandleFunc("GET "+base, s.handleListSchemas)
		mux.HandleFunc("POST "+base, s.handleCreateSchema)
		mux.HandleFunc("GET "+base+"/{id}", s.handleGetSchema)
		mux.HandleFunc("PATCH "+base+"/{id}", s.handleUpdateSchema)
		mux.HandleFunc("DELETE "+base+"/{id}", s.handleDeleteSchema)
		mux.HandleFunc("GET "+base+"/{id}/entities", s.handleListSchemaEntities)
	}

	mux.HandleFunc("GET /api/entities", s.handleListEntities)
	mux.HandleFunc("POST /api/entities", s.handleCreateEntity)
	mux.HandleFunc("GET /api/entities/{id}", s.handleGetEntity)
	mux.HandleFunc("PATCH /api/entities/{id}", s.handleUpdateEntity)
	mux.HandleFunc("DELETE /api/entities/{id}", s.handleDeleteEntity)

	mux.HandleFunc("GET /api/relationships", s.handleListRelationships)
	mux.HandleFunc("POST /api/relationships", s.handleCreateRelationship)
	mux.HandleFunc("GET /api/relationships/{id}", s.handleGetRelationship)
	mux.HandleFunc("DELETE /api/relationships/{id}", s.handleDeleteRelationship)

	mux.HandleFunc("GET /api/prompts", s.handleListPrompts)
	mux.HandleFunc("POST /api/prompts", s.handleCreatePrompt)
	mux.HandleFunc("GET /api/prompts/{id}", s.handleGetPrompt)
	mux.HandleFunc("DELETE /api/prompts/{id}", s.handleDeletePrompt)
	mux.HandleFunc("GET /api/prompts/{id}/versions", s.handleListPromptVersions)
	mux.HandleFunc("POST /api/prompts/{id}/versions", s.handleAddPromptVersion)
	mux.HandleFunc("POST /api/prompts/{id}/render", s.handleRenderPrompt)

	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("POST /api/tools", s.handleCreateTool)
	mux.HandleFunc("GET /api/tools/{id}", s.handleGetTool)
	mux.HandleFunc("PATCH /api/tools/{id}", s.handleUpdateTool)
	mux.HandleFunc("DELETE /api/tools/{id}", s.handleDeleteTool)
	mux.HandleFunc("POST /api/tools/{id}/execute", s.handleExecuteTool)

	mux.HandleFunc("GET /api/bots", s.handleListBots)
	mux.HandleFunc("POST /api/bots", s.handleCreateBot)
	mux.HandleFunc("GET /api/bots/{id}", s.handleGetBot)
	mux.HandleFunc("PATCH /api/bots/{id}", s.handleUpdateBot)
	mux.HandleFunc("DELETE /api/bots/{id}", s.handleDeleteBot)
	mux.HandleFunc("POST /api/bots/{id}/start", s.handleStartBot)
	mux.HandleFunc("POST /api/bots/{id}/stop", s.handleStopBot)
	mux.HandleFunc("GET /api/bots/{id}/status", s.handleBotStatus)
	mux.HandleFunc("POST /api/bots/{id}/chat", s.handleChat)
	mux.HandleFunc("GET /api/bots/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/bots/{id}/presence", s.handlePresence)

	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("PATCH /api/workflows/{id}", s.handleUpdateWorkflow)
	mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDeleteWorkflow)
	mux.HandleFunc("POST /api/workflows/{id}/actions", s.handleAddWorkflowAction)
	mux.HandleFunc("DELETE /api/workflows/{id}/actions/{action_id}", s.handleDeleteWorkflowAction)

	mux.HandleFunc("GET /api/events", s.handleListEvents)
	mux.HandleFunc("GET /api/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)

	return RequestLogger(s.logger, Recovery(s.logger, AuthMiddleware(s.issuer, mux)))
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody decodes the JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return inputError("invalid JSON body")
}

// listOptions reads limit and offset from the query string.
func listOptions(r *http.Request) (model.ListOptions, error) {
	q := r.URL.Query()
	var opts model.ListOptions
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, inputError(fmt.Sprintf("%s must be a non-negative integer", p.name))
		}
		*p.dst = n
	}
	opts.Search = q.Get("search")
	return opts.Normalize(), nil
}

// writeList writes {"<key>": items, "total": total} with items never null.
func writeList[T any](w http.ResponseWriter, key string, items []T, total int) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{key: items, "total": total})
}
