// Package tools runs the actions a bot may invoke: HTTP calls, shell
// commands and file access.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/llm"
	"github.com/alfredjeanlab/lowcode/internal/model"
	"github.com/alfredjeanlab/lowcode/internal/render"
)

var (
	// ErrDisabled is returned when a tool type is turned off by configuration.
	ErrDisabled = errors.New("tool type is disabled")
	// ErrInvalidInput wraps problems with the tool config or call arguments.
	ErrInvalidInput = errors.New("invalid tool input")
)

// Config controls what the executor is allowed to do.
type Config struct {
	AllowShell bool
	FileRoot   string // empty disables file tools
	HTTPClient *http.Client
}

// Result is the output of one tool call.
type Result struct {
	Output    string        `json:"output"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Executor dispatches tool calls by tool type.
type Executor struct {
	cfg Config
}

// New returns an Executor for cfg.
func New(cfg Config) *Executor {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Executor{cfg: cfg}
}

// Execute runs tool with the given input arguments.
func (e *Executor) Execute(ctx context.Context, tool *model.BotTool, input map[string]any) (Result, error) {
	start := time.Now()
	var (
		res Result
		err error
	)
	switch tool.Type {
	case model.ToolTypeHTTP:
		res, err = e.runHTTP(ctx, tool.Config, input)
	case model.ToolTypeShell:
		res, err = e.runShell(ctx, tool.Config, input)
	case model.ToolTypeFile:
		res, err = e.runFile(tool.Config, input)
	default:
		err = fmt.Errorf("%w: unknown tool type %q", ErrInvalidInput, tool.Type)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("tool %s: %w", tool.Name, err)
	}
	return res, nil
}

// ParseArguments decodes a model-supplied argument object. Empty input is
// treated as no arguments.
func ParseArguments(raw json.RawMessage) (map[string]any, error) {
	input := map[string]any{}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return input, nil
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("%w: arguments must be a JSON object", ErrInvalidInput)
	}
	return input, nil
}

// Spec describes tool to the model. An explicit "parameters" JSON Schema in
// the config wins; otherwise every placeholder becomes a string property.
func Spec(tool *model.BotTool) llm.ToolSpec {
	var cfg struct {
		Parameters json.RawMessage   `json:"parameters"`
		URL        string            `json:"url"`
		Body       string            `json:"body"`
		Path       string            `json:"path"`
		Headers    map[string]string `json:"headers"`
	}
	_ = json.Unmarshal(tool.Config, &cfg)
	spec := llm.ToolSpec{Name: tool.Name, Description: tool.Description}
	if len(cfg.Parameters) > 0 {
		spec.Parameters = cfg.Parameters
		return spec
	}

	texts := []string{cfg.URL, cfg.Body, cfg.Path}
	for _, v := range cfg.Headers {
		texts = append(texts, v)
	}
	props := map[string]any{}
	for _, name := range render.Placeholders(texts...) {
		props[name] = map[string]string{"type": "string"}
	}
	if tool.Type == model.ToolTypeFile {
		props["content"] = map[string]string{"type": "string", "description": "content to write"}
	}
	schema := map[string]any{"type": "object", "properties": props}
	b, _ := json.Marshal(schema)
	spec.Parameters = b
	return spec
}
