package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/alfredjeanlab/lowcode/internal/render"
)

// Default and max timeout for shell tools.
const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 300 * time.Second
)

type shellConfig struct {
	Command string            `json:"command"`
	Timeout int               `json:"timeout"` // seconds
	Dir     string            `json:"dir"`
	Env     map[string]string `json:"env"`
}

// runShell executes the configured command via "sh -c". Arguments are
// passed as TOOL_<NAME> environment variables, never spliced into the
// command text.
func (e *Executor) runShell(ctx context.Context, raw json.RawMessage, input map[string]any) (Result, error) {
	if !e.cfg.AllowShell {
		return Result{}, fmt.Errorf("shell: %w", ErrDisabled)
	}
	var cfg shellConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Result{}, fmt.Errorf("%w: shell config: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return Result{}, fmt.Errorf("%w: command is required", ErrInvalidInput)
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", cfg.Command) //nolint:gosec // shell tools are opt-in
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if cfg.Dir != "" {
		if info, err := os.Stat(cfg.Dir); err == nil && info.IsDir() {
			cmd.Dir = cfg.Dir
		}
	}
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	for k, v := range input {
		cmd.Env = append(cmd.Env, "TOOL_"+strings.ToUpper(k)+"="+render.Stringify(v))
	}

	err := cmd.Run()
	output := strings.TrimSpace(stdout.String())
	if output == "" {
		output = strings.TrimSpace(stderr.String())
	}
	var res Result
	res.Output, res.Truncated = truncateOutput(output)
	if runCtx.Err() == context.DeadlineExceeded {
		return res, fmt.Errorf("shell: timed out after %s", timeout)
	}
	if err != nil {
		return res, fmt.Errorf("shell: %w", err)
	}
	return res, nil
}
