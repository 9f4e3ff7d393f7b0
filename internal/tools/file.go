package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/render"
)

type fileConfig struct {
	Path string `json:"path"`
	Mode string `json:"mode"` // "read" (default) or "write"
}

// resolve joins rel onto root and rejects results outside root.
func resolve(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		rel = strings.TrimPrefix(rel, string(filepath.Separator))
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	full := filepath.Join(absRoot, rel)
	r, err := filepath.Rel(absRoot, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path %q escapes the tool root", ErrInvalidInput, rel)
	}
	return full, nil
}

func (e *Executor) runFile(raw json.RawMessage, input map[string]any) (Result, error) {
	if e.cfg.FileRoot == "" {
		return Result{}, fmt.Errorf("file: %w", ErrDisabled)
	}
	var cfg fileConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Result{}, fmt.Errorf("%w: file config: %v", ErrInvalidInput, err)
	}
	rel := render.Expand(cfg.Path, input, nil)
	if strings.TrimSpace(rel) == "" {
		return Result{}, fmt.Errorf("%w: path is required", ErrInvalidInput)
	}
	path, err := resolve(e.cfg.FileRoot, rel)
	if err != nil {
		return Result{}, err
	}

	switch cfg.Mode {
	case "", "read":
		f, err := os.Open(path)
		if err != nil {
			return Result{}, fmt.Errorf("open file: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, MaxResponseBytes+1))
		if err != nil {
			return Result{}, fmt.Errorf("read file: %w", err)
		}
		var res Result
		res.Output, res.Truncated = truncateOutput(string(data))
		return res, nil
	case "write":
		content := render.Stringify(input["content"])
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Result{}, fmt.Errorf("create directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Result{}, fmt.Errorf("write file: %w", err)
		}
		return Result{Output: fmt.Sprintf("wrote %d bytes to %s", len(content), rel)}, nil
	default:
		return Result{}, fmt.Errorf("%w: unknown file mode %q", ErrInvalidInput, cfg.Mode)
	}
}
