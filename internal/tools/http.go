package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/alfredjeanlab/lowcode/internal/render"
)

// MaxResponseBytes caps how much tool output is returned.
const MaxResponseBytes = 64 << 10

// truncateOutput cuts s to at most MaxResponseBytes without splitting a
// UTF-8 sequence.
func truncateOutput(s string) (string, bool) {
	if len(s) <= MaxResponseBytes {
		return s, false
	}
	n := MaxResponseBytes
	for n > MaxResponseBytes-utf8.UTFMax && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n], true
}

type httpConfig struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func (e *Executor) runHTTP(ctx context.Context, raw json.RawMessage, input map[string]any) (Result, error) {
	var cfg httpConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Result{}, fmt.Errorf("%w: http config: %v", ErrInvalidInput, err)
	}
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	target := render.Expand(cfg.URL, input, url.QueryEscape)
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{}, fmt.Errorf("%w: url must be an absolute http(s) URL", ErrInvalidInput)
	}

	var body io.Reader
	if cfg.Body != "" {
		body = strings.NewReader(render.Expand(cfg.Body, input, nil))
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, render.Expand(v, input, nil))
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.cfg.HTTPClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}
	var res Result
	res.Output, res.Truncated = truncateOutput(string(data))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return res, nil
}
