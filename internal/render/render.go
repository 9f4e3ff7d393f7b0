// Package render expands {{name}} placeholders in prompt and tool templates.
package render

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

var placeholderRE = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Expand replaces {{name}} placeholders with vars. Unknown names become
// empty strings. escape, when set, is applied to each substituted value.
func Expand(tmpl string, vars map[string]any, escape func(string) string) string {
	return placeholderRE.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRE.FindStringSubmatch(m)[1]
		v := Stringify(vars[name])
		if escape != nil {
			v = escape(v)
		}
		return v
	})
}

// Stringify formats a JSON-decoded value for substitution.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// Placeholders returns the sorted, de-duplicated placeholder names used in
// the given templates.
func Placeholders(tmpls ...string) []string {
	seen := map[string]bool{}
	var names []string
	for _, t := range tmpls {
		for _, m := range placeholderRE.FindAllStringSubmatch(t, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	sort.Strings(names)
	return names
}

// Rendered is a prompt version with its variables applied.
type Rendered struct {
	PromptID string   `json:"prompt_id"`
	Version  int      `json:"version"`
	System   string   `json:"system"`
	User     string   `json:"user"`
	Missing  []string `json:"missing"`
}

// Prompt renders v. Values in vars override the version's stored defaults.
// Missing lists placeholders that had neither.
func Prompt(v *model.PromptVersion, vars map[string]any) (Rendered, error) {
	merged := map[string]any{}
	if len(v.Variables) > 0 {
		if err := json.Unmarshal(v.Variables, &merged); err != nil {
			return Rendered{}, fmt.Errorf("decode prompt variables: %w", err)
		}
	}
	for k, val := range vars {
		merged[k] = val
	}

	missing := []string{}
	for _, name := range Placeholders(v.SystemTemplate, v.UserTemplate) {
		if _, ok := merged[name]; !ok {
			missing = append(missing, name)
		}
	}
	return Rendered{
		PromptID: v.PromptID,
		Version:  v.Version,
		System:   Expand(v.SystemTemplate, merged, nil),
		User:     Expand(v.UserTemplate, merged, nil),
		Missing:  missing,
	}, nil
}
