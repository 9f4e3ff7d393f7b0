package postgres

import (
	"fmt"
	"strings"

	"github.com/alfredjeanlab/lowcode/internal/model"
)

// whereBuilder accumulates numbered-placeholder conditions for list queries.
type whereBuilder struct {
	clauses []string
	args    []any
}

// arg appends v to the argument list and returns its placeholder.
func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// add appends a condition; each %s in cond is replaced by the placeholder for v.
func (w *whereBuilder) add(cond string, v any) {
	p := w.arg(v)
	w.clauses = append(w.clauses, strings.ReplaceAll(cond, "%s", p))
}

// addIf is add when v is non-empty.
func (w *whereBuilder) addIf(cond, v string) {
	if v != "" {
		w.add(cond, v)
	}
}

func (w *whereBuilder) where() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT and OFFSET for the normalized options.
func (w *whereBuilder) page(opts model.ListOptions) string {
	opts = opts.Normalize()
	return " LIMIT " + w.arg(opts.Limit) + " OFFSET " + w.arg(opts.Offset)
}

// likePattern escapes s for use inside an ILIKE pattern.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
