package postgres

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/lowcode/internal/store"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// mapError translates driver errors into the store's sentinel errors.
// sql.ErrNoRows and nil pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return fmt.Errorf("%w: %s", store.ErrConflict, constraintName(pqErr))
	case pqForeignKeyViolation:
		return fmt.Errorf("%w: %s", store.ErrInvalidReference, constraintName(pqErr))
	}
	return err
}

func constraintName(e *pq.Error) string {
	if e.Constraint != "" {
		return e.Constraint
	}
	return e.Message
}
