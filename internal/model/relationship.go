package model

import "time"

// RelationshipType is the cardinality of a relationship between two schemas.
type RelationshipType string

const (
	RelOneToOne   RelationshipType = "one_to_one"
	RelOneToMany  RelationshipType = "one_to_many"
	RelManyToOne  RelationshipType = "many_to_one"
	RelManyToMany RelationshipType = "many_to_many"
)

// IsValid checks whether the relationship type is a known value.
func (t RelationshipType) IsValid() bool {
	switch t {
	case RelOneToOne, RelOneToMany, RelManyToOne, RelManyToMany:
		return true
	}
	return false
}

// Relationship declares a foreign-key-like association between two schemas.
type Relationship struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Type           RelationshipType `json:"type"`
	SourceSchemaID string           `json:"source_schema_id"`
	TargetSchemaID string           `json:"target_schema_id"`
	SourceField    string           `json:"source_field,omitempty"`
	Description    string           `json:"description,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}
