package model

import "time"

// FieldType identifies the JSON type of a schema field.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeTimestamp FieldType = "timestamp"
	FieldTypeEnum      FieldType = "enum"
	FieldTypeStrings   FieldType = "string[]"
	FieldTypeEnums     FieldType = "enum[]"
	FieldTypeJSON      FieldType = "json"
	FieldTypeReference FieldType = "reference"
)

// IsValid checks whether the field type is a known value.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeString, FieldTypeInteger, FieldTypeFloat, FieldTypeBoolean,
		FieldTypeTimestamp, FieldTypeEnum, FieldTypeStrings, FieldTypeEnums,
		FieldTypeJSON, FieldTypeReference:
		return true
	}
	return false
}

// FieldDef describes a single typed field on a schema.
type FieldDef struct {
	Name     string    `json:"name" yaml:"name"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Values   []string  `json:"values,omitempty" yaml:"values,omitempty"` // allowed values for enum / enum[]
	Target   string    `json:"target,omitempty" yaml:"target,omitempty"` // schema id for reference fields
}

// Schema is a user-defined entity type. The API also exposes it as a "model".
type Schema struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id,omitempty"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Fields        []FieldDef `json:"fields"`
	CreatedBy     string     `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
