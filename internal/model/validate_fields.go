package model

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
)

// ValidateFields checks that the given data JSON conforms to the provided
// field definitions. It rejects unknown keys, validates types, and enforces
// required constraints. Returns a *ValidationError on failure, nil on success.
func ValidateFields(data json.RawMessage, defs []FieldDef) error {
	if len(data) == 0 {
		for _, d := range defs {
			if d.Required {
				return &ValidationError{Errors: []FieldError{{
					Field:   d.Name,
					Message: "is required",
				}}}
			}
		}
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return &ValidationError{Errors: []FieldError{{
			Field:   "data",
			Message: "must be a JSON object",
		}}}
	}

	defsByName := make(map[string]*FieldDef, len(defs))
	for i := range defs {
		defsByName[defs[i].Name] = &defs[i]
	}

	var ve ValidationError

	for key := range m {
		if _, ok := defsByName[key]; !ok {
			ve.add(key, "unknown field")
		}
	}

	for _, d := range defs {
		val, present := m[d.Name]
		if !present || val == nil {
			if d.Required {
				ve.add(d.Name, "is required")
			}
			continue
		}
		if err := validateFieldValue(d, val); err != nil {
			ve.add(d.Name, err.Error())
		}
	}

	return ve.err()
}

func validateFieldValue(d FieldDef, val any) error {
	switch d.Type {
	case FieldTypeString:
		if _, ok := val.(string); !ok {
			return fmt.Errorf("must be a string")
		}
	case FieldTypeInteger:
		n, ok := val.(float64)
		if !ok || n != math.Trunc(n) {
			return fmt.Errorf("must be an integer")
		}
	case FieldTypeFloat:
		if _, ok := val.(float64); !ok {
			return fmt.Errorf("must be a number")
		}
	case FieldTypeBoolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("must be a boolean")
		}
	case FieldTypeTimestamp:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("must be an RFC 3339 timestamp string")
		}
		if _, err := time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("must be an RFC 3339 timestamp string")
		}
	case FieldTypeEnum:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		if !slices.Contains(d.Values, s) {
			return fmt.Errorf("must be one of %v", d.Values)
		}
	case FieldTypeStrings:
		arr, ok := val.([]any)
		if !ok {
			return fmt.Errorf("must be an array of strings")
		}
		for _, elem := range arr {
			if _, ok := elem.(string); !ok {
				return fmt.Errorf("must be an array of strings")
			}
		}
	case FieldTypeEnums:
		arr, ok := val.([]any)
		if !ok {
			return fmt.Errorf("must be an array of strings")
		}
		for _, elem := range arr {
			s, ok := elem.(string)
			if !ok {
				return fmt.Errorf("must be an array of strings")
			}
			if !slices.Contains(d.Values, s) {
				return fmt.Errorf("array element %q must be one of %v", s, d.Values)
			}
		}
	case FieldTypeReference:
		if s, ok := val.(string); !ok || s == "" {
			return fmt.Errorf("must be a non-empty entity id")
		}
	case FieldTypeJSON:
		// Any valid JSON value is accepted.
	default:
		return fmt.Errorf("unknown field type %q", d.Type)
	}
	return nil
}

// ReferencedIDs returns the entity ids stored in reference fields of data,
// keyed by field name. Invalid data yields an empty map.
func ReferencedIDs(data json.RawMessage, defs []FieldDef) map[string]string {
	refs := make(map[string]string)
	var m map[string]any
	if len(data) == 0 || json.Unmarshal(data, &m) != nil {
		return refs
	}
	for _, d := range defs {
		if d.Type != FieldTypeReference {
			continue
		}
		if s, ok := m[d.Name].(string); ok && s != "" {
			refs[d.Name] = s
		}
	}
	return refs
}
