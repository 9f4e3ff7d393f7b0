package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// Bounds on registration passwords. The upper bound is bcrypt's input
// limit, in bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func requireName(ve *ValidationError, field, val string, max int) {
	v := strings.TrimSpace(val)
	if v == "" {
		ve.add(field, "is required")
	} else if len([]rune(v)) > max {
		ve.add(field, fmt.Sprintf("must be %d characters or fewer", max))
	}
}

func requireObject(ve *ValidationError, field string, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		ve.add(field, "must be a JSON object")
	}
}

// ValidateRegistration checks the inputs of a new account.
func ValidateRegistration(email, password string) error {
	var ve ValidationError
	if strings.TrimSpace(email) == "" {
		ve.add("email", "is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		ve.add("email", "is not a valid address")
	}
	if password == "" {
		ve.add("password", "is required")
	} else if len(password) < MinPasswordLength {
		ve.add("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	} else if len(password) > MaxPasswordLength {
		ve.add("password", fmt.Sprintf("must be at most %d bytes", MaxPasswordLength))
	}
	return ve.err()
}

// ValidateApplication checks an Application for constraint violations.
func ValidateApplication(a *Application) error {
	var ve ValidationError
	requireName(&ve, "name", a.Name, 200)
	return ve.err()
}

// ValidateSchema checks a Schema and its field definitions.
func ValidateSchema(s *Schema) error {
	var ve ValidationError
	requireName(&ve, "name", s.Name, 200)
	var fe *ValidationError
	if errors.As(ValidateSchemaFields(s.Fields), &fe) {
		ve.Errors = append(ve.Errors, fe.Errors...)
	}
	return ve.err()
}

// ValidateSchemaFields checks that field definitions are well formed: names
// are unique identifiers, types are known, enums list their values and
// references name a target schema.
func ValidateSchemaFields(defs []FieldDef) error {
	var ve ValidationError
	seen := make(map[string]struct{}, len(defs))
	for i, d := range defs {
		field := fmt.Sprintf("fields[%d]", i)
		if d.Name == "" {
			ve.add(field+".name", "is required")
		} else if !identifierRE.MatchString(d.Name) {
			ve.add(field+".name", fmt.Sprintf("%q is not a valid identifier", d.Name))
		} else if _, dup := seen[d.Name]; dup {
			ve.add(field+".name", fmt.Sprintf("duplicate field %q", d.Name))
		} else {
			seen[d.Name] = struct{}{}
		}
		if !d.Type.IsValid() {
			ve.add(field+".type", fmt.Sprintf("invalid value %q", d.Type))
			continue
		}
		if (d.Type == FieldTypeEnum || d.Type == FieldTypeEnums) && len(d.Values) == 0 {
			ve.add(field+".values", "is required for enum fields")
		}
		if d.Type == FieldTypeReference && d.Target == "" {
			ve.add(field+".target", "is required for reference fields")
		}
	}
	return ve.err()
}

// ValidateEntity checks an entity's envelope; data is checked against the
// schema separately with ValidateFields.
func ValidateEntity(e *Entity) error {
	var ve ValidationError
	if e.SchemaID == "" {
		ve.add("schema_id", "is required")
	}
	requireObject(&ve, "data", e.Data)
	return ve.err()
}

// ValidateRelationship checks a Relationship for constraint violations.
func ValidateRelationship(r *Relationship) error {
	var ve ValidationError
	requireName(&ve, "name", r.Name, 200)
	if !r.Type.IsValid() {
		ve.add("type", fmt.Sprintf("invalid value %q", r.Type))
	}
	if r.SourceSchemaID == "" {
		ve.add("source_schema_id", "is required")
	}
	if r.TargetSchemaID == "" {
		ve.add("target_schema_id", "is required")
	}
	return ve.err()
}

// ValidateComponent checks a Component for constraint violations.
func ValidateComponent(c *Component) error {
	var ve ValidationError
	requireName(&ve, "name", c.Name, 200)
	if strings.TrimSpace(c.Type) == "" {
		ve.add("type", "is required")
	}
	requireObject(&ve, "config", c.Config)
	return ve.err()
}

// ValidateFeature checks a Feature for constraint violations.
func ValidateFeature(f *Feature) error {
	var ve ValidationError
	requireName(&ve, "name", f.Name, 200)
	if f.ApplicationID == "" {
		ve.add("application_id", "is required")
	}
	return ve.err()
}

// ValidatePromptVersion checks a PromptVersion for constraint violations.
func ValidatePromptVersion(v *PromptVersion) error {
	var ve ValidationError
	if strings.TrimSpace(v.SystemTemplate) == "" && strings.TrimSpace(v.UserTemplate) == "" {
		ve.add("system_template", "system_template or user_template is required")
	}
	requireObject(&ve, "variables", v.Variables)
	return ve.err()
}

// ValidateBot checks a Bot for constraint violations.
func ValidateBot(b *Bot) error {
	var ve ValidationError
	requireName(&ve, "name", b.Name, 200)
	if b.Temperature < 0 || b.Temperature > 2 {
		ve.add("temperature", fmt.Sprintf("must be between 0 and 2, got %g", b.Temperature))
	}
	return ve.err()
}

// ValidateTool checks a BotTool for constraint violations.
func ValidateTool(t *BotTool) error {
	var ve ValidationError
	requireName(&ve, "name", t.Name, 100)
	if t.Name != "" && !identifierRE.MatchString(t.Name) {
		ve.add("name", fmt.Sprintf("%q is not a valid identifier", t.Name))
	}
	if !t.Type.IsValid() {
		ve.add("type", fmt.Sprintf("invalid value %q", t.Type))
	}
	requireObject(&ve, "config", t.Config)
	return ve.err()
}

// ValidateWorkflow checks a Workflow for constraint violations.
func ValidateWorkflow(w *Workflow) error {
	var ve ValidationError
	requireName(&ve, "name", w.Name, 200)
	if w.ApplicationID == "" {
		ve.add("application_id", "is required")
	}
	if !w.Trigger.IsValid() {
		ve.add("trigger", fmt.Sprintf("invalid value %q", w.Trigger))
	}
	for i, a := range w.Actions {
		if strings.TrimSpace(a.Type) == "" {
			ve.add(fmt.Sprintf("actions[%d].type", i), "is required")
		}
		requireObject(&ve, fmt.Sprintf("actions[%d].config", i), a.Config)
	}
	return ve.err()
}

// ValidateUser checks a User for constraint violations.
func ValidateUser(u *User) error {
	var ve ValidationError
	if strings.TrimSpace(u.Email) == "" {
		ve.add("email", "is required")
	} else if _, err := mail.ParseAddress(u.Email); err != nil {
		ve.add("email", "is not a valid address")
	}
	if len([]rune(u.Name)) > 200 {
		ve.add("name", "must be 200 characters or fewer")
	}
	requireObject(&ve, "settings", u.Settings)
	return ve.err()
}
