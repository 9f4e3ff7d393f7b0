package model

import (
	"encoding/json"
	"time"
)

// Entity is a data record conforming to a Schema.
type Entity struct {
	ID        string          `json:"id"`
	SchemaID  string          `json:"schema_id"`
	Data      json.RawMessage `json:"data"`
	CreatedBy string          `json:"created_by,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
