package model

import (
	"encoding/json"
	"time"
)

// Event is an audit record of a mutation.
type Event struct {
	ID         int64           `json:"id"`
	Topic      string          `json:"topic"`
	ResourceID string          `json:"resource_id"`
	Actor      string          `json:"actor,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}
