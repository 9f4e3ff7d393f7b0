package model

import (
	"encoding/json"
	"time"
)

// User is an account that owns applications and bots.
type User struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	Name         string          `json:"name,omitempty"`
	PasswordHash string          `json:"-"`
	Settings     json.RawMessage `json:"settings,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
