package model

import "time"

// InstanceStatus is the runtime state of a bot for one user.
type InstanceStatus string

const (
	InstanceStopped  InstanceStatus = "stopped"
	InstanceStarting InstanceStatus = "starting"
	InstanceRunning  InstanceStatus = "running"
	InstanceStopping InstanceStatus = "stopping"
	InstanceError    InstanceStatus = "error"
)

// IsValid checks whether the status is a known value.
func (s InstanceStatus) IsValid() bool {
	switch s {
	case InstanceStopped, InstanceStarting, InstanceRunning, InstanceStopping, InstanceError:
		return true
	}
	return false
}

// IsActive reports whether the instance is starting or running.
func (s InstanceStatus) IsActive() bool {
	return s == InstanceStarting || s == InstanceRunning
}

// CanTransition reports whether moving from s to next is allowed.
// Any in-flight state may fail into error.
func (s InstanceStatus) CanTransition(next InstanceStatus) bool {
	switch next {
	case InstanceStarting:
		return s == InstanceStopped || s == InstanceError
	case InstanceRunning:
		return s == InstanceStarting
	case InstanceStopping:
		return s == InstanceRunning
	case InstanceStopped:
		return s == InstanceStopping
	case InstanceError:
		return s == InstanceStarting || s == InstanceRunning || s == InstanceStopping
	}
	return false
}

// BotInstance is the per-user runtime record for a Bot.
type BotInstance struct {
	ID           string         `json:"id"`
	BotID        string         `json:"bot_id"`
	UserID       string         `json:"user_id"`
	Status       InstanceStatus `json:"status"`
	LastError    string         `json:"last_error,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	StoppedAt    *time.Time     `json:"stopped_at,omitempty"`
	LastHealthAt *time.Time     `json:"last_health_at,omitempty"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
