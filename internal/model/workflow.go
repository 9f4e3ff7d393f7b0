package model

import (
	"encoding/json"
	"time"
)

// WorkflowTrigger names what starts a workflow.
type WorkflowTrigger string

const (
	TriggerManual        WorkflowTrigger = "manual"
	TriggerEntityCreated WorkflowTrigger = "entity_created"
	TriggerEntityUpdated WorkflowTrigger = "entity_updated"
	TriggerSchedule      WorkflowTrigger = "schedule"
)

// IsValid checks whether the trigger is a known value.
func (t WorkflowTrigger) IsValid() bool {
	switch t {
	case TriggerManual, TriggerEntityCreated, TriggerEntityUpdated, TriggerSchedule:
		return true
	}
	return false
}

// Workflow is an ordered list of actions attached to an application.
type Workflow struct {
	ID            string            `json:"id"`
	ApplicationID string            `json:"application_id"`
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	Trigger       WorkflowTrigger   `json:"trigger"`
	Enabled       bool              `json:"enabled"`
	Actions       []*WorkflowAction `json:"actions"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// WorkflowAction is a single step of a Workflow.
type WorkflowAction struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	Position   int             `json:"position"`
	Type       string          `json:"type"`
	Config     json.RawMessage `json:"config,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
