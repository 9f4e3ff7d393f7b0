package model

import "time"

// BuildStatus is the lifecycle state of a build job.
type BuildStatus string

const (
	BuildQueued    BuildStatus = "queued"
	BuildRunning   BuildStatus = "running"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
)

// IsDone reports whether the build has finished, successfully or not.
func (s BuildStatus) IsDone() bool {
	return s == BuildSucceeded || s == BuildFailed
}

// Build records one background bundle export of an application.
type Build struct {
	ID            string      `json:"id"`
	ApplicationID string      `json:"application_id"`
	Status        BuildStatus `json:"status"`
	RequestedBy   string      `json:"requested_by,omitempty"`
	Artifacts     []string    `json:"artifacts,omitempty"`
	Bytes         int64       `json:"bytes"`
	Error         string      `json:"error,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	FinishedAt    *time.Time  `json:"finished_at,omitempty"`
}
