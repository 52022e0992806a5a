package model

import "time"

// Job represents one docking execution for a project. A project owns at most
// one non-terminal job at a time.
type Job struct {
	ID          string     `json:"id"`
	Project     string     `json:"project"`
	Status      JobStatus  `json:"status"`
	NStruct     int        `json:"nstruct"`
	Current     int        `json:"current"`
	Percent     int        `json:"percent"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// DockTaskPayload is the asynq task body for a docking run.
type DockTaskPayload struct {
	JobID   string `json:"jobId"`
	Project string `json:"project"`
	NStruct int    `json:"nstruct"`
}

// Task type registered with the asynq mux
const TaskTypeDock = "dock:run"
