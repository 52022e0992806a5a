package model

// Job status
type JobStatus string

const (
	JobStatusLaunching JobStatus = "launching"
	JobStatusRunning   JobStatus = "running"
	JobStatusComplete  JobStatus = "complete"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusComplete, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Event types pushed over the per-job stream
type EventType string

const (
	EventStart     EventType = "start"
	EventProgress  EventType = "progress"
	EventScore     EventType = "score"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
	EventCancelled EventType = "cancelled"
)

// Structure roles in a docking pair
type StructureRole string

const (
	RoleReceptor StructureRole = "receptor"
	RoleBinder   StructureRole = "binder"
)

// Chain labels assigned by the merger
const (
	ChainReceptor byte = 'A'
	ChainBinder   byte = 'B'
)
