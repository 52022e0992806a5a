package model

import "time"

// DockStartRequest represents the request to start a docking run
type DockStartRequest struct {
	Project string `json:"project" validate:"required,projectid"`
	NStruct int    `json:"nstruct" validate:"required,min=1"`
}

// DockStartResponse represents the response when a run is accepted
type DockStartResponse struct {
	JobID     string    `json:"jobId"`
	Project   string    `json:"project"`
	Status    JobStatus `json:"status"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

// DockCancelResponse acknowledges a cancel request. Status is "cancelled"
// when an active job was signalled and "not_found" otherwise.
type DockCancelResponse struct {
	Status  string `json:"status"`
	Project string `json:"project"`
}

// MergeRequest asks for two prepared structures to be combined into the
// engine input complex.
type MergeRequest struct {
	Project  string   `json:"project" validate:"required,projectid"`
	Receptor string   `json:"receptor" validate:"required"`
	Binder   string   `json:"binder" validate:"required"`
	Gap      *float64 `json:"gap" validate:"omitempty,min=0"`
}

// MergeResponse returns the path of the merged complex
type MergeResponse struct {
	Project     string  `json:"project"`
	ComplexPath string  `json:"complexPath"`
	Gap         float64 `json:"gap"`
}

// ScoreRecord is one completed model parsed from the score table. Metrics
// holds the named sub-metrics present in the table header; a column absent
// for this engine configuration is simply absent from the map.
type ScoreRecord struct {
	Score   float64            `json:"score"`
	Desc    string             `json:"desc"`
	Index   int                `json:"index"`
	PDBPath string             `json:"pdbPath,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// ResultSet is the final ranked outcome of a completed job, sorted ascending
// by total score. Best is nil when the engine produced no scorable output.
type ResultSet struct {
	AllModels []ScoreRecord `json:"allModels"`
	Best      *ScoreRecord  `json:"best,omitempty"`
}

// DockResultsResponse is the poll-final-state view of a ResultSet
type DockResultsResponse struct {
	Project   string        `json:"project"`
	Best      *ScoreRecord  `json:"best,omitempty"`
	AllModels []ScoreRecord `json:"allModels"`
}
