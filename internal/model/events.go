package model

import "math"

// Event is one message on a job's push stream. Implementations are plain
// structs whose JSON shape is stable regardless of transport.
type Event interface {
	Kind() EventType
}

type StartEvent struct {
	Type    EventType `json:"type"`
	Total   int       `json:"total"`
	Message string    `json:"message"`
}

type ProgressEvent struct {
	Type    EventType `json:"type"`
	Current int       `json:"current"`
	Total   int       `json:"total"`
	Percent int       `json:"percent"`
}

// ScoreEvent is the best-effort per-replicate signal parsed from the engine's
// output; it may race ahead of the authoritative progress counter.
type ScoreEvent struct {
	Type  EventType `json:"type"`
	Score float64   `json:"score"`
	Desc  string    `json:"desc"`
	Line  string    `json:"line"`
}

type CompleteEvent struct {
	Type      EventType     `json:"type"`
	BestScore float64       `json:"bestScore"`
	BestModel string        `json:"bestModel"`
	PDBPath   string        `json:"pdbPath"`
	Index     int           `json:"index"`
	AllModels []ScoreRecord `json:"allModels"`
}

type ErrorEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

// CancelledEvent is the terminal event for a cancelled job. It retains the
// progress and score records observed before termination.
type CancelledEvent struct {
	Type    EventType     `json:"type"`
	Current int           `json:"current"`
	Total   int           `json:"total"`
	Message string        `json:"message"`
	Scores  []ScoreRecord `json:"scores"`
}

func (e StartEvent) Kind() EventType     { return EventStart }
func (e ProgressEvent) Kind() EventType  { return EventProgress }
func (e ScoreEvent) Kind() EventType     { return EventScore }
func (e CompleteEvent) Kind() EventType  { return EventComplete }
func (e ErrorEvent) Kind() EventType     { return EventError }
func (e CancelledEvent) Kind() EventType { return EventCancelled }

func NewStartEvent(total int, message string) StartEvent {
	return StartEvent{Type: EventStart, Total: total, Message: message}
}

func NewProgressEvent(current, total int) ProgressEvent {
	return ProgressEvent{
		Type:    EventProgress,
		Current: current,
		Total:   total,
		Percent: ProgressPercent(current, total),
	}
}

func NewScoreEvent(score float64, desc, line string) ScoreEvent {
	return ScoreEvent{Type: EventScore, Score: score, Desc: desc, Line: line}
}

func NewCompleteEvent(rs ResultSet) CompleteEvent {
	ev := CompleteEvent{Type: EventComplete, AllModels: rs.AllModels}
	if rs.Best != nil {
		ev.BestScore = rs.Best.Score
		ev.BestModel = rs.Best.Desc
		ev.PDBPath = rs.Best.PDBPath
		ev.Index = rs.Best.Index
	}
	return ev
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}

func NewCancelledEvent(current, total int, scores []ScoreRecord) CancelledEvent {
	return CancelledEvent{
		Type:    EventCancelled,
		Current: current,
		Total:   total,
		Message: "docking cancelled by user",
		Scores:  scores,
	}
}

// ProgressPercent rounds 100*current/total, returning 0 when total is 0.
func ProgressPercent(current, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(current) / float64(total)))
}
