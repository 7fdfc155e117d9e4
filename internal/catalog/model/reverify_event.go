package model

import "time"

const (
	ProblemReverifyEventSolutionChanged = "problem.solution_changed"
)

// ProblemReverifyEvent asks the background verifier to re-derive every
// expected output of a problem after its solution code or time limit changed.
type ProblemReverifyEvent struct {
	EventType   string    `json:"event_type"`
	ProblemID   int64     `json:"problem_id"`
	RequestedAt time.Time `json:"requested_at"`
}
