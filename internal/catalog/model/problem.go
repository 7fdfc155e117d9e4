package model

import "time"

// DevStatus is the staff-facing lifecycle state of a problem.
type DevStatus string

const (
	StatusInProgress DevStatus = "IN_PROGRESS"
	StatusNeedReview DevStatus = "NEED_REVIEW"
	StatusPublished  DevStatus = "PUBLISHED"
	StatusRejected   DevStatus = "REJECTED"
	StatusArchived   DevStatus = "ARCHIVED"
)

// transitions is the allowed lifecycle graph. IN_PROGRESS is initial,
// ARCHIVED is terminal.
var transitions = map[DevStatus][]DevStatus{
	StatusInProgress: {StatusNeedReview},
	StatusNeedReview: {StatusPublished, StatusRejected},
	StatusPublished:  {StatusArchived},
	StatusRejected:   {StatusInProgress},
	StatusArchived:   {},
}

// Valid reports whether the status is a known lifecycle state.
func (s DevStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the lifecycle graph allows moving from s to next.
func (s DevStatus) CanTransition(next DevStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ListMode controls how a header/function list is interpreted.
type ListMode string

const (
	ModeAllowed    ListMode = "ALLOWED"
	ModeDisallowed ListMode = "DISALLOWED"
)

// Valid reports whether the mode is known.
func (m ListMode) Valid() bool {
	return m == ModeAllowed || m == ModeDisallowed
}

// DefaultTimeLimitMS is the execution time limit applied when a problem
// does not configure one.
const DefaultTimeLimitMS = 100

// Problem is a catalog entry. SolutionCode is the sole ground truth for
// expected outputs and is never exposed to member callers.
type Problem struct {
	ID              int64
	Title           string
	Description     string
	DefaultCode     string
	SolutionCode    string
	Difficulty      float64
	TimeLimitMS     int
	HeaderMode      ListMode
	Headers         []string
	FunctionMode    ListMode
	Functions       []string
	Tags            []string
	DevStatus       DevStatus
	RejectedMessage string
	AuthorID        int64
	AuthorName      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidDifficulty reports whether d sits on the half-point lattice
// {0.5, 1.0, ..., 5.0}.
func ValidDifficulty(d float64) bool {
	if d < 0.5 || d > 5.0 {
		return false
	}
	doubled := d * 2
	return doubled == float64(int64(doubled))
}

// MinDifficulty and MaxDifficulty bound the difficulty lattice.
const (
	MinDifficulty = 0.5
	MaxDifficulty = 5.0
)
