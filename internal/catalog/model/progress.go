package model

import "time"

// ProgressStatus is the member-facing status of a problem, derived from
// the member's own submissions rather than the staff lifecycle state.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "NOT_STARTED"
	ProgressAttempted  ProgressStatus = "ATTEMPTED"
	ProgressSolved     ProgressStatus = "SOLVED"
)

// Progress records a member's best outcome on a problem. SOLVED is sticky
// and never downgraded by later failing submissions.
type Progress struct {
	UserID    int64
	ProblemID int64
	Status    ProgressStatus
	UpdatedAt time.Time
}
