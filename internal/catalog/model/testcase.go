package model

import "time"

// TestCase belongs to exactly one problem and is deleted with it.
// ExpectOutput is always derived by executing the problem's solution code,
// never supplied by a caller.
type TestCase struct {
	ID           int64
	ProblemID    int64
	Input        string
	ExpectOutput string
	IsHidden     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
