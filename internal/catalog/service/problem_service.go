package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"courseoj/internal/access"
	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/repository"
	"courseoj/internal/common/db"
	"courseoj/internal/judge/codecheck"
	pkgerrors "courseoj/pkg/errors"
	"courseoj/pkg/utils/logger"
)

const maxTags = 16

// ProblemService owns the authoring lifecycle of catalog problems.
type ProblemService struct {
	database  db.Database
	problems  repository.ProblemRepository
	testCases repository.TestCaseRepository
	verifier  *VerifierService
	reverify  *ProblemReverifyPublisher
}

// NewProblemService creates a ProblemService.
func NewProblemService(
	database db.Database,
	problems repository.ProblemRepository,
	testCases repository.TestCaseRepository,
	verifier *VerifierService,
	reverify *ProblemReverifyPublisher,
) *ProblemService {
	return &ProblemService{
		database:  database,
		problems:  problems,
		testCases: testCases,
		verifier:  verifier,
		reverify:  reverify,
	}
}

// TestCaseInput is an authored test case. The expected output is always
// derived from the solution code, never supplied.
type TestCaseInput struct {
	Input    string
	IsHidden bool
}

// CreateProblemInput carries the authoring payload for a new problem.
type CreateProblemInput struct {
	Title        string
	Description  string
	DefaultCode  string
	SolutionCode string
	Difficulty   float64
	TimeLimitMS  int
	HeaderMode   model.ListMode
	Headers      []string
	FunctionMode model.ListMode
	Functions    []string
	Tags         []string
	TestCases    []TestCaseInput
}

// UpdateProblemInput carries a partial update. Nil fields are untouched.
// Test cases are managed through the verifier endpoints, not here.
type UpdateProblemInput struct {
	Title        *string
	Description  *string
	DefaultCode  *string
	SolutionCode *string
	Difficulty   *float64
	TimeLimitMS  *int
	HeaderMode   *model.ListMode
	Headers      *[]string
	FunctionMode *model.ListMode
	Functions    *[]string
	Tags         *[]string
	AuthorID     *int64
}

// ProblemDetail bundles a problem with its test cases for detail views.
type ProblemDetail struct {
	Problem   model.Problem
	TestCases []model.TestCase
}

// CreateProblem validates the payload, derives the expected output of
// every test case from the solution code, and persists problem and cases
// in one transaction. A sandbox outage fails the whole call so no
// unverifiable case is ever stored.
func (s *ProblemService) CreateProblem(ctx context.Context, caller access.Caller, input CreateProblemInput) (model.Problem, error) {
	if err := access.Evaluate(caller, access.RequireCapability(access.CapManageProblems)); err != nil {
		return model.Problem{}, err
	}
	if err := validateCreateInput(&input); err != nil {
		return model.Problem{}, err
	}

	problem := model.Problem{
		Title:        strings.TrimSpace(input.Title),
		Description:  input.Description,
		DefaultCode:  input.DefaultCode,
		SolutionCode: input.SolutionCode,
		Difficulty:   input.Difficulty,
		TimeLimitMS:  input.TimeLimitMS,
		HeaderMode:   input.HeaderMode,
		Headers:      input.Headers,
		FunctionMode: input.FunctionMode,
		Functions:    input.Functions,
		Tags:         input.Tags,
		DevStatus:    model.StatusInProgress,
		AuthorID:     caller.ID,
	}

	violations := codecheck.Validate(problem.SolutionCode, problem.HeaderMode, problem.Headers, problem.FunctionMode, problem.Functions)
	if len(violations) > 0 {
		return model.Problem{}, pkgerrors.New(pkgerrors.CodeValidationFailed).
			WithMessage("solution code violates the problem's code policy").
			WithDetail("violations", violations)
	}

	// Derive all expected outputs before opening the transaction so a slow
	// or unreachable sandbox never holds a database transaction open.
	expectOutputs := make([]string, len(input.TestCases))
	for i, testCase := range input.TestCases {
		output, err := s.verifier.DeriveExpectOutput(ctx, problem, testCase.Input)
		if err != nil {
			return model.Problem{}, err
		}
		expectOutputs[i] = output
	}

	err := s.database.Transaction(ctx, func(tx db.Transaction) error {
		problemID, err := s.problems.Create(ctx, tx, &problem)
		if err != nil {
			return pkgerrors.Wrap(fmt.Errorf("create problem failed: %w", err), pkgerrors.ProblemCreateFailed)
		}
		problem.ID = problemID
		for i, testCase := range input.TestCases {
			record := &model.TestCase{
				ProblemID:    problemID,
				Input:        testCase.Input,
				ExpectOutput: expectOutputs[i],
				IsHidden:     testCase.IsHidden,
			}
			if _, err := s.testCases.Create(ctx, tx, record); err != nil {
				return pkgerrors.Wrap(fmt.Errorf("create test case failed: %w", err), pkgerrors.TestCaseCreateFailed)
			}
		}
		return nil
	})
	if err != nil {
		return model.Problem{}, pkgerrors.Wrap(err, pkgerrors.ProblemCreateFailed)
	}

	logger.Info(ctx, "problem created",
		zap.Int64("problem_id", problem.ID),
		zap.Int64("author_id", caller.ID),
		zap.Int("test_cases", len(input.TestCases)),
	)
	return problem, nil
}

// GetProblem loads a problem with its test cases. Members can only see
// published problems; the projection of hidden fields happens at the
// transport layer.
func (s *ProblemService) GetProblem(ctx context.Context, caller access.Caller, problemID int64) (ProblemDetail, error) {
	if problemID <= 0 {
		return ProblemDetail{}, pkgerrors.New(pkgerrors.InvalidParams)
	}
	problem, err := s.problems.Get(ctx, nil, problemID)
	if err != nil {
		if err == repository.ErrProblemNotFound {
			return ProblemDetail{}, pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return ProblemDetail{}, pkgerrors.Wrap(fmt.Errorf("load problem failed: %w", err), pkgerrors.DatabaseError)
	}
	if err := access.Evaluate(caller, access.RequireVisible(problem.DevStatus == model.StatusPublished)); err != nil {
		return ProblemDetail{}, err
	}
	testCases, err := s.testCases.ListByProblem(ctx, nil, problemID)
	if err != nil {
		return ProblemDetail{}, pkgerrors.Wrap(fmt.Errorf("list test cases failed: %w", err), pkgerrors.DatabaseError)
	}
	return ProblemDetail{Problem: problem, TestCases: testCases}, nil
}

// UpdateProblem applies a partial update. The author never changes, and
// test cases are off limits here. Changing solution code or the time
// limit queues a re-verification of every stored expected output.
func (s *ProblemService) UpdateProblem(ctx context.Context, caller access.Caller, problemID int64, input UpdateProblemInput) (model.Problem, error) {
	if err := access.Evaluate(caller, access.RequireCapability(access.CapManageProblems)); err != nil {
		return model.Problem{}, err
	}
	if problemID <= 0 {
		return model.Problem{}, pkgerrors.New(pkgerrors.InvalidParams)
	}
	if input.AuthorID != nil {
		return model.Problem{}, pkgerrors.New(pkgerrors.AuthorImmutable)
	}

	problem, err := s.problems.Get(ctx, nil, problemID)
	if err != nil {
		if err == repository.ErrProblemNotFound {
			return model.Problem{}, pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return model.Problem{}, pkgerrors.Wrap(fmt.Errorf("load problem failed: %w", err), pkgerrors.DatabaseError)
	}

	needsReverify := false
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return model.Problem{}, pkgerrors.ValidationError("title", "must not be empty")
		}
		problem.Title = title
	}
	if input.Description != nil {
		problem.Description = *input.Description
	}
	if input.DefaultCode != nil {
		problem.DefaultCode = *input.DefaultCode
	}
	if input.SolutionCode != nil && *input.SolutionCode != problem.SolutionCode {
		if strings.TrimSpace(*input.SolutionCode) == "" {
			return model.Problem{}, pkgerrors.ValidationError("solutionCode", "must not be empty")
		}
		problem.SolutionCode = *input.SolutionCode
		needsReverify = true
	}
	if input.Difficulty != nil {
		if !model.ValidDifficulty(*input.Difficulty) {
			return model.Problem{}, pkgerrors.New(pkgerrors.InvalidDifficulty)
		}
		problem.Difficulty = *input.Difficulty
	}
	if input.TimeLimitMS != nil && *input.TimeLimitMS != problem.TimeLimitMS {
		if *input.TimeLimitMS <= 0 {
			return model.Problem{}, pkgerrors.ValidationError("timeLimitMS", "must be positive")
		}
		problem.TimeLimitMS = *input.TimeLimitMS
		needsReverify = true
	}
	if input.HeaderMode != nil {
		if !input.HeaderMode.Valid() {
			return model.Problem{}, pkgerrors.ValidationError("headerMode", "must be ALLOWED or DISALLOWED")
		}
		problem.HeaderMode = *input.HeaderMode
	}
	if input.Headers != nil {
		problem.Headers = *input.Headers
	}
	if input.FunctionMode != nil {
		if !input.FunctionMode.Valid() {
			return model.Problem{}, pkgerrors.ValidationError("functionMode", "must be ALLOWED or DISALLOWED")
		}
		problem.FunctionMode = *input.FunctionMode
	}
	if input.Functions != nil {
		problem.Functions = *input.Functions
	}
	if input.Tags != nil {
		if err := validateTags(*input.Tags); err != nil {
			return model.Problem{}, err
		}
		problem.Tags = *input.Tags
	}

	violations := codecheck.Validate(problem.SolutionCode, problem.HeaderMode, problem.Headers, problem.FunctionMode, problem.Functions)
	if len(violations) > 0 {
		return model.Problem{}, pkgerrors.New(pkgerrors.CodeValidationFailed).
			WithMessage("solution code violates the problem's code policy").
			WithDetail("violations", violations)
	}

	if err := s.problems.Update(ctx, nil, &problem); err != nil {
		return model.Problem{}, pkgerrors.Wrap(fmt.Errorf("update problem failed: %w", err), pkgerrors.ProblemUpdateFailed)
	}

	if needsReverify {
		if s.reverify != nil {
			if err := s.reverify.PublishSolutionChanged(ctx, problemID); err != nil {
				logger.Error(ctx, "queue reverify event failed, expected outputs may be stale",
					zap.Int64("problem_id", problemID),
					zap.Error(err),
				)
			}
		} else if err := s.verifier.ReverifyProblem(ctx, nil, problemID); err != nil {
			// No queue configured, re-verify inline before returning.
			return model.Problem{}, err
		}
	}
	return problem, nil
}

// RemoveProblem deletes a problem and its test cases in one transaction.
func (s *ProblemService) RemoveProblem(ctx context.Context, caller access.Caller, problemID int64) error {
	if err := access.Evaluate(caller, access.RequireCapability(access.CapManageProblems)); err != nil {
		return err
	}
	if problemID <= 0 {
		return pkgerrors.New(pkgerrors.InvalidParams)
	}
	err := s.database.Transaction(ctx, func(tx db.Transaction) error {
		if err := s.testCases.DeleteByProblem(ctx, tx, problemID); err != nil {
			return fmt.Errorf("delete test cases failed: %w", err)
		}
		if err := s.problems.Delete(ctx, tx, problemID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if err == repository.ErrProblemNotFound {
			return pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return pkgerrors.Wrap(fmt.Errorf("delete problem failed: %w", err), pkgerrors.ProblemDeleteFailed)
	}
	s.problems.InvalidateCache(ctx, problemID)
	logger.Info(ctx, "problem deleted", zap.Int64("problem_id", problemID))
	return nil
}

// SubmitForReview moves IN_PROGRESS to NEED_REVIEW.
func (s *ProblemService) SubmitForReview(ctx context.Context, caller access.Caller, problemID int64) error {
	if err := access.Evaluate(caller, access.RequireCapability(access.CapManageProblems)); err != nil {
		return err
	}
	return s.applyTransition(ctx, problemID, model.StatusNeedReview, "")
}

// Publish moves NEED_REVIEW to PUBLISHED. A problem is only publishable
// with at least one visible and one hidden test case.
func (s *ProblemService) Publish(ctx context.Context, caller access.Caller, problemID int64) error {
	if err := access.Evaluate(caller, access.RequireCapability(access.CapReviewProblems)); err != nil {
		return err
	}
	counts, err := s.testCases.CountByProblem(ctx, nil, problemID)
	if err != nil {
		return pkgerrors.Wrap(fmt.Errorf("count test cases failed: %w", err), pkgerrors.DatabaseError)
	}
	if counts.Visible < 1 || counts.Hidden < 1 {
		return pkgerrors.New(pkgerrors.PublishPreconditionFailed).
			WithDetail("visible", counts.Visible).
			WithDetail("hidden", counts.Hidden)
	}
	return s.applyTransition(ctx, problemID, model.StatusPublished, "")
}

// Reject moves NEED_REVIEW to REJECTED and records the reviewer's message.
func (s *ProblemService) Reject(ctx context.Context, caller access.Caller, problemID int64, message string) error {
	if err := access.Evaluate(caller, access.RequireCapability(access.CapReviewProblems)); err != nil {
		return err
	}
	if strings.TrimSpace(message) == "" {
		return pkgerrors.ValidationError("message", "rejection requires a message")
	}
	return s.applyTransition(ctx, problemID, model.StatusRejected, message)
}

// Archive moves PUBLISHED to ARCHIVED. Archived problems never come back.
func (s *ProblemService) Archive(ctx context.Context, caller access.Caller, problemID int64) error {
	if err := access.Evaluate(caller, access.RequireCapability(access.CapManageProblems)); err != nil {
		return err
	}
	return s.applyTransition(ctx, problemID, model.StatusArchived, "")
}

// Reopen moves REJECTED back to IN_PROGRESS and clears the rejection
// message.
func (s *ProblemService) Reopen(ctx context.Context, caller access.Caller, problemID int64) error {
	if err := access.Evaluate(caller, access.RequireCapability(access.CapManageProblems)); err != nil {
		return err
	}
	return s.applyTransition(ctx, problemID, model.StatusInProgress, "")
}

func (s *ProblemService) applyTransition(ctx context.Context, problemID int64, next model.DevStatus, rejectedMessage string) error {
	if problemID <= 0 {
		return pkgerrors.New(pkgerrors.InvalidParams)
	}
	problem, err := s.problems.Get(ctx, nil, problemID)
	if err != nil {
		if err == repository.ErrProblemNotFound {
			return pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return pkgerrors.Wrap(fmt.Errorf("load problem failed: %w", err), pkgerrors.DatabaseError)
	}
	if !problem.DevStatus.CanTransition(next) {
		return pkgerrors.New(pkgerrors.InvalidStatusTransition).
			WithDetail("from", string(problem.DevStatus)).
			WithDetail("to", string(next))
	}
	if err := s.problems.UpdateStatus(ctx, nil, problemID, next, rejectedMessage); err != nil {
		return pkgerrors.Wrap(fmt.Errorf("update status failed: %w", err), pkgerrors.ProblemUpdateFailed)
	}
	logger.Info(ctx, "problem status changed",
		zap.Int64("problem_id", problemID),
		zap.String("from", string(problem.DevStatus)),
		zap.String("to", string(next)),
	)
	return nil
}

func validateCreateInput(input *CreateProblemInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return pkgerrors.ValidationError("title", "must not be empty")
	}
	if strings.TrimSpace(input.SolutionCode) == "" {
		return pkgerrors.ValidationError("solutionCode", "must not be empty")
	}
	if len(input.TestCases) == 0 {
		return pkgerrors.ValidationError("testCases", "at least one test case is required")
	}
	if !model.ValidDifficulty(input.Difficulty) {
		return pkgerrors.New(pkgerrors.InvalidDifficulty)
	}
	if input.TimeLimitMS == 0 {
		input.TimeLimitMS = model.DefaultTimeLimitMS
	}
	if input.TimeLimitMS < 0 {
		return pkgerrors.ValidationError("timeLimitMS", "must be positive")
	}
	if input.HeaderMode == "" {
		input.HeaderMode = model.ModeDisallowed
	}
	if !input.HeaderMode.Valid() {
		return pkgerrors.ValidationError("headerMode", "must be ALLOWED or DISALLOWED")
	}
	if input.FunctionMode == "" {
		input.FunctionMode = model.ModeDisallowed
	}
	if !input.FunctionMode.Valid() {
		return pkgerrors.ValidationError("functionMode", "must be ALLOWED or DISALLOWED")
	}
	if err := validateTags(input.Tags); err != nil {
		return err
	}
	return nil
}

func validateTags(tags []string) error {
	if len(tags) > maxTags {
		return pkgerrors.New(pkgerrors.TooManyTags).WithDetail("max", maxTags)
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return pkgerrors.New(pkgerrors.InvalidTag)
		}
	}
	return nil
}
