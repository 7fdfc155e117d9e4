package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/repository"
	"courseoj/internal/common/db"
	"courseoj/internal/judge/codecheck"
	"courseoj/internal/judge/executor"
	pkgerrors "courseoj/pkg/errors"
	"courseoj/pkg/utils/logger"
)

// VerifierService derives ground-truth outputs for test cases by running
// the problem's solution code in the sandbox. Every expect_output in the
// store was produced here; callers never supply one.
type VerifierService struct {
	problems  repository.ProblemRepository
	testCases repository.TestCaseRepository
	executor  executor.Client
}

// NewVerifierService creates a VerifierService.
func NewVerifierService(problems repository.ProblemRepository, testCases repository.TestCaseRepository, executorClient executor.Client) *VerifierService {
	return &VerifierService{
		problems:  problems,
		testCases: testCases,
		executor:  executorClient,
	}
}

// CreateTestCase derives the expected output for the input and persists
// the test case. If the sandbox is unreachable the operation fails and
// nothing is stored.
func (s *VerifierService) CreateTestCase(ctx context.Context, problemID int64, input string, isHidden bool) (model.TestCase, error) {
	if problemID <= 0 {
		return model.TestCase{}, pkgerrors.New(pkgerrors.InvalidParams)
	}

	problem, err := s.problems.Get(ctx, nil, problemID)
	if err != nil {
		if err == repository.ErrProblemNotFound {
			return model.TestCase{}, pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return model.TestCase{}, pkgerrors.Wrap(fmt.Errorf("load problem failed: %w", err), pkgerrors.DatabaseError)
	}

	expectOutput, err := s.DeriveExpectOutput(ctx, problem, input)
	if err != nil {
		return model.TestCase{}, err
	}

	testCase := &model.TestCase{
		ProblemID:    problemID,
		Input:        input,
		ExpectOutput: expectOutput,
		IsHidden:     isHidden,
	}
	if _, err := s.testCases.Create(ctx, nil, testCase); err != nil {
		return model.TestCase{}, pkgerrors.Wrap(fmt.Errorf("create test case failed: %w", err), pkgerrors.TestCaseCreateFailed)
	}
	return *testCase, nil
}

// UpdateTestCase changes input and/or hidden flag. A changed input
// re-derives the expected output; flipping only the hidden flag does not
// touch the sandbox.
func (s *VerifierService) UpdateTestCase(ctx context.Context, testCaseID int64, newInput *string, isHidden *bool) (model.TestCase, error) {
	if testCaseID <= 0 {
		return model.TestCase{}, pkgerrors.New(pkgerrors.InvalidParams)
	}

	testCase, err := s.testCases.Get(ctx, nil, testCaseID)
	if err != nil {
		if err == repository.ErrTestCaseNotFound {
			return model.TestCase{}, pkgerrors.New(pkgerrors.TestCaseNotFound)
		}
		return model.TestCase{}, pkgerrors.Wrap(fmt.Errorf("load test case failed: %w", err), pkgerrors.DatabaseError)
	}

	if newInput != nil && *newInput != testCase.Input {
		problem, err := s.problems.Get(ctx, nil, testCase.ProblemID)
		if err != nil {
			return model.TestCase{}, pkgerrors.Wrap(fmt.Errorf("load problem failed: %w", err), pkgerrors.DatabaseError)
		}
		expectOutput, err := s.DeriveExpectOutput(ctx, problem, *newInput)
		if err != nil {
			return model.TestCase{}, err
		}
		testCase.Input = *newInput
		testCase.ExpectOutput = expectOutput
	}
	if isHidden != nil {
		testCase.IsHidden = *isHidden
	}

	if err := s.testCases.Update(ctx, nil, &testCase); err != nil {
		return model.TestCase{}, pkgerrors.Wrap(fmt.Errorf("update test case failed: %w", err), pkgerrors.TestCaseUpdateFailed)
	}
	return testCase, nil
}

// RemoveTestCase deletes a test case unconditionally.
func (s *VerifierService) RemoveTestCase(ctx context.Context, testCaseID int64) error {
	if testCaseID <= 0 {
		return pkgerrors.New(pkgerrors.InvalidParams)
	}
	if err := s.testCases.Delete(ctx, nil, testCaseID); err != nil {
		if err == repository.ErrTestCaseNotFound {
			return pkgerrors.New(pkgerrors.TestCaseNotFound)
		}
		return pkgerrors.Wrap(fmt.Errorf("delete test case failed: %w", err), pkgerrors.TestCaseDeleteFailed)
	}
	return nil
}

// DeriveExpectOutput runs the problem's solution code against the input
// and returns the output to store as ground truth. The solution code must
// pass the problem's own header/function policy first.
func (s *VerifierService) DeriveExpectOutput(ctx context.Context, problem model.Problem, input string) (string, error) {
	violations := codecheck.Validate(problem.SolutionCode, problem.HeaderMode, problem.Headers, problem.FunctionMode, problem.Functions)
	if len(violations) > 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidationFailed).
			WithMessage("solution code violates the problem's code policy").
			WithDetail("violations", violations)
	}

	result := s.executor.Run(ctx, executor.RunRequest{
		Input:   input,
		Code:    problem.SolutionCode,
		Timeout: problem.TimeLimitMS,
	})
	if result.ExitStatus == executor.StatusCantConnect {
		return "", pkgerrors.New(pkgerrors.SandboxUnavailable)
	}
	if result.ExitStatus != executor.StatusSuccess {
		logger.Warn(ctx, "solution run did not finish cleanly",
			zap.Int64("problem_id", problem.ID),
			zap.String("exit_status", string(result.ExitStatus)),
			zap.Int("exit_code", result.ExitCode),
		)
	}
	return result.Output, nil
}

// ReverifyProblem re-derives the expected output of every test case of a
// problem, used after solution code or time limit changes. A sandbox
// failure leaves the old expected output in place and reports an error so
// the caller can retry.
func (s *VerifierService) ReverifyProblem(ctx context.Context, tx db.Transaction, problemID int64) error {
	problem, err := s.problems.Get(ctx, tx, problemID)
	if err != nil {
		if err == repository.ErrProblemNotFound {
			return pkgerrors.New(pkgerrors.ProblemNotFound)
		}
		return pkgerrors.Wrap(fmt.Errorf("load problem failed: %w", err), pkgerrors.DatabaseError)
	}

	testCases, err := s.testCases.ListByProblem(ctx, tx, problemID)
	if err != nil {
		return pkgerrors.Wrap(fmt.Errorf("list test cases failed: %w", err), pkgerrors.DatabaseError)
	}

	for i := range testCases {
		testCase := &testCases[i]
		expectOutput, err := s.DeriveExpectOutput(ctx, problem, testCase.Input)
		if err != nil {
			logger.Warn(ctx, "reverify aborted, expected outputs unchanged for remaining cases",
				zap.Int64("problem_id", problemID),
				zap.Int64("test_case_id", testCase.ID),
				zap.Error(err),
			)
			return err
		}
		if expectOutput == testCase.ExpectOutput {
			continue
		}
		testCase.ExpectOutput = expectOutput
		if err := s.testCases.Update(ctx, tx, testCase); err != nil {
			return pkgerrors.Wrap(fmt.Errorf("update test case failed: %w", err), pkgerrors.TestCaseUpdateFailed)
		}
	}
	return nil
}
