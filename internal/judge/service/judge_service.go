package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"courseoj/internal/access"
	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/repository"
	"courseoj/internal/judge/codecheck"
	"courseoj/internal/judge/executor"
	appErr "courseoj/pkg/errors"
	"courseoj/pkg/utils/logger"
)

const (
	defaultMaxCodeSize     = 64 * 1024
	defaultCaseConcurrency = 4
	slotAcquireTimeout     = 2 * time.Second
)

// Service grades candidate code against a problem's test cases.
// Submissions are transient; nothing about the candidate code is
// persisted, only the member's progress on the problem.
type Service struct {
	problems        repository.ProblemRepository
	testCases       repository.TestCaseRepository
	progress        repository.ProgressRepository
	executor        executor.Client
	maxCodeSize     int
	caseConcurrency int
	sem             chan struct{}
}

// Config holds service dependencies and settings.
type Config struct {
	Problems  repository.ProblemRepository
	TestCases repository.TestCaseRepository
	Progress  repository.ProgressRepository
	Executor  executor.Client
	// MaxCodeSize bounds the candidate source in bytes.
	MaxCodeSize int
	// CaseConcurrency bounds parallel sandbox calls within one submission.
	CaseConcurrency int
	// WorkerPoolSize bounds submissions graded at once.
	WorkerPoolSize int
}

// NewService creates a judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.TestCases == nil {
		return nil, fmt.Errorf("test case repository is required")
	}
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor client is required")
	}
	maxCodeSize := cfg.MaxCodeSize
	if maxCodeSize <= 0 {
		maxCodeSize = defaultMaxCodeSize
	}
	caseConcurrency := cfg.CaseConcurrency
	if caseConcurrency <= 0 {
		caseConcurrency = defaultCaseConcurrency
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Service{
		problems:        cfg.Problems,
		testCases:       cfg.TestCases,
		progress:        cfg.Progress,
		executor:        cfg.Executor,
		maxCodeSize:     maxCodeSize,
		caseConcurrency: caseConcurrency,
		sem:             make(chan struct{}, poolSize),
	}, nil
}

// CaseResult is the verdict for a single test case. Input and
// ExpectOutput carry the case's ground truth for elevated callers; on
// the member surface hidden cases are reduced to the pass/status core.
type CaseResult struct {
	TestCaseID   int64
	Pass         bool
	Input        string
	Output       string
	ExpectOutput string
	ExitStatus   executor.ExitStatus
	UsedTime     int64
	Hidden       bool
}

// Verdict is the outcome of grading one submission.
type Verdict struct {
	ProblemID int64
	Pass      bool
	Cases     []CaseResult
}

// Judge runs the candidate code against every test case of the problem
// and returns the assembled verdict. A sandbox outage on one case marks
// that case failed with a CANT_CONNECT status; it never aborts the batch.
func (s *Service) Judge(ctx context.Context, caller access.Caller, problemID int64, code string) (Verdict, error) {
	if err := access.Evaluate(caller, access.RequireCapability(access.CapSubmit)); err != nil {
		return Verdict{}, err
	}
	if problemID <= 0 {
		return Verdict{}, appErr.New(appErr.InvalidParams)
	}
	if strings.TrimSpace(code) == "" {
		return Verdict{}, appErr.ValidationError("code", "must not be empty")
	}
	if len(code) > s.maxCodeSize {
		return Verdict{}, appErr.New(appErr.CodeTooLarge).WithDetail("max_bytes", s.maxCodeSize)
	}

	problem, err := s.problems.Get(ctx, nil, problemID)
	if err != nil {
		if err == repository.ErrProblemNotFound {
			return Verdict{}, appErr.New(appErr.ProblemNotFound)
		}
		return Verdict{}, appErr.Wrap(fmt.Errorf("load problem failed: %w", err), appErr.DatabaseError)
	}
	if err := access.Evaluate(caller, access.RequireVisible(problem.DevStatus == model.StatusPublished)); err != nil {
		return Verdict{}, err
	}

	violations := codecheck.Validate(code, problem.HeaderMode, problem.Headers, problem.FunctionMode, problem.Functions)
	if len(violations) > 0 {
		return Verdict{}, appErr.New(appErr.CodeValidationFailed).
			WithMessage("submission violates the problem's code policy").
			WithDetail("violations", violations)
	}

	testCases, err := s.testCases.ListByProblem(ctx, nil, problemID)
	if err != nil {
		return Verdict{}, appErr.Wrap(fmt.Errorf("list test cases failed: %w", err), appErr.DatabaseError)
	}
	if len(testCases) == 0 {
		return Verdict{}, appErr.New(appErr.ProblemNotJudgeable).WithMessage("problem has no test cases")
	}

	if err := s.acquireSlot(ctx); err != nil {
		return Verdict{}, err
	}
	defer s.releaseSlot()

	cases := s.runCases(ctx, problem, code, testCases)

	verdict := Verdict{ProblemID: problemID, Pass: true, Cases: cases}
	for _, result := range cases {
		if !result.Pass {
			verdict.Pass = false
			break
		}
	}

	s.recordProgress(ctx, caller, problemID, verdict.Pass)
	applyProjection(caller, verdict.Cases)

	logger.Info(ctx, "submission judged",
		zap.Int64("problem_id", problemID),
		zap.Int64("user_id", caller.ID),
		zap.Bool("pass", verdict.Pass),
		zap.Int("cases", len(cases)),
	)
	return verdict, nil
}

// runCases fans the test cases out over a bounded number of sandbox
// calls and reassembles the results in stored case order.
func (s *Service) runCases(ctx context.Context, problem model.Problem, code string, testCases []model.TestCase) []CaseResult {
	results := make([]CaseResult, len(testCases))
	slots := make(chan struct{}, s.caseConcurrency)
	var wg sync.WaitGroup
	for i := range testCases {
		wg.Add(1)
		slots <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-slots }()
			results[i] = s.runCase(ctx, problem, code, testCases[i])
		}(i)
	}
	wg.Wait()
	return results
}

func (s *Service) runCase(ctx context.Context, problem model.Problem, code string, testCase model.TestCase) CaseResult {
	result := s.executor.Run(ctx, executor.RunRequest{
		Input:   testCase.Input,
		Code:    code,
		Timeout: problem.TimeLimitMS,
	})
	pass := result.ExitStatus == executor.StatusSuccess &&
		strings.TrimSpace(result.Output) == strings.TrimSpace(testCase.ExpectOutput)
	if result.ExitStatus == executor.StatusCantConnect {
		logger.Warn(ctx, "sandbox unreachable, case marked failed",
			zap.Int64("problem_id", problem.ID),
			zap.Int64("test_case_id", testCase.ID),
		)
	}
	return CaseResult{
		TestCaseID:   testCase.ID,
		Pass:         pass,
		Input:        testCase.Input,
		Output:       result.Output,
		ExpectOutput: testCase.ExpectOutput,
		ExitStatus:   result.ExitStatus,
		UsedTime:     result.UsedTime,
		Hidden:       testCase.IsHidden,
	}
}

func (s *Service) acquireSlot(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(slotAcquireTimeout):
		return appErr.New(appErr.JudgeQueueFull).WithMessage("judge pool is full")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

func (s *Service) recordProgress(ctx context.Context, caller access.Caller, problemID int64, pass bool) {
	if s.progress == nil || caller.Role.Elevated() || caller.ID <= 0 {
		return
	}
	status := model.ProgressAttempted
	if pass {
		status = model.ProgressSolved
	}
	if err := s.progress.Upsert(ctx, caller.ID, problemID, status); err != nil {
		logger.Warn(ctx, "record progress failed",
			zap.Int64("user_id", caller.ID),
			zap.Int64("problem_id", problemID),
			zap.Error(err),
		)
	}
}

// applyProjection strips hidden-case data down to the pass/status core
// for callers who may not see hidden test data.
func applyProjection(caller access.Caller, cases []CaseResult) {
	if access.Allows(caller.Role, access.CapViewHiddenData) {
		return
	}
	for i := range cases {
		if cases[i].Hidden {
			cases[i].Input = ""
			cases[i].Output = ""
			cases[i].ExpectOutput = ""
		}
	}
}
