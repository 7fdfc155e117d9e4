package service_test

import (
	"context"
	"testing"

	"courseoj/internal/access"
	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/service"
	"courseoj/internal/judge/executor"
	pkgerrors "courseoj/pkg/errors"
)

var (
	staffCaller  = access.Caller{ID: 7, Role: access.RoleStaff}
	memberCaller = access.Caller{ID: 42, Role: access.RoleMember}
)

type serviceFixture struct {
	problems  *fakeProblemRepo
	testCases *fakeTestCaseRepo
	executor  *scriptedExecutor
	queue     *capturingQueue
	verifier  *service.VerifierService
	problem   *service.ProblemService
}

func newServiceFixture() *serviceFixture {
	problems := newFakeProblemRepo()
	testCases := newFakeTestCaseRepo()
	exec := newScriptedExecutor()
	queue := &capturingQueue{}
	verifier := service.NewVerifierService(problems, testCases, exec)
	publisher := service.NewProblemReverifyPublisher(queue, "problem-reverify")
	problem := service.NewProblemService(&fakeDatabase{}, problems, testCases, verifier, publisher)
	return &serviceFixture{
		problems:  problems,
		testCases: testCases,
		executor:  exec,
		queue:     queue,
		verifier:  verifier,
		problem:   problem,
	}
}

func validCreateInput() service.CreateProblemInput {
	return service.CreateProblemInput{
		Title:        "Sum of Two",
		SolutionCode: "int main() { return 0; }",
		Difficulty:   1.5,
		TestCases: []service.TestCaseInput{
			{Input: "1 2", IsHidden: false},
			{Input: "3 4", IsHidden: true},
		},
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", code)
	}
	if !pkgerrors.Is(err, code) {
		t.Fatalf("expected code %d, got %v", code, err)
	}
}

func TestCreateProblemDerivesExpectedOutputs(t *testing.T) {
	f := newServiceFixture()
	f.executor.script("1 2", executor.RunResult{Output: "3", ExitStatus: executor.StatusSuccess})
	f.executor.script("3 4", executor.RunResult{Output: "7", ExitStatus: executor.StatusSuccess})

	problem, err := f.problem.CreateProblem(context.Background(), staffCaller, validCreateInput())
	if err != nil {
		t.Fatalf("create problem: %v", err)
	}
	if problem.DevStatus != model.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", problem.DevStatus)
	}
	if problem.AuthorID != staffCaller.ID {
		t.Fatalf("expected author %d, got %d", staffCaller.ID, problem.AuthorID)
	}
	if problem.TimeLimitMS != model.DefaultTimeLimitMS {
		t.Fatalf("expected default time limit, got %d", problem.TimeLimitMS)
	}

	stored, err := f.testCases.ListByProblem(context.Background(), nil, problem.ID)
	if err != nil {
		t.Fatalf("list test cases: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 test cases, got %d", len(stored))
	}
	if stored[0].ExpectOutput != "3" || stored[1].ExpectOutput != "7" {
		t.Fatalf("unexpected derived outputs: %q, %q", stored[0].ExpectOutput, stored[1].ExpectOutput)
	}
}

func TestCreateProblemValidation(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	input := validCreateInput()
	input.Title = "  "
	if _, err := f.problem.CreateProblem(ctx, staffCaller, input); err == nil {
		t.Fatal("expected error for empty title")
	}

	input = validCreateInput()
	input.SolutionCode = ""
	if _, err := f.problem.CreateProblem(ctx, staffCaller, input); err == nil {
		t.Fatal("expected error for empty solution code")
	}

	input = validCreateInput()
	input.TestCases = nil
	if _, err := f.problem.CreateProblem(ctx, staffCaller, input); err == nil {
		t.Fatal("expected error for empty test cases")
	}

	input = validCreateInput()
	input.Difficulty = 1.3
	_, err := f.problem.CreateProblem(ctx, staffCaller, input)
	assertCode(t, err, pkgerrors.InvalidDifficulty)

	input = validCreateInput()
	input.Difficulty = 5.5
	_, err = f.problem.CreateProblem(ctx, staffCaller, input)
	assertCode(t, err, pkgerrors.InvalidDifficulty)
}

func TestCreateProblemMemberForbidden(t *testing.T) {
	f := newServiceFixture()
	_, err := f.problem.CreateProblem(context.Background(), memberCaller, validCreateInput())
	assertCode(t, err, pkgerrors.InsufficientPermission)
}

func TestCreateProblemSandboxOutageAborts(t *testing.T) {
	f := newServiceFixture()
	f.executor.script("1 2", executor.CantConnectResult())

	_, err := f.problem.CreateProblem(context.Background(), staffCaller, validCreateInput())
	assertCode(t, err, pkgerrors.SandboxUnavailable)

	if len(f.problems.problems) != 0 {
		t.Fatal("no problem should be persisted when derivation fails")
	}
	if len(f.testCases.cases) != 0 {
		t.Fatal("no test case should be persisted when derivation fails")
	}
}

func TestGetProblemVisibility(t *testing.T) {
	f := newServiceFixture()
	stored := f.problems.put(model.Problem{Title: "Draft", DevStatus: model.StatusInProgress})

	if _, err := f.problem.GetProblem(context.Background(), staffCaller, stored.ID); err != nil {
		t.Fatalf("staff should see drafts: %v", err)
	}

	_, err := f.problem.GetProblem(context.Background(), memberCaller, stored.ID)
	assertCode(t, err, pkgerrors.ProblemAccessDenied)

	f.problems.put(model.Problem{ID: stored.ID, Title: "Draft", DevStatus: model.StatusPublished})
	if _, err := f.problem.GetProblem(context.Background(), memberCaller, stored.ID); err != nil {
		t.Fatalf("member should see published problem: %v", err)
	}

	_, err = f.problem.GetProblem(context.Background(), staffCaller, 999)
	assertCode(t, err, pkgerrors.ProblemNotFound)
}

func TestUpdateProblemAuthorImmutable(t *testing.T) {
	f := newServiceFixture()
	stored := f.problems.put(model.Problem{Title: "P", SolutionCode: "int main() {}", DevStatus: model.StatusInProgress, AuthorID: 7})

	otherAuthor := int64(99)
	_, err := f.problem.UpdateProblem(context.Background(), staffCaller, stored.ID, service.UpdateProblemInput{AuthorID: &otherAuthor})
	assertCode(t, err, pkgerrors.AuthorImmutable)
}

func TestUpdateSolutionCodeQueuesReverify(t *testing.T) {
	f := newServiceFixture()
	stored := f.problems.put(model.Problem{Title: "P", SolutionCode: "int main() { return 1; }", TimeLimitMS: 100, DevStatus: model.StatusInProgress})

	newCode := "int main() { return 2; }"
	if _, err := f.problem.UpdateProblem(context.Background(), staffCaller, stored.ID, service.UpdateProblemInput{SolutionCode: &newCode}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if f.queue.published() != 1 {
		t.Fatalf("expected 1 reverify event, got %d", f.queue.published())
	}

	// Unchanged solution code must not queue another event.
	if _, err := f.problem.UpdateProblem(context.Background(), staffCaller, stored.ID, service.UpdateProblemInput{SolutionCode: &newCode}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if f.queue.published() != 1 {
		t.Fatalf("expected no extra reverify event, got %d", f.queue.published())
	}

	// A changed time limit re-derives as well.
	newLimit := 250
	if _, err := f.problem.UpdateProblem(context.Background(), staffCaller, stored.ID, service.UpdateProblemInput{TimeLimitMS: &newLimit}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if f.queue.published() != 2 {
		t.Fatalf("expected 2 reverify events, got %d", f.queue.published())
	}
}

func TestUpdateSolutionCodeReverifiesInlineWithoutQueue(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	inline := service.NewProblemService(&fakeDatabase{}, f.problems, f.testCases, f.verifier, nil)
	stored := f.problems.put(model.Problem{Title: "P", SolutionCode: "int main() { return 1; }", TimeLimitMS: 100, DevStatus: model.StatusInProgress})
	_, _ = f.testCases.Create(ctx, nil, &model.TestCase{ProblemID: stored.ID, Input: "a", ExpectOutput: "stale"})

	newCode := "int main() { return 2; }"
	if _, err := inline.UpdateProblem(ctx, staffCaller, stored.ID, service.UpdateProblemInput{SolutionCode: &newCode}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if f.queue.published() != 0 {
		t.Fatalf("expected no queued events, got %d", f.queue.published())
	}
	cases, _ := f.testCases.ListByProblem(ctx, nil, stored.ID)
	if cases[0].ExpectOutput != "a" {
		t.Fatalf("expected inline re-derived output %q, got %q", "a", cases[0].ExpectOutput)
	}
}

func TestRemoveProblemCascades(t *testing.T) {
	f := newServiceFixture()
	stored := f.problems.put(model.Problem{Title: "P", DevStatus: model.StatusInProgress})
	_, _ = f.testCases.Create(context.Background(), nil, &model.TestCase{ProblemID: stored.ID, Input: "1"})
	_, _ = f.testCases.Create(context.Background(), nil, &model.TestCase{ProblemID: stored.ID, Input: "2"})

	if err := f.problem.RemoveProblem(context.Background(), staffCaller, stored.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(f.problems.problems) != 0 {
		t.Fatal("problem should be deleted")
	}
	if len(f.testCases.cases) != 0 {
		t.Fatal("test cases should be deleted with the problem")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	stored := f.problems.put(model.Problem{Title: "P", DevStatus: model.StatusInProgress})
	_, _ = f.testCases.Create(ctx, nil, &model.TestCase{ProblemID: stored.ID, Input: "1", IsHidden: false})
	_, _ = f.testCases.Create(ctx, nil, &model.TestCase{ProblemID: stored.ID, Input: "2", IsHidden: true})

	// Straight to PUBLISHED is illegal from IN_PROGRESS.
	err := f.problem.Publish(ctx, staffCaller, stored.ID)
	assertCode(t, err, pkgerrors.InvalidStatusTransition)

	if err := f.problem.SubmitForReview(ctx, staffCaller, stored.ID); err != nil {
		t.Fatalf("submit for review: %v", err)
	}

	// NEED_REVIEW -> REJECTED requires a message.
	err = f.problem.Reject(ctx, staffCaller, stored.ID, "  ")
	assertCode(t, err, pkgerrors.ValidationFailed)

	if err := f.problem.Reject(ctx, staffCaller, stored.ID, "needs more cases"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	current, _ := f.problems.Get(ctx, nil, stored.ID)
	if current.DevStatus != model.StatusRejected || current.RejectedMessage != "needs more cases" {
		t.Fatalf("unexpected state after reject: %s %q", current.DevStatus, current.RejectedMessage)
	}

	// Reopen clears the rejection message.
	if err := f.problem.Reopen(ctx, staffCaller, stored.ID); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	current, _ = f.problems.Get(ctx, nil, stored.ID)
	if current.DevStatus != model.StatusInProgress || current.RejectedMessage != "" {
		t.Fatalf("unexpected state after reopen: %s %q", current.DevStatus, current.RejectedMessage)
	}

	// Full happy path to the terminal state.
	if err := f.problem.SubmitForReview(ctx, staffCaller, stored.ID); err != nil {
		t.Fatalf("submit for review: %v", err)
	}
	if err := f.problem.Publish(ctx, staffCaller, stored.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := f.problem.Archive(ctx, staffCaller, stored.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	err = f.problem.Reopen(ctx, staffCaller, stored.ID)
	assertCode(t, err, pkgerrors.InvalidStatusTransition)
}

func TestPublishPrecondition(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	stored := f.problems.put(model.Problem{Title: "P", DevStatus: model.StatusNeedReview})
	_, _ = f.testCases.Create(ctx, nil, &model.TestCase{ProblemID: stored.ID, Input: "1", IsHidden: false})

	// One visible case but no hidden case.
	err := f.problem.Publish(ctx, staffCaller, stored.ID)
	assertCode(t, err, pkgerrors.PublishPreconditionFailed)

	_, _ = f.testCases.Create(ctx, nil, &model.TestCase{ProblemID: stored.ID, Input: "2", IsHidden: true})
	if err := f.problem.Publish(ctx, staffCaller, stored.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
}
