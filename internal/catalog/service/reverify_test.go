package service_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"courseoj/internal/catalog/model"
	"courseoj/internal/catalog/service"
	"courseoj/internal/common/mq"
	"courseoj/internal/judge/executor"
	pkgerrors "courseoj/pkg/errors"
)

func TestPublishSolutionChanged(t *testing.T) {
	queue := &capturingQueue{}
	publisher := service.NewProblemReverifyPublisher(queue, "problem-reverify")

	if err := publisher.PublishSolutionChanged(context.Background(), 42); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if queue.published() != 1 {
		t.Fatalf("expected 1 message, got %d", queue.published())
	}

	message := queue.messages[0]
	if !strings.HasPrefix(message.ID, "problem-reverify-42-") {
		t.Fatalf("unexpected message id %q", message.ID)
	}
	var event model.ProblemReverifyEvent
	if err := json.Unmarshal(message.Body, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.EventType != model.ProblemReverifyEventSolutionChanged || event.ProblemID != 42 {
		t.Fatalf("unexpected event %+v", event)
	}

	if err := publisher.PublishSolutionChanged(context.Background(), 0); err == nil {
		t.Fatal("expected error for non-positive problem id")
	}
}

func reverifyMessage(t *testing.T, event model.ProblemReverifyEvent) *mq.Message {
	t.Helper()
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return mq.NewMessage(body)
}

func TestConsumerReverifiesProblem(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	problem := f.problems.put(model.Problem{Title: "P", SolutionCode: "int main() {}", TimeLimitMS: 100, DevStatus: model.StatusPublished})
	_, _ = f.testCases.Create(ctx, nil, &model.TestCase{ProblemID: problem.ID, Input: "a", ExpectOutput: "stale"})
	consumer := service.NewProblemReverifyConsumer(f.queue, f.verifier, newFakeLockCache())

	event := model.ProblemReverifyEvent{
		EventType:   model.ProblemReverifyEventSolutionChanged,
		ProblemID:   problem.ID,
		RequestedAt: time.Now().UTC(),
	}
	if err := consumer.HandleMessage(ctx, reverifyMessage(t, event)); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	cases, _ := f.testCases.ListByProblem(ctx, nil, problem.ID)
	if cases[0].ExpectOutput != "a" {
		t.Fatalf("expected output was not re-derived, got %q", cases[0].ExpectOutput)
	}
}

func TestConsumerSkipsForeignAndMalformedEvents(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	consumer := service.NewProblemReverifyConsumer(f.queue, f.verifier, newFakeLockCache())

	// Malformed payloads are dropped, not retried.
	if err := consumer.HandleMessage(ctx, mq.NewMessage([]byte("{not json"))); err != nil {
		t.Fatalf("malformed payload should not error: %v", err)
	}

	foreign := model.ProblemReverifyEvent{EventType: "problem.deleted", ProblemID: 1}
	if err := consumer.HandleMessage(ctx, reverifyMessage(t, foreign)); err != nil {
		t.Fatalf("foreign event should not error: %v", err)
	}

	missingID := model.ProblemReverifyEvent{EventType: model.ProblemReverifyEventSolutionChanged}
	if err := consumer.HandleMessage(ctx, reverifyMessage(t, missingID)); err != nil {
		t.Fatalf("event without a problem id should not error: %v", err)
	}

	if f.executor.callCount() != 0 {
		t.Fatal("no event should have reached the sandbox")
	}
}

func TestConsumerDropsDeletedProblem(t *testing.T) {
	f := newServiceFixture()
	consumer := service.NewProblemReverifyConsumer(f.queue, f.verifier, newFakeLockCache())

	event := model.ProblemReverifyEvent{EventType: model.ProblemReverifyEventSolutionChanged, ProblemID: 777}
	if err := consumer.HandleMessage(context.Background(), reverifyMessage(t, event)); err != nil {
		t.Fatalf("deleted problem should be dropped, got %v", err)
	}
}

func TestConsumerRetriesOnSandboxOutage(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	problem := f.problems.put(model.Problem{Title: "P", SolutionCode: "int main() {}", TimeLimitMS: 100, DevStatus: model.StatusPublished})
	_, _ = f.testCases.Create(ctx, nil, &model.TestCase{ProblemID: problem.ID, Input: "a", ExpectOutput: "old"})
	f.executor.script("a", executor.CantConnectResult())
	consumer := service.NewProblemReverifyConsumer(f.queue, f.verifier, newFakeLockCache())

	event := model.ProblemReverifyEvent{EventType: model.ProblemReverifyEventSolutionChanged, ProblemID: problem.ID}
	err := consumer.HandleMessage(ctx, reverifyMessage(t, event))
	if err == nil {
		t.Fatal("a sandbox outage must surface an error so the queue retries")
	}
	if !pkgerrors.Is(err, pkgerrors.SandboxUnavailable) {
		t.Fatalf("expected SandboxUnavailable, got %v", err)
	}
}

func TestConsumerDeduplicatesViaLock(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	problem := f.problems.put(model.Problem{Title: "P", SolutionCode: "int main() {}", TimeLimitMS: 100, DevStatus: model.StatusPublished})
	_, _ = f.testCases.Create(ctx, nil, &model.TestCase{ProblemID: problem.ID, Input: "a", ExpectOutput: "stale"})
	locks := newFakeLockCache()
	consumer := service.NewProblemReverifyConsumer(f.queue, f.verifier, locks)

	// Another worker already holds the lock for this problem.
	if acquired, _ := locks.TryLock(ctx, "reverify:lock:1", time.Minute); !acquired {
		t.Fatal("test setup: lock should be free")
	}

	event := model.ProblemReverifyEvent{EventType: model.ProblemReverifyEventSolutionChanged, ProblemID: problem.ID}
	if err := consumer.HandleMessage(ctx, reverifyMessage(t, event)); err != nil {
		t.Fatalf("held lock should skip, not error: %v", err)
	}
	if f.executor.callCount() != 0 {
		t.Fatal("a held lock must keep the event away from the sandbox")
	}
}
