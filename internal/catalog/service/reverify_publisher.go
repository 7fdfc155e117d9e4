package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courseoj/internal/catalog/model"
	"courseoj/internal/common/mq"
)

// ProblemReverifyPublisher publishes async re-verification events after a
// problem's solution code or time limit changes.
type ProblemReverifyPublisher struct {
	queue mq.MessageQueue
	topic string
}

// NewProblemReverifyPublisher creates a new re-verify event publisher.
func NewProblemReverifyPublisher(queue mq.MessageQueue, topic string) *ProblemReverifyPublisher {
	return &ProblemReverifyPublisher{
		queue: queue,
		topic: topic,
	}
}

// PublishSolutionChanged publishes a re-verify event for the problem.
func (p *ProblemReverifyPublisher) PublishSolutionChanged(ctx context.Context, problemID int64) error {
	if p == nil || p.queue == nil {
		return errors.New("reverify publisher is nil")
	}
	if p.topic == "" {
		return errors.New("reverify topic is empty")
	}
	if problemID <= 0 {
		return errors.New("problemID is required")
	}
	event := model.ProblemReverifyEvent{
		EventType:   model.ProblemReverifyEventSolutionChanged,
		ProblemID:   problemID,
		RequestedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal reverify event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = fmt.Sprintf("problem-reverify-%d-%d", problemID, time.Now().UnixNano())
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return fmt.Errorf("publish reverify event failed: %w", err)
	}
	return nil
}
