package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"courseoj/internal/catalog/model"
	"courseoj/internal/common/cache"
	"courseoj/internal/common/mq"
	pkgerrors "courseoj/pkg/errors"
	"courseoj/pkg/utils/logger"
)

const defaultReverifyLockTTL = 5 * time.Minute

// ProblemReverifyConsumer handles re-verification events. It re-runs the
// problem's solution code against every stored input and refreshes the
// expected outputs. A distributed lock keeps concurrent consumers from
// re-verifying the same problem twice.
type ProblemReverifyConsumer struct {
	mqClient mq.MessageQueue
	verifier *VerifierService
	locks    cache.Cache
	lockTTL  time.Duration
}

// NewProblemReverifyConsumer creates a re-verify consumer.
func NewProblemReverifyConsumer(mqClient mq.MessageQueue, verifier *VerifierService, locks cache.Cache) *ProblemReverifyConsumer {
	return &ProblemReverifyConsumer{
		mqClient: mqClient,
		verifier: verifier,
		locks:    locks,
		lockTTL:  defaultReverifyLockTTL,
	}
}

// Subscribe registers the re-verify handler and starts consuming.
func (c *ProblemReverifyConsumer) Subscribe(ctx context.Context, topic, consumerGroup string, opts *mq.SubscribeOptions) error {
	if c == nil || c.mqClient == nil {
		return errors.New("message queue is nil")
	}
	if topic == "" {
		return errors.New("reverify topic is required")
	}
	options := opts
	if options == nil {
		options = &mq.SubscribeOptions{}
	}
	if options.ConsumerGroup == "" {
		options.ConsumerGroup = consumerGroup
	}
	if err := c.mqClient.SubscribeWithOptions(ctx, topic, c.handleMessage, options); err != nil {
		return err
	}
	return c.mqClient.Start()
}

// HandleMessage processes a re-verify event message.
func (c *ProblemReverifyConsumer) HandleMessage(ctx context.Context, message *mq.Message) error {
	return c.handleMessage(ctx, message)
}

func (c *ProblemReverifyConsumer) handleMessage(ctx context.Context, message *mq.Message) error {
	var event model.ProblemReverifyEvent
	if err := json.Unmarshal(message.Body, &event); err != nil {
		logger.Warn(ctx, "parse reverify event failed", zap.Error(err))
		return nil
	}
	if event.EventType != model.ProblemReverifyEventSolutionChanged {
		return nil
	}
	if event.ProblemID <= 0 {
		logger.Warn(ctx, "reverify event missing problem_id")
		return nil
	}
	if c.verifier == nil {
		return errors.New("verifier service is nil")
	}

	lockKey := fmt.Sprintf("reverify:lock:%d", event.ProblemID)
	if c.locks != nil {
		acquired, err := c.locks.TryLock(ctx, lockKey, c.lockTTL)
		if err != nil {
			logger.Warn(ctx, "acquire reverify lock failed", zap.Error(err))
		} else if !acquired {
			logger.Info(ctx, "reverify already in progress", zap.Int64("problem_id", event.ProblemID))
			return nil
		} else {
			defer func() {
				if err := c.locks.Unlock(context.WithoutCancel(ctx), lockKey); err != nil {
					logger.Warn(ctx, "release reverify lock failed", zap.Error(err))
				}
			}()
		}
	}

	err := c.verifier.ReverifyProblem(ctx, nil, event.ProblemID)
	switch {
	case err == nil:
		logger.Info(ctx, "problem re-verified", zap.Int64("problem_id", event.ProblemID))
		return nil
	case pkgerrors.Is(err, pkgerrors.ProblemNotFound):
		// The problem was deleted after the event was published.
		return nil
	case pkgerrors.Is(err, pkgerrors.SandboxUnavailable):
		// Expected outputs are untouched; let the queue retry.
		return fmt.Errorf("reverify problem %d: %w", event.ProblemID, err)
	default:
		return fmt.Errorf("reverify problem %d: %w", event.ProblemID, err)
	}
}
