package sqlite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"graphengine/application/ports"
)

// OutboxProcessor publishes journaled events that have not been delivered
// yet. Delivery is at least once.
type OutboxProcessor struct {
	store     *JournalStore
	publisher ports.EventPublisher
	logger    *zap.Logger

	batchSize          int
	processingInterval time.Duration
	maxRetries         int

	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// OutboxOption configures an OutboxProcessor
type OutboxOption func(*OutboxProcessor)

// WithOutboxInterval sets how often the outbox is polled
func WithOutboxInterval(d time.Duration) OutboxOption {
	return func(op *OutboxProcessor) {
		if d > 0 {
			op.processingInterval = d
		}
	}
}

// WithOutboxBatchSize sets how many events one poll handles
func WithOutboxBatchSize(n int) OutboxOption {
	return func(op *OutboxProcessor) {
		if n > 0 {
			op.batchSize = n
		}
	}
}

// WithOutboxMaxRetries sets how many attempts an event gets
func WithOutboxMaxRetries(n int) OutboxOption {
	return func(op *OutboxProcessor) {
		if n > 0 {
			op.maxRetries = n
		}
	}
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(store *JournalStore, publisher ports.EventPublisher, logger *zap.Logger, opts ...OutboxOption) *OutboxProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	op := &OutboxProcessor{
		store:              store,
		publisher:          publisher,
		logger:             logger,
		batchSize:          50,
		processingInterval: 5 * time.Second,
		maxRetries:         3,
		stopChan:           make(chan struct{}),
		stoppedChan:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(op)
	}
	return op
}

// Start begins the background processing of outbox events
func (op *OutboxProcessor) Start(ctx context.Context) {
	op.logger.Info("Starting outbox processor",
		zap.Int("batch_size", op.batchSize),
		zap.Duration("interval", op.processingInterval),
	)
	go op.processLoop(ctx)
}

// Stop stops the loop and waits for it to exit. Stop must follow Start.
func (op *OutboxProcessor) Stop() {
	op.stopOnce.Do(func() { close(op.stopChan) })
	<-op.stoppedChan
	op.logger.Info("Outbox processor stopped")
}

func (op *OutboxProcessor) processLoop(ctx context.Context) {
	defer close(op.stoppedChan)

	ticker := time.NewTicker(op.processingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-op.stopChan:
			return
		case <-ticker.C:
			if _, _, err := op.ProcessBatch(ctx); err != nil {
				op.logger.Error("Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes one batch of pending events and reports how many
// were delivered and how many failed
func (op *OutboxProcessor) ProcessBatch(ctx context.Context) (published, failed int, err error) {
	pending, err := op.store.PendingEvents(ctx, op.batchSize, op.maxRetries)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get pending events: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	delivered := make([]string, 0, len(pending))
	for _, event := range pending {
		if pubErr := op.publisher.Publish(ctx, event); pubErr != nil {
			failed++
			op.markEventFailed(ctx, event, pubErr)
			continue
		}
		delivered = append(delivered, event.ID)
	}

	if err := op.store.MarkEventsAsPublished(ctx, delivered...); err != nil {
		return 0, failed, fmt.Errorf("failed to mark events as published: %w", err)
	}

	op.logger.Debug("Completed outbox batch processing",
		zap.Int("published", len(delivered)),
		zap.Int("failed", failed),
	)
	return len(delivered), failed, nil
}

func (op *OutboxProcessor) markEventFailed(ctx context.Context, event StoredEvent, cause error) {
	if err := op.store.MarkEventAsFailed(ctx, event.ID, cause.Error()); err != nil {
		op.logger.Error("Failed to mark event as failed", zap.String("event_id", event.ID), zap.Error(err))
		return
	}

	attempts := event.PublishAttempts + 1
	if attempts >= op.maxRetries {
		op.logger.Warn("Event permanently failed after max retries",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.EventType),
			zap.Int("attempts", attempts),
			zap.Error(cause),
		)
		return
	}
	op.logger.Debug("Event marked for retry",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)
}
