package app

import (
	"context"
	"time"

	appctx "docledger/internal/core/context"
	"docledger/internal/domain/events"
	"docledger/pkg/logger"
)

// DeadLetterMover moves messages that ran out of retries aside.
type DeadLetterMover interface {
	MoveToDLQ(ctx context.Context) (int64, error)
}

// Relayer polls an outbox and hands committed messages to a handler.
type Relayer struct {
	relay     events.Relay
	handle    events.Handler
	interval  time.Duration
	batchSize int
	log       *logger.Logger
}

// NewRelayer creates a relayer. handle defaults to LogHandler.
func NewRelayer(relay events.Relay, handle events.Handler, interval time.Duration, batchSize int, log *logger.Logger) *Relayer {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("outbox")
	if handle == nil {
		handle = LogHandler(log)
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Relayer{
		relay:     relay,
		handle:    handle,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

// Run polls until ctx is cancelled. When the relay can dead-letter messages
// that is done once a minute.
func (r *Relayer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(time.Minute)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Drain(ctx)
		case <-cleanupTicker.C:
			r.deadLetter(ctx)
		}
	}
}

// Drain processes batches until the outbox has nothing more to publish.
// It returns the number of messages published.
func (r *Relayer) Drain(ctx context.Context) int {
	ctx = appctx.StartTrace(ctx, appctx.OriginOutbox)
	total := 0
	for {
		n, err := r.relay.ProcessBatch(ctx, r.batchSize, r.handle)
		total += n
		if err != nil {
			if ctx.Err() == nil {
				r.log.WithContext(ctx).Errorw("outbox batch failed", "error", err)
			}
			return total
		}
		if n == 0 || (r.batchSize > 0 && n < r.batchSize) {
			if total > 0 {
				r.log.WithContext(ctx).Debugw("outbox drained", "published", total)
			}
			return total
		}
	}
}

func (r *Relayer) deadLetter(ctx context.Context) {
	mover, ok := r.relay.(DeadLetterMover)
	if !ok {
		return
	}
	moved, err := mover.MoveToDLQ(ctx)
	if err != nil {
		r.log.Errorw("move to dead letter queue failed", "error", err)
		return
	}
	if moved > 0 {
		r.log.Warnw("outbox messages moved to dead letter queue", "count", moved)
	}
}

// LogHandler logs every delivered event. It is the default sink until an
// external broker is configured.
func LogHandler(log *logger.Logger) events.Handler {
	return func(ctx context.Context, msg events.Message) error {
		log.WithContext(ctx).Infow("event published",
			"event_id", msg.ID,
			"event_type", msg.EventType,
			"aggregate_type", msg.AggregateType,
			"aggregate_id", msg.AggregateID,
			"payload", string(msg.Payload),
		)
		return nil
	}
}
