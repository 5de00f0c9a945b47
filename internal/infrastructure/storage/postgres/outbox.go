package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"docledger/internal/core/id"
	"docledger/internal/domain/events"
	"docledger/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// MaxOutboxRetries is how often delivery is attempted before a message fails.
const MaxOutboxRetries = 5

var errNoTransaction = errors.New("outbox publish requires transaction context")

const insertOutboxSQL = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// OutboxPublisher writes events to sys_outbox in the caller's transaction.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

// Publish implements events.Publisher.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.Event) error {
	return p.PublishBatch(ctx, []events.Event{event})
}

// PublishBatch writes several events in one round-trip.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, evs []events.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return errNoTransaction
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, ev := range evs {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		batch.Queue(insertOutboxSQL, id.New(), ev.AggregateType, ev.AggregateID, ev.EventType,
			payload, OutboxStatusPending, now)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for range evs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}
	}
	return nil
}

// OutboxRelay delivers pending outbox messages. Several relays may run at once:
// rows are claimed with FOR UPDATE SKIP LOCKED.
type OutboxRelay struct {
	txManager *TxManager
}

var _ events.Relay = (*OutboxRelay)(nil)

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager) *OutboxRelay {
	return &OutboxRelay{txManager: txManager}
}

// ProcessBatch implements events.Relay. Failed deliveries are retried with a
// linear backoff and marked failed after MaxOutboxRetries attempts.
func (r *OutboxRelay) ProcessBatch(ctx context.Context, limit int, handle events.Handler) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	published := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		querier := r.txManager.GetQuerier(ctx)

		var messages []events.Message
		err := pgxscan.Select(ctx, querier, &messages, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED`, OutboxStatusPending, limit)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := handle(ctx, msg); err != nil {
				logger.Warn(ctx, "outbox delivery failed",
					"message_id", msg.ID, "event_type", msg.EventType, "error", err)
				if err := r.markRetry(ctx, querier, msg.ID, err); err != nil {
					return err
				}
				continue
			}
			if _, err := querier.Exec(ctx,
				`UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3`,
				OutboxStatusPublished, time.Now().UTC(), msg.ID); err != nil {
				return fmt.Errorf("mark published: %w", err)
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return published, nil
}

func (r *OutboxRelay) markRetry(ctx context.Context, querier Querier, msgID id.ID, cause error) error {
	_, err := querier.Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1,
		    last_error = $1,
		    next_retry_at = NOW() + make_interval(mins => retry_count + 1),
		    status = CASE WHEN retry_count + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $4`, cause.Error(), MaxOutboxRetries, OutboxStatusFailed, msgID)
	if err != nil {
		return fmt.Errorf("update failed message: %w", err)
	}
	return nil
}

// MoveToDLQ moves failed messages to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at, NOW()
		FROM moved`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return result.RowsAffected(), nil
}
