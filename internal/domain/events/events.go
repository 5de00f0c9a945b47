// Package events defines domain events emitted through the transactional outbox.
package events

import (
	"context"
	"encoding/json"
	"time"

	"docledger/internal/core/id"
)

// Event types.
const (
	DocumentCreated   = "DocumentCreated"
	DocumentFinalized = "DocumentFinalized"
	PaymentApplied    = "PaymentApplied"
)

// Event is one fact to deliver after commit.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// Publisher writes events to the outbox.
// Publish must be called inside a transaction so the event commits with the change.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Discard drops every event. Useful in tests and tools that do not relay events.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }

// Message is an event as stored in the outbox.
type Message struct {
	ID            id.ID           `db:"id" json:"id"`
	AggregateType string          `db:"aggregate_type" json:"aggregateType"`
	AggregateID   id.ID           `db:"aggregate_id" json:"aggregateId"`
	EventType     string          `db:"event_type" json:"eventType"`
	Payload       json.RawMessage `db:"payload" json:"payload"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	PublishedAt   *time.Time      `db:"published_at" json:"publishedAt,omitempty"`
}

// Handler delivers one message. A returned error leaves the message pending.
type Handler func(ctx context.Context, msg Message) error

// Relay hands committed outbox messages to a handler.
type Relay interface {
	// ProcessBatch delivers up to limit pending messages and returns how many were published.
	ProcessBatch(ctx context.Context, limit int, handle Handler) (int, error)
}
