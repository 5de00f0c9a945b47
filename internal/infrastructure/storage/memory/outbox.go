package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appctx "docledger/internal/core/context"
	"docledger/internal/core/id"
	"docledger/internal/domain/audit"
	"docledger/internal/domain/events"
)

// errNoTransaction mirrors the postgres outbox: events only commit with a change.
var errNoTransaction = errors.New("outbox publish requires transaction context")

// OutboxMessage is a stored event.
type OutboxMessage = events.Message

var (
	_ events.Publisher = (*Outbox)(nil)
	_ events.Relay     = (*Outbox)(nil)
)

// Outbox is the transactional outbox.
type Outbox struct {
	store *Store
}

// NewOutbox creates an outbox over store.
func NewOutbox(store *Store) *Outbox {
	return &Outbox{store: store}
}

// Publish implements events.Publisher.
func (o *Outbox) Publish(ctx context.Context, event events.Event) error {
	t := txFrom(ctx)
	if t == nil {
		return errNoTransaction
	}
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	t.outbox = append(t.outbox, OutboxMessage{
		ID:            id.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	})
	return nil
}

// Messages returns committed messages, oldest first.
func (o *Outbox) Messages() []OutboxMessage {
	o.store.mu.RLock()
	defer o.store.mu.RUnlock()
	return append([]OutboxMessage(nil), o.store.outbox...)
}

// ProcessBatch implements events.Relay.
func (o *Outbox) ProcessBatch(ctx context.Context, limit int, handle events.Handler) (int, error) {
	o.store.mu.RLock()
	pending := make([]int, 0)
	for i, msg := range o.store.outbox {
		if msg.PublishedAt == nil {
			pending = append(pending, i)
			if limit > 0 && len(pending) == limit {
				break
			}
		}
	}
	batch := make([]OutboxMessage, len(pending))
	for i, idx := range pending {
		batch[i] = o.store.outbox[idx]
	}
	o.store.mu.RUnlock()

	published := 0
	for i, msg := range batch {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		if err := handle(ctx, msg); err != nil {
			continue
		}
		now := time.Now().UTC()
		o.store.mu.Lock()
		o.store.outbox[pending[i]].PublishedAt = &now
		o.store.mu.Unlock()
		published++
	}
	return published, nil
}

// AuditEntry is one recorded change.
type AuditEntry struct {
	ID         id.ID          `json:"id"`
	EntityType string         `json:"entityType"`
	EntityID   id.ID          `json:"entityId"`
	Action     audit.Action   `json:"action"`
	UserID     string         `json:"userId,omitempty"`
	Changes    map[string]any `json:"changes"`
	CreatedAt  time.Time      `json:"createdAt"`
}

var _ audit.Recorder = (*AuditLog)(nil)

// AuditLog records changes in the caller's transaction.
type AuditLog struct {
	store *Store
}

// NewAuditLog creates an audit log over store.
func NewAuditLog(store *Store) *AuditLog {
	return &AuditLog{store: store}
}

// LogChange implements audit.Recorder.
func (a *AuditLog) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	entry := AuditEntry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		UserID:     appctx.GetActorID(ctx),
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
	return a.store.write(ctx, func(t *memTx) error {
		t.audit = append(t.audit, entry)
		return nil
	})
}

// History returns the entries of an entity, oldest first.
func (a *AuditLog) History(entityID id.ID) []AuditEntry {
	a.store.mu.RLock()
	defer a.store.mu.RUnlock()
	out := make([]AuditEntry, 0)
	for _, e := range a.store.audit {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}
