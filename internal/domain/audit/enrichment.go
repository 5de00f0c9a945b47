// Package audit stamps actors onto documents and records change history.
package audit

import (
	"context"

	appctx "docledger/internal/core/context"
	"docledger/internal/core/entity"
	"docledger/internal/core/id"
)

// Action is the kind of audited change.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionFinalize Action = "finalize"
	ActionPayment  Action = "payment"
)

// Recorder persists audit entries. Implementations write inside the caller's transaction.
type Recorder interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action Action, changes map[string]any) error
}

// Nop discards audit entries.
type Nop struct{}

// LogChange implements Recorder.
func (Nop) LogChange(context.Context, string, id.ID, Action, map[string]any) error { return nil }

// EnrichCreatedBy sets CreatedBy and UpdatedBy from the actor in context.
// If no actor is present, this is a no-op.
func EnrichCreatedBy(ctx context.Context, doc *entity.BaseDocument) {
	actorID := appctx.GetActorID(ctx)
	if actorID == "" {
		return
	}
	doc.CreatedBy = actorID
	doc.UpdatedBy = actorID
}

// EnrichUpdatedBy sets only UpdatedBy from the actor in context.
func EnrichUpdatedBy(ctx context.Context, doc *entity.BaseDocument) {
	if actorID := appctx.GetActorID(ctx); actorID != "" {
		doc.UpdatedBy = actorID
	}
}
