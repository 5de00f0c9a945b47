// Package posting finalizes documents: it runs register side effects, freezes the
// document and saves it, all inside one transaction.
package posting

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docledger/internal/core/apperror"
	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/core/tx"
	"docledger/internal/domain/audit"
	"docledger/internal/domain/events"
	"docledger/internal/domain/registers/loyalty"
	"docledger/internal/domain/registers/stock"
	"docledger/pkg/logger"
)

var tracer = otel.Tracer("docledger/posting")

// Postable is a document the engine can finalize.
type Postable interface {
	GetID() id.ID
	GetDocumentType() string
	GetNumber() string
	IsFinalized() bool

	// CheckComplete returns INCOMPLETE_DOCUMENT when the document cannot be finalized.
	CheckComplete() error

	StockRequest() stock.Request
	AccrualBasis() loyalty.Basis

	// MarkFinalized freezes the document and derives its status.
	MarkFinalized(at time.Time)
}

// Effects are the side effects a document type triggers on finalize.
type Effects struct {
	Stock   bool
	Loyalty bool
}

// Result is the outcome of Finalize.
type Result struct {
	Movements  []entity.StockMovement `json:"movements,omitempty"`
	PointEntry *entity.PointEntry     `json:"pointEntry,omitempty"`

	// Warnings are non-fatal problems, e.g. STOCK_UNDERFLOW.
	Warnings []*apperror.AppError `json:"warnings,omitempty"`

	// AlreadyFinalized is true when the document was finalized before;
	// nothing was changed by this call.
	AlreadyFinalized bool `json:"alreadyFinalized"`
}

// FinalizedPayload is the DocumentFinalized event body.
type FinalizedPayload struct {
	DocumentID   id.ID  `json:"documentId"`
	DocumentType string `json:"documentType"`
	Number       string `json:"number"`
	Movements    int    `json:"movements"`
	Points       int64  `json:"points"`
	Underflows   int    `json:"underflows"`
}

// Config wires the engine.
type Config struct {
	TxManager tx.Manager
	Stock     *stock.Service
	Loyalty   *loyalty.Service
	Publisher events.Publisher
	Audit     audit.Recorder

	// Effects per document type; types not listed trigger nothing.
	Effects map[string]Effects

	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

// Engine runs the finalize transaction.
type Engine struct {
	txManager tx.Manager
	stock     *stock.Service
	loyalty   *loyalty.Service
	publisher events.Publisher
	audit     audit.Recorder
	effects   map[string]Effects
	now       func() time.Time
}

// NewEngine creates a posting engine.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		txManager: cfg.TxManager,
		stock:     cfg.Stock,
		loyalty:   cfg.Loyalty,
		publisher: cfg.Publisher,
		audit:     cfg.Audit,
		effects:   make(map[string]Effects, len(cfg.Effects)),
		now:       cfg.Now,
	}
	for k, v := range cfg.Effects {
		e.effects[k] = v
	}
	if e.publisher == nil {
		e.publisher = events.Discard{}
	}
	if e.audit == nil {
		e.audit = audit.Nop{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// EffectsFor returns the configured effects of a document type.
func (e *Engine) EffectsFor(docType string) Effects {
	return e.effects[docType]
}

// Finalize finalizes doc exactly once.
//
// Inside one transaction it checks completeness, applies stock and loyalty
// effects, marks the document finalized, calls save, and writes the outbox
// event and audit entry. Any failure rolls all of it back; doc must then be
// discarded by the caller because its in-memory state may already be changed.
//
// Callers that need the document row locked should load it with a
// FOR UPDATE read inside their own transaction and call Finalize from there;
// the engine joins it.
func (e *Engine) Finalize(ctx context.Context, doc Postable, save func(ctx context.Context) error) (Result, error) {
	ctx, span := tracer.Start(ctx, "posting.finalize",
		trace.WithAttributes(
			attribute.String("document.type", doc.GetDocumentType()),
			attribute.String("document.number", doc.GetNumber()),
		))
	defer span.End()

	var res Result
	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		res = Result{}

		if doc.IsFinalized() {
			res.AlreadyFinalized = true
			return nil
		}
		if err := doc.CheckComplete(); err != nil {
			return err
		}

		effects := e.effects[doc.GetDocumentType()]

		if effects.Stock && e.stock != nil {
			sr, err := e.stock.OnFinalize(ctx, doc.StockRequest())
			if err != nil {
				return err
			}
			res.Movements = sr.Movements
			res.Warnings = append(res.Warnings, sr.Warnings...)
		}

		if effects.Loyalty && e.loyalty != nil {
			entry, err := e.loyalty.OnFinalize(ctx, doc.AccrualBasis())
			if err != nil {
				return err
			}
			res.PointEntry = entry
		}

		doc.MarkFinalized(e.now())
		if err := save(ctx); err != nil {
			return err
		}

		payload := FinalizedPayload{
			DocumentID:   doc.GetID(),
			DocumentType: doc.GetDocumentType(),
			Number:       doc.GetNumber(),
			Movements:    len(res.Movements),
			Underflows:   len(res.Warnings),
		}
		if res.PointEntry != nil {
			payload.Points = res.PointEntry.Points
		}

		if err := e.publisher.Publish(ctx, events.Event{
			AggregateType: doc.GetDocumentType(),
			AggregateID:   doc.GetID(),
			EventType:     events.DocumentFinalized,
			Payload:       payload,
		}); err != nil {
			return fmt.Errorf("publish finalized event: %w", err)
		}

		if err := e.audit.LogChange(ctx, doc.GetDocumentType(), doc.GetID(), audit.ActionFinalize, map[string]any{
			"number":     doc.GetNumber(),
			"movements":  payload.Movements,
			"points":     payload.Points,
			"underflows": payload.Underflows,
		}); err != nil {
			return fmt.Errorf("audit finalize: %w", err)
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	if res.AlreadyFinalized {
		logger.Debug(ctx, "document already finalized", "document_id", doc.GetID(), "number", doc.GetNumber())
	} else {
		logger.Info(ctx, "document finalized",
			"document_id", doc.GetID(),
			"number", doc.GetNumber(),
			"movements", len(res.Movements),
			"warnings", len(res.Warnings),
		)
	}
	span.SetAttributes(attribute.Bool("document.already_finalized", res.AlreadyFinalized))

	return res, nil
}
