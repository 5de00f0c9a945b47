package entity

import (
	"context"
	"time"

	"docledger/internal/core/apperror"
	"docledger/internal/core/id"
)

// Document is the base type for commercial documents
// (quotations, purchase orders, service orders, invoices).
type Document struct {
	BaseDocument

	// Number is issued once by the numbering authority and never changes.
	Number string `db:"number" json:"number"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Finalized is the finalized-once guard: side effects ran and totals are frozen.
	Finalized bool `db:"finalized" json:"finalized"`

	// FinalizedAt is set together with Finalized.
	FinalizedAt *time.Time `db:"finalized_at" json:"finalizedAt,omitempty"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a new Document with generated ID dated today.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		Date:         time.Now().UTC(),
	}
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// CanModify checks if items and totals can still be edited.
func (d *Document) CanModify() error {
	if d.Finalized {
		return apperror.NewBusinessRule(
			apperror.CodeDocumentFinalized,
			"Cannot modify items or totals of a finalized document.",
		).WithDetail("document_id", d.ID.String())
	}
	return nil
}

// MarkFinalized sets the finalize marker.
// Version is left alone: the repository bumps it when the change is saved.
func (d *Document) MarkFinalized(at time.Time) {
	at = at.UTC()
	d.Finalized = true
	d.FinalizedAt = &at
	d.UpdatedAt = at
}

// GetID returns the document ID.
func (d *Document) GetID() id.ID {
	return d.ID
}

// IsFinalized returns true once side effects have been applied.
func (d *Document) IsFinalized() bool {
	return d.Finalized
}
