// Package entity provides core domain entities.
package entity

import (
	"time"

	"docledger/internal/core/id"
)

// Direction defines whether a movement adds to or removes from stock.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Purpose explains why stock moved.
type Purpose string

const (
	PurposeSale       Purpose = "sale"
	PurposePurchase   Purpose = "purchase"
	PurposeAdjustment Purpose = "adjustment"
)

// MovementBase contains common fields for register records.
// Records are append-only: never updated, never deleted.
type MovementBase struct {
	// LineID is unique identifier for this record (UUIDv7)
	LineID id.ID `db:"line_id" json:"id"`

	// RecorderID is the document that produced the record (nil for manual receipts)
	RecorderID id.ID `db:"recorder_id" json:"recorderId"`

	// RecorderType is the document type (e.g. "Invoice")
	RecorderType string `db:"recorder_type" json:"recorderType,omitempty"`

	// Period is the business date of the record
	Period time.Time `db:"period" json:"date"`

	// CreatedAt is when the record was written
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMovementBase creates a new movement base with generated LineID.
func NewMovementBase(recorderID id.ID, recorderType string, period time.Time) MovementBase {
	return MovementBase{
		LineID:       id.New(),
		RecorderID:   recorderID,
		RecorderType: recorderType,
		Period:       period,
		CreatedAt:    time.Now().UTC(),
	}
}

// StockMovement is a logged inventory quantity change tied to a document reference.
type StockMovement struct {
	MovementBase

	ProductID id.ID     `db:"product_id" json:"productId"`
	Quantity  int64     `db:"quantity" json:"quantity"`
	Direction Direction `db:"direction" json:"direction"`

	// Reference is the document number that caused the movement
	Reference string  `db:"reference" json:"reference"`
	Purpose   Purpose `db:"purpose" json:"purpose"`
}

// NewStockMovement creates a new stock movement.
func NewStockMovement(
	recorderID id.ID,
	recorderType string,
	period time.Time,
	productID id.ID,
	quantity int64,
	direction Direction,
	reference string,
	purpose Purpose,
) StockMovement {
	return StockMovement{
		MovementBase: NewMovementBase(recorderID, recorderType, period),
		ProductID:    productID,
		Quantity:     quantity,
		Direction:    direction,
		Reference:    reference,
		Purpose:      purpose,
	}
}

// SignedQuantity returns quantity with sign based on direction.
func (m *StockMovement) SignedQuantity() int64 {
	if m.Direction == DirectionOut {
		return -m.Quantity
	}
	return m.Quantity
}

// StockBalance is the current on-hand quantity of a product.
type StockBalance struct {
	ProductID id.ID `db:"product_id" json:"productId"`
	Quantity  int64 `db:"quantity" json:"quantity"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// PointEntry is one line of a counterparty's loyalty point history.
type PointEntry struct {
	MovementBase

	// Counterparty is the snapshot name the points were credited to
	Counterparty string `db:"counterparty" json:"counterparty"`
	Points       int64  `db:"points" json:"points"`
	Category     string `db:"category" json:"category"`
	Description  string `db:"description" json:"description"`
	Reference    string `db:"reference" json:"reference"`
}
