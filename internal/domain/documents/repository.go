package documents

import (
	"context"
	"time"

	"docledger/internal/core/id"
	"docledger/internal/domain"
	"docledger/internal/domain/ledger"
)

// Repository persists documents together with their items and payments.
type Repository interface {
	// Create inserts a new document. A number already used within the same
	// type yields a NUMBERING_CONFLICT AppError.
	Create(ctx context.Context, doc *Document) error

	// GetByID loads a document with items and payments.
	GetByID(ctx context.Context, docID id.ID) (*Document, error)

	// GetByNumber loads a document by its type-scoped number.
	GetByNumber(ctx context.Context, docType Type, number string) (*Document, error)

	// GetForUpdate loads a document and locks it until the transaction ends.
	GetForUpdate(ctx context.Context, docID id.ID) (*Document, error)

	// Update saves header, items and new payments with optimistic locking on
	// Version. On success doc.Version is incremented.
	Update(ctx context.Context, doc *Document) error

	// List retrieves document headers with filtering and pagination.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error)
}

// ListFilter for document lists.
type ListFilter struct {
	Type         *Type
	Status       *ledger.Status
	Finalized    *bool
	Counterparty string

	// Search matches the number (substring, case-insensitive)
	Search string

	FromDate *time.Time
	ToDate   *time.Time

	// OrderBy is a column name, "-" prefix for descending. Default "-date".
	OrderBy string

	Limit  int
	Offset int
}
