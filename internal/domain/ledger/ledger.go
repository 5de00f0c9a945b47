// Package ledger applies payments to a document and derives its payment status.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"docledger/internal/core/apperror"
	"docledger/internal/core/id"
	"docledger/internal/core/types"
)

// Status is the payment state of a document.
type Status string

const (
	// StatusDraft is the explicit pre-finalization state. Drafts take no payments
	// and never trigger stock or loyalty side effects.
	StatusDraft   Status = "Draft"
	StatusPending Status = "Pending"
	StatusPartial Status = "Partial"
	StatusPaid    Status = "Paid"
)

// OverpaymentPolicy decides what happens when a payment exceeds the balance due.
type OverpaymentPolicy string

const (
	// OverpaymentAllow records the payment as-is; balanceDue goes negative (credit).
	OverpaymentAllow OverpaymentPolicy = "allow"
	// OverpaymentReject fails the payment with INVALID_PAYMENT.
	OverpaymentReject OverpaymentPolicy = "reject"
	// OverpaymentCap records only the remaining balance.
	OverpaymentCap OverpaymentPolicy = "cap"
)

// ParseOverpaymentPolicy validates a policy name. Empty means allow.
func ParseOverpaymentPolicy(s string) (OverpaymentPolicy, error) {
	switch p := OverpaymentPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OverpaymentAllow, nil
	case OverpaymentAllow, OverpaymentReject, OverpaymentCap:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overpayment policy %q", s)
	}
}

// Payment is one recorded payment against a document.
type Payment struct {
	ID         id.ID       `db:"id" json:"id"`
	DocumentID id.ID       `db:"document_id" json:"documentId"`
	Date       time.Time   `db:"date" json:"date"`
	Amount     types.Money `db:"amount" json:"amount"`
	Mode       string      `db:"mode" json:"mode"`
	Reference  string      `db:"reference" json:"reference,omitempty"`

	// IdempotencyKey is the client token the payment was submitted with.
	IdempotencyKey string `db:"idempotency_key" json:"idempotencyKey,omitempty"`

	// RequestedAmount differs from Amount only when the cap policy trimmed the payment.
	RequestedAmount types.Money `db:"requested_amount" json:"requestedAmount"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Input is a payment request.
type Input struct {
	Amount         types.Money
	Mode           string
	Date           time.Time
	Reference      string
	IdempotencyKey string
}

// Outcome is the result of Apply.
type Outcome struct {
	Payment Payment `json:"payment"`

	// Replayed is true when the idempotency key matched an earlier payment
	// and nothing was changed.
	Replayed bool `json:"replayed"`
}

// Book is the payment part of a document.
type Book struct {
	Payments   []Payment   `db:"-" json:"payments"`
	TotalPaid  types.Money `db:"total_paid" json:"totalPaid"`
	BalanceDue types.Money `db:"balance_due" json:"balanceDue"`
	Status     Status      `db:"status" json:"status"`
}

// DeriveStatus maps balance figures to a non-draft status.
func DeriveStatus(grandTotal, totalPaid types.Money) Status {
	balanceDue := grandTotal.Sub(totalPaid)
	switch {
	case !balanceDue.IsPositive():
		return StatusPaid
	case totalPaid.IsPositive() && balanceDue.LessThan(grandTotal):
		return StatusPartial
	default:
		return StatusPending
	}
}

// Recompute refreshes TotalPaid, BalanceDue and, unless the book is a draft, Status.
func (b *Book) Recompute(grandTotal types.Money) {
	paid := types.Zero()
	for _, p := range b.Payments {
		paid = paid.Add(p.Amount)
	}
	b.TotalPaid = paid
	b.BalanceDue = grandTotal.Sub(paid)
	if b.Status != StatusDraft {
		b.Status = DeriveStatus(grandTotal, paid)
	}
}

// Open leaves the draft state and derives the status from the balance.
func (b *Book) Open(grandTotal types.Money) {
	b.Status = StatusPending
	b.Recompute(grandTotal)
}

// FindByKey returns the payment recorded under an idempotency key.
func (b *Book) FindByKey(key string) (Payment, bool) {
	if key == "" {
		return Payment{}, false
	}
	for _, p := range b.Payments {
		if p.IdempotencyKey == key {
			return p, true
		}
	}
	return Payment{}, false
}

// Apply records a payment against a book whose document has the given grand total.
// On error the book is unchanged.
func Apply(b *Book, documentID id.ID, grandTotal types.Money, in Input, policy OverpaymentPolicy) (Outcome, error) {
	if b.Status == StatusDraft {
		return Outcome{}, apperror.NewInvalidPayment("payments cannot be applied to a draft document").
			WithDetail("document_id", documentID.String())
	}
	if !in.Amount.IsPositive() {
		return Outcome{}, apperror.NewInvalidPayment("payment amount must be positive").
			WithDetail("amount", in.Amount.String())
	}
	// Payments are stored in whole cents; finer amounts cannot be recorded exactly.
	if !in.Amount.Equal(in.Amount.Truncate(types.MoneyScale)) {
		return Outcome{}, apperror.NewInvalidPayment("payment amount has more than two fraction digits").
			WithDetail("amount", in.Amount.String())
	}

	if existing, ok := b.FindByKey(in.IdempotencyKey); ok {
		if !existing.RequestedAmount.Equal(in.Amount) {
			return Outcome{}, apperror.NewIdempotencyConflict(in.IdempotencyKey).
				WithDetail("recorded_amount", existing.RequestedAmount.String()).
				WithDetail("amount", in.Amount.String())
		}
		return Outcome{Payment: existing, Replayed: true}, nil
	}

	amount := in.Amount
	remaining := grandTotal.Sub(b.TotalPaid)
	if amount.GreaterThan(remaining) {
		switch policy {
		case OverpaymentReject:
			return Outcome{}, apperror.NewInvalidPayment("payment exceeds balance due").
				WithDetail("amount", amount.String()).
				WithDetail("balance_due", remaining.String())
		case OverpaymentCap:
			if !remaining.IsPositive() {
				return Outcome{}, apperror.NewInvalidPayment("document is already fully paid").
					WithDetail("balance_due", remaining.String())
			}
			amount = remaining
		}
	}

	mode := strings.TrimSpace(in.Mode)
	if mode == "" {
		mode = DefaultMode
	}
	now := time.Now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}

	p := Payment{
		ID:              id.New(),
		DocumentID:      documentID,
		Date:            date,
		Amount:          amount,
		Mode:            mode,
		Reference:       strings.TrimSpace(in.Reference),
		IdempotencyKey:  in.IdempotencyKey,
		RequestedAmount: in.Amount,
		CreatedAt:       now,
	}
	b.Payments = append(b.Payments, p)
	b.Recompute(grandTotal)

	return Outcome{Payment: p}, nil
}

// DefaultMode is used when a payment names no mode.
const DefaultMode = "cash"
