// Package export renders stored documents for the outside world: a JSON shape
// with money as fixed 2-digit strings, and printable text.
// Nothing here recomputes totals; the frozen figures are rendered as stored.
package export

import (
	"time"

	"docledger/internal/core/types"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/totals"
)

// Document is the export shape of a document.
type Document struct {
	ID           string       `json:"id"`
	Type         string       `json:"documentType"`
	Number       string       `json:"number"`
	Date         time.Time    `json:"date"`
	Finalized    bool         `json:"finalized"`
	FinalizedAt  *time.Time   `json:"finalizedAt,omitempty"`
	Status       string       `json:"status"`
	Counterparty Counterparty `json:"counterparty"`
	Items        []Line       `json:"items"`

	Discount       string  `json:"discount"`
	Freight        Freight `json:"freight"`
	DiscountPolicy string  `json:"discountPolicy"`

	Totals     Totals    `json:"totals"`
	Payments   []Payment `json:"payments"`
	TotalPaid  string    `json:"totalPaid"`
	BalanceDue string    `json:"balanceDue"`

	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Counterparty is the exported counterparty snapshot.
type Counterparty struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	TaxID   string `json:"taxId,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Line is an exported line item.
type Line struct {
	LineNo       int    `json:"lineNo"`
	Description  string `json:"description"`
	Code         string `json:"code,omitempty"`
	ProductID    string `json:"productId,omitempty"`
	Kind         string `json:"kind"`
	Quantity     int64  `json:"quantity"`
	UnitPrice    string `json:"unitPrice"`
	TaxRate      string `json:"taxRate"`
	Amount       string `json:"amount"`
	TaxAmount    string `json:"taxAmount"`
	PriceWithTax string `json:"priceWithTax"`
}

// Freight is the exported shipping charge.
type Freight struct {
	Amount  string `json:"amount"`
	TaxRate string `json:"taxRate"`
}

// Totals are the exported frozen totals.
type Totals struct {
	Subtotal      string `json:"subtotal"`
	Discount      string `json:"discount"`
	TaxTotal      string `json:"taxTotal"`
	FreightAmount string `json:"freightAmount"`
	FreightTax    string `json:"freightTax"`
	GrandTotal    string `json:"grandTotal"`
	WasClamped    bool   `json:"wasClamped,omitempty"`
}

// Payment is an exported payment.
type Payment struct {
	ID              string    `json:"id"`
	Date            time.Time `json:"date"`
	Amount          string    `json:"amount"`
	RequestedAmount string    `json:"requestedAmount,omitempty"`
	Mode            string    `json:"mode"`
	Reference       string    `json:"reference,omitempty"`
	IdempotencyKey  string    `json:"idempotencyKey,omitempty"`
}

// FromDocument converts a stored document to its export shape.
func FromDocument(doc *documents.Document) *Document {
	out := &Document{
		ID:          doc.ID.String(),
		Type:        string(doc.Type),
		Number:      doc.Number,
		Date:        doc.Date,
		Finalized:   doc.Finalized,
		FinalizedAt: doc.FinalizedAt,
		Status:      string(doc.Status),
		Counterparty: Counterparty{
			Name:    doc.Counterparty.Name,
			Address: doc.Counterparty.Address,
			TaxID:   doc.Counterparty.TaxID,
			Phone:   doc.Counterparty.Phone,
			Email:   doc.Counterparty.Email,
		},
		Discount: types.FormatMoney(doc.Discount),
		Freight: Freight{
			Amount:  types.FormatMoney(doc.Freight.Amount),
			TaxRate: doc.Freight.TaxRate.String(),
		},
		DiscountPolicy: string(doc.DiscountPolicy),
		Totals:         FromTotals(doc.Totals),
		TotalPaid:      types.FormatMoney(doc.TotalPaid),
		BalanceDue:     types.FormatMoney(doc.BalanceDue),
		Comment:        doc.Comment,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}

	out.Items = make([]Line, len(doc.Items))
	for i, l := range doc.Items {
		line := Line{
			LineNo:       l.LineNo,
			Description:  l.Description,
			Code:         l.Code,
			Kind:         string(l.Kind),
			Quantity:     l.Quantity,
			UnitPrice:    types.FormatMoney(l.UnitPrice),
			TaxRate:      l.TaxRate.String(),
			Amount:       types.FormatMoney(l.Amount()),
			TaxAmount:    types.FormatMoney(l.TaxAmount()),
			PriceWithTax: types.FormatMoney(l.PriceWithTax()),
		}
		if l.ProductID != nil {
			line.ProductID = l.ProductID.String()
		}
		out.Items[i] = line
	}

	out.Payments = make([]Payment, len(doc.Payments))
	for i, p := range doc.Payments {
		out.Payments[i] = FromPayment(p)
	}

	return out
}

// FromTotals formats totals as fixed 2-digit strings.
func FromTotals(t totals.Totals) Totals {
	return Totals{
		Subtotal:      types.FormatMoney(t.Subtotal),
		Discount:      types.FormatMoney(t.Discount),
		TaxTotal:      types.FormatMoney(t.TaxTotal),
		FreightAmount: types.FormatMoney(t.FreightAmount),
		FreightTax:    types.FormatMoney(t.FreightTax),
		GrandTotal:    types.FormatMoney(t.GrandTotal),
		WasClamped:    t.WasClamped,
	}
}

// FromPayment converts a payment. RequestedAmount is only set when the cap
// policy trimmed the payment.
func FromPayment(p ledger.Payment) Payment {
	pay := Payment{
		ID:             p.ID.String(),
		Date:           p.Date,
		Amount:         types.FormatMoney(p.Amount),
		Mode:           p.Mode,
		Reference:      p.Reference,
		IdempotencyKey: p.IdempotencyKey,
	}
	if !p.RequestedAmount.Equal(p.Amount) {
		pay.RequestedAmount = types.FormatMoney(p.RequestedAmount)
	}
	return pay
}
