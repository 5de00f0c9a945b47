// Package documents provides the commercial document aggregate (quotations,
// purchase orders, service orders, invoices) and its service.
package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docledger/internal/core/apperror"
	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/core/types"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/registers/loyalty"
	"docledger/internal/domain/registers/stock"
	"docledger/internal/domain/totals"
)

// Type is the document kind.
type Type string

const (
	Quotation    Type = "Quotation"
	CustomerPO   Type = "CustomerPO"
	SupplierPO   Type = "SupplierPO"
	ServiceOrder Type = "ServiceOrder"
	Invoice      Type = "Invoice"
)

// AllTypes lists every document kind.
var AllTypes = []Type{Quotation, CustomerPO, SupplierPO, ServiceOrder, Invoice}

// ParseType matches a type name case-insensitively.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	for _, t := range AllTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", apperror.NewValidation(fmt.Sprintf("unknown document type %q", s)).
		WithDetail("field", "documentType")
}

// LineKind tells goods from services. Service lines never move stock.
type LineKind string

const (
	KindGoods   LineKind = "goods"
	KindService LineKind = "service"
)

// Counterparty is a denormalized snapshot of the customer or supplier,
// copied into the document rather than referenced.
type Counterparty struct {
	Name    string `db:"counterparty_name" json:"name"`
	Address string `db:"counterparty_address" json:"address,omitempty"`
	TaxID   string `db:"counterparty_tax_id" json:"taxId,omitempty"`
	Phone   string `db:"counterparty_phone" json:"phone,omitempty"`
	Email   string `db:"counterparty_email" json:"email,omitempty"`
}

// IsEmpty reports whether no counterparty name is set.
func (c Counterparty) IsEmpty() bool {
	return strings.TrimSpace(c.Name) == ""
}

// LineItem is one row of a document.
type LineItem struct {
	LineID     id.ID `db:"line_id" json:"lineId"`
	DocumentID id.ID `db:"document_id" json:"-"`
	LineNo     int   `db:"line_no" json:"lineNo"`

	totals.Item

	// ProductID is the stable product reference. ProductName is kept for
	// documents that only know the product by name.
	ProductID   *id.ID   `db:"product_id" json:"productId,omitempty"`
	ProductName string   `db:"product_name" json:"productName,omitempty"`
	Code        string   `db:"code" json:"code,omitempty"`
	Kind        LineKind `db:"kind" json:"kind"`
}

// ProductKey is the name used to resolve a line without a product id.
func (l LineItem) ProductKey() string {
	if name := strings.TrimSpace(l.ProductName); name != "" {
		return name
	}
	return strings.TrimSpace(l.Description)
}

// Document is the commercial document aggregate.
type Document struct {
	entity.Document

	Type         Type         `db:"document_type" json:"documentType"`
	Counterparty Counterparty `db:"-" json:"counterparty"`
	Items        []LineItem   `db:"-" json:"items"`

	Discount types.Money    `db:"-" json:"discount"`
	Freight  totals.Freight `db:"-" json:"freight"`

	// Policy snapshot taken at creation so totals never change meaning later.
	DiscountPolicy totals.Policy `db:"discount_policy" json:"discountPolicy"`
	FreightTaxed   bool          `db:"freight_taxed" json:"freightTaxed"`

	// Totals are stored rounded to 2 digits.
	Totals totals.Totals `db:"-" json:"totals"`

	ledger.Book
}

// NewDocument creates an empty document of the given type.
func NewDocument(docType Type, policy TypePolicy) *Document {
	return &Document{
		Document:       entity.NewDocument(),
		Type:           docType,
		Items:          make([]LineItem, 0),
		Discount:       types.Zero(),
		DiscountPolicy: policy.DiscountPolicy,
		FreightTaxed:   policy.FreightTaxed,
		Book:           ledger.Book{Payments: make([]ledger.Payment, 0), Status: ledger.StatusDraft},
	}
}

// TotalsOptions returns the calculator options frozen on the document.
func (d *Document) TotalsOptions() totals.Options {
	return totals.Options{Policy: d.DiscountPolicy, FreightTaxed: d.FreightTaxed}
}

// PricedItems returns the priced part of every line.
func (d *Document) PricedItems() []totals.Item {
	items := make([]totals.Item, len(d.Items))
	for i, l := range d.Items {
		items[i] = l.Item
	}
	return items
}

// Recalculate recomputes totals from items, discount and freight and refreshes
// the payment figures. Only allowed before finalize.
func (d *Document) Recalculate() (totals.Result, error) {
	if err := d.CanModify(); err != nil {
		return totals.Result{}, err
	}
	res, err := totals.Compute(d.PricedItems(), d.Discount, d.Freight, d.TotalsOptions())
	if err != nil {
		return totals.Result{}, err
	}
	d.Totals = res.Totals.Rounded()
	d.Book.Recompute(d.Totals.GrandTotal)
	return res, nil
}

// IsDraft reports whether the document was explicitly saved as a draft.
func (d *Document) IsDraft() bool {
	return d.Status == ledger.StatusDraft
}

// Validate implements entity.Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}
	if _, err := ParseType(string(d.Type)); err != nil {
		return err
	}
	if _, err := totals.ParsePolicy(string(d.DiscountPolicy)); err != nil {
		return apperror.NewValidation(err.Error()).WithDetail("field", "discountPolicy")
	}
	for i, l := range d.Items {
		if err := l.Item.Validate(i + 1); err != nil {
			return err
		}
		if l.Kind != KindGoods && l.Kind != KindService {
			return apperror.NewInvalidLineItem(i+1, "kind must be goods or service").
				WithDetail("kind", string(l.Kind))
		}
	}
	return nil
}

// --- posting.Postable ---

// GetDocumentType returns the type name.
func (d *Document) GetDocumentType() string { return string(d.Type) }

// GetNumber returns the document number.
func (d *Document) GetNumber() string { return d.Number }

// CheckComplete verifies the document has what finalize needs.
func (d *Document) CheckComplete() error {
	switch {
	case strings.TrimSpace(d.Number) == "":
		return apperror.NewIncompleteDocument("number", "document has no number")
	case d.Counterparty.IsEmpty():
		return apperror.NewIncompleteDocument("counterparty", "counterparty is required")
	case len(d.Items) == 0:
		return apperror.NewIncompleteDocument("items", "at least one line item is required")
	}
	return nil
}

// StockRequest lists the goods lines for the stock register.
func (d *Document) StockRequest() stock.Request {
	req := stock.Request{
		RecorderID:   d.ID,
		RecorderType: string(d.Type),
		Reference:    d.Number,
		Date:         d.Date,
	}
	for _, l := range d.Items {
		if l.Kind == KindService {
			continue
		}
		req.Lines = append(req.Lines, stock.Line{
			LineNo:      l.LineNo,
			ProductID:   l.ProductID,
			ProductName: l.ProductKey(),
			Quantity:    l.Quantity,
		})
	}
	return req
}

// AccrualBasis returns what loyalty accrual needs.
func (d *Document) AccrualBasis() loyalty.Basis {
	return loyalty.Basis{
		RecorderID:   d.ID,
		DocumentType: string(d.Type),
		Reference:    d.Number,
		Counterparty: d.Counterparty.Name,
		GrandTotal:   d.Totals.GrandTotal,
		Date:         d.Date,
	}
}

// MarkFinalized freezes items and totals and leaves the draft state.
func (d *Document) MarkFinalized(at time.Time) {
	d.Document.MarkFinalized(at)
	d.Book.Open(d.Totals.GrandTotal)
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	c := *d
	c.Items = append([]LineItem(nil), d.Items...)
	for i := range c.Items {
		if p := d.Items[i].ProductID; p != nil {
			pid := *p
			c.Items[i].ProductID = &pid
		}
	}
	c.Payments = append([]ledger.Payment(nil), d.Payments...)
	if d.FinalizedAt != nil {
		at := *d.FinalizedAt
		c.FinalizedAt = &at
	}
	return &c
}
