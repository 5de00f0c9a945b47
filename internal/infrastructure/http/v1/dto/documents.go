package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"docledger/internal/core/apperror"
	"docledger/internal/core/types"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/export"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/posting"
	"docledger/internal/domain/totals"
)

// --- Request DTOs ---

// CounterpartyRequest is the counterparty snapshot in a document request.
type CounterpartyRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	TaxID   string `json:"taxId"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// LineRequest is one line item. Price and tax rate may be omitted for
// catalog products.
type LineRequest struct {
	Description string           `json:"description"`
	Quantity    int64            `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
	TaxRate     *decimal.Decimal `json:"taxRate"`
	ProductID   *string          `json:"productId"`
	ProductName string           `json:"productName"`
	Code        string           `json:"code"`
	Kind        string           `json:"kind" binding:"omitempty,oneof=goods service"`
}

// FreightRequest is the shipping charge.
type FreightRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	TaxRate decimal.Decimal `json:"taxRate"`
}

// CreateDocumentRequest creates a document. Draft documents are saved
// without finalizing.
type CreateDocumentRequest struct {
	DocumentType string              `json:"documentType" binding:"required"`
	Date         *time.Time          `json:"date"`
	Counterparty CounterpartyRequest `json:"counterparty"`
	Items        []LineRequest       `json:"items" binding:"dive"`
	Discount     *decimal.Decimal    `json:"discount"`
	Freight      *FreightRequest     `json:"freight"`
	Comment      string              `json:"comment"`
	Draft        bool                `json:"draft"`
}

// ToInput converts the request to a service input.
func (r CreateDocumentRequest) ToInput() (documents.CreateInput, error) {
	docType, err := documents.ParseType(r.DocumentType)
	if err != nil {
		return documents.CreateInput{}, err
	}
	in, err := buildInput(r.Date, r.Counterparty, r.Items, r.Discount, r.Freight, r.Comment)
	if err != nil {
		return documents.CreateInput{}, err
	}
	in.Type = docType
	in.Draft = r.Draft
	return in, nil
}

// UpdateDocumentRequest replaces the editable content of a draft.
type UpdateDocumentRequest struct {
	Date         *time.Time          `json:"date"`
	Counterparty CounterpartyRequest `json:"counterparty"`
	Items        []LineRequest       `json:"items" binding:"dive"`
	Discount     *decimal.Decimal    `json:"discount"`
	Freight      *FreightRequest     `json:"freight"`
	Comment      string              `json:"comment"`
}

// ToInput converts the request to a service input.
func (r UpdateDocumentRequest) ToInput() (documents.CreateInput, error) {
	return buildInput(r.Date, r.Counterparty, r.Items, r.Discount, r.Freight, r.Comment)
}

func buildInput(
	date *time.Time,
	cp CounterpartyRequest,
	lines []LineRequest,
	discount *decimal.Decimal,
	freight *FreightRequest,
	comment string,
) (documents.CreateInput, error) {
	in := documents.CreateInput{
		Counterparty: documents.Counterparty{
			Name:    cp.Name,
			Address: cp.Address,
			TaxID:   cp.TaxID,
			Phone:   cp.Phone,
			Email:   cp.Email,
		},
		Discount: types.Zero(),
		Comment:  comment,
		Items:    make([]documents.LineInput, 0, len(lines)),
	}
	if date != nil {
		in.Date = *date
	}
	if discount != nil {
		in.Discount = *discount
	}
	if freight != nil {
		in.Freight = totals.Freight{Amount: freight.Amount, TaxRate: freight.TaxRate}
	}

	for i, l := range lines {
		productID, err := parseOptionalID(l.ProductID)
		if err != nil {
			return documents.CreateInput{}, apperror.NewValidation("invalid product id").
				WithDetail("field", fmt.Sprintf("items[%d].productId", i))
		}
		in.Items = append(in.Items, documents.LineInput{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TaxRate:     l.TaxRate,
			ProductID:   productID,
			ProductName: l.ProductName,
			Code:        l.Code,
			Kind:        documents.LineKind(l.Kind),
		})
	}
	return in, nil
}

// PaymentRequest records a payment. The idempotency key may come from the
// Idempotency-Key header instead of the body.
type PaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Mode           string          `json:"mode"`
	Date           *time.Time      `json:"date"`
	Reference      string          `json:"reference"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// ToInput converts the request to a ledger input. headerKey wins over the body key.
func (r PaymentRequest) ToInput(headerKey string) ledger.Input {
	in := ledger.Input{
		Amount:         r.Amount,
		Mode:           r.Mode,
		Reference:      r.Reference,
		IdempotencyKey: r.IdempotencyKey,
	}
	if headerKey != "" {
		in.IdempotencyKey = headerKey
	}
	if r.Date != nil {
		in.Date = *r.Date
	}
	return in
}

// ListDocumentsRequest holds list query parameters.
type ListDocumentsRequest struct {
	PaginationRequest
	DocumentType string     `form:"documentType"`
	Status       string     `form:"status" binding:"omitempty,oneof=Draft Pending Partial Paid"`
	Finalized    *bool      `form:"finalized"`
	Counterparty string     `form:"counterparty"`
	Search       string     `form:"search"`
	FromDate     *time.Time `form:"fromDate" time_format:"2006-01-02"`
	ToDate       *time.Time `form:"toDate" time_format:"2006-01-02"`
	OrderBy      string     `form:"orderBy"`
}

// ToFilter converts the request to a repository filter.
func (r ListDocumentsRequest) ToFilter() (documents.ListFilter, error) {
	f := documents.ListFilter{
		Finalized:    r.Finalized,
		Counterparty: r.Counterparty,
		Search:       r.Search,
		FromDate:     r.FromDate,
		ToDate:       r.ToDate,
		OrderBy:      r.OrderBy,
		Limit:        r.Limit,
		Offset:       r.Offset,
	}
	if r.DocumentType != "" {
		t, err := documents.ParseType(r.DocumentType)
		if err != nil {
			return documents.ListFilter{}, err
		}
		f.Type = &t
	}
	if r.Status != "" {
		s := ledger.Status(r.Status)
		f.Status = &s
	}
	return f, nil
}

// --- Response DTOs ---

// DocumentResponse is a stored document plus the side effects of the call
// that produced it.
type DocumentResponse struct {
	*export.Document

	Warnings         []*apperror.AppError `json:"warnings,omitempty"`
	AlreadyFinalized bool                 `json:"alreadyFinalized,omitempty"`
	Movements        int                  `json:"movements,omitempty"`
	PointsAccrued    int64                `json:"pointsAccrued,omitempty"`
}

// FromDocument converts a document to its response shape.
func FromDocument(doc *documents.Document) DocumentResponse {
	return DocumentResponse{Document: export.FromDocument(doc)}
}

// FromPosting converts a document with the result of finalizing it.
func FromPosting(doc *documents.Document, res posting.Result) DocumentResponse {
	resp := FromDocument(doc)
	resp.Warnings = res.Warnings
	resp.AlreadyFinalized = res.AlreadyFinalized
	resp.Movements = len(res.Movements)
	if res.PointEntry != nil {
		resp.PointsAccrued = res.PointEntry.Points
	}
	return resp
}

// DocumentSummary is one row of a document list.
type DocumentSummary struct {
	ID           string    `json:"id"`
	DocumentType string    `json:"documentType"`
	Number       string    `json:"number"`
	Date         time.Time `json:"date"`
	Counterparty string    `json:"counterparty"`
	Status       string    `json:"status"`
	Finalized    bool      `json:"finalized"`
	GrandTotal   string    `json:"grandTotal"`
	BalanceDue   string    `json:"balanceDue"`
}

// FromDocumentSummary converts a document header to a list row.
func FromDocumentSummary(doc *documents.Document) DocumentSummary {
	return DocumentSummary{
		ID:           doc.ID.String(),
		DocumentType: string(doc.Type),
		Number:       doc.Number,
		Date:         doc.Date,
		Counterparty: doc.Counterparty.Name,
		Status:       string(doc.Status),
		Finalized:    doc.Finalized,
		GrandTotal:   types.FormatMoney(doc.Totals.GrandTotal),
		BalanceDue:   types.FormatMoney(doc.BalanceDue),
	}
}

// PaymentResponse is the outcome of a payment call.
type PaymentResponse struct {
	Payment    export.Payment `json:"payment"`
	Replayed   bool           `json:"replayed"`
	TotalPaid  string         `json:"totalPaid"`
	BalanceDue string         `json:"balanceDue"`
	Status     string         `json:"status"`
}

// FromPaymentOutcome converts a ledger outcome together with the updated document.
func FromPaymentOutcome(doc *documents.Document, out ledger.Outcome) PaymentResponse {
	return PaymentResponse{
		Payment:    export.FromPayment(out.Payment),
		Replayed:   out.Replayed,
		TotalPaid:  types.FormatMoney(doc.TotalPaid),
		BalanceDue: types.FormatMoney(doc.BalanceDue),
		Status:     string(doc.Status),
	}
}

// LineBreakdownResponse is one line of a totals preview.
type LineBreakdownResponse struct {
	LineNo       int    `json:"lineNo"`
	Amount       string `json:"amount"`
	Discount     string `json:"discount"`
	TaxableBase  string `json:"taxableBase"`
	TaxAmount    string `json:"taxAmount"`
	PriceWithTax string `json:"priceWithTax"`
}

// PreviewResponse is a totals preview.
type PreviewResponse struct {
	Totals export.Totals           `json:"totals"`
	Lines  []LineBreakdownResponse `json:"lines"`
}

// FromPreview rounds and formats a totals result.
func FromPreview(res totals.Result) PreviewResponse {
	resp := PreviewResponse{
		Totals: export.FromTotals(res.Totals.Rounded()),
		Lines:  make([]LineBreakdownResponse, len(res.Lines)),
	}
	for i, l := range res.Lines {
		resp.Lines[i] = LineBreakdownResponse{
			LineNo:       l.LineNo,
			Amount:       types.FormatMoney(l.Amount),
			Discount:     types.FormatMoney(l.Discount),
			TaxableBase:  types.FormatMoney(l.TaxableBase),
			TaxAmount:    types.FormatMoney(l.TaxAmount),
			PriceWithTax: types.FormatMoney(l.PriceWithTax),
		}
	}
	return resp
}
