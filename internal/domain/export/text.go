package export

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"docledger/internal/core/apperror"
	"docledger/internal/core/types"
	"docledger/internal/domain/documents"
)

// Formatter renders a finalized document for printing.
type Formatter interface {
	Format(w io.Writer, doc *documents.Document) error
}

// ContentTyper is implemented by formatters that know their MIME type.
type ContentTyper interface {
	ContentType() string
}

// TextFormatter prints a plain-text document.
type TextFormatter struct {
	// Width of the separator lines, 64 when zero
	Width int
}

var _ Formatter = TextFormatter{}

// ContentType implements ContentTyper.
func (TextFormatter) ContentType() string { return "text/plain; charset=utf-8" }

// Format implements Formatter.
func (f TextFormatter) Format(w io.Writer, doc *documents.Document) error {
	if !doc.IsFinalized() {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "only finalized documents can be printed").
			WithDetail("document_id", doc.ID.String())
	}
	width := f.Width
	if width <= 0 {
		width = 64
	}
	rule := strings.Repeat("-", width)

	p := &printer{w: w}
	p.linef("%s %s", documentTitle(doc.Type), doc.Number)
	p.linef("Date: %s", doc.Date.Format("2006-01-02"))
	p.linef("%s", rule)

	cp := doc.Counterparty
	p.linef("%s", cp.Name)
	for _, v := range []string{cp.Address, taxLine(cp.TaxID), cp.Phone, cp.Email} {
		if v != "" {
			p.linef("%s", v)
		}
	}
	p.linef("%s", rule)
	if p.err != nil {
		return p.err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDescription\tQty\tPrice\tTax %\tAmount\t")
	for _, l := range doc.Items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t\n",
			l.LineNo, l.Description, l.Quantity,
			types.FormatMoney(l.UnitPrice), l.TaxRate.String(), types.FormatMoney(l.Amount()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	t := doc.Totals
	p.linef("%s", rule)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	row := func(label string, m types.Money) {
		fmt.Fprintf(tw, "%s\t%s\t\n", label, types.FormatMoney(m))
	}
	row("Subtotal", t.Subtotal)
	if !t.Discount.IsZero() {
		row("Discount", t.Discount.Neg())
	}
	row("Tax", t.TaxTotal)
	if !t.FreightAmount.IsZero() {
		row("Freight", t.FreightAmount)
		row("Freight tax", t.FreightTax)
	}
	row("Total", t.GrandTotal)
	if len(doc.Payments) > 0 {
		row("Paid", doc.TotalPaid)
		row("Balance due", doc.BalanceDue)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p.linef("%s", rule)
	p.linef("Status: %s", doc.Status)
	if doc.Comment != "" {
		p.linef("Note: %s", doc.Comment)
	}
	return p.err
}

// printer remembers the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) linef(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func taxLine(taxID string) string {
	if taxID == "" {
		return ""
	}
	return "Tax ID: " + taxID
}

func documentTitle(t documents.Type) string {
	switch t {
	case documents.Invoice:
		return "INVOICE"
	case documents.Quotation:
		return "QUOTATION"
	case documents.CustomerPO:
		return "CUSTOMER PURCHASE ORDER"
	case documents.SupplierPO:
		return "PURCHASE ORDER"
	case documents.ServiceOrder:
		return "SERVICE ORDER"
	default:
		return strings.ToUpper(string(t))
	}
}
