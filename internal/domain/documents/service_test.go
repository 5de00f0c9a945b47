package documents_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docledger/internal/core/apperror"
	"docledger/internal/core/types"
	"docledger/internal/domain/catalog"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/events"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/numbering"
	"docledger/internal/domain/posting"
	"docledger/internal/domain/registers/loyalty"
	"docledger/internal/domain/registers/stock"
	"docledger/internal/domain/totals"
	"docledger/internal/infrastructure/numerator"
	"docledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	svc     *documents.Service
	stock   *stock.Service
	loyalty *loyalty.Service
	outbox  *memory.Outbox
	audit   *memory.AuditLog
	numbers *numbering.Authority
	widget  catalog.Product
}

func newFixture(t *testing.T, overpayment ledger.OverpaymentPolicy) *fixture {
	t.Helper()

	store := memory.NewStore()
	txm := memory.NewTxManager(store)

	dir := memory.NewCatalog()
	widget := dir.PutProduct(catalog.Product{
		Name:    "Widget",
		Code:    "W-1",
		Price:   types.MustMoney("100.00"),
		TaxRate: decimal.NewFromInt(18),
	})
	dir.PutCounterparty(catalog.Counterparty{Name: "Acme Ltd", Address: "1 Main St", TaxID: "TX-1"})

	stockSvc := stock.NewService(memory.NewStockRepo(store), catalog.NewProductResolver(dir), txm)
	loyaltySvc := loyalty.NewService(memory.NewLoyaltyRepo(store), nil)
	outbox := memory.NewOutbox(store)
	auditLog := memory.NewAuditLog(store)

	policies := documents.DefaultPolicies()
	engine := posting.NewEngine(posting.Config{
		TxManager: txm,
		Stock:     stockSvc,
		Loyalty:   loyaltySvc,
		Publisher: outbox,
		Audit:     auditLog,
		Effects:   documents.PostingEffects(policies),
	})

	numbers := numbering.NewAuthority(numerator.NewMemorySequence(), documents.NumberingConfigs(policies))
	svc := documents.NewService(documents.ServiceConfig{
		Repo:           memory.NewDocumentRepo(store),
		TxManager:      txm,
		Numbering:      numbers,
		Posting:        engine,
		Policies:       policies,
		Overpayment:    overpayment,
		Products:       dir,
		Counterparties: dir,
		Publisher:      outbox,
		Audit:          auditLog,
	})

	return &fixture{
		svc:     svc,
		stock:   stockSvc,
		loyalty: loyaltySvc,
		outbox:  outbox,
		audit:   auditLog,
		numbers: numbers,
		widget:  widget,
	}
}

func money(s string) *types.Money {
	m := types.MustMoney(s)
	return &m
}

func invoiceInput(qty int64) documents.CreateInput {
	return documents.CreateInput{
		Type:         documents.Invoice,
		Counterparty: documents.Counterparty{Name: "Acme Ltd"},
		Items: []documents.LineInput{
			{ProductName: "widget", Quantity: qty},
		},
	}
}

func eventTypes(msgs []memory.OutboxMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.EventType
	}
	return out
}

func TestCreate_FinalInvoiceRunsSideEffects(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	_, err := f.stock.Receive(ctx, stock.ReceiveInput{ProductID: f.widget.ID, Quantity: 4})
	require.NoError(t, err)

	res, err := f.svc.Create(ctx, invoiceInput(10))
	require.NoError(t, err)
	doc := res.Document

	assert.Equal(t, "INV 01001", doc.Number)
	assert.True(t, doc.Finalized)
	assert.NotNil(t, doc.FinalizedAt)
	assert.Equal(t, ledger.StatusPending, doc.Status)

	// Price and tax come from the catalog, address from the directory.
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "100.00", types.FormatMoney(doc.Items[0].UnitPrice))
	assert.Equal(t, "W-1", doc.Items[0].Code)
	assert.Equal(t, "1 Main St", doc.Counterparty.Address)

	assert.Equal(t, "1000.00", types.FormatMoney(doc.Totals.Subtotal))
	assert.Equal(t, "180.00", types.FormatMoney(doc.Totals.TaxTotal))
	assert.Equal(t, "1180.00", types.FormatMoney(doc.Totals.GrandTotal))
	assert.Equal(t, "1180.00", types.FormatMoney(doc.BalanceDue))

	require.Len(t, res.Posting.Movements, 1)
	assert.Equal(t, int64(10), res.Posting.Movements[0].Quantity)
	require.Len(t, res.Posting.Warnings, 1)
	assert.Equal(t, apperror.CodeStockUnderflow, res.Posting.Warnings[0].Code)

	balance, err := f.stock.Balance(ctx, f.widget.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Quantity, "balance is floored at zero")

	points, err := f.loyalty.Balance(ctx, "Acme Ltd")
	require.NoError(t, err)
	assert.Equal(t, int64(2), points)

	assert.Equal(t, []string{events.DocumentCreated, events.DocumentFinalized}, eventTypes(f.outbox.Messages()))
	assert.Len(t, f.audit.History(doc.ID), 2)
}

func TestCreate_NumberTakenAtCommitRetriesFromDraft(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	_, err := f.stock.Receive(ctx, stock.ReceiveInput{ProductID: f.widget.ID, Quantity: 20})
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	f.svc.Hooks().OnBeforeFinalize(func(context.Context, *documents.Document) error {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	})

	type outcome struct {
		res documents.CreateResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := f.svc.Create(ctx, invoiceInput(5))
		done <- outcome{res, err}
	}()
	<-entered

	// A counter reset hands INV 01001 out a second time; that invoice commits first.
	require.NoError(t, f.numbers.SetNext(ctx, string(documents.Invoice), 1))
	other, err := f.svc.Create(ctx, invoiceInput(5))
	require.NoError(t, err)
	assert.Equal(t, "INV 01001", other.Document.Number)

	close(release)
	first := <-done
	require.NoError(t, first.err)
	doc := first.res.Document

	assert.Equal(t, "INV 01002", doc.Number)
	assert.True(t, doc.Finalized)
	assert.False(t, first.res.Posting.AlreadyFinalized)
	assert.Len(t, first.res.Posting.Movements, 1)

	moved, err := f.stock.MovementsByDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, moved, 1)

	balance, err := f.stock.Balance(ctx, f.widget.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance.Quantity)

	points, err := f.loyalty.Balance(ctx, "Acme Ltd")
	require.NoError(t, err)
	assert.Equal(t, int64(2), points, "each invoice accrues one point")
}

func TestCreate_DraftThenFinalize(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	in := invoiceInput(1)
	in.Type = documents.Quotation
	in.Draft = true

	res, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "QTN 05001", res.Document.Number)
	assert.False(t, res.Document.Finalized)
	assert.Equal(t, ledger.StatusDraft, res.Document.Status)

	_, _, err = f.svc.ApplyPayment(ctx, res.Document.ID, ledger.Input{Amount: types.MustMoney("10")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPayment), "drafts take no payments")

	doc, fin, err := f.svc.Finalize(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.False(t, fin.AlreadyFinalized)
	assert.True(t, doc.Finalized)
	assert.Equal(t, ledger.StatusPending, doc.Status)
	assert.Empty(t, fin.Movements, "quotations do not move stock")

	_, again, err := f.svc.Finalize(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyFinalized)

	stored, err := f.svc.Get(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Version, stored.Version, "repeated finalize changes nothing")
}

func TestCreate_IncompleteRollsBackAndLeavesGap(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	in := invoiceInput(1)
	in.Counterparty = documents.Counterparty{}

	_, err := f.svc.Create(ctx, in)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeIncompleteDocument))

	list, err := f.svc.List(ctx, documents.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
	assert.Empty(t, f.outbox.Messages())

	res, err := f.svc.Create(ctx, invoiceInput(1))
	require.NoError(t, err)
	assert.Equal(t, "INV 01002", res.Document.Number, "the failed attempt consumed its number")
}

func TestCreate_UnknownProductRollsBack(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	in := invoiceInput(1)
	in.Items = []documents.LineInput{{
		Description: "Mystery box",
		ProductName: "Mystery box",
		Quantity:    1,
		UnitPrice:   money("5.00"),
	}}

	_, err := f.svc.Create(ctx, in)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
	assert.Equal(t, 1, appErr.Details["lineNo"])

	points, err := f.loyalty.Balance(ctx, "Acme Ltd")
	require.NoError(t, err)
	assert.Zero(t, points)
}

func TestCreate_InvalidLineRejectedBeforeNumbering(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	in := invoiceInput(0)
	_, err := f.svc.Create(ctx, in)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidLineItem, appErr.Code)

	res, err := f.svc.Create(ctx, invoiceInput(1))
	require.NoError(t, err)
	assert.Equal(t, "INV 01001", res.Document.Number)
}

func TestCreate_BeforeCreateHookAborts(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()
	blocked := errors.New("blocked")

	f.svc.Hooks().OnBeforeCreate(func(ctx context.Context, doc *documents.Document) error {
		return blocked
	})

	_, err := f.svc.Create(ctx, invoiceInput(1))
	assert.ErrorIs(t, err, blocked)
}

func TestUpdate_DraftRecalculates(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	in := invoiceInput(1)
	in.Draft = true
	res, err := f.svc.Create(ctx, in)
	require.NoError(t, err)
	before := res.Document.Version

	in.Items = []documents.LineInput{{ProductID: &f.widget.ID, Quantity: 3, UnitPrice: money("50")}}
	in.Discount = types.MustMoney("10")
	doc, err := f.svc.Update(ctx, res.Document.ID, in)
	require.NoError(t, err)

	assert.Equal(t, "150.00", types.FormatMoney(doc.Totals.Subtotal))
	assert.Equal(t, "27.00", types.FormatMoney(doc.Totals.TaxTotal))
	assert.Equal(t, "167.00", types.FormatMoney(doc.Totals.GrandTotal))
	assert.Equal(t, before+1, doc.Version)
	assert.Equal(t, res.Document.Number, doc.Number)
}

func TestUpdate_FinalizedIsRejected(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, invoiceInput(1))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, res.Document.ID, invoiceInput(2))
	assert.True(t, apperror.HasCode(err, apperror.CodeDocumentFinalized))

	stored, err := f.svc.Get(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Items[0].Quantity)
}

func TestApplyPayment_StatusProgression(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, invoiceInput(1)) // 118.00
	require.NoError(t, err)
	docID := res.Document.ID

	doc, out, err := f.svc.ApplyPayment(ctx, docID, ledger.Input{Amount: types.MustMoney("18"), IdempotencyKey: "p-1"})
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	assert.Equal(t, ledger.StatusPartial, doc.Status)
	assert.Equal(t, "100.00", types.FormatMoney(doc.BalanceDue))

	doc, out, err = f.svc.ApplyPayment(ctx, docID, ledger.Input{Amount: types.MustMoney("18"), IdempotencyKey: "p-1"})
	require.NoError(t, err)
	assert.True(t, out.Replayed)
	assert.Len(t, doc.Payments, 1)

	_, _, err = f.svc.ApplyPayment(ctx, docID, ledger.Input{Amount: types.MustMoney("20"), IdempotencyKey: "p-1"})
	assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))

	doc, _, err = f.svc.ApplyPayment(ctx, docID, ledger.Input{Amount: types.MustMoney("100"), Mode: "card"})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPaid, doc.Status)
	assert.True(t, doc.BalanceDue.IsZero())

	stored, err := f.svc.Get(ctx, docID)
	require.NoError(t, err)
	assert.Len(t, stored.Payments, 2)
	assert.Equal(t, "card", stored.Payments[1].Mode)
}

func TestApplyPayment_RejectPolicy(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentReject)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, invoiceInput(1))
	require.NoError(t, err)

	_, _, err = f.svc.ApplyPayment(ctx, res.Document.ID, ledger.Input{Amount: types.MustMoney("500")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidPayment))
}

func TestApplyPayment_ConcurrentPaymentsAllCount(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, invoiceInput(10)) // 1180.00
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.ApplyPayment(ctx, res.Document.ID, ledger.Input{Amount: types.MustMoney("118")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	doc, err := f.svc.Get(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.Len(t, doc.Payments, n)
	assert.Equal(t, "1180.00", types.FormatMoney(doc.TotalPaid))
	assert.Equal(t, ledger.StatusPaid, doc.Status)
}

func TestFinalize_ConcurrentRunsOnce(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	in := invoiceInput(2)
	in.Draft = true
	res, err := f.svc.Create(ctx, in)
	require.NoError(t, err)

	const n = 8
	var (
		wg        sync.WaitGroup
		finalized atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, r, err := f.svc.Finalize(ctx, res.Document.ID)
			if !assert.NoError(t, err) {
				return
			}
			if !r.AlreadyFinalized {
				finalized.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), finalized.Load())

	movements, err := f.stock.MovementsByDocument(ctx, res.Document.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 1)

	history, err := f.loyalty.History(ctx, "Acme Ltd", 0)
	require.NoError(t, err)
	assert.Empty(t, history, "236.00 earns no points")
}

func TestPreview_DoesNotPersist(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	in := invoiceInput(2)
	in.Freight = totals.Freight{Amount: types.MustMoney("10"), TaxRate: decimal.NewFromInt(18)}

	res, err := f.svc.Preview(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "247.80", types.FormatMoney(res.GrandTotal))

	list, err := f.svc.List(ctx, documents.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
}

func TestGetByNumberAndList(t *testing.T) {
	f := newFixture(t, ledger.OverpaymentAllow)
	ctx := context.Background()

	inv, err := f.svc.Create(ctx, invoiceInput(1))
	require.NoError(t, err)

	draft := invoiceInput(1)
	draft.Type = documents.CustomerPO
	draft.Draft = true
	_, err = f.svc.Create(ctx, draft)
	require.NoError(t, err)

	got, err := f.svc.GetByNumber(ctx, documents.Invoice, "INV 01001")
	require.NoError(t, err)
	assert.Equal(t, inv.Document.ID, got.ID)

	_, err = f.svc.GetByNumber(ctx, documents.Quotation, "INV 01001")
	assert.True(t, apperror.IsNotFound(err))

	invoiceType := documents.Invoice
	list, err := f.svc.List(ctx, documents.ListFilter{Type: &invoiceType})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.TotalCount)

	finalized := false
	list, err = f.svc.List(ctx, documents.ListFilter{Finalized: &finalized})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, documents.CustomerPO, list.Items[0].Type)
}
