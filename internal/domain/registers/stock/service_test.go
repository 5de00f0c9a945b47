package stock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docledger/internal/core/apperror"
	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/domain/catalog"
	"docledger/internal/domain/registers/stock"
	"docledger/internal/infrastructure/storage/memory"
)

type env struct {
	svc *stock.Service
	txm *memory.TxManager
	dir *memory.Catalog
}

func newEnv() *env {
	store := memory.NewStore()
	txm := memory.NewTxManager(store)
	dir := memory.NewCatalog()
	return &env{
		svc: stock.NewService(memory.NewStockRepo(store), catalog.NewProductResolver(dir), txm),
		txm: txm,
		dir: dir,
	}
}

func (e *env) finalize(ctx context.Context, req stock.Request) (stock.Result, error) {
	var res stock.Result
	err := e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		res, err = e.svc.OnFinalize(ctx, req)
		return err
	})
	return res, err
}

func ptr(v id.ID) *id.ID { return &v }

func TestOnFinalize_DecrementsAndRecords(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	pid := id.New()

	_, err := e.svc.Receive(ctx, stock.ReceiveInput{ProductID: pid, Quantity: 10})
	require.NoError(t, err)

	docID := id.New()
	res, err := e.finalize(ctx, stock.Request{
		RecorderID:   docID,
		RecorderType: "Invoice",
		Reference:    "INV 01001",
		Date:         time.Now().UTC(),
		Lines: []stock.Line{
			{LineNo: 1, ProductID: ptr(pid), Quantity: 3},
			{LineNo: 2, ProductID: ptr(pid), Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	require.Len(t, res.Movements, 2, "one movement per line")
	for _, m := range res.Movements {
		assert.Equal(t, entity.DirectionOut, m.Direction)
		assert.Equal(t, entity.PurposeSale, m.Purpose)
		assert.Equal(t, "INV 01001", m.Reference)
	}

	b, err := e.svc.Balance(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.Quantity)

	byDoc, err := e.svc.MovementsByDocument(ctx, docID)
	require.NoError(t, err)
	assert.Len(t, byDoc, 2)
}

func TestOnFinalize_UnderflowIsWarningPerProduct(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	pid := id.New()

	_, err := e.svc.Receive(ctx, stock.ReceiveInput{ProductID: pid, Quantity: 4})
	require.NoError(t, err)

	res, err := e.finalize(ctx, stock.Request{
		RecorderID: id.New(),
		Lines: []stock.Line{
			{LineNo: 1, ProductID: ptr(pid), Quantity: 3},
			{LineNo: 2, ProductID: ptr(pid), Quantity: 3},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, apperror.CodeStockUnderflow, w.Code)
	assert.Equal(t, int64(6), w.Details["requested"])
	assert.Equal(t, int64(4), w.Details["available"])

	// Movements keep the requested quantities.
	assert.Equal(t, int64(3), res.Movements[0].Quantity)
	assert.Equal(t, int64(3), res.Movements[1].Quantity)

	b, err := e.svc.Balance(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.Quantity)
}

func TestOnFinalize_ResolvesLegacyNames(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	p := e.dir.PutProduct(catalog.Product{Name: "Bolt M6"})

	res, err := e.finalize(ctx, stock.Request{
		RecorderID: id.New(),
		Lines:      []stock.Line{{LineNo: 1, ProductName: "  bolt m6 ", Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, res.Movements, 1)
	assert.Equal(t, p.ID, res.Movements[0].ProductID)
}

func TestOnFinalize_UnknownProductFailsWholeBatch(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	pid := id.New()

	_, err := e.svc.Receive(ctx, stock.ReceiveInput{ProductID: pid, Quantity: 5})
	require.NoError(t, err)

	_, err = e.finalize(ctx, stock.Request{
		RecorderID: id.New(),
		Lines: []stock.Line{
			{LineNo: 1, ProductID: ptr(pid), Quantity: 1},
			{LineNo: 2, ProductName: "Ghost", Quantity: 1},
		},
	})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
	assert.Equal(t, 2, appErr.Details["lineNo"])

	b, err := e.svc.Balance(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.Quantity, "nothing was applied")
}

func TestOnFinalize_RollbackRestoresBalance(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	pid := id.New()

	_, err := e.svc.Receive(ctx, stock.ReceiveInput{ProductID: pid, Quantity: 5})
	require.NoError(t, err)

	err = e.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := e.svc.OnFinalize(ctx, stock.Request{
			RecorderID: id.New(),
			Lines:      []stock.Line{{LineNo: 1, ProductID: ptr(pid), Quantity: 2}},
		}); err != nil {
			return err
		}
		return apperror.NewIncompleteDocument("counterparty", "missing")
	})
	require.Error(t, err)

	b, err := e.svc.Balance(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, int64(5), b.Quantity)

	history, err := e.svc.Movements(ctx, pid, stock.MovementFilter{})
	require.NoError(t, err)
	assert.Len(t, history, 1, "only the receipt remains")
}

func TestOnFinalize_ConcurrentSalesSerialize(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	a, b := id.New(), id.New()

	for _, pid := range []id.ID{a, b} {
		_, err := e.svc.Receive(ctx, stock.ReceiveInput{ProductID: pid, Quantity: 100})
		require.NoError(t, err)
	}

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Alternate line order; locks are still taken in id order.
			lines := []stock.Line{
				{LineNo: 1, ProductID: ptr(a), Quantity: 1},
				{LineNo: 2, ProductID: ptr(b), Quantity: 2},
			}
			if i%2 == 1 {
				lines[0], lines[1] = lines[1], lines[0]
			}
			_, err := e.finalize(ctx, stock.Request{RecorderID: id.New(), Lines: lines})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	balA, err := e.svc.Balance(ctx, a)
	require.NoError(t, err)
	balB, err := e.svc.Balance(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, int64(80), balA.Quantity)
	assert.Equal(t, int64(60), balB.Quantity)
}

func TestReceive_Validation(t *testing.T) {
	e := newEnv()
	ctx := context.Background()

	tests := []struct {
		name string
		in   stock.ReceiveInput
	}{
		{"nil product", stock.ReceiveInput{Quantity: 1}},
		{"zero quantity", stock.ReceiveInput{ProductID: id.New()}},
		{"sale purpose", stock.ReceiveInput{ProductID: id.New(), Quantity: 1, Purpose: entity.PurposeSale}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.Receive(ctx, tt.in)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
		})
	}
}

func TestBalances_ExcludeZero(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	pid := id.New()

	_, err := e.svc.Receive(ctx, stock.ReceiveInput{ProductID: pid, Quantity: 1, Purpose: entity.PurposeAdjustment})
	require.NoError(t, err)
	_, err = e.finalize(ctx, stock.Request{
		RecorderID: id.New(),
		Lines:      []stock.Line{{LineNo: 1, ProductID: ptr(pid), Quantity: 1}},
	})
	require.NoError(t, err)

	all, err := e.svc.Balances(ctx, stock.BalanceFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	nonZero, err := e.svc.Balances(ctx, stock.BalanceFilter{ExcludeZero: true})
	require.NoError(t, err)
	assert.Empty(t, nonZero)

	out := entity.DirectionOut
	history, err := e.svc.Movements(ctx, pid, stock.MovementFilter{Direction: &out})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
