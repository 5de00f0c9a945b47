package loyalty

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/core/types"
)

type fakeRepo struct {
	entries []entity.PointEntry
}

func (r *fakeRepo) CreateEntry(_ context.Context, e entity.PointEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeRepo) Balance(_ context.Context, cp string) (int64, error) {
	var sum int64
	for _, e := range r.entries {
		if e.Counterparty == cp {
			sum += e.Points
		}
	}
	return sum, nil
}

func (r *fakeRepo) History(_ context.Context, cp string, _ int) ([]entity.PointEntry, error) {
	var out []entity.PointEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Counterparty == cp {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func basis(docType, grand string) Basis {
	return Basis{
		RecorderID:   id.New(),
		DocumentType: docType,
		Reference:    "INV 01001",
		Counterparty: "City Hospital",
		GrandTotal:   types.MustMoney(grand),
		Date:         time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestPoints(t *testing.T) {
	tests := map[string]int64{
		"19222":  38,
		"1000":   2,
		"999.99": 1,
		"499.99": 0,
		"500":    1,
		"0":      0,
	}
	for grand, want := range tests {
		assert.Equal(t, want, Points(types.MustMoney(grand)), grand)
	}
}

func TestOnFinalize_InvoiceEarnsPoints(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil)

	entry, err := svc.OnFinalize(context.Background(), basis("Invoice", "19222"))
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, int64(38), entry.Points)
	assert.Equal(t, CategoryPurchase, entry.Category)
	assert.Equal(t, "INV 01001", entry.Reference)
	assert.Equal(t, "Invoice", entry.RecorderType)

	bal, err := svc.Balance(context.Background(), " City Hospital ")
	require.NoError(t, err)
	assert.Equal(t, int64(38), bal)
}

func TestOnFinalize_SkipsIneligibleAndZero(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, nil)

	entry, err := svc.OnFinalize(context.Background(), basis("ServiceOrder", "50000"))
	require.NoError(t, err)
	assert.Nil(t, entry)

	entry, err = svc.OnFinalize(context.Background(), basis("Invoice", "400"))
	require.NoError(t, err)
	assert.Nil(t, entry)

	assert.Empty(t, repo.entries)
}

func TestOnFinalize_CustomRule(t *testing.T) {
	rule, err := CompileRule(`documentType in ["Invoice", "ServiceOrder"] && grandTotal >= 2000.0`)
	require.NoError(t, err)
	svc := NewService(&fakeRepo{}, rule)

	entry, err := svc.OnFinalize(context.Background(), basis("ServiceOrder", "2500"))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, int64(5), entry.Points)

	entry, err = svc.OnFinalize(context.Background(), basis("Invoice", "1500"))
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCompileRule_Errors(t *testing.T) {
	_, err := CompileRule(`documentType ==`)
	assert.Error(t, err)

	_, err = CompileRule(`grandTotal * 2.0`)
	assert.Error(t, err)

	_, err = CompileRule(`unknownVar == 1`)
	assert.Error(t, err)
}
