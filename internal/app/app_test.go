package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docledger/internal/config"
	"docledger/internal/core/types"
	"docledger/internal/domain/catalog"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/events"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/registers/loyalty"
	"docledger/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Overpayment: ledger.OverpaymentAllow,
		LoyaltyRule: loyalty.DefaultRule,
	}
}

func TestNewMemory_WiresServices(t *testing.T) {
	a, err := NewMemory(testConfig())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, StoreMemory, a.Store)
	assert.Nil(t, a.Checker)
	require.NotNil(t, a.Documents)
	require.NotNil(t, a.Relay)

	ctx := context.Background()
	p, err := a.Catalog.SaveProduct(ctx, catalog.Product{
		Name:    "Stethoscope",
		Price:   types.MustMoney("250.00"),
		TaxRate: decimal.NewFromInt(5),
	})
	require.NoError(t, err)

	res, err := a.Documents.Create(ctx, documents.CreateInput{
		Type:         documents.Invoice,
		Counterparty: documents.Counterparty{Name: "City Clinic"},
		Items:        []documents.LineInput{{ProductID: &p.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, "525.00", types.FormatMoney(res.Document.Totals.GrandTotal))

	next, err := a.Numbering.Next(ctx, string(documents.Invoice))
	require.NoError(t, err)
	assert.NotEqual(t, res.Document.Number, next)
}

func TestNewMemory_InvalidLoyaltyRule(t *testing.T) {
	cfg := testConfig()
	cfg.LoyaltyRule = "grandTotal >"

	_, err := NewMemory(cfg)
	assert.Error(t, err)
}

func TestRelayer_DrainPublishesEvents(t *testing.T) {
	a, err := NewMemory(testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = a.Documents.Create(ctx, documents.CreateInput{
		Type:         documents.Quotation,
		Counterparty: documents.Counterparty{Name: "City Clinic"},
		Items: []documents.LineInput{{
			Description: "Consultation",
			Quantity:    1,
			UnitPrice:   ptr(types.MustMoney("80")),
			Kind:        documents.KindService,
		}},
	})
	require.NoError(t, err)

	var seen []string
	r := NewRelayer(a.Relay, func(_ context.Context, msg events.Message) error {
		seen = append(seen, msg.EventType)
		return nil
	}, time.Second, 1, logger.NewNop())

	assert.Equal(t, 2, r.Drain(ctx))
	assert.Equal(t, []string{events.DocumentCreated, events.DocumentFinalized}, seen)
	assert.Zero(t, r.Drain(ctx), "published messages are not delivered again")
}

func TestRelayer_FailedMessagesStayPending(t *testing.T) {
	a, err := NewMemory(testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	in := documents.CreateInput{
		Type:         documents.Quotation,
		Counterparty: documents.Counterparty{Name: "City Clinic"},
		Items:        []documents.LineInput{{Description: "Visit", Quantity: 1, UnitPrice: ptr(types.MustMoney("10"))}},
		Draft:        true,
	}
	_, err = a.Documents.Create(ctx, in)
	require.NoError(t, err)

	failing := NewRelayer(a.Relay, func(context.Context, events.Message) error {
		return errors.New("broker down")
	}, time.Second, 10, logger.NewNop())
	assert.Zero(t, failing.Drain(ctx))

	ok := NewRelayer(a.Relay, nil, time.Second, 10, logger.NewNop())
	assert.Equal(t, 1, ok.Drain(ctx))
}

func ptr[T any](v T) *T { return &v }
