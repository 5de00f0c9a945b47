// Package app assembles the engine from configuration: repositories, the
// numbering authority, the posting engine and the services on top of them.
package app

import (
	"context"
	"fmt"

	corenumerator "docledger/internal/core/numerator"
	"docledger/internal/core/tx"
	"docledger/internal/config"
	"docledger/internal/domain/audit"
	"docledger/internal/domain/catalog"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/events"
	"docledger/internal/domain/numbering"
	"docledger/internal/domain/posting"
	"docledger/internal/domain/registers/loyalty"
	"docledger/internal/domain/registers/stock"
	"docledger/internal/infrastructure/http/v1/handlers"
	"docledger/internal/infrastructure/numerator"
	"docledger/internal/infrastructure/storage/memory"
	"docledger/internal/infrastructure/storage/postgres"
	"docledger/internal/infrastructure/storage/postgres/catalog_repo"
	"docledger/internal/infrastructure/storage/postgres/document_repo"
	"docledger/internal/infrastructure/storage/postgres/register_repo"
	"docledger/pkg/logger"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// App is a wired engine.
type App struct {
	Store string

	Documents *documents.Service
	Stock     *stock.Service
	Loyalty   *loyalty.Service
	Numbering *numbering.Authority
	Catalog   handlers.CatalogStore

	// Relay delivers committed outbox messages.
	Relay events.Relay
	// Checker is the readiness probe, nil for the memory store.
	Checker handlers.Checker
	// Pool is set for the postgres store only.
	Pool *postgres.Pool

	closers []func()
}

// Close releases the store.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// storage is what a store contributes to the wiring.
type storage struct {
	txManager tx.Manager
	documents documents.Repository
	stock     stock.Repository
	loyalty   loyalty.Repository
	catalog   handlers.CatalogStore
	sequence  corenumerator.Sequence
	publisher events.Publisher
	relay     events.Relay
	audit     audit.Recorder
}

// New wires the engine over postgres when cfg.DatabaseURL is set, over the
// in-memory store otherwise.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.DatabaseURL == "" {
		return NewMemory(cfg)
	}
	return NewPostgres(ctx, cfg)
}

// NewMemory wires the engine over the in-memory store.
func NewMemory(cfg *config.Config) (*App, error) {
	store := memory.NewStore()
	outbox := memory.NewOutbox(store)
	dir := memory.NewCatalog()

	s := storage{
		txManager: memory.NewTxManager(store),
		documents: memory.NewDocumentRepo(store),
		stock:     memory.NewStockRepo(store),
		loyalty:   memory.NewLoyaltyRepo(store),
		catalog:   dir,
		sequence:  numerator.NewMemorySequence(),
		publisher: outbox,
		relay:     outbox,
		audit:     memory.NewAuditLog(store),
	}
	a, err := build(cfg, s)
	if err != nil {
		return nil, err
	}
	a.Store = StoreMemory
	return a, nil
}

// NewPostgres connects to cfg.DatabaseURL and wires the engine over it.
func NewPostgres(ctx context.Context, cfg *config.Config) (*App, error) {
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL, cfg.DBMaxConns))
	if err != nil {
		return nil, err
	}

	txm := postgres.NewTxManager(pool)
	auditSvc, err := postgres.NewAuditService(txm)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init audit: %w", err)
	}

	s := storage{
		txManager: txm,
		documents: document_repo.NewDocumentRepo(txm),
		stock:     register_repo.NewStockRepo(txm),
		loyalty:   register_repo.NewLoyaltyRepo(txm),
		catalog:   catalog_repo.NewCatalogRepo(txm),
		// Sequence increments join the caller's transaction when there is one.
		sequence: numerator.NewWithQuerierFunc(func(ctx context.Context) numerator.Querier {
			return txm.GetQuerier(ctx)
		}),
		publisher: postgres.NewOutboxPublisher(txm),
		relay:     postgres.NewOutboxRelay(txm),
		audit:     auditSvc,
	}
	a, err := build(cfg, s)
	if err != nil {
		pool.Close()
		return nil, err
	}
	a.Store = StorePostgres
	a.Checker = pool
	a.Pool = pool
	a.closers = append(a.closers, pool.Close)
	return a, nil
}

func build(cfg *config.Config, s storage) (*App, error) {
	// Policies first: the policy file may override overpayment and loyalty settings.
	policies, err := cfg.Policies()
	if err != nil {
		return nil, err
	}
	rule, err := loyalty.CompileRule(cfg.LoyaltyRule)
	if err != nil {
		return nil, fmt.Errorf("loyalty rule: %w", err)
	}

	stockSvc := stock.NewService(s.stock, catalog.NewProductResolver(s.catalog), s.txManager)
	loyaltySvc := loyalty.NewService(s.loyalty, rule)
	authority := numbering.NewAuthority(s.sequence, documents.NumberingConfigs(policies))

	engine := posting.NewEngine(posting.Config{
		TxManager: s.txManager,
		Stock:     stockSvc,
		Loyalty:   loyaltySvc,
		Publisher: s.publisher,
		Audit:     s.audit,
		Effects:   documents.PostingEffects(policies),
	})

	docs := documents.NewService(documents.ServiceConfig{
		Repo:           s.documents,
		TxManager:      s.txManager,
		Numbering:      authority,
		Posting:        engine,
		Policies:       policies,
		Overpayment:    cfg.Overpayment,
		Products:       s.catalog,
		Counterparties: s.catalog,
		Publisher:      s.publisher,
		Audit:          s.audit,
	})

	logger.Info(context.Background(), "engine wired",
		"overpayment", cfg.Overpayment,
		"loyalty_rule", rule.String(),
	)

	return &App{
		Documents: docs,
		Stock:     stockSvc,
		Loyalty:   loyaltySvc,
		Numbering: authority,
		Catalog:   s.catalog,
		Relay:     s.relay,
	}, nil
}
