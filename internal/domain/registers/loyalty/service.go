// Package loyalty credits points to counterparties when sales are finalized.
package loyalty

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/core/types"
	"docledger/pkg/logger"
)

// CategoryPurchase marks points earned by buying.
const CategoryPurchase = "purchase"

var (
	pointsPerStep = decimal.NewFromInt(2)
	stepAmount    = decimal.NewFromInt(1000)
)

// Basis is the part of a finalized document accrual looks at.
type Basis struct {
	RecorderID   id.ID
	DocumentType string
	Reference    string
	Counterparty string
	GrandTotal   types.Money
	Date         time.Time
}

// Repository stores the point history.
type Repository interface {
	// CreateEntry appends one history entry
	CreateEntry(ctx context.Context, entry entity.PointEntry) error

	// Balance sums the points of a counterparty
	Balance(ctx context.Context, counterparty string) (int64, error)

	// History returns entries of a counterparty, newest first; limit 0 means all
	History(ctx context.Context, counterparty string, limit int) ([]entity.PointEntry, error)
}

// Points is floor(grandTotal / 1000 × 2).
func Points(grandTotal types.Money) int64 {
	return grandTotal.Mul(pointsPerStep).Div(stepAmount).Floor().IntPart()
}

// Service accrues loyalty points.
type Service struct {
	repo Repository
	rule *Rule
}

// NewService creates a loyalty service. A nil rule means DefaultRule.
func NewService(repo Repository, rule *Rule) *Service {
	if rule == nil {
		rule = MustCompileRule(DefaultRule)
	}
	return &Service{repo: repo, rule: rule}
}

// OnFinalize credits points for an eligible document.
// It returns nil without writing anything when the rule rejects the document
// or the computed points are not positive.
// Runs inside the finalize transaction.
func (s *Service) OnFinalize(ctx context.Context, b Basis) (*entity.PointEntry, error) {
	ok, err := s.rule.Eligible(b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	points := Points(b.GrandTotal)
	if points <= 0 {
		logger.Debug(ctx, "no loyalty points earned", "reference", b.Reference, "grand_total", b.GrandTotal)
		return nil, nil
	}

	entry := entity.PointEntry{
		MovementBase: entity.NewMovementBase(b.RecorderID, b.DocumentType, b.Date),
		Counterparty: normalizeCounterparty(b.Counterparty),
		Points:       points,
		Category:     CategoryPurchase,
		Description:  fmt.Sprintf("Points earned on %s", b.Reference),
		Reference:    b.Reference,
	}
	if err := s.repo.CreateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("create point entry: %w", err)
	}

	logger.Info(ctx, "loyalty points credited",
		"counterparty", entry.Counterparty,
		"points", points,
		"reference", b.Reference,
	)
	return &entry, nil
}

// Balance returns the point balance of a counterparty.
func (s *Service) Balance(ctx context.Context, counterparty string) (int64, error) {
	return s.repo.Balance(ctx, normalizeCounterparty(counterparty))
}

// History returns the point history of a counterparty.
func (s *Service) History(ctx context.Context, counterparty string, limit int) ([]entity.PointEntry, error) {
	return s.repo.History(ctx, normalizeCounterparty(counterparty), limit)
}

func normalizeCounterparty(name string) string {
	return strings.TrimSpace(name)
}
