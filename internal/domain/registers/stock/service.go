package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"docledger/internal/core/apperror"
	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/core/tx"
	"docledger/pkg/logger"
)

// Line is one goods line of a finalized sale.
type Line struct {
	LineNo int

	// ProductID wins when set; ProductName is the legacy fallback key.
	ProductID   *id.ID
	ProductName string

	Quantity int64
}

// Request describes the stock effect of one finalized document.
type Request struct {
	RecorderID   id.ID
	RecorderType string
	Reference    string
	Date         time.Time
	Lines        []Line
}

// Result is what OnFinalize wrote.
type Result struct {
	Movements []entity.StockMovement

	// Warnings holds one STOCK_UNDERFLOW per product whose balance was floored at zero.
	Warnings []*apperror.AppError
}

// Service provides business operations for the stock register.
// OnFinalize runs inside the finalize transaction opened by the posting engine;
// Receive opens its own.
type Service struct {
	repo      Repository
	resolver  ProductResolver
	txManager tx.Manager
}

// NewService creates a new stock register service.
// resolver may be nil, in which case every goods line must carry a product id.
func NewService(repo Repository, resolver ProductResolver, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		resolver:  resolver,
		txManager: txManager,
	}
}

// OnFinalize decrements stock for every goods line and records one Out movement per line.
// Must be called inside a transaction: balances are locked per product in id order
// and the whole batch commits or rolls back with the document.
func (s *Service) OnFinalize(ctx context.Context, req Request) (Result, error) {
	if len(req.Lines) == 0 {
		return Result{}, nil
	}

	productIDs := make([]id.ID, len(req.Lines))
	demand := make(map[id.ID]int64, len(req.Lines))
	for i, line := range req.Lines {
		if line.Quantity <= 0 {
			return Result{}, apperror.NewInvalidLineItem(line.LineNo, "quantity must be at least 1")
		}
		pid, err := s.resolve(ctx, line)
		if err != nil {
			return Result{}, err
		}
		productIDs[i] = pid
		demand[pid] += line.Quantity
	}

	order := make([]id.ID, 0, len(demand))
	for pid := range demand {
		order = append(order, pid)
	}
	sort.Slice(order, func(i, j int) bool { return id.Less(order[i], order[j]) })

	var res Result
	now := time.Now().UTC()
	for _, pid := range order {
		balance, err := s.repo.GetBalanceForUpdate(ctx, pid)
		if err != nil {
			return Result{}, fmt.Errorf("lock balance of %s: %w", pid, err)
		}

		requested := demand[pid]
		remaining := balance.Quantity - requested
		if remaining < 0 {
			res.Warnings = append(res.Warnings,
				apperror.NewStockUnderflow(pid.String(), requested, balance.Quantity))
			logger.Warn(ctx, "stock underflow, balance floored at zero",
				"product_id", pid,
				"requested", requested,
				"available", balance.Quantity,
				"reference", req.Reference,
			)
			remaining = 0
		}

		balance.ProductID = pid
		balance.Quantity = remaining
		balance.LastMovementAt = req.Date
		balance.UpdatedAt = now
		if err := s.repo.SaveBalance(ctx, balance); err != nil {
			return Result{}, fmt.Errorf("save balance of %s: %w", pid, err)
		}
	}

	res.Movements = make([]entity.StockMovement, 0, len(req.Lines))
	for i, line := range req.Lines {
		res.Movements = append(res.Movements, entity.NewStockMovement(
			req.RecorderID,
			req.RecorderType,
			req.Date,
			productIDs[i],
			line.Quantity,
			entity.DirectionOut,
			req.Reference,
			entity.PurposeSale,
		))
	}

	if err := s.repo.CreateMovements(ctx, res.Movements); err != nil {
		return Result{}, fmt.Errorf("create movements: %w", err)
	}

	logger.Info(ctx, "recorded stock movements",
		"count", len(res.Movements),
		"reference", req.Reference,
		"underflows", len(res.Warnings),
	)

	return res, nil
}

func (s *Service) resolve(ctx context.Context, line Line) (id.ID, error) {
	if line.ProductID != nil && !id.IsNil(*line.ProductID) {
		return *line.ProductID, nil
	}
	if s.resolver == nil || line.ProductName == "" {
		return id.Nil(), unresolved(line)
	}

	pid, err := s.resolver.ResolveProduct(ctx, line.ProductName)
	if err != nil {
		if apperror.IsNotFound(err) {
			return id.Nil(), unresolved(line)
		}
		return id.Nil(), fmt.Errorf("resolve product %q: %w", line.ProductName, err)
	}
	return pid, nil
}

func unresolved(line Line) *apperror.AppError {
	return apperror.NewBusinessRule(apperror.CodeBusinessRule,
		fmt.Sprintf("line %d: product %q is not in the catalog", line.LineNo, line.ProductName)).
		WithDetail("lineNo", line.LineNo).
		WithDetail("product", line.ProductName)
}

// ReceiveInput is a manual stock increase (opening balance, purchase, correction).
type ReceiveInput struct {
	ProductID id.ID
	Quantity  int64
	Purpose   entity.Purpose
	Reference string
	Date      time.Time
}

// Receive adds stock to a product and records an In movement.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (entity.StockMovement, error) {
	if id.IsNil(in.ProductID) {
		return entity.StockMovement{}, apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if in.Quantity <= 0 {
		return entity.StockMovement{}, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity")
	}
	switch in.Purpose {
	case "":
		in.Purpose = entity.PurposePurchase
	case entity.PurposePurchase, entity.PurposeAdjustment:
	default:
		return entity.StockMovement{}, apperror.NewValidation("purpose must be purchase or adjustment").
			WithDetail("field", "purpose")
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	movement := entity.NewStockMovement(id.Nil(), "", in.Date, in.ProductID, in.Quantity,
		entity.DirectionIn, in.Reference, in.Purpose)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		balance, err := s.repo.GetBalanceForUpdate(ctx, in.ProductID)
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		balance.ProductID = in.ProductID
		balance.Quantity += in.Quantity
		balance.LastMovementAt = in.Date
		balance.UpdatedAt = time.Now().UTC()
		if err := s.repo.SaveBalance(ctx, balance); err != nil {
			return fmt.Errorf("save balance: %w", err)
		}
		return s.repo.CreateMovements(ctx, []entity.StockMovement{movement})
	})
	if err != nil {
		return entity.StockMovement{}, err
	}

	logger.Info(ctx, "stock received", "product_id", in.ProductID, "quantity", in.Quantity)
	return movement, nil
}

// Balance returns the on-hand quantity of a product.
func (s *Service) Balance(ctx context.Context, productID id.ID) (entity.StockBalance, error) {
	return s.repo.GetBalance(ctx, productID)
}

// Balances lists balances.
func (s *Service) Balances(ctx context.Context, filter BalanceFilter) ([]entity.StockBalance, error) {
	return s.repo.ListBalances(ctx, filter)
}

// Movements returns the movement history of a product.
func (s *Service) Movements(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, error) {
	return s.repo.GetMovementHistory(ctx, productID, filter)
}

// MovementsByDocument returns what a document wrote to the register.
func (s *Service) MovementsByDocument(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	return s.repo.GetMovementsByRecorder(ctx, recorderID)
}
