package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docledger/internal/core/apperror"
	"docledger/internal/core/id"
	"docledger/internal/core/tx"
	"docledger/internal/core/types"
	"docledger/internal/domain"
	"docledger/internal/domain/audit"
	"docledger/internal/domain/catalog"
	"docledger/internal/domain/events"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/numbering"
	"docledger/internal/domain/posting"
	"docledger/internal/domain/totals"
	"docledger/pkg/logger"
)

var tracer = otel.Tracer("docledger/documents")

// LineInput is a line item as submitted by a caller.
// Nil price or tax rate is filled from the catalog when the product is known there.
type LineInput struct {
	Description string
	Quantity    int64
	UnitPrice   *types.Money
	TaxRate     *decimal.Decimal

	ProductID   *id.ID
	ProductName string
	Code        string
	Kind        LineKind
}

// CreateInput is everything needed to create a document.
type CreateInput struct {
	Type         Type
	Date         time.Time
	Counterparty Counterparty
	Items        []LineInput
	Discount     types.Money
	Freight      totals.Freight
	Comment      string

	// Draft saves the document without finalizing it.
	Draft bool
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Document *Document
	Posting  posting.Result
}

// ServiceConfig wires the document service.
type ServiceConfig struct {
	Repo      Repository
	TxManager tx.Manager
	Numbering *numbering.Authority
	Posting   *posting.Engine
	Policies  map[Type]TypePolicy

	Overpayment ledger.OverpaymentPolicy

	// Optional collaborators
	Products       catalog.Products
	Counterparties catalog.Counterparties
	Publisher      events.Publisher
	Audit          audit.Recorder
}

// Service provides business operations for documents.
type Service struct {
	repo           Repository
	txManager      tx.Manager
	numbering      *numbering.Authority
	posting        *posting.Engine
	policies       map[Type]TypePolicy
	overpayment    ledger.OverpaymentPolicy
	products       catalog.Products
	counterparties catalog.Counterparties
	publisher      events.Publisher
	audit          audit.Recorder
	hooks          *domain.HookRegistry[*Document]
}

// NewService creates a new document service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:           cfg.Repo,
		txManager:      cfg.TxManager,
		numbering:      cfg.Numbering,
		posting:        cfg.Posting,
		policies:       cfg.Policies,
		overpayment:    cfg.Overpayment,
		products:       cfg.Products,
		counterparties: cfg.Counterparties,
		publisher:      cfg.Publisher,
		audit:          cfg.Audit,
		hooks:          domain.NewHookRegistry[*Document](),
	}
	if s.policies == nil {
		s.policies = DefaultPolicies()
	}
	if s.overpayment == "" {
		s.overpayment = ledger.OverpaymentAllow
	}
	if s.publisher == nil {
		s.publisher = events.Discard{}
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	return s
}

// Hooks returns the hook registry for external registration.
func (s *Service) Hooks() *domain.HookRegistry[*Document] {
	return s.hooks
}

// Policy returns the policy of a document type.
func (s *Service) Policy(docType Type) (TypePolicy, error) {
	p, ok := s.policies[docType]
	if !ok {
		return TypePolicy{}, apperror.NewValidation("document type is not configured").
			WithDetail("documentType", string(docType))
	}
	return p, nil
}

// Preview computes totals for an input without persisting anything.
func (s *Service) Preview(ctx context.Context, in CreateInput) (totals.Result, error) {
	policy, err := s.Policy(in.Type)
	if err != nil {
		return totals.Result{}, err
	}
	items, err := s.buildItems(ctx, in.Items)
	if err != nil {
		return totals.Result{}, err
	}
	priced := make([]totals.Item, len(items))
	for i, l := range items {
		priced[i] = l.Item
	}
	return totals.Compute(priced, in.Discount, in.Freight, totals.Options{
		Policy:       policy.DiscountPolicy,
		FreightTaxed: policy.FreightTaxed,
	})
}

// Create computes totals, issues a number and saves the document.
// Unless in.Draft is set the document is finalized in the same transaction,
// so a failing side effect leaves nothing behind.
func (s *Service) Create(ctx context.Context, in CreateInput) (CreateResult, error) {
	ctx, span := tracer.Start(ctx, "documents.create",
		trace.WithAttributes(
			attribute.String("document.type", string(in.Type)),
			attribute.Bool("document.draft", in.Draft),
		))
	defer span.End()

	policy, err := s.Policy(in.Type)
	if err != nil {
		return CreateResult{}, err
	}

	doc := NewDocument(in.Type, policy)
	if !in.Date.IsZero() {
		doc.Date = in.Date.UTC()
	}
	doc.Comment = strings.TrimSpace(in.Comment)
	if err := s.fill(ctx, doc, in); err != nil {
		return CreateResult{}, err
	}
	if _, err := doc.Recalculate(); err != nil {
		return CreateResult{}, err
	}
	if err := doc.Validate(ctx); err != nil {
		return CreateResult{}, err
	}

	audit.EnrichCreatedBy(ctx, &doc.BaseDocument)
	if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
		return CreateResult{}, err
	}

	// A failed attempt may have finalized its copy before the commit
	// rejected the number, so every attempt starts from the prepared draft.
	prepared := doc
	var res posting.Result
	_, err = s.numbering.Issue(ctx, string(prepared.Type), func(ctx context.Context, number string) error {
		doc = prepared.Clone()
		doc.Number = number
		res = posting.Result{}
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, doc); err != nil {
				return err
			}
			if err := s.publisher.Publish(ctx, events.Event{
				AggregateType: string(doc.Type),
				AggregateID:   doc.ID,
				EventType:     events.DocumentCreated,
				Payload:       map[string]any{"number": doc.Number, "draft": doc.IsDraft()},
			}); err != nil {
				return fmt.Errorf("publish created event: %w", err)
			}
			if err := s.audit.LogChange(ctx, string(doc.Type), doc.ID, audit.ActionCreate, map[string]any{
				"number":     doc.Number,
				"grandTotal": types.FormatMoney(doc.Totals.GrandTotal),
			}); err != nil {
				return fmt.Errorf("audit create: %w", err)
			}
			if in.Draft {
				return nil
			}

			if err := s.hooks.RunBeforeFinalize(ctx, doc); err != nil {
				return err
			}
			res, err = s.posting.Finalize(ctx, doc, func(ctx context.Context) error {
				return s.repo.Update(ctx, doc)
			})
			return err
		})
	})
	if err != nil {
		span.RecordError(err)
		return CreateResult{}, err
	}

	logger.Info(ctx, "document created",
		"id", doc.ID,
		"type", doc.Type,
		"number", doc.Number,
		"status", doc.Status,
		"grand_total", types.FormatMoney(doc.Totals.GrandTotal),
	)

	s.runAfter(ctx, domain.AfterCreate, doc)
	if !in.Draft {
		s.runAfter(ctx, domain.AfterFinalize, doc)
	}
	return CreateResult{Document: doc, Posting: res}, nil
}

// Update replaces the editable content of a document that is not finalized yet.
// Type and number never change.
func (s *Service) Update(ctx context.Context, docID id.ID, in CreateInput) (*Document, error) {
	var doc *Document
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return s.normalizeGetErr(err, docID.String())
		}
		if err := doc.CanModify(); err != nil {
			return err
		}
		if in.Type != "" && in.Type != doc.Type {
			return apperror.NewValidation("document type cannot be changed").
				WithDetail("field", "documentType")
		}

		if !in.Date.IsZero() {
			doc.Date = in.Date.UTC()
		}
		doc.Comment = strings.TrimSpace(in.Comment)
		if err := s.fill(ctx, doc, in); err != nil {
			return err
		}
		if _, err := doc.Recalculate(); err != nil {
			return err
		}
		if err := doc.Validate(ctx); err != nil {
			return err
		}

		audit.EnrichUpdatedBy(ctx, &doc.BaseDocument)
		if err := s.hooks.RunBeforeUpdate(ctx, doc); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		return s.audit.LogChange(ctx, string(doc.Type), doc.ID, audit.ActionUpdate, map[string]any{
			"items":      len(doc.Items),
			"grandTotal": types.FormatMoney(doc.Totals.GrandTotal),
		})
	})
	if err != nil {
		return nil, err
	}

	s.runAfter(ctx, domain.AfterUpdate, doc)
	return doc, nil
}

// Finalize runs the finalize transaction for a stored document.
// Finalizing an already finalized document returns AlreadyFinalized and changes nothing.
func (s *Service) Finalize(ctx context.Context, docID id.ID) (*Document, posting.Result, error) {
	var (
		doc *Document
		res posting.Result
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return s.normalizeGetErr(err, docID.String())
		}
		if !doc.IsFinalized() {
			audit.EnrichUpdatedBy(ctx, &doc.BaseDocument)
			if err := s.hooks.RunBeforeFinalize(ctx, doc); err != nil {
				return err
			}
		}
		res, err = s.posting.Finalize(ctx, doc, func(ctx context.Context) error {
			return s.repo.Update(ctx, doc)
		})
		return err
	})
	if err != nil {
		return nil, posting.Result{}, err
	}

	if !res.AlreadyFinalized {
		s.runAfter(ctx, domain.AfterFinalize, doc)
	}
	return doc, res, nil
}

// ApplyPayment records a payment. Calls for the same document are serialized
// by the row lock taken with GetForUpdate.
func (s *Service) ApplyPayment(ctx context.Context, docID id.ID, in ledger.Input) (*Document, ledger.Outcome, error) {
	ctx, span := tracer.Start(ctx, "documents.apply_payment",
		trace.WithAttributes(attribute.String("document.id", docID.String())))
	defer span.End()

	var (
		doc *Document
		out ledger.Outcome
	)
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, docID)
		if err != nil {
			return s.normalizeGetErr(err, docID.String())
		}

		out, err = ledger.Apply(&doc.Book, doc.ID, doc.Totals.GrandTotal, in, s.overpayment)
		if err != nil {
			return err
		}
		if out.Replayed {
			return nil
		}

		audit.EnrichUpdatedBy(ctx, &doc.BaseDocument)
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}
		if err := s.publisher.Publish(ctx, events.Event{
			AggregateType: string(doc.Type),
			AggregateID:   doc.ID,
			EventType:     events.PaymentApplied,
			Payload: map[string]any{
				"number":     doc.Number,
				"paymentId":  out.Payment.ID,
				"amount":     types.FormatMoney(out.Payment.Amount),
				"balanceDue": types.FormatMoney(doc.BalanceDue),
				"status":     doc.Status,
			},
		}); err != nil {
			return fmt.Errorf("publish payment event: %w", err)
		}
		return s.audit.LogChange(ctx, string(doc.Type), doc.ID, audit.ActionPayment, map[string]any{
			"paymentId": out.Payment.ID,
			"amount":    types.FormatMoney(out.Payment.Amount),
			"status":    doc.Status,
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, ledger.Outcome{}, err
	}

	if out.Replayed {
		logger.Info(ctx, "payment replayed", "document_id", docID, "idempotency_key", in.IdempotencyKey)
	} else {
		logger.Info(ctx, "payment applied",
			"document_id", docID,
			"number", doc.Number,
			"amount", types.FormatMoney(out.Payment.Amount),
			"status", doc.Status,
		)
	}
	return doc, out, nil
}

// Get retrieves a document with items and payments.
func (s *Service) Get(ctx context.Context, docID id.ID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, s.normalizeGetErr(err, docID.String())
	}
	return doc, nil
}

// GetByNumber retrieves a document by type and number.
func (s *Service) GetByNumber(ctx context.Context, docType Type, number string) (*Document, error) {
	doc, err := s.repo.GetByNumber(ctx, docType, number)
	if err != nil {
		return nil, s.normalizeGetErr(err, number)
	}
	return doc, nil
}

// List retrieves documents with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error) {
	filter.Limit = domain.NormalizeLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// fill copies counterparty, items, discount and freight from input into doc,
// autofilling from the catalogs where the input leaves gaps.
func (s *Service) fill(ctx context.Context, doc *Document, in CreateInput) error {
	items, err := s.buildItems(ctx, in.Items)
	if err != nil {
		return err
	}
	for i := range items {
		items[i].DocumentID = doc.ID
	}
	doc.Items = items
	doc.Counterparty = s.autofillCounterparty(ctx, in.Counterparty)
	doc.Discount = in.Discount
	doc.Freight = in.Freight
	return nil
}

func (s *Service) buildItems(ctx context.Context, inputs []LineInput) ([]LineItem, error) {
	items := make([]LineItem, 0, len(inputs))
	for i, in := range inputs {
		line := LineItem{
			LineID:      id.New(),
			LineNo:      i + 1,
			ProductID:   in.ProductID,
			ProductName: strings.TrimSpace(in.ProductName),
			Code:        strings.TrimSpace(in.Code),
			Kind:        in.Kind,
			Item: totals.Item{
				Description: strings.TrimSpace(in.Description),
				Quantity:    in.Quantity,
				UnitPrice:   types.Zero(),
				TaxRate:     decimal.Zero,
			},
		}
		if line.Kind == "" {
			line.Kind = KindGoods
		}

		product, found, err := s.lookupProduct(ctx, in)
		if err != nil {
			return nil, err
		}
		if found {
			if line.ProductID == nil {
				pid := product.ID
				line.ProductID = &pid
			}
			if line.Description == "" {
				line.Description = firstNonEmpty(product.Description, product.Name)
			}
			if line.Code == "" {
				line.Code = product.Code
			}
			if line.ProductName == "" {
				line.ProductName = product.Name
			}
		}

		switch {
		case in.UnitPrice != nil:
			line.UnitPrice = *in.UnitPrice
		case found:
			line.UnitPrice = product.Price
		}
		switch {
		case in.TaxRate != nil:
			line.TaxRate = *in.TaxRate
		case found:
			line.TaxRate = product.TaxRate
		}

		items = append(items, line)
	}
	return items, nil
}

// lookupProduct consults the catalog. A miss is not an error: the line simply
// keeps what the caller supplied.
func (s *Service) lookupProduct(ctx context.Context, in LineInput) (catalog.Product, bool, error) {
	if s.products == nil {
		return catalog.Product{}, false, nil
	}

	var (
		p   catalog.Product
		err error
	)
	switch {
	case in.ProductID != nil && !id.IsNil(*in.ProductID):
		p, err = s.products.GetProduct(ctx, *in.ProductID)
	case strings.TrimSpace(in.ProductName) != "":
		p, err = s.products.FindProductByName(ctx, in.ProductName)
	default:
		return catalog.Product{}, false, nil
	}

	if err != nil {
		if apperror.IsNotFound(err) {
			return catalog.Product{}, false, nil
		}
		return catalog.Product{}, false, fmt.Errorf("catalog lookup: %w", err)
	}
	return p, true, nil
}

func (s *Service) autofillCounterparty(ctx context.Context, in Counterparty) Counterparty {
	out := Counterparty{
		Name:    strings.TrimSpace(in.Name),
		Address: strings.TrimSpace(in.Address),
		TaxID:   strings.TrimSpace(in.TaxID),
		Phone:   strings.TrimSpace(in.Phone),
		Email:   strings.TrimSpace(in.Email),
	}
	if s.counterparties == nil || out.Name == "" {
		return out
	}

	entry, err := s.counterparties.FindCounterpartyByName(ctx, out.Name)
	if err != nil {
		if !apperror.IsNotFound(err) {
			logger.Warn(ctx, "counterparty lookup failed", "name", out.Name, "error", err)
		}
		return out
	}
	out.Address = firstNonEmpty(out.Address, entry.Address)
	out.TaxID = firstNonEmpty(out.TaxID, entry.TaxID)
	out.Phone = firstNonEmpty(out.Phone, entry.Phone)
	out.Email = firstNonEmpty(out.Email, entry.Email)
	return out
}

func (s *Service) runAfter(ctx context.Context, event domain.HookEvent, doc *Document) {
	// The change is committed; a failing after-hook is logged, not returned.
	if err := s.hooks.Run(ctx, event, doc); err != nil {
		logger.Warn(ctx, "after hook failed", "event", event, "document_id", doc.ID, "error", err)
	}
}

func (s *Service) normalizeGetErr(err error, key string) error {
	if apperror.IsNotFound(err) {
		return apperror.NewNotFound("document", key)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewInternal(err).WithDetail("entity", "document").WithDetail("id", key)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
