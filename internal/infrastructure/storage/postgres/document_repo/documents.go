package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docledger/internal/core/apperror"
	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/core/types"
	"docledger/internal/domain"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/totals"
	"docledger/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "documents"
	linesTable     = "document_lines"
	paymentsTable  = "document_payments"

	numberConstraint = "documents_type_number_key"
)

// documentRow is the flat header row of a document.
type documentRow struct {
	entity.Document
	Type documents.Type `db:"document_type"`
	documents.Counterparty
	Discount types.Money `db:"discount_input"`
	totals.Freight
	DiscountPolicy totals.Policy `db:"discount_policy"`
	FreightTaxed   bool          `db:"freight_taxed"`
	totals.Totals
	ledger.Book
}

func fromDomain(doc *documents.Document) documentRow {
	return documentRow{
		Document:       doc.Document,
		Type:           doc.Type,
		Counterparty:   doc.Counterparty,
		Discount:       doc.Discount,
		Freight:        doc.Freight,
		DiscountPolicy: doc.DiscountPolicy,
		FreightTaxed:   doc.FreightTaxed,
		Totals:         doc.Totals,
		Book:           doc.Book,
	}
}

func (r documentRow) toDomain() *documents.Document {
	doc := &documents.Document{
		Document:       r.Document,
		Type:           r.Type,
		Counterparty:   r.Counterparty,
		Items:          make([]documents.LineItem, 0),
		Discount:       r.Discount,
		Freight:        r.Freight,
		DiscountPolicy: r.DiscountPolicy,
		FreightTaxed:   r.FreightTaxed,
		Totals:         r.Totals,
		Book:           r.Book,
	}
	doc.Payments = make([]ledger.Payment, 0)
	return doc
}

var (
	headerColumns  = postgres.ExtractDBColumns[documentRow]()
	lineColumns    = postgres.ExtractDBColumns[documents.LineItem]()
	paymentColumns = postgres.ExtractDBColumns[ledger.Payment]()

	listOrderColumns = map[string]string{
		"number":      "number",
		"date":        "date",
		"created_at":  "created_at",
		"grand_total": "grand_total",
	}
)

// DocumentRepo implements documents.Repository on three tables: headers,
// lines and payments. Payments are append-only.
type DocumentRepo struct {
	txManager *postgres.TxManager
}

var _ documents.Repository = (*DocumentRepo)(nil)

// NewDocumentRepo creates a document repository.
func NewDocumentRepo(txManager *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{txManager: txManager}
}

// Create implements documents.Repository.
func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sql, args, err := builder().
			Insert(documentsTable).
			SetMap(postgres.StructToMap(fromDomain(doc))).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
			if constraint, ok := constraintViolation(err, pgUniqueViolation); ok {
				if constraint == numberConstraint {
					return apperror.NewNumberingConflict(string(doc.Type), doc.Number).WithCause(err)
				}
				return apperror.NewDuplicate("document", "id", doc.ID.String()).WithCause(err)
			}
			return fmt.Errorf("insert document: %w", err)
		}

		if err := r.insertLines(ctx, doc); err != nil {
			return err
		}
		return r.insertPayments(ctx, doc.ID, doc.Payments)
	})
}

// GetByID implements documents.Repository.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.getOne(ctx, squirrel.Eq{"id": docID}, docID.String(), false)
}

// GetByNumber implements documents.Repository.
func (r *DocumentRepo) GetByNumber(ctx context.Context, docType documents.Type, number string) (*documents.Document, error) {
	return r.getOne(ctx, squirrel.Eq{"document_type": docType, "number": number}, number, false)
}

// GetForUpdate implements documents.Repository.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.getOne(ctx, squirrel.Eq{"id": docID}, docID.String(), true)
}

func (r *DocumentRepo) getOne(ctx context.Context, where squirrel.Sqlizer, key string, lock bool) (*documents.Document, error) {
	q := builder().Select(headerColumns...).From(documentsTable).Where(where)
	if lock {
		q = q.Suffix("FOR UPDATE")
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var row documentRow
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", key)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	doc := row.toDomain()
	if err := r.loadLines(ctx, doc); err != nil {
		return nil, err
	}
	if err := r.loadPayments(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Update implements documents.Repository.
func (r *DocumentRepo) Update(ctx context.Context, doc *documents.Document) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		data := postgres.StructToMap(fromDomain(doc))
		for _, col := range []string{"id", "version", "created_at", "created_by", "number", "document_type"} {
			delete(data, col)
		}

		sql, args, err := builder().
			Update(documentsTable).
			SetMap(data).
			Set("version", squirrel.Expr("version + 1")).
			Where(squirrel.Eq{"id": doc.ID, "version": doc.Version}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}

		result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if result.RowsAffected() == 0 {
			return apperror.NewConcurrentModification("document", doc.ID)
		}

		if err := r.replaceLines(ctx, doc); err != nil {
			return err
		}
		if err := r.insertPayments(ctx, doc.ID, doc.Payments); err != nil {
			return err
		}
		doc.Version++
		return nil
	})
}

// List implements documents.Repository. Items and payments are not loaded.
func (r *DocumentRepo) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error) {
	limit := domain.NormalizeLimit(filter.Limit)
	offset := max(filter.Offset, 0)
	result := domain.ListResult[*documents.Document]{
		Items:  make([]*documents.Document, 0),
		Limit:  limit,
		Offset: offset,
	}

	q := applyFilter(builder().Select(headerColumns...).From(documentsTable), filter)

	countSQL, countArgs, err := builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count documents: %w", err)
	}

	orderBy, err := parseOrderBy(filter.OrderBy, "date DESC", listOrderColumns)
	if err != nil {
		return result, err
	}
	sql, args, err := q.OrderBy(orderBy, "id").Limit(uint64(limit)).Offset(uint64(offset)).ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	var rows []documentRow
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return result, fmt.Errorf("list documents: %w", err)
	}
	for _, row := range rows {
		result.Items = append(result.Items, row.toDomain())
	}
	return result, nil
}

func applyFilter(q squirrel.SelectBuilder, f documents.ListFilter) squirrel.SelectBuilder {
	if f.Type != nil {
		q = q.Where(squirrel.Eq{"document_type": *f.Type})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.Finalized != nil {
		q = q.Where(squirrel.Eq{"finalized": *f.Finalized})
	}
	if name := strings.TrimSpace(f.Counterparty); name != "" {
		q = q.Where("lower(counterparty_name) = lower(?)", name)
	}
	if f.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + f.Search + "%"})
	}
	if f.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"date": *f.FromDate})
	}
	if f.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"date": *f.ToDate})
	}
	return q
}

// --- lines ---

func (r *DocumentRepo) loadLines(ctx context.Context, doc *documents.Document) error {
	sql, args, err := builder().
		Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"document_id": doc.ID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &doc.Items, sql, args...); err != nil {
		return fmt.Errorf("select lines: %w", err)
	}
	return nil
}

func (r *DocumentRepo) replaceLines(ctx context.Context, doc *documents.Document) error {
	sql, args, err := builder().
		Delete(linesTable).
		Where(squirrel.Eq{"document_id": doc.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete lines: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}
	return r.insertLines(ctx, doc)
}

func (r *DocumentRepo) insertLines(ctx context.Context, doc *documents.Document) error {
	if len(doc.Items) == 0 {
		return nil
	}
	q := builder().Insert(linesTable).Columns(lineColumns...)
	for i := range doc.Items {
		line := &doc.Items[i]
		if id.IsNil(line.LineID) {
			line.LineID = id.New()
		}
		line.DocumentID = doc.ID
		q = q.Values(rowValues(postgres.StructToMap(*line), lineColumns)...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

// --- payments ---

func (r *DocumentRepo) loadPayments(ctx context.Context, doc *documents.Document) error {
	sql, args, err := builder().
		Select(paymentColumns...).
		From(paymentsTable).
		Where(squirrel.Eq{"document_id": doc.ID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build payments query: %w", err)
	}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &doc.Payments, sql, args...); err != nil {
		return fmt.Errorf("select payments: %w", err)
	}
	return nil
}

// insertPayments writes payments not stored yet; existing ids are skipped.
func (r *DocumentRepo) insertPayments(ctx context.Context, docID id.ID, payments []ledger.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	q := builder().Insert(paymentsTable).Columns(paymentColumns...)
	for _, p := range payments {
		p.DocumentID = docID
		q = q.Values(rowValues(postgres.StructToMap(p), paymentColumns)...)
	}

	sql, args, err := q.Suffix("ON CONFLICT (id) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build insert payments: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if _, ok := constraintViolation(err, pgUniqueViolation); ok {
			return apperror.NewConflict("payment idempotency key already used").WithCause(err)
		}
		if _, ok := constraintViolation(err, pgForeignKeyViolation); ok {
			return apperror.NewNotFound("document", docID.String())
		}
		return fmt.Errorf("insert payments: %w", err)
	}
	return nil
}

func rowValues(data map[string]any, columns []string) []any {
	values := make([]any, len(columns))
	for i, col := range columns {
		values[i] = data[col]
	}
	return values
}
