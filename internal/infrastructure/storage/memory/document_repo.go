package memory

import (
	"context"
	"sort"
	"strings"

	"docledger/internal/core/apperror"
	"docledger/internal/core/id"
	"docledger/internal/domain"
	"docledger/internal/domain/documents"
)

var _ documents.Repository = (*DocumentRepo)(nil)

// DocumentRepo stores documents with their items and payments.
type DocumentRepo struct {
	store *Store
}

// NewDocumentRepo creates a document repository over store.
func NewDocumentRepo(store *Store) *DocumentRepo {
	return &DocumentRepo{store: store}
}

// visible returns the document as seen by ctx: staged version first, then committed.
func (r *DocumentRepo) visible(ctx context.Context, docID id.ID) (*documents.Document, bool) {
	if t := txFrom(ctx); t != nil {
		if st, ok := t.docs[docID]; ok {
			return st.doc, true
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	doc, ok := r.store.documents[docID]
	return doc, ok
}

// Create implements documents.Repository.
func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	return r.store.write(ctx, func(t *memTx) error {
		if _, exists := r.visible(ctx, doc.ID); exists {
			return apperror.NewDuplicate("document", "id", doc.ID.String())
		}
		if r.numberTaken(t, doc.Type, doc.Number) {
			return apperror.NewNumberingConflict(string(doc.Type), doc.Number)
		}
		t.docs[doc.ID] = &stagedDoc{doc: doc.Clone(), created: true}
		t.docOrder = append(t.docOrder, doc.ID)
		return nil
	})
}

func (r *DocumentRepo) numberTaken(t *memTx, docType documents.Type, number string) bool {
	for _, st := range t.docs {
		if st.doc.Type == docType && st.doc.Number == number {
			return true
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	_, taken := r.store.numbers[numberKey{docType, number}]
	return taken
}

// GetByID implements documents.Repository.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	doc, ok := r.visible(ctx, docID)
	if !ok {
		return nil, apperror.NewNotFound("document", docID.String())
	}
	return doc.Clone(), nil
}

// GetByNumber implements documents.Repository.
func (r *DocumentRepo) GetByNumber(ctx context.Context, docType documents.Type, number string) (*documents.Document, error) {
	if t := txFrom(ctx); t != nil {
		for _, st := range t.docs {
			if st.doc.Type == docType && st.doc.Number == number {
				return st.doc.Clone(), nil
			}
		}
	}

	r.store.mu.RLock()
	docID, ok := r.store.numbers[numberKey{docType, number}]
	r.store.mu.RUnlock()
	if !ok {
		return nil, apperror.NewNotFound("document", number)
	}
	return r.GetByID(ctx, docID)
}

// GetForUpdate implements documents.Repository.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	if err := r.store.lock(ctx, documentLock(docID)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, docID)
}

// Update implements documents.Repository.
func (r *DocumentRepo) Update(ctx context.Context, doc *documents.Document) error {
	return r.store.write(ctx, func(t *memTx) error {
		current, ok := r.visible(ctx, doc.ID)
		if !ok {
			return apperror.NewNotFound("document", doc.ID.String())
		}
		if current.Version != doc.Version {
			return apperror.NewConcurrentModification("document", doc.ID.String())
		}

		st, staged := t.docs[doc.ID]
		if !staged {
			st = &stagedDoc{baseVersion: current.Version}
			t.docs[doc.ID] = st
			t.docOrder = append(t.docOrder, doc.ID)
		}

		doc.Version++
		st.doc = doc.Clone()
		return nil
	})
}

// List implements documents.Repository.
func (r *DocumentRepo) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error) {
	all := r.snapshot(ctx)

	matched := make([]*documents.Document, 0, len(all))
	for _, doc := range all {
		if matches(doc, filter) {
			matched = append(matched, doc)
		}
	}
	sortDocuments(matched, filter.OrderBy)

	limit := domain.NormalizeLimit(filter.Limit)
	offset := max(filter.Offset, 0)
	result := domain.ListResult[*documents.Document]{
		Items:      make([]*documents.Document, 0),
		TotalCount: int64(len(matched)),
		Limit:      limit,
		Offset:     offset,
	}
	if offset >= len(matched) {
		return result, nil
	}
	end := min(offset+limit, len(matched))
	for _, doc := range matched[offset:end] {
		result.Items = append(result.Items, doc.Clone())
	}
	return result, nil
}

func (r *DocumentRepo) snapshot(ctx context.Context) []*documents.Document {
	r.store.mu.RLock()
	byID := make(map[id.ID]*documents.Document, len(r.store.documents))
	for k, v := range r.store.documents {
		byID[k] = v
	}
	r.store.mu.RUnlock()

	if t := txFrom(ctx); t != nil {
		for k, st := range t.docs {
			byID[k] = st.doc
		}
	}

	out := make([]*documents.Document, 0, len(byID))
	for _, doc := range byID {
		out = append(out, doc)
	}
	return out
}

func matches(doc *documents.Document, f documents.ListFilter) bool {
	switch {
	case f.Type != nil && doc.Type != *f.Type:
		return false
	case f.Status != nil && doc.Status != *f.Status:
		return false
	case f.Finalized != nil && doc.Finalized != *f.Finalized:
		return false
	case f.Counterparty != "" && !strings.EqualFold(strings.TrimSpace(f.Counterparty), doc.Counterparty.Name):
		return false
	case f.Search != "" && !strings.Contains(strings.ToLower(doc.Number), strings.ToLower(f.Search)):
		return false
	case f.FromDate != nil && doc.Date.Before(*f.FromDate):
		return false
	case f.ToDate != nil && doc.Date.After(*f.ToDate):
		return false
	}
	return true
}

func sortDocuments(docs []*documents.Document, orderBy string) {
	if orderBy == "" {
		orderBy = "-date"
	}
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")

	less := func(a, b *documents.Document) bool {
		switch field {
		case "number":
			return a.Number < b.Number
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		case "grand_total":
			return a.Totals.GrandTotal.LessThan(b.Totals.GrandTotal)
		default:
			return a.Date.Before(b.Date)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return id.Less(docs[i].ID, docs[j].ID) })
	sort.SliceStable(docs, func(i, j int) bool {
		if desc {
			return less(docs[j], docs[i])
		}
		return less(docs[i], docs[j])
	})
}
