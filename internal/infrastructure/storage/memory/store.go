// Package memory is an in-process implementation of every repository the engine
// needs. It backs tests, the CLI and servers started without a database.
//
// Writes made inside RunInTransaction are staged per transaction and applied
// atomically on commit. Row locks (documents, stock balances) are held from the
// FOR UPDATE read until the transaction ends.
package memory

import (
	"context"
	"sync"

	"docledger/internal/core/apperror"
	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/core/tx"
	"docledger/internal/domain/documents"
)

type numberKey struct {
	docType documents.Type
	number  string
}

// Store holds committed state.
type Store struct {
	mu sync.RWMutex

	documents map[id.ID]*documents.Document
	numbers   map[numberKey]id.ID

	balances  map[id.ID]entity.StockBalance
	movements []entity.StockMovement
	points    []entity.PointEntry
	outbox    []OutboxMessage
	audit     []AuditEntry

	locks *lockTable
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		documents: make(map[id.ID]*documents.Document),
		numbers:   make(map[numberKey]id.ID),
		balances:  make(map[id.ID]entity.StockBalance),
		locks:     &lockTable{slots: make(map[string]chan struct{})},
	}
}

// --- Transactions ---

var _ tx.Manager = (*TxManager)(nil)

// TxManager runs functions against a Store transactionally.
type TxManager struct {
	store *Store
}

// NewTxManager creates a transaction manager for store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

type txKey struct{}

type stagedDoc struct {
	doc         *documents.Document
	baseVersion int
	created     bool
}

// memTx is the write set of one transaction.
type memTx struct {
	docs      map[id.ID]*stagedDoc
	docOrder  []id.ID
	balances  map[id.ID]entity.StockBalance
	movements []entity.StockMovement
	points    []entity.PointEntry
	outbox    []OutboxMessage
	audit     []AuditEntry

	held map[string]struct{}
}

func newMemTx() *memTx {
	return &memTx{
		docs:     make(map[id.ID]*stagedDoc),
		balances: make(map[id.ID]entity.StockBalance),
		held:     make(map[string]struct{}),
	}
}

func txFrom(ctx context.Context) *memTx {
	t, _ := ctx.Value(txKey{}).(*memTx)
	return t
}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	t := newMemTx()
	defer m.store.releaseAll(t)

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		return err
	}
	return m.store.commit(t)
}

// InTransaction reports whether ctx carries a transaction.
func InTransaction(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// write runs fn against the transaction in ctx, or a one-shot transaction
// committed immediately when there is none.
func (s *Store) write(ctx context.Context, fn func(t *memTx) error) error {
	if t := txFrom(ctx); t != nil {
		return fn(t)
	}
	t := newMemTx()
	defer s.releaseAll(t)
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

func (s *Store) commit(t *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything first so a failing commit applies nothing.
	for _, docID := range t.docOrder {
		st := t.docs[docID]
		key := numberKey{st.doc.Type, st.doc.Number}
		if st.created {
			if _, exists := s.documents[docID]; exists {
				return apperror.NewDuplicate("document", "id", docID.String())
			}
			if _, taken := s.numbers[key]; taken {
				return apperror.NewNumberingConflict(string(st.doc.Type), st.doc.Number)
			}
			continue
		}
		current, ok := s.documents[docID]
		if !ok {
			return apperror.NewNotFound("document", docID.String())
		}
		if current.Version != st.baseVersion {
			return apperror.NewConcurrentModification("document", docID.String())
		}
	}

	for _, docID := range t.docOrder {
		st := t.docs[docID]
		s.documents[docID] = st.doc
		s.numbers[numberKey{st.doc.Type, st.doc.Number}] = docID
	}
	for pid, b := range t.balances {
		s.balances[pid] = b
	}
	s.movements = append(s.movements, t.movements...)
	s.points = append(s.points, t.points...)
	s.outbox = append(s.outbox, t.outbox...)
	s.audit = append(s.audit, t.audit...)
	return nil
}

// --- Row locks ---

// lockTable is a set of keyed mutexes. Acquiring honours context cancellation.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func (l *lockTable) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *lockTable) acquire(ctx context.Context, key string) error {
	select {
	case l.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lockTable) release(key string) {
	<-l.slot(key)
}

// lock takes key for the transaction in ctx. Outside a transaction it is a no-op,
// like SELECT ... FOR UPDATE in autocommit mode.
func (s *Store) lock(ctx context.Context, key string) error {
	t := txFrom(ctx)
	if t == nil {
		return nil
	}
	if _, ok := t.held[key]; ok {
		return nil
	}
	if err := s.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = struct{}{}
	return nil
}

func (s *Store) releaseAll(t *memTx) {
	for key := range t.held {
		s.locks.release(key)
	}
	t.held = nil
}

func documentLock(docID id.ID) string { return "document:" + docID.String() }
func productLock(productID id.ID) string { return "stock:" + productID.String() }
