package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docledger/internal/core/apperror"
	"docledger/internal/core/id"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/events"
)

func newDoc(number string) *documents.Document {
	doc := documents.NewDocument(documents.Invoice, documents.DefaultPolicies()[documents.Invoice])
	doc.Number = number
	return doc
}

func TestTxManager_RollbackDiscardsWrites(t *testing.T) {
	store := NewStore()
	txm := NewTxManager(store)
	repo := NewDocumentRepo(store)
	ctx := context.Background()
	doc := newDoc("INV 01001")
	boom := errors.New("boom")

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, repo.Create(ctx, doc))

		// Visible inside the transaction.
		_, err := repo.GetByID(ctx, doc.ID)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.GetByID(ctx, doc.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestTxManager_NestedJoinsOuter(t *testing.T) {
	store := NewStore()
	txm := NewTxManager(store)
	repo := NewDocumentRepo(store)
	ctx := context.Background()
	doc := newDoc("INV 01001")

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
			return repo.Create(ctx, doc)
		}); err != nil {
			return err
		}

		// The inner call did not commit on its own.
		store.mu.RLock()
		_, committed := store.documents[doc.ID]
		store.mu.RUnlock()
		assert.False(t, committed)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, doc.ID)
	assert.NoError(t, err)
}

func TestDocumentRepo_DuplicateNumber(t *testing.T) {
	store := NewStore()
	repo := NewDocumentRepo(store)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newDoc("INV 01001")))

	err := repo.Create(ctx, newDoc("INV 01001"))
	assert.True(t, apperror.IsNumberingConflict(err))

	// Same number under another type is fine.
	other := newDoc("INV 01001")
	other.Type = documents.Quotation
	assert.NoError(t, repo.Create(ctx, other))
}

func TestDocumentRepo_NumberConflictAtCommit(t *testing.T) {
	store := NewStore()
	txm := NewTxManager(store)
	repo := NewDocumentRepo(store)
	ctx := context.Background()

	err := txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, newDoc("INV 01001")); err != nil {
			return err
		}
		// Another writer commits the same number meanwhile.
		return repo.Create(context.Background(), newDoc("INV 01001"))
	})
	assert.True(t, apperror.IsNumberingConflict(err))
}

func TestDocumentRepo_OptimisticLocking(t *testing.T) {
	store := NewStore()
	repo := NewDocumentRepo(store)
	ctx := context.Background()
	doc := newDoc("INV 01001")
	require.NoError(t, repo.Create(ctx, doc))

	a, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	b, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, repo.Update(ctx, a))
	assert.Equal(t, 2, a.Version)

	err = repo.Update(ctx, b)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestDocumentRepo_ReturnsCopies(t *testing.T) {
	store := NewStore()
	repo := NewDocumentRepo(store)
	ctx := context.Background()
	doc := newDoc("INV 01001")
	require.NoError(t, repo.Create(ctx, doc))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	got.Comment = "changed"

	again, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Comment)
}

func TestGetForUpdate_BlocksUntilCommit(t *testing.T) {
	store := NewStore()
	txm := NewTxManager(store)
	repo := NewDocumentRepo(store)
	ctx := context.Background()
	doc := newDoc("INV 01001")
	require.NoError(t, repo.Create(ctx, doc))

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- txm.RunInTransaction(ctx, func(ctx context.Context) error {
			if _, err := repo.GetForUpdate(ctx, doc.ID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := txm.RunInTransaction(waitCtx, func(ctx context.Context) error {
		_, err := repo.GetForUpdate(ctx, doc.ID)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)

	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := repo.GetForUpdate(ctx, doc.ID)
		return err
	})
	assert.NoError(t, err)
}

func TestOutbox_RequiresTransactionAndRelays(t *testing.T) {
	store := NewStore()
	txm := NewTxManager(store)
	outbox := NewOutbox(store)
	ctx := context.Background()
	ev := events.Event{AggregateType: "Invoice", AggregateID: id.New(), EventType: events.DocumentCreated}

	assert.Error(t, outbox.Publish(ctx, ev))

	require.NoError(t, txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return outbox.Publish(ctx, ev)
	}))
	require.Len(t, outbox.Messages(), 1)

	failing := func(context.Context, OutboxMessage) error { return errors.New("broker down") }
	n, err := outbox.ProcessBatch(ctx, 10, failing)
	require.NoError(t, err)
	assert.Zero(t, n)

	var seen []string
	n, err = outbox.ProcessBatch(ctx, 10, func(_ context.Context, msg OutboxMessage) error {
		seen = append(seen, msg.EventType)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{events.DocumentCreated}, seen)

	n, err = outbox.ProcessBatch(ctx, 10, failing)
	require.NoError(t, err)
	assert.Zero(t, n, "published messages are not relayed again")
}
