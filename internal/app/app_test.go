package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytsoob/internal/core/entity"
	"ytsoob/internal/core/mediator"
	"ytsoob/internal/core/uow/uowtest"
	"ytsoob/internal/messaging"
	"ytsoob/internal/messaging/outbox"
	"ytsoob/internal/messaging/outbox/outboxtest"
)

type note struct {
	entity.BaseEntity
	entity.Audit
}

func (*note) TableName() string { return "test.notes" }

type createNote struct {
	ID   int64
	Fail bool
}

type noteCreated struct {
	ID int64 `json:"id"`
}

type fixture struct {
	store  *uowtest.Store
	repo   *outboxtest.Repository
	txm    *uowtest.TxManager
	scopes *ScopeFactory
}

func newFixture() *fixture {
	f := &fixture{store: uowtest.NewStore(), repo: outboxtest.New()}
	f.txm = uowtest.NewTxManager(f.store, f.repo)
	f.scopes = NewScopeFactory(f.txm, f.store, f.repo, messaging.MustCodec(messaging.DefaultCompressThreshold))
	return f
}

func createNoteHandler(ctx context.Context, req createNote) (*note, error) {
	scope, err := MustScope(ctx)
	if err != nil {
		return nil, err
	}
	n := &note{BaseEntity: entity.BaseEntity{ID: req.ID, Version: 1}}
	scope.UoW.Add(n)
	scope.Publish(ctx, noteCreated{ID: n.ID})
	scope.Notify(ctx, noteCreated{ID: n.ID})
	if req.Fail {
		return nil, errors.New("handler failed")
	}
	return n, nil
}

func TestTransactional_CommitsEntityAndMessages(t *testing.T) {
	f := newFixture()
	h := mediator.Chain(createNoteHandler, Transactional[createNote, *note](f.scopes))

	n, err := h(context.Background(), createNote{ID: 1})
	require.NoError(t, err)
	assert.False(t, n.Created.IsZero())

	_, ok := f.store.Get("test.notes", 1)
	assert.True(t, ok)

	records := f.repo.All()
	require.Len(t, records, 2)
	deliveries := []messaging.DeliveryType{records[0].DeliveryType, records[1].DeliveryType}
	assert.ElementsMatch(t, []messaging.DeliveryType{messaging.DeliveryOutbox, messaging.DeliveryInternal}, deliveries)
	for _, r := range records {
		assert.Equal(t, outbox.StatusInProgress, r.Status)
	}
	assert.Equal(t, 1, f.txm.Commits)
}

func TestTransactional_HandlerErrorCommitsNothing(t *testing.T) {
	f := newFixture()
	h := mediator.Chain(createNoteHandler, Transactional[createNote, *note](f.scopes))

	n, err := h(context.Background(), createNote{ID: 2, Fail: true})
	require.Error(t, err)
	assert.Nil(t, n)
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 0, f.repo.Len())
	assert.Equal(t, 0, f.txm.Commits)
}

func TestTransactional_SaveErrorRollsBackMessages(t *testing.T) {
	f := newFixture()
	f.store.FailOn[3] = errors.New("disk full")
	h := mediator.Chain(createNoteHandler, Transactional[createNote, *note](f.scopes))

	_, err := h(context.Background(), createNote{ID: 3})
	require.Error(t, err)
	assert.Equal(t, 0, f.repo.Len())
}

func TestTransactional_NestedJoinsOuterScope(t *testing.T) {
	f := newFixture()
	inner := mediator.Chain(createNoteHandler, Transactional[createNote, *note](f.scopes))

	outer := mediator.Chain(func(ctx context.Context, ids []int64) (int, error) {
		for _, id := range ids {
			if _, err := inner(ctx, createNote{ID: id}); err != nil {
				return 0, err
			}
		}
		return len(ids), nil
	}, Transactional[[]int64, int](f.scopes))

	n, err := outer(context.Background(), []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, f.store.Len())
	assert.Equal(t, 4, f.repo.Len())
	assert.Equal(t, 1, f.txm.Commits)
}

func TestMustScope_OutsideScope(t *testing.T) {
	_, err := MustScope(context.Background())
	assert.ErrorIs(t, err, ErrNoScope)
}
