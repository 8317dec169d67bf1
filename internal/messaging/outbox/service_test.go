package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "ytsoob/internal/core/context"
	"ytsoob/internal/core/entity"
	"ytsoob/internal/core/uow"
	"ytsoob/internal/core/uow/uowtest"
	"ytsoob/internal/messaging"
	"ytsoob/internal/messaging/outbox"
	"ytsoob/internal/messaging/outbox/outboxtest"
)

type order struct {
	entity.BaseEntity
	entity.Audit
}

func (*order) TableName() string { return "test.orders" }

type comment struct {
	entity.BaseEntity
	entity.Audit
	entity.SoftDelete
}

func (*comment) TableName() string { return "test.comments" }

type orderPlaced struct {
	OrderID int64 `json:"orderId"`
}

type harness struct {
	store *uowtest.Store
	repo  *outboxtest.Repository
	txm   *uowtest.TxManager
	codec *messaging.Codec
}

func newHarness() *harness {
	h := &harness{
		store: uowtest.NewStore(),
		repo:  outboxtest.New(),
		codec: messaging.MustCodec(messaging.DefaultCompressThreshold),
	}
	h.txm = uowtest.NewTxManager(h.store, h.repo)
	return h
}

func (h *harness) scope(now time.Time) (*uow.UnitOfWork, *outbox.Service) {
	svc := outbox.NewService(h.repo, h.codec)
	u := uow.New(h.txm, h.store,
		uow.WithClock(func() time.Time { return now }),
		uow.WithParticipants(svc),
	)
	return u, svc
}

func TestService_StageDoesNotPersist(t *testing.T) {
	h := newHarness()
	_, svc := h.scope(time.Now())

	svc.StagePublish(context.Background(), messaging.NewEnvelope(orderPlaced{OrderID: 1}))

	assert.Len(t, svc.Pending(), 1)
	assert.Equal(t, 0, h.repo.Len())
}

func TestService_CommitPersistsInProgressRecords(t *testing.T) {
	h := newHarness()
	u, svc := h.scope(time.Now())
	ctx := appctx.WithTrace(context.Background(), &appctx.TraceContext{RequestID: "req-1"})

	u.Add(&order{BaseEntity: entity.BaseEntity{ID: 1, Version: 1}})
	ext := messaging.NewEnvelope(orderPlaced{OrderID: 1})
	internal := messaging.NewEnvelope(orderPlaced{OrderID: 1})
	svc.StagePublish(ctx, ext)
	svc.StageInternal(ctx, internal)

	require.NoError(t, u.SaveChanges(ctx))

	records := h.repo.All()
	require.Len(t, records, 2)
	byID := map[string]outbox.Record{}
	for _, r := range records {
		byID[r.ID.String()] = r
		assert.Equal(t, outbox.StatusInProgress, r.Status)
		assert.Equal(t, 0, r.RetryCount)
		assert.Nil(t, r.ProcessedAt)
		require.NotNil(t, r.CorrelationID)
		assert.Equal(t, "req-1", *r.CorrelationID)
	}
	assert.Equal(t, messaging.DeliveryOutbox, byID[ext.Metadata.ID.String()].DeliveryType)
	assert.Equal(t, messaging.DeliveryInternal, byID[internal.Metadata.ID.String()].DeliveryType)
	assert.Empty(t, svc.Pending())
}

func TestService_AtomicWithBusinessWrite(t *testing.T) {
	h := newHarness()
	u, svc := h.scope(time.Now())

	o := &order{BaseEntity: entity.BaseEntity{ID: 1, Version: 1}}
	h.store.FailOn[1] = errors.New("unique constraint violation")
	u.Add(o)
	svc.StagePublish(context.Background(), messaging.NewEnvelope(orderPlaced{OrderID: 1}))

	require.Error(t, u.SaveChanges(context.Background()))

	assert.Equal(t, 0, h.repo.Len())
	assert.Equal(t, 0, h.store.Len())
	assert.Len(t, svc.Pending(), 1, "staged messages survive a failed commit")
}

func TestService_SerializationFailureAbortsCommit(t *testing.T) {
	h := newHarness()
	u, svc := h.scope(time.Now())

	u.Add(&order{BaseEntity: entity.BaseEntity{ID: 1, Version: 1}})
	svc.StagePublish(context.Background(), messaging.NewEnvelope(make(chan int)))

	err := u.SaveChanges(context.Background())
	require.ErrorIs(t, err, messaging.ErrSerialization)
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, 0, h.repo.Len())
}

type recordingStore struct {
	*uowtest.Store
	ops []string
}

func (s *recordingStore) Insert(ctx context.Context, e entity.Persistable) error {
	s.ops = append(s.ops, "insert "+e.TableName())
	return s.Store.Insert(ctx, e)
}

func (s *recordingStore) Update(ctx context.Context, e entity.Persistable) error {
	s.ops = append(s.ops, "update "+e.TableName())
	return s.Store.Update(ctx, e)
}

func (s *recordingStore) Delete(ctx context.Context, e entity.Persistable) error {
	s.ops = append(s.ops, "delete "+e.TableName())
	return s.Store.Delete(ctx, e)
}

// One Added audited order and one deleted soft-deletable comment at T by actor A.
func TestService_OrderAndCommentScenario(t *testing.T) {
	h := newHarness()
	commitAt := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	actor := int64(77)
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{ActorID: &actor})

	c := &comment{BaseEntity: entity.BaseEntity{ID: 2, Version: 1}}
	h.store.Seed(c)
	store := &recordingStore{Store: h.store}

	svc := outbox.NewService(h.repo, h.codec)
	u := uow.New(h.txm, store,
		uow.WithClock(func() time.Time { return commitAt }),
		uow.WithParticipants(svc),
	)
	o := &order{BaseEntity: entity.BaseEntity{ID: 1, Version: 1}}
	u.Add(o)
	u.Attach(c)
	u.Remove(c)
	svc.StagePublish(ctx, messaging.NewEnvelope(orderPlaced{OrderID: 1}))

	require.NoError(t, u.SaveChanges(ctx))

	assert.Equal(t, commitAt, o.Created)
	assert.Equal(t, actor, *o.CreatedBy)
	assert.Equal(t, []string{"insert test.orders", "update test.comments"}, store.ops)
	assert.True(t, c.IsDeleted())
	_, stillThere := h.store.Get("test.comments", 2)
	assert.True(t, stillThere)
	assert.Equal(t, 1, h.repo.Len())
}
