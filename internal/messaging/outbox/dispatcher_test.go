package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytsoob/internal/core/id"
	"ytsoob/internal/messaging"
	"ytsoob/internal/messaging/outbox"
	"ytsoob/internal/messaging/outbox/outboxtest"
	"ytsoob/pkg/logger"
)

type recordingBus struct {
	mu        sync.Mutex
	published []id.ID
	fail      func(env *messaging.Envelope) error
}

func (b *recordingBus) Publish(ctx context.Context, env *messaging.Envelope) error {
	if b.fail != nil {
		if err := b.fail(env); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, env.Metadata.ID)
	return nil
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

type fixture struct {
	repo     *outboxtest.Repository
	codec    *messaging.Codec
	external *recordingBus
	internal *recordingBus
	now      time.Time
}

func newFixture() *fixture {
	return &fixture{
		repo:     outboxtest.New(),
		codec:    messaging.MustCodec(0),
		external: &recordingBus{},
		internal: &recordingBus{},
		now:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) config(worker string) outbox.DispatcherConfig {
	cfg := outbox.DefaultDispatcherConfig()
	cfg.WorkerID = worker
	cfg.BatchSize = 10
	return cfg
}

func (f *fixture) dispatcher(t *testing.T, cfg outbox.DispatcherConfig) *outbox.Dispatcher {
	t.Helper()
	d, err := outbox.NewDispatcher(f.repo, f.codec, messaging.Routes{
		messaging.DeliveryOutbox:   f.external,
		messaging.DeliveryInternal: f.internal,
	}, cfg, logger.Nop())
	require.NoError(t, err)
	return d.WithClock(func() time.Time { return f.now })
}

func (f *fixture) seed(t *testing.T, delivery messaging.DeliveryType, n int) []id.ID {
	t.Helper()
	ids := make([]id.ID, 0, n)
	records := make([]*outbox.Record, 0, n)
	for i := 0; i < n; i++ {
		env := messaging.NewEnvelope(orderPlaced{OrderID: int64(i)})
		payload, compressed, err := f.codec.Marshal(env)
		require.NoError(t, err)
		records = append(records, &outbox.Record{
			ID:           env.Metadata.ID,
			MessageType:  env.Metadata.MessageType,
			Payload:      payload,
			Compressed:   compressed,
			DeliveryType: delivery,
			Status:       outbox.StatusInProgress,
			CreatedAt:    f.now.Add(time.Duration(i) * time.Millisecond),
		})
		ids = append(ids, env.Metadata.ID)
	}
	require.NoError(t, f.repo.Add(context.Background(), records))
	return ids
}

func (f *fixture) get(t *testing.T, recordID id.ID) *outbox.Record {
	t.Helper()
	rec, err := f.repo.Get(context.Background(), recordID)
	require.NoError(t, err)
	return rec
}

func TestNewDispatcher_ValidatesInputs(t *testing.T) {
	f := newFixture()
	routes := messaging.Routes{}
	cfg := f.config("w1")

	_, err := outbox.NewDispatcher(nil, f.codec, routes, cfg, nil)
	assert.Error(t, err)
	_, err = outbox.NewDispatcher(f.repo, nil, routes, cfg, nil)
	assert.Error(t, err)
	_, err = outbox.NewDispatcher(f.repo, f.codec, nil, cfg, nil)
	assert.Error(t, err)

	bad := cfg
	bad.BatchSize = 0
	_, err = outbox.NewDispatcher(f.repo, f.codec, routes, bad, nil)
	assert.Error(t, err)

	bad = cfg
	bad.MaxRetries = 0
	_, err = outbox.NewDispatcher(f.repo, f.codec, routes, bad, nil)
	assert.Error(t, err)
}

func TestDispatcher_DeliversAndMarksProcessed(t *testing.T) {
	f := newFixture()
	ext := f.seed(t, messaging.DeliveryOutbox, 2)
	in := f.seed(t, messaging.DeliveryInternal, 1)
	d := f.dispatcher(t, f.config("w1"))

	stats, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, outbox.Stats{Claimed: 3, Processed: 3}, stats)
	assert.Equal(t, ext, f.external.published)
	assert.Equal(t, in, f.internal.published)
	for _, recordID := range append(ext, in...) {
		rec := f.get(t, recordID)
		assert.Equal(t, outbox.StatusProcessed, rec.Status)
		require.NotNil(t, rec.ProcessedAt)
		assert.Equal(t, f.now, *rec.ProcessedAt)
	}
}

func TestDispatcher_ProcessedNeverRepublished(t *testing.T) {
	f := newFixture()
	f.seed(t, messaging.DeliveryOutbox, 1)
	d := f.dispatcher(t, f.config("w1"))

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		f.now = f.now.Add(time.Hour)
		stats, err := d.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Claimed)
	}
	assert.Equal(t, 1, f.external.count())
}

func TestDispatcher_TransientFailureIncrementsRetryOnce(t *testing.T) {
	f := newFixture()
	ids := f.seed(t, messaging.DeliveryOutbox, 1)
	d := f.dispatcher(t, f.config("w1"))

	f.external.fail = func(*messaging.Envelope) error { return errors.New("broker unavailable") }
	stats, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Retried)

	rec := f.get(t, ids[0])
	assert.Equal(t, outbox.StatusInProgress, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
	require.NotNil(t, rec.LastError)
	assert.Equal(t, "broker unavailable", *rec.LastError)

	f.external.fail = nil
	stats, err = d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, outbox.StatusProcessed, f.get(t, ids[0]).Status)
}

func TestDispatcher_ParksAfterMaxRetries(t *testing.T) {
	f := newFixture()
	ids := f.seed(t, messaging.DeliveryOutbox, 1)
	cfg := f.config("w1")
	cfg.MaxRetries = 3
	d := f.dispatcher(t, cfg)
	f.external.fail = func(*messaging.Envelope) error { return errors.New("timeout") }

	for i := 1; i <= 3; i++ {
		_, err := d.RunOnce(context.Background())
		require.NoError(t, err)
		rec := f.get(t, ids[0])
		assert.Equal(t, i, rec.RetryCount)
		if i < 3 {
			assert.Equal(t, outbox.StatusInProgress, rec.Status)
		}
	}

	rec := f.get(t, ids[0])
	assert.Equal(t, outbox.StatusParked, rec.Status)

	stats, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Claimed)
	assert.Equal(t, 1, f.repo.Len(), "parked records are never deleted")
}

func TestDispatcher_PermanentErrorParksImmediately(t *testing.T) {
	f := newFixture()
	ids := f.seed(t, messaging.DeliveryOutbox, 2)
	d := f.dispatcher(t, f.config("w1"))
	f.external.fail = func(env *messaging.Envelope) error {
		if env.Metadata.ID == ids[0] {
			return messaging.Permanent(errors.New("schema rejected"))
		}
		return nil
	}

	stats, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Parked)
	assert.Equal(t, 1, stats.Processed, "one record's failure does not block the others")
	first := f.get(t, ids[0])
	assert.Equal(t, outbox.StatusParked, first.Status)
	assert.Equal(t, 0, first.RetryCount)
	assert.Equal(t, outbox.StatusProcessed, f.get(t, ids[1]).Status)
}

func TestDispatcher_UndecodablePayloadParks(t *testing.T) {
	f := newFixture()
	recordID := id.New()
	require.NoError(t, f.repo.Add(context.Background(), []*outbox.Record{{
		ID:           recordID,
		Payload:      []byte("{broken"),
		DeliveryType: messaging.DeliveryOutbox,
		Status:       outbox.StatusInProgress,
		CreatedAt:    f.now,
	}}))
	d := f.dispatcher(t, f.config("w1"))

	stats, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Parked)
	assert.Equal(t, outbox.StatusParked, f.get(t, recordID).Status)
	assert.Equal(t, 0, f.external.count())
}

func TestDispatcher_UnknownDeliveryTypeParks(t *testing.T) {
	f := newFixture()
	ids := f.seed(t, messaging.DeliveryType("smoke-signal"), 1)
	d := f.dispatcher(t, f.config("w1"))

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	rec := f.get(t, ids[0])
	assert.Equal(t, outbox.StatusParked, rec.Status)
	assert.Contains(t, *rec.LastError, "unknown delivery type")
}

func TestDispatcher_LeasePreventsDoubleClaim(t *testing.T) {
	f := newFixture()
	f.seed(t, messaging.DeliveryOutbox, 2)

	claimed, err := f.repo.Claim(context.Background(), outbox.ClaimRequest{
		Owner: "w1", Limit: 10, Lease: time.Minute, Now: f.now,
	})
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	d2 := f.dispatcher(t, f.config("w2"))
	stats, err := d2.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Claimed)

	f.now = f.now.Add(2 * time.Minute)
	stats, err = d2.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed, "expired leases are reclaimable")
}

func TestDispatcher_CancellationLeavesRecordsInProgress(t *testing.T) {
	f := newFixture()
	ids := f.seed(t, messaging.DeliveryOutbox, 3)
	d := f.dispatcher(t, f.config("w1"))

	ctx, cancel := context.WithCancel(context.Background())
	f.external.fail = func(*messaging.Envelope) error {
		cancel()
		return context.Canceled
	}

	stats, err := d.RunOnce(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, stats.Released)

	for _, recordID := range ids {
		rec := f.get(t, recordID)
		assert.Equal(t, outbox.StatusInProgress, rec.Status)
		assert.Equal(t, 0, rec.RetryCount)
		assert.Nil(t, rec.ClaimedBy)
	}
}

func TestDispatcher_OldestFirst(t *testing.T) {
	f := newFixture()
	ids := f.seed(t, messaging.DeliveryOutbox, 5)
	cfg := f.config("w1")
	cfg.BatchSize = 2
	d := f.dispatcher(t, cfg)

	stats, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Claimed)
	assert.Equal(t, ids[:2], f.external.published)
}

func TestDispatcher_ServeStopsOnCancel(t *testing.T) {
	f := newFixture()
	f.seed(t, messaging.DeliveryOutbox, 1)
	cfg := f.config("w1")
	cfg.PollInterval = 10 * time.Millisecond
	d := f.dispatcher(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()

	assert.Eventually(t, func() bool { return f.external.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRepository_Requeue(t *testing.T) {
	f := newFixture()
	ids := f.seed(t, messaging.DeliveryOutbox, 1)
	d := f.dispatcher(t, f.config("w1"))
	f.external.fail = func(*messaging.Envelope) error { return messaging.Permanent(errors.New("nope")) }

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	parked, err := f.repo.ListParked(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, parked, 1)

	require.NoError(t, f.repo.Requeue(context.Background(), ids[0]))
	assert.ErrorIs(t, f.repo.Requeue(context.Background(), ids[0]), outbox.ErrNotParked)

	f.external.fail = nil
	stats, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
}

func TestDispatcher_OutageWaitsForNextPoll(t *testing.T) {
	f := newFixture()
	ids := f.seed(t, messaging.DeliveryOutbox, 10)
	cfg := f.config("w1")
	cfg.PollInterval = time.Hour
	d := f.dispatcher(t, cfg)
	f.external.fail = func(*messaging.Envelope) error { return errors.New("broker unavailable") }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Serve(ctx) }()
	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	for _, recordID := range ids {
		rec := f.get(t, recordID)
		assert.Equal(t, outbox.StatusInProgress, rec.Status)
		assert.Equal(t, 1, rec.RetryCount)
	}
}

func TestDispatcher_FullSuccessfulBatchPollsAgain(t *testing.T) {
	f := newFixture()
	f.seed(t, messaging.DeliveryOutbox, 25)
	cfg := f.config("w1")
	cfg.PollInterval = time.Hour
	d := f.dispatcher(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Serve(ctx) }()

	assert.Eventually(t, func() bool { return f.external.count() == 25 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_DeliveryTypesLimitClaims(t *testing.T) {
	f := newFixture()
	external := f.seed(t, messaging.DeliveryOutbox, 3)
	internal := f.seed(t, messaging.DeliveryInternal, 1)
	cfg := f.config("w1")
	cfg.DeliveryTypes = []messaging.DeliveryType{messaging.DeliveryInternal}
	d := f.dispatcher(t, cfg)

	for i := 0; i < 3; i++ {
		stats, err := d.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i == 0, stats.Processed == 1)
	}

	assert.Equal(t, outbox.StatusProcessed, f.get(t, internal[0]).Status)
	assert.Equal(t, 0, f.external.count())
	for _, recordID := range external {
		rec := f.get(t, recordID)
		assert.Equal(t, outbox.StatusInProgress, rec.Status)
		assert.Equal(t, 0, rec.RetryCount)
		assert.Nil(t, rec.ClaimedBy)
	}
}
