package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ytsoob/internal/core/id"
	"ytsoob/internal/messaging"
	"ytsoob/pkg/logger"
)

// DispatcherConfig controls polling and retry behaviour.
type DispatcherConfig struct {
	// WorkerID identifies this dispatcher in claimed_by
	WorkerID       string
	PollInterval   time.Duration
	BatchSize      int
	MaxRetries     int
	Lease          time.Duration
	PublishTimeout time.Duration
	// DeliveryTypes limits claims to routes with a live bus. Empty claims every type.
	DeliveryTypes []messaging.DeliveryType
}

// DefaultDispatcherConfig returns production defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerID:       "dispatcher-" + id.New().String()[:8],
		PollInterval:   2 * time.Second,
		BatchSize:      50,
		MaxRetries:     5,
		Lease:          30 * time.Second,
		PublishTimeout: 10 * time.Second,
	}
}

// Stats summarizes one poll.
type Stats struct {
	Claimed   int
	Processed int
	Retried   int
	Parked    int
	Released  int
}

// settledFullBatch reports whether a whole batch was claimed and every record
// left in_progress for good, so more work is likely waiting.
func (s Stats) settledFullBatch(batchSize int) bool {
	return s.Claimed >= batchSize &&
		s.Processed+s.Parked == s.Claimed &&
		s.Retried == 0 && s.Released == 0
}

// Dispatcher drains in_progress records to the buses.
// It implements suture.Service through Serve.
type Dispatcher struct {
	repo   Repository
	codec  *messaging.Codec
	router messaging.Router
	cfg    DispatcherConfig
	log    *logger.Logger
	tracer trace.Tracer
	clock  func() time.Time
}

// NewDispatcher validates its dependencies and creates a dispatcher.
func NewDispatcher(
	repo Repository,
	codec *messaging.Codec,
	router messaging.Router,
	cfg DispatcherConfig,
	log *logger.Logger,
) (*Dispatcher, error) {
	if repo == nil {
		return nil, errors.New("outbox repository is required")
	}
	if codec == nil {
		return nil, errors.New("message codec is required")
	}
	if router == nil {
		return nil, errors.New("bus router is required")
	}
	if cfg.WorkerID == "" {
		return nil, errors.New("worker id is required")
	}
	if cfg.PollInterval <= 0 || cfg.Lease <= 0 || cfg.PublishTimeout <= 0 {
		return nil, errors.New("poll interval, lease and publish timeout must be positive")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	if cfg.MaxRetries <= 0 {
		return nil, errors.New("max retries must be positive")
	}
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{
		repo:   repo,
		codec:  codec,
		router: router,
		cfg:    cfg,
		log:    log.WithComponent("outbox-dispatcher").With("worker_id", cfg.WorkerID),
		tracer: otel.Tracer("ytsoob/outbox"),
		clock:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock replaces the dispatcher clock. Intended for tests.
func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	d.clock = clock
	return d
}

// Serve polls until ctx is cancelled. A full batch that settled without failures
// triggers an immediate next poll; anything else waits PollInterval.
func (d *Dispatcher) Serve(ctx context.Context) error {
	d.log.Infow("outbox dispatcher started",
		"poll_interval", d.cfg.PollInterval,
		"batch_size", d.cfg.BatchSize,
		"max_retries", d.cfg.MaxRetries,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Infow("outbox dispatcher stopped")
			return ctx.Err()
		case <-timer.C:
		}

		stats, err := d.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			d.log.Errorw("outbox poll failed", "error", err)
		}

		next := d.cfg.PollInterval
		if err == nil && stats.settledFullBatch(d.cfg.BatchSize) {
			next = 0
		}
		timer.Reset(next)
	}
}

// RunOnce claims one batch and dispatches it record by record.
// A record failure never stops the batch. On cancellation the remaining
// claims are released so the records stay in_progress for the next poll.
func (d *Dispatcher) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	records, err := d.repo.Claim(ctx, ClaimRequest{
		Owner: d.cfg.WorkerID,
		Limit: d.cfg.BatchSize,
		Lease: d.cfg.Lease,
		Now:   d.clock(),

		DeliveryTypes: d.cfg.DeliveryTypes,
	})
	if err != nil {
		return stats, fmt.Errorf("claim outbox records: %w", err)
	}
	stats.Claimed = len(records)
	ClaimedBatchSize.Observe(float64(len(records)))
	if len(records) == 0 {
		return stats, nil
	}
	d.log.Debugw("claimed outbox records", "count", len(records))

	for i, rec := range records {
		if ctx.Err() != nil {
			d.release(ctx, records[i:], &stats)
			return stats, ctx.Err()
		}
		d.dispatch(ctx, rec, &stats)
	}
	return stats, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, rec *Record, stats *Stats) {
	ctx, span := d.tracer.Start(ctx, "outbox.dispatch",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("outbox.id", rec.ID.String()),
			attribute.String("outbox.delivery_type", string(rec.DeliveryType)),
			attribute.String("outbox.message_type", rec.MessageType),
			attribute.Int("outbox.retry_count", rec.RetryCount),
		),
	)
	defer span.End()

	log := d.log.With("outbox_id", rec.ID, "message_type", rec.MessageType, "delivery_type", rec.DeliveryType)

	env, err := d.codec.Unmarshal(rec.Payload, rec.Compressed)
	if err != nil {
		d.park(ctx, span, log, rec, err, stats)
		return
	}

	bus, err := d.router.Route(rec.DeliveryType)
	if err != nil {
		d.park(ctx, span, log, rec, err, stats)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	start := time.Now()
	err = bus.Publish(pubCtx, env)
	cancel()
	PublishDuration.WithLabelValues(string(rec.DeliveryType)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		if mErr := d.repo.MarkProcessed(ctx, rec.ID, d.cfg.WorkerID, d.clock()); mErr != nil {
			span.RecordError(mErr)
			log.Errorw("mark outbox record processed", "error", mErr)
			return
		}
		stats.Processed++
		DispatchedTotal.WithLabelValues(string(rec.DeliveryType), "processed").Inc()
		span.SetStatus(codes.Ok, "")

	case ctx.Err() != nil:
		// shutdown, not a delivery failure
		d.release(ctx, []*Record{rec}, stats)

	case messaging.IsPermanent(err):
		d.park(ctx, span, log, rec, err, stats)

	default:
		span.RecordError(err)
		status, mErr := d.repo.MarkRetry(ctx, rec.ID, d.cfg.WorkerID, err.Error(), d.cfg.MaxRetries)
		if mErr != nil {
			log.Errorw("record outbox retry", "error", mErr, "publish_error", err)
			return
		}
		if status == StatusParked {
			stats.Parked++
			DispatchedTotal.WithLabelValues(string(rec.DeliveryType), "parked").Inc()
			span.SetStatus(codes.Error, "retries exhausted")
			log.Errorw("outbox record parked after retries", "error", err, "retry_count", rec.RetryCount+1)
			return
		}
		stats.Retried++
		DispatchedTotal.WithLabelValues(string(rec.DeliveryType), "retry").Inc()
		span.SetStatus(codes.Error, "publish failed")
		log.Warnw("outbox publish failed, will retry", "error", err, "retry_count", rec.RetryCount+1)
	}
}

func (d *Dispatcher) park(ctx context.Context, span trace.Span, log *logger.Logger, rec *Record, cause error, stats *Stats) {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "parked")
	if err := d.repo.MarkParked(ctx, rec.ID, d.cfg.WorkerID, cause.Error()); err != nil {
		log.Errorw("park outbox record", "error", err, "cause", cause)
		return
	}
	stats.Parked++
	DispatchedTotal.WithLabelValues(string(rec.DeliveryType), "parked").Inc()
	log.Errorw("outbox record parked", "error", cause)
}

// release uses a detached context because ctx is usually already cancelled here.
func (d *Dispatcher) release(ctx context.Context, records []*Record, stats *Stats) {
	ids := make([]id.ID, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.repo.Release(relCtx, d.cfg.WorkerID, ids); err != nil {
		d.log.Warnw("release outbox claims", "error", err, "count", len(ids))
		return
	}
	stats.Released += len(ids)
	for _, r := range records {
		DispatchedTotal.WithLabelValues(string(r.DeliveryType), "released").Inc()
	}
}
