package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	appctx "ytsoob/internal/core/context"
	"ytsoob/internal/messaging"
)

// HeaderCorrelationID carries the request correlation id through the outbox.
const HeaderCorrelationID = "correlation-id"

type staged struct {
	env      *messaging.Envelope
	delivery messaging.DeliveryType
}

// Service buffers envelopes for one unit of work and persists them on commit.
// It implements uow.Participant and uow.CommitObserver.
type Service struct {
	repo  Repository
	codec *messaging.Codec
	clock func() time.Time

	mu      sync.Mutex
	pending []staged
}

// NewService creates a service bound to one unit of work.
func NewService(repo Repository, codec *messaging.Codec) *Service {
	return &Service{
		repo:  repo,
		codec: codec,
		clock: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// StagePublish buffers env for the external broker. Nothing is sent.
func (s *Service) StagePublish(ctx context.Context, env *messaging.Envelope) {
	s.stage(ctx, env, messaging.DeliveryOutbox)
}

// StageInternal buffers env for in-process subscribers, delivered by the dispatcher
// after commit like any other record.
func (s *Service) StageInternal(ctx context.Context, env *messaging.Envelope) {
	s.stage(ctx, env, messaging.DeliveryInternal)
}

func (s *Service) stage(ctx context.Context, env *messaging.Envelope, delivery messaging.DeliveryType) {
	if env == nil {
		return
	}
	if env.Header(HeaderCorrelationID) == "" {
		if cid := appctx.GetCorrelationID(ctx); cid != "" {
			env.SetHeader(HeaderCorrelationID, cid)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, staged{env: env, delivery: delivery})
}

// Pending returns the staged envelopes in staging order.
func (s *Service) Pending() []*messaging.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*messaging.Envelope, len(s.pending))
	for i, p := range s.pending {
		out[i] = p.env
	}
	return out
}

// CommitAndPersist writes every staged envelope as an in_progress record in the
// ambient transaction. Encoding failures abort the commit.
func (s *Service) CommitAndPersist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}

	now := s.clock()
	records := make([]*Record, 0, len(s.pending))
	for _, p := range s.pending {
		payload, compressed, err := s.codec.Marshal(p.env)
		if err != nil {
			return fmt.Errorf("encode outbox message %s: %w", p.env.Metadata.ID, err)
		}
		rec := &Record{
			ID:           p.env.Metadata.ID,
			MessageType:  p.env.Metadata.MessageType,
			Payload:      payload,
			Compressed:   compressed,
			DeliveryType: p.delivery,
			Status:       StatusInProgress,
			CreatedAt:    now,
		}
		if cid := p.env.Header(HeaderCorrelationID); cid != "" {
			rec.CorrelationID = &cid
		}
		records = append(records, rec)
	}

	if err := s.repo.Add(ctx, records); err != nil {
		return fmt.Errorf("insert outbox records: %w", err)
	}
	return nil
}

// Committed clears the buffer once the surrounding transaction has committed.
func (s *Service) Committed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
}
