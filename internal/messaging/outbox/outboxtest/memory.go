// Package outboxtest provides an in-memory outbox repository for tests.
package outboxtest

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"ytsoob/internal/core/apperror"
	"ytsoob/internal/core/id"
	"ytsoob/internal/messaging/outbox"
)

// Repository is an in-memory outbox.Repository. It also implements
// uowtest.Journal so rollbacks discard added records.
type Repository struct {
	mu      sync.Mutex
	records map[id.ID]outbox.Record

	// ClaimErr, when set, is returned by Claim.
	ClaimErr error
}

var _ outbox.Repository = (*Repository)(nil)

// New creates an empty repository.
func New() *Repository {
	return &Repository{records: make(map[id.ID]outbox.Record)}
}

// All returns copies of every record, oldest first.
func (r *Repository) All() []outbox.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked(func(outbox.Record) bool { return true })
}

// Len returns the number of records.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *Repository) sortedLocked(keep func(outbox.Record) bool) []outbox.Record {
	out := make([]outbox.Record, 0, len(r.records))
	for _, rec := range r.records {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Add implements outbox.Repository.
func (r *Repository) Add(_ context.Context, records []*outbox.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		if _, ok := r.records[rec.ID]; ok {
			return apperror.NewDuplicate("outbox", "id", rec.ID.String())
		}
	}
	for _, rec := range records {
		r.records[rec.ID] = *rec
	}
	return nil
}

// Claim implements outbox.Repository.
func (r *Repository) Claim(_ context.Context, req outbox.ClaimRequest) ([]*outbox.Record, error) {
	if r.ClaimErr != nil {
		return nil, r.ClaimErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	free := r.sortedLocked(func(rec outbox.Record) bool {
		return rec.Status == outbox.StatusInProgress &&
			(rec.ClaimedUntil == nil || !rec.ClaimedUntil.After(req.Now)) &&
			(len(req.DeliveryTypes) == 0 || slices.Contains(req.DeliveryTypes, rec.DeliveryType))
	})
	if len(free) > req.Limit {
		free = free[:req.Limit]
	}

	until := req.Now.Add(req.Lease)
	owner := req.Owner
	out := make([]*outbox.Record, 0, len(free))
	for _, rec := range free {
		rec.ClaimedUntil = &until
		rec.ClaimedBy = &owner
		r.records[rec.ID] = rec
		cp := rec
		out = append(out, &cp)
	}
	return out, nil
}

func (r *Repository) ownedLocked(recordID id.ID, owner string) (outbox.Record, error) {
	rec, ok := r.records[recordID]
	if !ok || rec.Status != outbox.StatusInProgress || rec.ClaimedBy == nil || *rec.ClaimedBy != owner {
		return outbox.Record{}, outbox.ErrClaimLost
	}
	return rec, nil
}

// Release implements outbox.Repository.
func (r *Repository) Release(_ context.Context, owner string, ids []id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, recordID := range ids {
		rec, err := r.ownedLocked(recordID, owner)
		if err != nil {
			continue
		}
		rec.ClaimedBy, rec.ClaimedUntil = nil, nil
		r.records[recordID] = rec
	}
	return nil
}

// MarkProcessed implements outbox.Repository.
func (r *Repository) MarkProcessed(_ context.Context, recordID id.ID, owner string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.ownedLocked(recordID, owner)
	if err != nil {
		return err
	}
	rec.Status = outbox.StatusProcessed
	rec.ProcessedAt = &at
	rec.ClaimedBy, rec.ClaimedUntil = nil, nil
	r.records[recordID] = rec
	return nil
}

// MarkRetry implements outbox.Repository.
func (r *Repository) MarkRetry(_ context.Context, recordID id.ID, owner, lastError string, maxRetries int) (outbox.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.ownedLocked(recordID, owner)
	if err != nil {
		return "", err
	}
	rec.RetryCount++
	rec.LastError = &lastError
	rec.ClaimedBy, rec.ClaimedUntil = nil, nil
	if rec.RetryCount >= maxRetries {
		rec.Status = outbox.StatusParked
	}
	r.records[recordID] = rec
	return rec.Status, nil
}

// MarkParked implements outbox.Repository.
func (r *Repository) MarkParked(_ context.Context, recordID id.ID, owner, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.ownedLocked(recordID, owner)
	if err != nil {
		return err
	}
	rec.Status = outbox.StatusParked
	rec.LastError = &reason
	rec.ClaimedBy, rec.ClaimedUntil = nil, nil
	r.records[recordID] = rec
	return nil
}

// Get implements outbox.Repository.
func (r *Repository) Get(_ context.Context, recordID id.ID) (*outbox.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordID]
	if !ok {
		return nil, apperror.NewNotFound("outbox", recordID)
	}
	return &rec, nil
}

// ListParked implements outbox.Repository.
func (r *Repository) ListParked(_ context.Context, limit, offset int) ([]*outbox.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	parked := r.sortedLocked(func(rec outbox.Record) bool { return rec.Status == outbox.StatusParked })
	if offset >= len(parked) {
		return []*outbox.Record{}, nil
	}
	parked = parked[offset:]
	if limit > 0 && len(parked) > limit {
		parked = parked[:limit]
	}
	out := make([]*outbox.Record, len(parked))
	for i := range parked {
		out[i] = &parked[i]
	}
	return out, nil
}

// Requeue implements outbox.Repository.
func (r *Repository) Requeue(_ context.Context, recordID id.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[recordID]
	if !ok {
		return apperror.NewNotFound("outbox", recordID)
	}
	if rec.Status != outbox.StatusParked {
		return outbox.ErrNotParked
	}
	rec.Status = outbox.StatusInProgress
	rec.RetryCount = 0
	rec.ClaimedBy, rec.ClaimedUntil = nil, nil
	r.records[recordID] = rec
	return nil
}

// Snapshot implements uowtest.Journal.
func (r *Repository) Snapshot() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[id.ID]outbox.Record, len(r.records))
	for k, v := range r.records {
		cp[k] = v
	}
	return cp
}

// Restore implements uowtest.Journal.
func (r *Repository) Restore(snapshot any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = snapshot.(map[id.ID]outbox.Record)
}
