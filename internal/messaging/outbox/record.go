// Package outbox implements the transactional outbox: a per-request Service that
// stages envelopes and persists them with the business transaction, and a
// Dispatcher that drains persisted records to the buses.
package outbox

import (
	"context"
	"errors"
	"time"

	"ytsoob/internal/core/id"
	"ytsoob/internal/messaging"
)

// Status is the lifecycle state of a record.
//
//	in_progress --publish ok--> processed
//	in_progress --permanent error or retries exhausted--> parked
//	parked --operator requeue--> in_progress
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusProcessed  Status = "processed"
	StatusParked     Status = "parked"
)

// Record is a persisted envelope.
type Record struct {
	ID            id.ID                  `db:"id"`
	MessageType   string                 `db:"message_type"`
	Payload       []byte                 `db:"payload"`
	Compressed    bool                   `db:"compressed"`
	DeliveryType  messaging.DeliveryType `db:"delivery_type"`
	Status        Status                 `db:"status"`
	RetryCount    int                    `db:"retry_count"`
	LastError     *string                `db:"last_error"`
	CorrelationID *string                `db:"correlation_id"`
	CreatedAt     time.Time              `db:"created_at"`
	ProcessedAt   *time.Time             `db:"processed_at"`
	ClaimedUntil  *time.Time             `db:"claimed_until"`
	ClaimedBy     *string                `db:"claimed_by"`
}

// ClaimRequest asks for up to Limit in_progress records whose lease is free at Now.
// A non-empty DeliveryTypes restricts the claim to those types.
type ClaimRequest struct {
	Owner         string
	Limit         int
	Lease         time.Duration
	Now           time.Time
	DeliveryTypes []messaging.DeliveryType
}

var (
	// ErrClaimLost is returned when a status update finds the record no longer claimed by the caller.
	ErrClaimLost = errors.New("outbox record claim lost")

	// ErrNotParked is returned by Requeue for records that are not parked.
	ErrNotParked = errors.New("outbox record is not parked")
)

// Repository is the outbox storage contract.
// Every mutation except Add and Requeue is conditional on the caller still owning the claim.
type Repository interface {
	// Add inserts records in the ambient transaction.
	Add(ctx context.Context, records []*Record) error

	// Claim leases in_progress records oldest-first. Records leased by another owner
	// are skipped until their lease expires.
	Claim(ctx context.Context, req ClaimRequest) ([]*Record, error)

	// Release drops the caller's lease without recording an attempt.
	Release(ctx context.Context, owner string, ids []id.ID) error

	MarkProcessed(ctx context.Context, recordID id.ID, owner string, at time.Time) error

	// MarkRetry records a transient failure. The record is parked once retry_count
	// reaches maxRetries. Returns the resulting status.
	MarkRetry(ctx context.Context, recordID id.ID, owner, lastError string, maxRetries int) (Status, error)

	MarkParked(ctx context.Context, recordID id.ID, owner, reason string) error

	Get(ctx context.Context, recordID id.ID) (*Record, error)

	// ListParked returns parked records, oldest first.
	ListParked(ctx context.Context, limit, offset int) ([]*Record, error)

	// Requeue moves a parked record back to in_progress with retry_count reset.
	Requeue(ctx context.Context, recordID id.ID) error
}
