package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"ytsoob/internal/core/apperror"
	"ytsoob/internal/core/id"
	"ytsoob/internal/messaging/outbox"
)

// OutboxTable is the outbox table name.
const OutboxTable = "outbox.messages"

var _ outbox.Repository = (*OutboxRepository)(nil)

var outboxColumns = ExtractDBColumns[outbox.Record]()

// OutboxRepository stores outbox records in PostgreSQL.
// Claims use FOR UPDATE SKIP LOCKED plus a lease so concurrent dispatchers never
// publish the same record at the same time.
type OutboxRepository struct {
	txManager *TxManager
}

// NewOutboxRepository creates a repository bound to txManager.
func NewOutboxRepository(txManager *TxManager) *OutboxRepository {
	return &OutboxRepository{txManager: txManager}
}

// Add implements outbox.Repository. Must run inside the business transaction.
func (r *OutboxRepository) Add(ctx context.Context, records []*outbox.Record) error {
	if len(records) == 0 {
		return nil
	}
	pgTx := r.txManager.GetTx(ctx)
	if pgTx == nil {
		return fmt.Errorf("outbox insert requires transaction context")
	}

	q := Builder().Insert(OutboxTable).Columns(
		"id", "message_type", "payload", "compressed", "delivery_type",
		"status", "retry_count", "correlation_id", "created_at",
	)
	for _, rec := range records {
		q = q.Values(
			rec.ID, rec.MessageType, rec.Payload, rec.Compressed, string(rec.DeliveryType),
			string(rec.Status), rec.RetryCount, rec.CorrelationID, rec.CreatedAt,
		)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}
	if _, err := pgTx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert outbox records: %w", mapError(err))
	}
	return nil
}

var claimSQL = `
	UPDATE ` + OutboxTable + `
	SET claimed_by = $1, claimed_until = $2
	WHERE id IN (
		SELECT id FROM ` + OutboxTable + `
		WHERE status = $3
		  AND (claimed_until IS NULL OR claimed_until <= $4)
		  AND ($6::text[] IS NULL OR delivery_type = ANY($6::text[]))
		ORDER BY created_at, id
		LIMIT $5
		FOR UPDATE SKIP LOCKED
	)
	RETURNING ` + strings.Join(outboxColumns, ", ")

// Claim implements outbox.Repository.
func (r *OutboxRepository) Claim(ctx context.Context, req outbox.ClaimRequest) ([]*outbox.Record, error) {
	var records []*outbox.Record
	until := req.Now.Add(req.Lease)
	err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &records, claimSQL,
		req.Owner, until, string(outbox.StatusInProgress), req.Now, req.Limit, deliveryTypes(req))
	if err != nil {
		return nil, fmt.Errorf("claim outbox records: %w", err)
	}
	// RETURNING does not preserve the subquery order
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// deliveryTypes returns nil, bound as NULL, when the claim is unrestricted.
func deliveryTypes(req outbox.ClaimRequest) []string {
	if len(req.DeliveryTypes) == 0 {
		return nil
	}
	out := make([]string, len(req.DeliveryTypes))
	for i, d := range req.DeliveryTypes {
		out[i] = string(d)
	}
	return out
}

// ownedUpdate restricts an update to a record still claimed by owner.
func ownedUpdate(recordID id.ID, owner string) squirrel.UpdateBuilder {
	return Builder().Update(OutboxTable).
		Set("claimed_by", nil).
		Set("claimed_until", nil).
		Where(squirrel.Eq{
			"id":         recordID,
			"claimed_by": owner,
			"status":     string(outbox.StatusInProgress),
		})
}

func (r *OutboxRepository) execOwned(ctx context.Context, q squirrel.UpdateBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build outbox update: %w", err)
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update outbox record: %w", mapError(err))
	}
	if result.RowsAffected() == 0 {
		return outbox.ErrClaimLost
	}
	return nil
}

// Release implements outbox.Repository.
func (r *OutboxRepository) Release(ctx context.Context, owner string, ids []id.ID) error {
	if len(ids) == 0 {
		return nil
	}
	sql, args, err := Builder().Update(OutboxTable).
		Set("claimed_by", nil).
		Set("claimed_until", nil).
		Where(squirrel.Eq{"id": ids, "claimed_by": owner}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outbox release: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("release outbox records: %w", mapError(err))
	}
	return nil
}

// MarkProcessed implements outbox.Repository.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, recordID id.ID, owner string, at time.Time) error {
	return r.execOwned(ctx, ownedUpdate(recordID, owner).
		Set("status", string(outbox.StatusProcessed)).
		Set("processed_at", at))
}

// markRetryQuery increments retry_count and parks in the same statement.
func markRetryQuery(recordID id.ID, owner, lastError string, maxRetries int) squirrel.UpdateBuilder {
	return ownedUpdate(recordID, owner).
		Set("retry_count", squirrel.Expr("retry_count + 1")).
		Set("last_error", lastError).
		Set("status", squirrel.Expr("CASE WHEN retry_count + 1 >= ? THEN ? ELSE status END",
			maxRetries, string(outbox.StatusParked))).
		Suffix("RETURNING status")
}

// MarkRetry implements outbox.Repository.
func (r *OutboxRepository) MarkRetry(ctx context.Context, recordID id.ID, owner, lastError string, maxRetries int) (outbox.Status, error) {
	sql, args, err := markRetryQuery(recordID, owner, lastError, maxRetries).ToSql()
	if err != nil {
		return "", fmt.Errorf("build outbox retry: %w", err)
	}
	var status string
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", outbox.ErrClaimLost
		}
		return "", fmt.Errorf("record outbox retry: %w", mapError(err))
	}
	return outbox.Status(status), nil
}

// MarkParked implements outbox.Repository.
func (r *OutboxRepository) MarkParked(ctx context.Context, recordID id.ID, owner, reason string) error {
	return r.execOwned(ctx, ownedUpdate(recordID, owner).
		Set("status", string(outbox.StatusParked)).
		Set("last_error", reason))
}

// Get implements outbox.Repository.
func (r *OutboxRepository) Get(ctx context.Context, recordID id.ID) (*outbox.Record, error) {
	sql, args, err := Builder().Select(outboxColumns...).From(OutboxTable).
		Where(squirrel.Eq{"id": recordID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rec outbox.Record
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("outbox message", recordID.String())
		}
		return nil, fmt.Errorf("get outbox record: %w", err)
	}
	return &rec, nil
}

func listParkedQuery(limit, offset int) squirrel.SelectBuilder {
	q := Builder().Select(outboxColumns...).From(OutboxTable).
		Where(squirrel.Eq{"status": string(outbox.StatusParked)}).
		OrderBy("created_at", "id")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}
	return q
}

// ListParked implements outbox.Repository.
func (r *OutboxRepository) ListParked(ctx context.Context, limit, offset int) ([]*outbox.Record, error) {
	sql, args, err := listParkedQuery(limit, offset).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	records := []*outbox.Record{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &records, sql, args...); err != nil {
		return nil, fmt.Errorf("list parked outbox records: %w", err)
	}
	return records, nil
}

// Requeue implements outbox.Repository.
func (r *OutboxRepository) Requeue(ctx context.Context, recordID id.ID) error {
	sql, args, err := Builder().Update(OutboxTable).
		Set("status", string(outbox.StatusInProgress)).
		Set("retry_count", 0).
		Set("claimed_by", nil).
		Set("claimed_until", nil).
		Where(squirrel.Eq{"id": recordID, "status": string(outbox.StatusParked)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outbox requeue: %w", err)
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("requeue outbox record: %w", mapError(err))
	}
	if result.RowsAffected() == 0 {
		if _, err := r.Get(ctx, recordID); err != nil {
			return err
		}
		return outbox.ErrNotParked
	}
	return nil
}
