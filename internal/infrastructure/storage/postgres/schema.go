package postgres

import (
	"context"
	"fmt"

	"ytsoob/pkg/logger"
)

// OutboxSchema creates the outbox table. Records are never deleted by the
// application; archival is an operator concern.
var OutboxSchema = []string{
	`CREATE SCHEMA IF NOT EXISTS outbox`,
	`CREATE TABLE IF NOT EXISTS ` + OutboxTable + ` (
		id             UUID PRIMARY KEY,
		message_type   TEXT        NOT NULL,
		payload        BYTEA       NOT NULL,
		compressed     BOOLEAN     NOT NULL DEFAULT FALSE,
		delivery_type  TEXT        NOT NULL,
		status         TEXT        NOT NULL DEFAULT 'in_progress'
		               CHECK (status IN ('in_progress', 'processed', 'parked')),
		retry_count    INTEGER     NOT NULL DEFAULT 0 CHECK (retry_count >= 0),
		last_error     TEXT,
		correlation_id TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		processed_at   TIMESTAMPTZ,
		claimed_until  TIMESTAMPTZ,
		claimed_by     TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS messages_pending_idx
		ON ` + OutboxTable + ` (created_at, id) WHERE status = 'in_progress'`,
	`CREATE INDEX IF NOT EXISTS messages_parked_idx
		ON ` + OutboxTable + ` (created_at) WHERE status = 'parked'`,
}

// Migrate applies idempotent DDL statements in one transaction.
func Migrate(ctx context.Context, txManager *TxManager, schemas ...[]string) error {
	return txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := txManager.GetQuerier(ctx)
		n := 0
		for _, stmts := range schemas {
			for _, stmt := range stmts {
				if _, err := q.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				n++
			}
		}
		logger.Info(ctx, "schema migrated", "statements", n)
		return nil
	})
}
