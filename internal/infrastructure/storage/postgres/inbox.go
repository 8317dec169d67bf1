package postgres

import (
	"context"
	"fmt"
	"time"

	"ytsoob/internal/core/id"
	"ytsoob/internal/messaging"
)

// InboxTable records consumed message ids per consumer.
const InboxTable = "outbox.consumed_messages"

// InboxSchema creates the consumer deduplication table.
var InboxSchema = []string{
	`CREATE SCHEMA IF NOT EXISTS outbox`,
	`CREATE TABLE IF NOT EXISTS ` + InboxTable + ` (
		consumer    TEXT        NOT NULL,
		message_id  UUID        NOT NULL,
		consumed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (consumer, message_id)
	)`,
}

var _ messaging.Inbox = (*Inbox)(nil)

// Inbox deduplicates at-least-once deliveries on envelope id.
// Call MarkConsumed inside the consumer's transaction so the mark and the
// side effects commit together.
type Inbox struct {
	txManager *TxManager
}

// NewInbox creates an inbox bound to txManager.
func NewInbox(txManager *TxManager) *Inbox {
	return &Inbox{txManager: txManager}
}

const markConsumedSQL = `
	INSERT INTO ` + InboxTable + ` (consumer, message_id, consumed_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (consumer, message_id) DO NOTHING`

// MarkConsumed implements messaging.Inbox.
func (i *Inbox) MarkConsumed(ctx context.Context, consumer string, messageID id.ID) (bool, error) {
	tag, err := i.txManager.GetQuerier(ctx).Exec(ctx, markConsumedSQL, consumer, messageID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("mark message consumed: %w", mapError(err))
	}
	return tag.RowsAffected() == 1, nil
}
