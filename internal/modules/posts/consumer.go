package posts

import (
	"context"
	"fmt"

	"ytsoob/internal/core/mediator"
	"ytsoob/internal/core/tx"
	"ytsoob/internal/messaging"
	"ytsoob/pkg/logger"
)

// CommentCounterName identifies the comment counter in the inbox.
const CommentCounterName = "posts.comment_counter"

// Subscriber registers in-process consumers; bus.Consumers satisfies it.
type Subscriber interface {
	On(name string, sample any, handler messaging.Handler)
}

// CommentCounter applies PostCommented notifications to posts.comment_count.
// Deliveries are at least once; the inbox makes each envelope count once.
type CommentCounter struct {
	txManager   tx.Manager
	inbox       messaging.Inbox
	repo        Repository
	invalidator mediator.Invalidator
}

// NewCommentCounter creates the consumer. invalidator may be nil.
func NewCommentCounter(txManager tx.Manager, inbox messaging.Inbox, repo Repository, invalidator mediator.Invalidator) *CommentCounter {
	return &CommentCounter{
		txManager:   txManager,
		inbox:       inbox,
		repo:        repo,
		invalidator: invalidator,
	}
}

// Register subscribes the counter to PostCommented.
func (c *CommentCounter) Register(s Subscriber) {
	s.On(CommentCounterName, PostCommented{}, c.Handle)
}

// Handle consumes one PostCommented envelope. Undecodable payloads are
// dropped; retrying them cannot succeed.
func (c *CommentCounter) Handle(ctx context.Context, env *messaging.Envelope) error {
	var ev PostCommented
	if err := messaging.DecodePayload(env, &ev); err != nil {
		logger.Error(ctx, "dropping PostCommented", "message_id", env.Metadata.ID, "error", err)
		return nil
	}

	applied := false
	err := c.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		fresh, err := c.inbox.MarkConsumed(ctx, CommentCounterName, env.Metadata.ID)
		if err != nil || !fresh {
			return err
		}
		applied = true
		return c.repo.IncrementCommentCount(ctx, ev.PostID, ev.Delta)
	})
	if err != nil {
		return fmt.Errorf("apply comment count for post %d: %w", ev.PostID, err)
	}
	if !applied {
		logger.Debug(ctx, "duplicate PostCommented ignored", "message_id", env.Metadata.ID)
		return nil
	}

	if c.invalidator != nil {
		if err := c.invalidator.Invalidate(ctx, PostCacheKey(ev.PostID)); err != nil {
			logger.Warn(ctx, "cache invalidation failed", "post_id", ev.PostID, "error", err)
		}
	}
	return nil
}
