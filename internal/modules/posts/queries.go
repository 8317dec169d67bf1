package posts

import (
	"context"
	"strconv"
)

// GetPost reads one live post.
type GetPost struct {
	ID int64 `json:"id" validate:"required"`
}

// GetSubscription reads one subscription.
type GetSubscription struct {
	ID int64 `json:"id" validate:"required"`
}

// ListComments pages the comments of a post.
type ListComments struct {
	PostID int64 `json:"postId" validate:"required"`
	Page
}

// PostCacheKey is the query cache key of a post.
func PostCacheKey(postID int64) string {
	return "posts:post:" + strconv.FormatInt(postID, 10)
}

// GetPost handles GetPost.
func (h *Handlers) GetPost(ctx context.Context, q GetPost) (*Post, error) {
	return h.repo.GetPost(ctx, q.ID)
}

// GetSubscription handles GetSubscription.
func (h *Handlers) GetSubscription(ctx context.Context, q GetSubscription) (*Subscription, error) {
	return h.repo.GetSubscription(ctx, q.ID)
}

// ListComments handles ListComments. The post itself must be live.
func (h *Handlers) ListComments(ctx context.Context, q ListComments) (CommentPage, error) {
	if _, err := h.repo.GetPost(ctx, q.PostID); err != nil {
		return CommentPage{}, err
	}
	return h.repo.ListComments(ctx, q.PostID, q.Page.Normalize())
}
