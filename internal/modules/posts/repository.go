package posts

import (
	"context"
)

// Repository reads posts module entities. Writes go through the unit of work;
// the exception is the comment counter, which is a single atomic increment.
// Getters treat soft-deleted rows as missing and return a not-found AppError.
type Repository interface {
	GetPost(ctx context.Context, postID int64) (*Post, error)
	GetComment(ctx context.Context, commentID int64) (*Comment, error)
	GetSubscription(ctx context.Context, subscriptionID int64) (*Subscription, error)

	// ListComments pages live comments of a post, oldest first.
	ListComments(ctx context.Context, postID int64, page Page) (CommentPage, error)

	// IncrementCommentCount adds delta to the post's counter and bumps its version.
	IncrementCommentCount(ctx context.Context, postID int64, delta int) error
}

// Page selects a window of a list.
type Page struct {
	Limit  int `form:"limit" json:"limit" validate:"min=0,max=200"`
	Offset int `form:"offset" json:"offset" validate:"min=0"`
}

// DefaultPageLimit applies when Page.Limit is zero.
const DefaultPageLimit = 50

// Normalize fills in the default limit.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	return p
}

// CommentPage is one page of comments.
type CommentPage struct {
	Items      []*Comment `json:"items"`
	TotalCount int64      `json:"totalCount"`
	Limit      int        `json:"limit"`
	Offset     int        `json:"offset"`
}
