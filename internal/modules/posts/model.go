// Package posts is the posts module: posts, comments on them and paid
// subscriptions offered by authors.
package posts

import (
	"context"
	"strings"

	"ytsoob/internal/core/apperror"
	"ytsoob/internal/core/entity"
	"ytsoob/internal/core/types"
)

// Table names.
const (
	PostsTable         = "posts.posts"
	CommentsTable      = "posts.comments"
	SubscriptionsTable = "posts.subscriptions"
)

// MaxContentLength bounds post and comment text.
const MaxContentLength = 5000

// Post is a piece of content published by an author.
type Post struct {
	entity.BaseEntity
	entity.Audit
	entity.SoftDelete

	Content string `db:"content" json:"content"`

	// CommentCount is maintained asynchronously by the comment counter consumer
	CommentCount int `db:"comment_count" json:"commentCount"`
}

// NewPost creates a post with a fresh id.
func NewPost(content string) *Post {
	return &Post{
		BaseEntity: entity.NewBaseEntity(),
		Content:    strings.TrimSpace(content),
	}
}

// TableName implements entity.Persistable.
func (*Post) TableName() string { return PostsTable }

// Validate implements entity.Validatable.
func (p *Post) Validate(_ context.Context) error {
	return validateContent(p.Content)
}

// Comment is a reply to a post.
type Comment struct {
	entity.BaseEntity
	entity.Audit
	entity.SoftDelete

	PostID  int64  `db:"post_id" json:"postId"`
	Content string `db:"content" json:"content"`
}

// NewComment creates a comment on postID.
func NewComment(postID int64, content string) *Comment {
	return &Comment{
		BaseEntity: entity.NewBaseEntity(),
		PostID:     postID,
		Content:    strings.TrimSpace(content),
	}
}

// TableName implements entity.Persistable.
func (*Comment) TableName() string { return CommentsTable }

// Validate implements entity.Validatable.
func (c *Comment) Validate(_ context.Context) error {
	if c.PostID == 0 {
		return apperror.NewValidation("comment must reference a post").WithDetail("field", "postId")
	}
	return validateContent(c.Content)
}

// Subscription is a paid tier an author offers. It is never edited after creation,
// so only creation is stamped.
type Subscription struct {
	entity.BaseEntity
	entity.Creator

	Title       string      `db:"title" json:"title"`
	Description string      `db:"description" json:"description"`
	Photo       *string     `db:"photo" json:"photo,omitempty"`
	Price       types.Money `db:"price" json:"price"`
	OwnerID     int64       `db:"owner_id" json:"ownerId"`
}

// NewSubscription creates a subscription owned by ownerID.
func NewSubscription(ownerID int64, title, description string, photo *string, price types.Money) *Subscription {
	return &Subscription{
		BaseEntity:  entity.NewBaseEntity(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Photo:       photo,
		Price:       price,
		OwnerID:     ownerID,
	}
}

// TableName implements entity.Persistable.
func (*Subscription) TableName() string { return SubscriptionsTable }

// Validate implements entity.Validatable.
func (s *Subscription) Validate(_ context.Context) error {
	if s.Title == "" {
		return apperror.NewValidation("title is required").WithDetail("field", "title")
	}
	if !types.IsValidPrice(s.Price) {
		return apperror.NewValidation("price must be a non-negative amount with at most 2 decimals").
			WithDetail("field", "price").
			WithDetail("value", s.Price.String())
	}
	return nil
}

func validateContent(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperror.NewValidation("content text must not be empty").WithDetail("field", "content")
	}
	if len([]rune(text)) > MaxContentLength {
		return apperror.NewValidation("content text is too long").
			WithDetail("field", "content").
			WithDetail("max", MaxContentLength)
	}
	return nil
}

var (
	_ entity.Persistable = (*Post)(nil)
	_ entity.Persistable = (*Comment)(nil)
	_ entity.Persistable = (*Subscription)(nil)
)
