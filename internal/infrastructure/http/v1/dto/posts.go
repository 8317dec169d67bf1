package dto

import (
	"time"

	"ytsoob/internal/modules/posts"
)

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Content string `json:"content"`
}

// UpdatePostRequest is the body of PUT /posts/:id.
type UpdatePostRequest struct {
	Content string `json:"content"`
	Version int    `json:"version"`
}

// AddCommentRequest is the body of POST /posts/:id/comments.
type AddCommentRequest struct {
	Content string `json:"content"`
}

// CreateSubscriptionRequest is the body of POST /subscriptions.
type CreateSubscriptionRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Photo       *string `json:"photo,omitempty"`
	Price       string  `json:"price"`
}

// PostResponse is a post as returned by the API.
type PostResponse struct {
	ID           string `json:"id"`
	Version      int    `json:"version"`
	Content      string `json:"content"`
	CommentCount int    `json:"commentCount"`
	AuditResponse
}

// FromPost maps a post.
func FromPost(p *posts.Post) PostResponse {
	return PostResponse{
		ID:           FormatID(p.ID),
		Version:      p.Version,
		Content:      p.Content,
		CommentCount: p.CommentCount,
		AuditResponse: AuditResponse{
			Created:        p.Created,
			CreatedBy:      FormatActor(p.CreatedBy),
			LastModified:   p.LastModified,
			LastModifiedBy: FormatActor(p.LastModifiedBy),
		},
	}
}

// CommentResponse is a comment as returned by the API.
type CommentResponse struct {
	ID      string `json:"id"`
	PostID  string `json:"postId"`
	Content string `json:"content"`
	AuditResponse
}

// FromComment maps a comment.
func FromComment(c *posts.Comment) CommentResponse {
	return CommentResponse{
		ID:      FormatID(c.ID),
		PostID:  FormatID(c.PostID),
		Content: c.Content,
		AuditResponse: AuditResponse{
			Created:        c.Created,
			CreatedBy:      FormatActor(c.CreatedBy),
			LastModified:   c.LastModified,
			LastModifiedBy: FormatActor(c.LastModifiedBy),
		},
	}
}

// FromCommentPage maps a page of comments.
func FromCommentPage(p posts.CommentPage) ListResponse[CommentResponse] {
	items := make([]CommentResponse, 0, len(p.Items))
	for _, c := range p.Items {
		items = append(items, FromComment(c))
	}
	return ListResponse[CommentResponse]{Items: items, TotalCount: p.TotalCount, Limit: p.Limit, Offset: p.Offset}
}

// SubscriptionResponse is a subscription as returned by the API.
type SubscriptionResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Photo       *string   `json:"photo,omitempty"`
	Price       string    `json:"price"`
	Created     time.Time `json:"created"`
}

// FromSubscription maps a subscription.
func FromSubscription(s *posts.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:          FormatID(s.ID),
		OwnerID:     FormatID(s.OwnerID),
		Title:       s.Title,
		Description: s.Description,
		Photo:       s.Photo,
		Price:       s.Price.StringFixed(2),
		Created:     s.Created,
	}
}
