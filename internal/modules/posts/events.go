package posts

// Integration events go to the external bus through the outbox.

// PostCreated is published when a post is created.
type PostCreated struct {
	PostID   int64  `json:"postId"`
	AuthorID *int64 `json:"authorId,omitempty"`
	Content  string `json:"content"`
}

// PostUpdated is published when a post's content changes.
type PostUpdated struct {
	PostID  int64  `json:"postId"`
	Content string `json:"content"`
	Version int    `json:"version"`
}

// PostDeleted is published when a post is soft-deleted.
type PostDeleted struct {
	PostID int64 `json:"postId"`
}

// CommentAdded is published when a comment is added to a post.
type CommentAdded struct {
	CommentID int64  `json:"commentId"`
	PostID    int64  `json:"postId"`
	Content   string `json:"content"`
}

// CommentDeleted is published when a comment is soft-deleted.
type CommentDeleted struct {
	CommentID int64 `json:"commentId"`
	PostID    int64 `json:"postId"`
}

// SubscriptionCreated is published when an author offers a new subscription.
type SubscriptionCreated struct {
	SubscriptionID int64  `json:"subscriptionId"`
	OwnerID        int64  `json:"ownerId"`
	Title          string `json:"title"`
	Price          string `json:"price"`
}

// PostCommented is delivered in-process and drives the post's comment counter.
// Delta is +1 for an added comment and -1 for a deleted one.
type PostCommented struct {
	PostID    int64 `json:"postId"`
	CommentID int64 `json:"commentId"`
	Delta     int   `json:"delta"`
}
