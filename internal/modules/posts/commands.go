package posts

import (
	"context"

	"ytsoob/internal/app"
	"ytsoob/internal/core/apperror"
	appctx "ytsoob/internal/core/context"
	"ytsoob/internal/core/types"
)

// CreatePost creates a post authored by the caller.
type CreatePost struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// UpdatePost replaces a post's content. A non-zero Version must match the
// stored version.
type UpdatePost struct {
	ID      int64  `json:"id" validate:"required"`
	Version int    `json:"version" validate:"min=0"`
	Content string `json:"content" validate:"required,max=5000"`
}

// DeletePost soft-deletes a post.
type DeletePost struct {
	ID int64 `json:"id" validate:"required"`
}

// AddComment adds a comment to a live post.
type AddComment struct {
	PostID  int64  `json:"postId" validate:"required"`
	Content string `json:"content" validate:"required,max=5000"`
}

// DeleteComment soft-deletes a comment.
type DeleteComment struct {
	ID int64 `json:"id" validate:"required"`
}

// CreateSubscription offers a paid subscription owned by the caller.
type CreateSubscription struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Photo       *string `json:"photo,omitempty" validate:"omitempty,url"`
	Price       string  `json:"price" validate:"required,numeric"`
}

// Handlers implements the module's commands and queries. Command handlers
// expect a request scope in ctx (see app.Transactional).
type Handlers struct {
	repo Repository
}

// NewHandlers creates the handlers.
func NewHandlers(repo Repository) *Handlers {
	return &Handlers{repo: repo}
}

// CreatePost handles CreatePost.
func (h *Handlers) CreatePost(ctx context.Context, cmd CreatePost) (*Post, error) {
	scope, err := app.MustScope(ctx)
	if err != nil {
		return nil, err
	}

	p := NewPost(cmd.Content)
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}
	scope.UoW.Add(p)
	scope.Publish(ctx, PostCreated{
		PostID:   p.ID,
		AuthorID: appctx.ActorID(ctx),
		Content:  p.Content,
	})
	return p, nil
}

// UpdatePost handles UpdatePost.
func (h *Handlers) UpdatePost(ctx context.Context, cmd UpdatePost) (*Post, error) {
	scope, err := app.MustScope(ctx)
	if err != nil {
		return nil, err
	}

	p, err := h.repo.GetPost(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if cmd.Version != 0 && cmd.Version != p.Version {
		return nil, apperror.NewConcurrentModification(PostsTable, cmd.ID)
	}

	scope.UoW.Attach(p)
	p.Content = NewPost(cmd.Content).Content
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}
	scope.UoW.Update(p)
	scope.Publish(ctx, PostUpdated{
		PostID:  p.ID,
		Content: p.Content,
		Version: p.Version + 1,
	})
	return p, nil
}

// DeletePost handles DeletePost.
func (h *Handlers) DeletePost(ctx context.Context, cmd DeletePost) (*Post, error) {
	scope, err := app.MustScope(ctx)
	if err != nil {
		return nil, err
	}

	p, err := h.repo.GetPost(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	scope.UoW.Attach(p)
	scope.UoW.Remove(p)
	scope.Publish(ctx, PostDeleted{PostID: p.ID})
	return p, nil
}

// AddComment handles AddComment.
func (h *Handlers) AddComment(ctx context.Context, cmd AddComment) (*Comment, error) {
	scope, err := app.MustScope(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := h.repo.GetPost(ctx, cmd.PostID); err != nil {
		return nil, err
	}

	c := NewComment(cmd.PostID, cmd.Content)
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}
	scope.UoW.Add(c)
	scope.Publish(ctx, CommentAdded{CommentID: c.ID, PostID: c.PostID, Content: c.Content})
	scope.Notify(ctx, PostCommented{PostID: c.PostID, CommentID: c.ID, Delta: 1})
	return c, nil
}

// DeleteComment handles DeleteComment.
func (h *Handlers) DeleteComment(ctx context.Context, cmd DeleteComment) (*Comment, error) {
	scope, err := app.MustScope(ctx)
	if err != nil {
		return nil, err
	}

	c, err := h.repo.GetComment(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	scope.UoW.Attach(c)
	scope.UoW.Remove(c)
	scope.Publish(ctx, CommentDeleted{CommentID: c.ID, PostID: c.PostID})
	scope.Notify(ctx, PostCommented{PostID: c.PostID, CommentID: c.ID, Delta: -1})
	return c, nil
}

// CreateSubscription handles CreateSubscription. Anonymous callers cannot own one.
func (h *Handlers) CreateSubscription(ctx context.Context, cmd CreateSubscription) (*Subscription, error) {
	scope, err := app.MustScope(ctx)
	if err != nil {
		return nil, err
	}

	owner := appctx.ActorID(ctx)
	if owner == nil {
		return nil, apperror.NewUnauthorized("subscriptions require an authenticated author")
	}
	price, err := types.ParseMoney(cmd.Price)
	if err != nil {
		return nil, apperror.NewValidation(err.Error()).WithDetail("field", "price")
	}

	s := NewSubscription(*owner, cmd.Title, cmd.Description, cmd.Photo, price)
	if err := s.Validate(ctx); err != nil {
		return nil, err
	}
	scope.UoW.Add(s)
	scope.Publish(ctx, SubscriptionCreated{
		SubscriptionID: s.ID,
		OwnerID:        s.OwnerID,
		Title:          s.Title,
		Price:          s.Price.StringFixed(types.MoneyScale),
	})
	return s, nil
}
