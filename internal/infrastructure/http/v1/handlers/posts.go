package handlers

import (
	"github.com/gin-gonic/gin"

	"ytsoob/internal/infrastructure/http/v1/dto"
	"ytsoob/internal/modules/posts"
)

// PostsHandler exposes the posts module.
type PostsHandler struct {
	*BaseHandler
	module *posts.Module
}

// NewPostsHandler creates a posts handler.
func NewPostsHandler(base *BaseHandler, module *posts.Module) *PostsHandler {
	return &PostsHandler{BaseHandler: base, module: module}
}

// RegisterRoutes registers read routes on public and write routes on protected.
func (h *PostsHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/posts/:id", h.GetPost)
	public.GET("/posts/:id/comments", h.ListComments)
	public.GET("/subscriptions/:id", h.GetSubscription)

	protected.POST("/posts", h.CreatePost)
	protected.PUT("/posts/:id", h.UpdatePost)
	protected.DELETE("/posts/:id", h.DeletePost)
	protected.POST("/posts/:id/comments", h.AddComment)
	protected.DELETE("/comments/:id", h.DeleteComment)
	protected.POST("/subscriptions", h.CreateSubscription)
}

// CreatePost handles POST /posts.
func (h *PostsHandler) CreatePost(c *gin.Context) {
	var req dto.CreatePostRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.module.CreatePost(c.Request.Context(), posts.CreatePost{Content: req.Content})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FormatID(p.ID))
}

// GetPost handles GET /posts/:id.
func (h *PostsHandler) GetPost(c *gin.Context) {
	postID, ok := h.ParamInt64(c, "id")
	if !ok {
		return
	}
	p, err := h.module.GetPost(c.Request.Context(), posts.GetPost{ID: postID})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPost(p))
}

// UpdatePost handles PUT /posts/:id.
func (h *PostsHandler) UpdatePost(c *gin.Context) {
	postID, ok := h.ParamInt64(c, "id")
	if !ok {
		return
	}
	var req dto.UpdatePostRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := h.module.UpdatePost(c.Request.Context(), posts.UpdatePost{
		ID:      postID,
		Version: req.Version,
		Content: req.Content,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPost(p))
}

// DeletePost handles DELETE /posts/:id.
func (h *PostsHandler) DeletePost(c *gin.Context) {
	postID, ok := h.ParamInt64(c, "id")
	if !ok {
		return
	}
	if _, err := h.module.DeletePost(c.Request.Context(), posts.DeletePost{ID: postID}); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// AddComment handles POST /posts/:id/comments.
func (h *PostsHandler) AddComment(c *gin.Context) {
	postID, ok := h.ParamInt64(c, "id")
	if !ok {
		return
	}
	var req dto.AddCommentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	comment, err := h.module.AddComment(c.Request.Context(), posts.AddComment{PostID: postID, Content: req.Content})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FormatID(comment.ID))
}

// ListComments handles GET /posts/:id/comments.
func (h *PostsHandler) ListComments(c *gin.Context) {
	postID, ok := h.ParamInt64(c, "id")
	if !ok {
		return
	}
	var page dto.PageRequest
	if !h.BindQuery(c, &page) {
		return
	}
	result, err := h.module.ListComments(c.Request.Context(), posts.ListComments{
		PostID: postID,
		Page:   posts.Page{Limit: page.Limit, Offset: page.Offset},
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromCommentPage(result))
}

// DeleteComment handles DELETE /comments/:id.
func (h *PostsHandler) DeleteComment(c *gin.Context) {
	commentID, ok := h.ParamInt64(c, "id")
	if !ok {
		return
	}
	if _, err := h.module.DeleteComment(c.Request.Context(), posts.DeleteComment{ID: commentID}); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// CreateSubscription handles POST /subscriptions.
func (h *PostsHandler) CreateSubscription(c *gin.Context) {
	var req dto.CreateSubscriptionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	s, err := h.module.CreateSubscription(c.Request.Context(), posts.CreateSubscription{
		Title:       req.Title,
		Description: req.Description,
		Photo:       req.Photo,
		Price:       req.Price,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FormatID(s.ID))
}

// GetSubscription handles GET /subscriptions/:id.
func (h *PostsHandler) GetSubscription(c *gin.Context) {
	subID, ok := h.ParamInt64(c, "id")
	if !ok {
		return
	}
	s, err := h.module.GetSubscription(c.Request.Context(), posts.GetSubscription{ID: subID})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSubscription(s))
}
