package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"ytsoob/internal/core/apperror"
	"ytsoob/internal/infrastructure/http/v1/dto"
	"ytsoob/internal/messaging/outbox"
	"ytsoob/pkg/logger"
)

// OutboxHandler exposes parked outbox records to operators.
type OutboxHandler struct {
	*BaseHandler
	repo outbox.Repository
}

// NewOutboxHandler creates an outbox operator handler.
func NewOutboxHandler(base *BaseHandler, repo outbox.Repository) *OutboxHandler {
	return &OutboxHandler{BaseHandler: base, repo: repo}
}

// RegisterRoutes registers the operator routes on rg.
func (h *OutboxHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/outbox/parked", h.ListParked)
	rg.GET("/outbox/:id", h.Get)
	rg.POST("/outbox/:id/requeue", h.Requeue)
}

// ListParked handles GET /outbox/parked.
func (h *OutboxHandler) ListParked(c *gin.Context) {
	var page dto.PageRequest
	if !h.BindQuery(c, &page) {
		return
	}
	if page.Limit == 0 {
		page.Limit = 50
	}

	records, err := h.repo.ListParked(c.Request.Context(), page.Limit, page.Offset)
	if err != nil {
		h.Error(c, err)
		return
	}
	items := make([]dto.OutboxRecordResponse, 0, len(records))
	for _, r := range records {
		items = append(items, dto.FromOutboxRecord(r))
	}
	h.OK(c, dto.ListResponse[dto.OutboxRecordResponse]{
		Items:      items,
		TotalCount: int64(len(items)),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
}

// Get handles GET /outbox/:id.
func (h *OutboxHandler) Get(c *gin.Context) {
	recordID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	rec, err := h.repo.Get(c.Request.Context(), recordID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOutboxRecord(rec))
}

// Requeue handles POST /outbox/:id/requeue. Only parked records can be requeued.
func (h *OutboxHandler) Requeue(c *gin.Context) {
	recordID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Requeue(c.Request.Context(), recordID); err != nil {
		if errors.Is(err, outbox.ErrNotParked) {
			err = apperror.NewConflict("outbox record is not parked").WithDetail("id", recordID.String())
		}
		h.Error(c, err)
		return
	}
	logger.Info(c.Request.Context(), "outbox record requeued", "id", recordID)
	h.NoContent(c)
}
