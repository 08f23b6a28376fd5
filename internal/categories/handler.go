package categories

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/middleware"
	"github.com/leadflow/crm/pkg/response"
)

// Handler handles category HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a categories handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /categories.
func (h *Handler) List(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	out, err := h.svc.List(c.Request.Context(), actor)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, out)
}

// Get handles GET /categories/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not found")
		return
	}
	actor, _ := middleware.ActorFrom(c)
	out, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, out)
}

// Create handles POST /categories.
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	cat, err := h.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.Header("Location", "/categories/"+cat.ID.String())
	response.Created(c, gin.H{"category": cat})
}

// Update handles PATCH /categories/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not found")
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	cat, err := h.svc.Rename(c.Request.Context(), actor, id, in)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"category": cat})
}

// Delete handles DELETE /categories/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not found")
		return
	}
	actor, _ := middleware.ActorFrom(c)
	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.NoContent(c)
}
