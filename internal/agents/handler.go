package agents

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/middleware"
	"github.com/leadflow/crm/pkg/response"
)

// Handler handles agent HTTP endpoints. Routes are mounted behind RequireOrganizer.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an agents handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /agents.
func (h *Handler) List(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	list, err := h.svc.List(c.Request.Context(), actor)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"agents": list})
}

// Get handles GET /agents/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not found")
		return
	}
	actor, _ := middleware.ActorFrom(c)
	agent, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"agent": agent})
}

// Create handles POST /agents.
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	agent, err := h.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.Header("Location", "/agents/"+agent.ID.String())
	response.Created(c, gin.H{"agent": agent})
}

// Update handles PATCH /agents/:id.
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
	agent, err := h.svc.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"agent": agent})
}

// Delete handles DELETE /agents/:id.
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
