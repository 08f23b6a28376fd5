package leads

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/middleware"
	"github.com/leadflow/crm/pkg/response"
)

// Handler handles lead HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a leads handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// AssignRequest is the body of POST /leads/:id/assign.
type AssignRequest struct {
	AgentID *uuid.UUID `json:"agent_id"`
}

// CategoryRequest is the body of PATCH /leads/:id/category. A null category_id clears it.
type CategoryRequest struct {
	CategoryID *uuid.UUID `json:"category_id"`
}

func leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.NotFound(c, "not found")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /leads.
func (h *Handler) List(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	board, err := h.svc.List(c.Request.Context(), actor)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, board)
}

// Get handles GET /leads/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	lead, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"lead": lead})
}

// Create handles POST /leads.
func (h *Handler) Create(c *gin.Context) {
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	lead, err := h.svc.Create(c.Request.Context(), actor, in)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.Header("Location", "/leads/"+lead.ID.String())
	response.Created(c, gin.H{"lead": lead})
}

// Update handles PUT /leads/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var in Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	lead, err := h.svc.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"lead": lead})
}

// Delete handles DELETE /leads/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.NoContent(c)
}

// AssignCandidates handles GET /leads/:id/assign.
func (h *Handler) AssignCandidates(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	actor, _ := middleware.ActorFrom(c)
	agents, err := h.svc.AssignCandidates(c.Request.Context(), actor, id)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"agents": agents})
}

// Assign handles POST /leads/:id/assign.
func (h *Handler) Assign(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.AgentID == nil {
		response.ValidationFailed(c, map[string]string{"agent_id": "this field is required"})
		return
	}
	actor, _ := middleware.ActorFrom(c)
	lead, err := h.svc.Assign(c.Request.Context(), actor, id, *req.AgentID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.Header("Location", "/leads/"+lead.ID.String())
	response.OK(c, gin.H{"lead": lead})
}

// UpdateCategory handles PATCH /leads/:id/category and points the client at the updated lead.
func (h *Handler) UpdateCategory(c *gin.Context) {
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := middleware.ActorFrom(c)
	lead, err := h.svc.UpdateCategory(c.Request.Context(), actor, id, req.CategoryID)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	c.Header("Location", "/leads/"+lead.ID.String())
	response.OK(c, gin.H{"lead": lead})
}
