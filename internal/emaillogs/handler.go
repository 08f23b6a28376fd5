// Package emaillogs stores and lists outbound email delivery records.
package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/middleware"
	"github.com/leadflow/crm/internal/models"
	"github.com/leadflow/crm/internal/scope"
	"github.com/leadflow/crm/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Lister reads email logs. *Repository implements it.
type Lister interface {
	List(ctx context.Context, p scope.Predicate, limit int) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	logs   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(logs Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logs: logs, logger: logger}
}

// List handles GET /email-logs?limit=N for the organizer's organization.
func (h *Handler) List(c *gin.Context) {
	actor, _ := middleware.ActorFrom(c)
	if !scope.CanMutate(actor, scope.Leads) {
		apperr.Respond(c, h.logger, apperr.ErrForbidden)
		return
	}
	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxLimit)
	}
	p, err := scope.Resolve(actor, scope.Leads)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	logs, err := h.logs.List(c.Request.Context(), p, limit)
	if err != nil {
		apperr.Respond(c, h.logger, err)
		return
	}
	if logs == nil {
		logs = []*models.EmailLog{}
	}
	response.OK(c, gin.H{"email_logs": logs})
}
