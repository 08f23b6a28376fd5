package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leadflow/crm/internal/apperr"
	"github.com/leadflow/crm/internal/auth"
	"github.com/leadflow/crm/internal/scope"
	"github.com/leadflow/crm/pkg/response"
)

// ContextActor is the gin context key for the resolved scope.Actor.
const ContextActor = "actor"

// Actor resolves the authenticated user into a scope.Actor from storage. The token's role claim
// is never trusted for scoping. Identities without a usable organization are denied with 403.
// Call after JWT.
func Actor(src scope.FactSource, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		userID, ok := auth.UserIDFromContext(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		actor, err := scope.Load(c.Request.Context(), src, userID)
		if err != nil {
			if errors.Is(err, apperr.ErrNoScope) {
				logger.Warn("identity without usable organization", zap.String("user_id", userID.String()))
				response.Forbidden(c, "account is not attached to an organization")
				c.Abort()
				return
			}
			logger.Error("resolve actor", zap.Error(err), zap.String("user_id", userID.String()))
			response.Internal(c, "failed to resolve account")
			c.Abort()
			return
		}
		c.Set(ContextActor, actor)
		c.Next()
	}
}

// ActorFrom returns the scope.Actor set by the Actor middleware.
func ActorFrom(c *gin.Context) (scope.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return nil, false
	}
	a, ok := v.(scope.Actor)
	return a, ok
}
