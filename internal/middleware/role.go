package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/leadflow/crm/internal/scope"
	"github.com/leadflow/crm/pkg/response"
)

// RequireOrganizer lets only organizers through. Everyone else is redirected to the lead list
// rather than shown an error. Call after Actor.
func RequireOrganizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if _, ok := actor.(scope.Organizer); !ok {
			response.SeeOther(c, response.DefaultRedirect, "organizer role required")
			c.Abort()
			return
		}
		c.Next()
	}
}
