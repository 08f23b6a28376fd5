package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextUserID is the gin context key for the authenticated user's ID.
const ContextUserID = "user_id"

// UserIDFromContext returns the authenticated user's ID set by the JWT middleware.
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
