package apperr

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/leadflow/crm/pkg/response"
)

// Respond writes the response for err. Unknown errors are logged and reported as 500.
func Respond(c *gin.Context, logger *zap.Logger, err error) {
	if ve, ok := AsValidation(err); ok {
		response.ValidationFailed(c, ve.Fields)
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, ErrForbidden):
		response.SeeOther(c, response.DefaultRedirect, "not permitted for your role")
	case errors.Is(err, ErrNoScope):
		response.Forbidden(c, "account is not attached to an organization")
	case errors.Is(err, ErrConflict):
		response.Conflict(c, "already exists")
	default:
		if logger != nil {
			logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
		}
		_ = c.Error(err)
		response.Internal(c, "internal error")
	}
}
