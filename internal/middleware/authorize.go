package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/pkg/response"
)

// Authorize returns a middleware enforcing the route's declared scope, role
// and permission gates. Target-specific checks (tenant ownership of a
// fetched row, department scope, assignment gates) happen in handlers with
// the loaded target.
func Authorize(engine *authz.Engine, route authz.Route) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Principal(c)
		if err := engine.Authorize(c.Request.Context(), p, route, nil); err != nil {
			AbortAuthz(c, err)
			return
		}
		c.Next()
	}
}

// AbortAuthz writes the HTTP rendering of an authorization error and aborts.
func AbortAuthz(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		response.Unauthorized(c, "authentication required")
	case errors.Is(err, authz.ErrNotVisible):
		// Cross-tenant and out-of-department probes look like absence.
		response.NotFound(c, "not found")
	default:
		if de, ok := authz.AsDeny(err); ok {
			response.Forbidden(c, de.Code, de.Reason)
		} else {
			response.Internal(c, "authorization failed")
		}
	}
	c.Abort()
}
