package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ratepro/backend/internal/auth"
	"github.com/ratepro/backend/internal/authz"
	"github.com/ratepro/backend/pkg/response"
)

const (
	// ContextPrincipal is the key for the authorization principal in gin context.
	ContextPrincipal = "principal"
)

// PrincipalLoader resolves the token subject into a full principal from the
// user record (role, tenant, department, flags). Implemented by the auth
// repository so deactivated users are rejected on every request.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, claims *auth.Claims) (*authz.Principal, error)
}

// JWT returns a middleware that validates the access token and loads the
// principal into context.
func JWT(jwtService *auth.JWTService, loader PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		principal, err := loader.LoadPrincipal(c.Request.Context(), claims)
		if err != nil {
			response.Unauthorized(c, "account not found or deactivated")
			c.Abort()
			return
		}
		c.Set(ContextPrincipal, principal)
		c.Next()
	}
}

// Principal returns the principal set by the JWT middleware, or nil.
func Principal(c *gin.Context) *authz.Principal {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*authz.Principal)
	return p
}
