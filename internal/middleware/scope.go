package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/training-ledger-api/internal/models"
	appErrors "github.com/noah-isme/training-ledger-api/pkg/errors"
	"github.com/noah-isme/training-ledger-api/pkg/logger"
	"github.com/noah-isme/training-ledger-api/pkg/response"
)

// ContextScopeKey is the gin context key storing the resolved models.Scope.
const ContextScopeKey = "ledgerScope"

// ScopeResolver maps verified claims to a scope.
type ScopeResolver interface {
	Resolve(ctx context.Context, claims *models.JWTClaims) (models.Scope, error)
}

// Scope resolves the principal's scope once per request. It must run after JWT.
func Scope(resolver ScopeResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		scope, err := resolver.Resolve(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextScopeKey, scope)
		c.Set(logger.PrincipalKey, scope.PrincipalID)
		c.Next()
	}
}

// ScopeFromContext returns the scope stored by Scope.
func ScopeFromContext(c *gin.Context) (models.Scope, bool) {
	value, exists := c.Get(ContextScopeKey)
	if !exists {
		return models.Scope{}, false
	}
	scope, ok := value.(models.Scope)
	return scope, ok
}
