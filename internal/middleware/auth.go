package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/olyamironova/escrow-engine/internal/api/dto"
	"github.com/olyamironova/escrow-engine/internal/auth"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"go.uber.org/zap"
)

const callerKey = "caller"

// TokenVerifier resolves a bearer token to the caller it was issued to.
type TokenVerifier interface {
	Verify(token string) (domain.Caller, error)
}

// Auth rejects requests without a valid bearer token. The caller is stored
// on the gin context and on the request context.
func Auth(v TokenVerifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			unauthenticated(c, "missing bearer token")
			return
		}
		caller, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			log.Debug("token rejected", zap.String("ip", c.ClientIP()), zap.Error(err))
			unauthenticated(c, "invalid session token")
			return
		}
		c.Set(callerKey, caller)
		c.Request = c.Request.WithContext(auth.WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// RequireAdmin must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CallerOf(c)
		if !ok || !caller.Admin {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.ErrorResponse{
				Error: dto.ErrorBody{Kind: string(domain.KindUnauthorized), Message: "admin role required"},
			})
			return
		}
		c.Next()
	}
}

// CallerOf returns the caller set by Auth.
func CallerOf(c *gin.Context) (domain.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return domain.Caller{}, false
	}
	caller, ok := v.(domain.Caller)
	return caller, ok
}

func unauthenticated(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
		Error: dto.ErrorBody{Kind: string(domain.KindUnauthorized), Message: msg},
	})
}
