package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
	"github.com/PratikDhanave/event-token-service/internal/models"
)

const (
	apiKeyHeader = "X-API-Key"
	callerCtxKey = "caller_identity"
)

var errUnauthenticated = models.ErrorResponse{Error: "missing or unknown API key", Code: "Unauthenticated"}

// APIKeyMiddleware resolves X-API-Key to the ledger identity that signs every
// transition in the request. Unknown keys stop the chain with 401.
func APIKeyMiddleware(keys map[string]ledger.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := keys[strings.TrimSpace(c.GetHeader(apiKeyHeader))]
		if !ok || caller == "" {
			slog.DebugContext(c.Request.Context(), "rejected api key",
				"method", c.Request.Method, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, errUnauthenticated)
			return
		}
		c.Set(callerCtxKey, caller)
		c.Next()
	}
}

// Caller returns the identity set by APIKeyMiddleware, or "" outside it.
func Caller(c *gin.Context) ledger.Identity {
	v, _ := c.Get(callerCtxKey)
	id, _ := v.(ledger.Identity)
	return id
}

// RequireCaller is Caller for handlers that sign a transition: when no
// identity is bound it writes 401 and reports false.
func RequireCaller(c *gin.Context) (ledger.Identity, bool) {
	id := Caller(c)
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errUnauthenticated)
		return "", false
	}
	return id, true
}
