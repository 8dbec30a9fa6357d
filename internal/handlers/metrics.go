package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-token-service/internal/auth"
	"github.com/PratikDhanave/event-token-service/internal/ledger"
	"github.com/PratikDhanave/event-token-service/internal/service"
)

// RegisterMetricRoutes registers the claim analytics endpoint.
//
// GET /metrics?from=...&to=...[&event_key=...]
// - from and to are RFC3339; the window is [from,to)
// - Returns total claims, claims per event and claims per UTC day
func RegisterMetricRoutes(r gin.IRoutes, l *service.Ledger) {
	r.GET("/metrics", func(c *gin.Context) {
		if _, ok := auth.RequireCaller(c); !ok {
			return
		}

		from, err := parseWindowBound(c, "from")
		if err != nil {
			writeError(c, err)
			return
		}
		to, err := parseWindowBound(c, "to")
		if err != nil {
			writeError(c, err)
			return
		}

		m, err := l.ClaimMetrics(c.Request.Context(), from, to, c.Query("event_key"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	})
}

func parseWindowBound(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, ledger.InvalidArgument("%s is required", name)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, ledger.InvalidArgument("%s must be RFC3339", name)
	}
	return t.UTC(), nil
}
