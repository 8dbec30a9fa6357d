package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-token-service/internal/auth"
	"github.com/PratikDhanave/event-token-service/internal/service"
)

// RegisterHoldingsRoutes registers the holder-side read endpoint.
//
// GET /holdings
// - Requires X-API-Key (caller context)
// - Returns the caller's claim receipts plus totals
func RegisterHoldingsRoutes(r gin.IRoutes, l *service.Ledger) {
	r.GET("/holdings", func(c *gin.Context) {
		caller, ok := auth.RequireCaller(c)
		if !ok {
			return
		}

		h, err := l.Holdings(c.Request.Context(), caller)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, h)
	})
}
