package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-token-service/internal/auth"
	"github.com/PratikDhanave/event-token-service/internal/config"
	"github.com/PratikDhanave/event-token-service/internal/handlers"
	"github.com/PratikDhanave/event-token-service/internal/service"
)

const readyTimeout = time.Second

// NewRouter builds the HTTP surface of the ledger.
//
//	open:          GET /health, GET /ready
//	X-API-Key:     /events..., GET /holdings, GET /metrics
func NewRouter(cfg config.Config, l *service.Ledger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		if err := l.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	signed := r.Group("/", auth.APIKeyMiddleware(cfg.APIKeys))
	handlers.RegisterEventRoutes(signed, l)
	handlers.RegisterHoldingsRoutes(signed, l)
	handlers.RegisterMetricRoutes(signed, l)

	return r
}

// requestLogger emits one slog line per request once the handler chain is done.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		slog.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"caller", string(auth.Caller(c)),
			"duration", time.Since(start),
		)
	}
}
