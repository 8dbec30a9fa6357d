package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-token-service/internal/auth"
	"github.com/PratikDhanave/event-token-service/internal/ledger"
	"github.com/PratikDhanave/event-token-service/internal/models"
	"github.com/PratikDhanave/event-token-service/internal/service"
	"github.com/PratikDhanave/event-token-service/internal/store"
)

// RegisterEventRoutes registers the event lifecycle endpoints.
//
// POST /events                  initialize (caller becomes creator)
// GET  /events                  list, ?creator=... and ?active=true narrow it
// GET  /events/:key             read one record
// POST /events/:key/claim       claim one token
// POST /events/:key/deactivate  close the event (creator only)
func RegisterEventRoutes(r gin.IRoutes, l *service.Ledger) {
	r.POST("/events", func(c *gin.Context) {
		caller, ok := auth.RequireCaller(c)
		if !ok {
			return
		}

		var req models.CreateEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		// Zero is a legal supply, so absence is checked on the pointer.
		if req.TokenSupply == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token_supply required"})
			return
		}

		entry, err := l.CreateEvent(c.Request.Context(), caller, req.Key, req.Name, req.Description, *req.TokenSupply)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.NewEventResponse(entry.Key, entry.Record))
	})

	r.GET("/events", func(c *gin.Context) {
		f := store.Filter{Creator: ledger.Identity(c.Query("creator"))}
		if v := c.Query("active"); v != "" {
			active, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "active must be a boolean"})
				return
			}
			f.ActiveOnly = active
		}

		entries, err := l.List(c.Request.Context(), f)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]models.EventResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, models.NewEventResponse(e.Key, e.Record))
		}
		c.JSON(http.StatusOK, gin.H{"events": out})
	})

	r.GET("/events/:key", func(c *gin.Context) {
		key := c.Param("key")
		rec, err := l.Get(c.Request.Context(), key)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.NewEventResponse(key, rec))
	})

	r.POST("/events/:key/claim", func(c *gin.Context) {
		caller, ok := auth.RequireCaller(c)
		if !ok {
			return
		}

		rec, receipt, err := l.Claim(c.Request.Context(), c.Param("key"), caller)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ClaimResponse{
			TokensClaimed: rec.TokensClaimed,
			Receipt:       receipt,
		})
	})

	r.POST("/events/:key/deactivate", func(c *gin.Context) {
		caller, ok := auth.RequireCaller(c)
		if !ok {
			return
		}

		key := c.Param("key")
		rec, err := l.Deactivate(c.Request.Context(), key, caller)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.NewEventResponse(key, rec))
	})
}
