package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
	"github.com/PratikDhanave/event-token-service/internal/models"
	"github.com/PratikDhanave/event-token-service/internal/store"
)

// statusFor maps ledger rejections onto HTTP statuses. Every rejection is
// permanent for that request, so none of them map to a retryable 5xx.
func statusFor(code ledger.Code) int {
	switch code {
	case ledger.CodeFieldTooLong, ledger.CodeInvalidIdentity, ledger.CodeInvalidArgument:
		return http.StatusBadRequest
	case ledger.CodeUnauthorized:
		return http.StatusForbidden
	case ledger.CodeNotFound:
		return http.StatusNotFound
	case ledger.CodeAllocationFailed, ledger.CodeEventInactive, ledger.CodeNoTokensLeft:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client with its ledger code, if it has one.
func writeError(c *gin.Context, err error) {
	if code, ok := ledger.CodeOf(err); ok {
		msg := code.Error()
		// These carry the offending field in their text.
		if code == ledger.CodeFieldTooLong || code == ledger.CodeInvalidArgument {
			msg = err.Error()
		}
		c.JSON(statusFor(code), models.ErrorResponse{Error: msg, Code: code.Name()})
		return
	}
	if errors.Is(err, store.ErrConflict) {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "event is busy, retry", Code: "Conflict"})
		return
	}
	slog.ErrorContext(c.Request.Context(), "request failed",
		"method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
}
