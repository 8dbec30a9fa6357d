package models

import (
	"time"

	"github.com/PratikDhanave/event-token-service/internal/ledger"
	"github.com/PratikDhanave/event-token-service/internal/store"
)

// CreateEventRequest is the POST /events payload.
// key is optional; the server assigns a UUID when it is empty.
type CreateEventRequest struct {
	Key         string  `json:"key,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	TokenSupply *uint64 `json:"token_supply"`
}

// EventResponse is the wire form of one event record.
type EventResponse struct {
	Key           string    `json:"key"`
	Creator       string    `json:"creator"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	TokenSupply   uint64    `json:"token_supply"`
	TokensClaimed uint64    `json:"tokens_claimed"`
	Remaining     uint64    `json:"remaining"`
	IsActive      bool      `json:"is_active"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewEventResponse renders rec stored under key.
func NewEventResponse(key string, rec ledger.EventRecord) EventResponse {
	return EventResponse{
		Key:           key,
		Creator:       string(rec.Creator),
		Name:          string(rec.Name),
		Description:   string(rec.Description),
		TokenSupply:   rec.TokenSupply,
		TokensClaimed: rec.TokensClaimed,
		Remaining:     rec.Remaining(),
		IsActive:      rec.IsActive,
		State:         rec.State().String(),
		CreatedAt:     rec.CreatedAt,
	}
}

// ClaimResponse is returned by POST /events/:key/claim.
type ClaimResponse struct {
	TokensClaimed uint64        `json:"tokens_claimed"`
	Receipt       store.Receipt `json:"receipt"`
}

// ErrorResponse carries a ledger error code when one applies.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
