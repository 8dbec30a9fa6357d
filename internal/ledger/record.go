// Package ledger holds the event record state machine: a creator registers an
// event with a fixed token supply, anyone claims one unit per call until the
// supply runs out, and the creator may close the event early.
//
// The package does no locking. Callers (see internal/store) must serialize
// transitions against the same record.
package ledger

import (
	"time"
	"unicode/utf8"
)

// Byte budgets of the fixed record layout.
const (
	MaxIdentityLen    = 32
	MaxNameLen        = 100
	MaxDescriptionLen = 500
)

// Identity is an authenticated caller. Verification happens in the host; the
// ledger only compares identities.
type Identity string

// ParseIdentity validates that s fits the fixed identity slot.
func ParseIdentity(s string) (Identity, error) {
	if s == "" || len(s) > MaxIdentityLen || !utf8.ValidString(s) {
		return "", ErrInvalidIdentity
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return "", ErrInvalidIdentity
		}
	}
	return Identity(s), nil
}

func (id Identity) valid() bool {
	_, err := ParseIdentity(string(id))
	return err == nil
}

func (id Identity) String() string { return string(id) }

// Name is an event display name of at most MaxNameLen bytes.
type Name string

// NewName rejects, never truncates, names over budget.
func NewName(s string) (Name, error) {
	if len(s) > MaxNameLen {
		return "", &fieldError{field: "name", size: len(s), max: MaxNameLen}
	}
	return Name(s), nil
}

// Description is an event description of at most MaxDescriptionLen bytes.
type Description string

// NewDescription rejects, never truncates, descriptions over budget.
func NewDescription(s string) (Description, error) {
	if len(s) > MaxDescriptionLen {
		return "", &fieldError{field: "description", size: len(s), max: MaxDescriptionLen}
	}
	return Description(s), nil
}

// State is the derived lifecycle position of a record.
type State int

const (
	StateActive State = iota
	StateExhausted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventRecord is one distribution event.
type EventRecord struct {
	Creator       Identity
	Name          Name
	Description   Description
	TokenSupply   uint64
	TokensClaimed uint64
	IsActive      bool
	CreatedAt     time.Time
}

// Initialize builds a fresh record. Supply zero is legal and yields a record
// that is exhausted from the start.
func Initialize(creator Identity, name, description string, supply uint64, now time.Time) (EventRecord, error) {
	if err := Authorize(OpInitialize, creator, nil); err != nil {
		return EventRecord{}, err
	}
	n, err := NewName(name)
	if err != nil {
		return EventRecord{}, err
	}
	d, err := NewDescription(description)
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{
		Creator:       creator,
		Name:          n,
		Description:   d,
		TokenSupply:   supply,
		TokensClaimed: 0,
		IsActive:      true,
		CreatedAt:     now.UTC().Truncate(time.Second),
	}, nil
}

// Claim consumes one unit for caller and returns the new claimed count.
// The same identity may claim repeatedly while supply remains.
func (r *EventRecord) Claim(caller Identity) (uint64, error) {
	if err := Authorize(OpClaim, caller, r); err != nil {
		return r.TokensClaimed, err
	}
	r.TokensClaimed++
	return r.TokensClaimed, nil
}

// Deactivate closes the event. Repeating it is a no-op that still succeeds.
func (r *EventRecord) Deactivate(caller Identity) error {
	if err := Authorize(OpDeactivate, caller, r); err != nil {
		return err
	}
	r.IsActive = false
	return nil
}

// State reports where the record sits in its lifecycle.
func (r EventRecord) State() State {
	switch {
	case !r.IsActive:
		return StateClosed
	case r.TokensClaimed >= r.TokenSupply:
		return StateExhausted
	default:
		return StateActive
	}
}

// Remaining is the number of units still claimable while the event is active.
func (r EventRecord) Remaining() uint64 {
	if r.TokensClaimed >= r.TokenSupply {
		return 0
	}
	return r.TokenSupply - r.TokensClaimed
}
