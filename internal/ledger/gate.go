package ledger

// Op names a record transition.
type Op int

const (
	OpInitialize Op = iota
	OpClaim
	OpDeactivate
)

func (o Op) String() string {
	switch o {
	case OpInitialize:
		return "initialize"
	case OpClaim:
		return "claim"
	case OpDeactivate:
		return "deactivate"
	default:
		return "unknown"
	}
}

// Authorize is the capability gate shared by every transition. It checks the
// caller and the record's current state and never mutates rec.
// rec is nil for OpInitialize; slot occupancy is the store's concern.
// Deactivation compares against the creator first, so any identity other
// than the creator, malformed or not, is Unauthorized.
func Authorize(op Op, caller Identity, rec *EventRecord) error {
	if op == OpDeactivate {
		if rec == nil {
			return ErrNotFound
		}
		if caller != rec.Creator {
			return ErrUnauthorized
		}
		return nil
	}
	if !caller.valid() {
		return ErrInvalidIdentity
	}
	switch op {
	case OpInitialize:
		return nil
	case OpClaim:
		if rec == nil {
			return ErrNotFound
		}
		if !rec.IsActive {
			return ErrEventInactive
		}
		if rec.TokensClaimed >= rec.TokenSupply {
			return ErrNoTokensLeft
		}
		return nil
	default:
		return ErrUnauthorized
	}
}
