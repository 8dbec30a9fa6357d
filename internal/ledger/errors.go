package ledger

import (
	"errors"
	"fmt"
)

// Code is a typed rejection reason. Every Code is itself an error, so callers
// match with errors.Is(err, ledger.ErrNoTokensLeft) even through wrapping.
type Code uint32

// Program error codes. The numbering of the three transition errors matches
// the on-ledger program so clients can share one table.
const (
	CodeEventInactive Code = 6000
	CodeNoTokensLeft  Code = 6001
	CodeUnauthorized  Code = 6002

	CodeFieldTooLong     Code = 6100
	CodeAllocationFailed Code = 6101
	CodeNotFound         Code = 6102
	CodeInvalidIdentity  Code = 6103
	CodeInvalidArgument  Code = 6104
)

var (
	ErrEventInactive    error = CodeEventInactive
	ErrNoTokensLeft     error = CodeNoTokensLeft
	ErrUnauthorized     error = CodeUnauthorized
	ErrFieldTooLong     error = CodeFieldTooLong
	ErrAllocationFailed error = CodeAllocationFailed
	ErrNotFound         error = CodeNotFound
	ErrInvalidIdentity  error = CodeInvalidIdentity
	ErrInvalidArgument  error = CodeInvalidArgument
)

var codeMessages = map[Code]string{
	CodeEventInactive:    "Event is not active",
	CodeNoTokensLeft:     "No tokens left to claim",
	CodeUnauthorized:     "Unauthorized operation",
	CodeFieldTooLong:     "Field exceeds its maximum length",
	CodeAllocationFailed: "Event record could not be allocated",
	CodeNotFound:         "Event record not found",
	CodeInvalidIdentity:  "Caller identity is missing or malformed",
	CodeInvalidArgument:  "Invalid argument",
}

func (c Code) Error() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("ledger error %d", uint32(c))
}

// Name returns the short identifier used on the wire, e.g. "NoTokensLeft".
func (c Code) Name() string {
	switch c {
	case CodeEventInactive:
		return "EventInactive"
	case CodeNoTokensLeft:
		return "NoTokensLeft"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeFieldTooLong:
		return "FieldTooLong"
	case CodeAllocationFailed:
		return "AllocationFailed"
	case CodeNotFound:
		return "NotFound"
	case CodeInvalidIdentity:
		return "InvalidIdentity"
	case CodeInvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// CodeOf extracts the Code carried by err, if any.
func CodeOf(err error) (Code, bool) {
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return 0, false
}

// fieldError reports which bounded field overflowed.
type fieldError struct {
	field string
	size  int
	max   int
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s is %d bytes, max %d: %s", e.field, e.size, e.max, CodeFieldTooLong)
}

func (e *fieldError) Unwrap() error { return CodeFieldTooLong }

// InvalidArgument rejects a malformed request parameter that is not a
// record field.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// AllocationError wraps the host's reason for failing to materialize a record slot.
func AllocationError(cause error) error {
	if cause == nil {
		return ErrAllocationFailed
	}
	return fmt.Errorf("%w: %w", ErrAllocationFailed, cause)
}
