package ledger

import "errors"

// Every operation on the ledger resolves to a success value or one of
// these categories. Raw driver faults never escape uncategorized.
var (
	// ErrStoreUnavailable is a transport/connectivity/timeout fault
	// talking to the store. Safe to retry; never leaves partial state.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrNotFound is the expected "no such record" outcome.
	ErrNotFound = errors.New("not found")

	// ErrServiceNotFound means the service reference resolved to nothing.
	ErrServiceNotFound = errors.New("service not found")

	// ErrInvalidArgument is malformed date/time/id input, rejected before
	// any store access.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidContactInfo is an empty or placeholder contact field,
	// rejected before any store mutation.
	ErrInvalidContactInfo = errors.New("invalid contact info")

	// ErrSlotTaken means the atomic check-then-insert lost a race or the
	// slot was already occupied.
	ErrSlotTaken = errors.New("slot already booked")

	// ErrClosed means the requested date falls on a non-operating day.
	// Distinct from fully booked.
	ErrClosed = errors.New("closed on this day")
)
