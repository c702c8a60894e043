package domain

import "errors"

var (
	// ErrInvalidOrder rejects malformed creation input. Not retryable.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInvalidTransition rejects an edge that is not in the transition
	// table, including duplicate requests targeting the current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrUnauthorizedActor rejects a legal edge driven by the wrong role.
	ErrUnauthorizedActor = errors.New("actor not permitted")

	// ErrAlreadyTerminal guards mutations of delivered or cancelled orders.
	// Distinct from ErrInvalidTransition so retrying clients can treat it
	// as a no-op if they choose to.
	ErrAlreadyTerminal = errors.New("order already terminal")

	// ErrVersionConflict means the order changed between the caller's read
	// and this write. The request is rejected, never silently overwritten.
	ErrVersionConflict = errors.New("order version conflict")

	// ErrNotFound means no order exists with the given id.
	ErrNotFound = errors.New("order not found")
)
