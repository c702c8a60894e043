package domain

import "errors"

var (
	// ErrInvalidTip rejects a tip that fails validation: non-positive
	// amount, unknown recipient type, order missing or not yet delivered,
	// or a completed tip already recorded for the same recipient type.
	ErrInvalidTip = errors.New("invalid tip")

	// ErrTipNotFound means no transaction exists with the given id.
	ErrTipNotFound = errors.New("tip not found")

	// ErrAlreadySettled guards a settlement callback arriving for a
	// transaction that is no longer pending.
	ErrAlreadySettled = errors.New("tip already settled")
)
