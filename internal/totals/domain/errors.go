package domain

import "errors"

var (
	// ErrUnexpectedState marks a structural precondition violated by
	// the caller, e.g. tax lines not joined on a finalized aggregate.
	// Never retried, never recovered locally.
	ErrUnexpectedState = errors.New("unexpected_state")

	// ErrInvalidData marks caller-supplied data that does not belong
	// to the aggregate, e.g. a refund for a foreign line item.
	ErrInvalidData = errors.New("invalid_data")
)
