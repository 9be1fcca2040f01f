package delivery

import "errors"

// Errors.
var (
	// ErrQuotaExceeded means the send would push the user past the daily
	// cap. Non-retryable until the next local day.
	ErrQuotaExceeded = errors.New("delivery: daily send quota exceeded")

	// ErrValidation means the campaign cannot be dispatched as stored:
	// malformed placeholder syntax, unknown placeholder keys, or a missing
	// required variable. Raised before any provider call.
	ErrValidation = errors.New("delivery: campaign failed validation")

	// ErrDeliveryFailed means every attempted recipient failed. The
	// campaign is reverted to draft so it can be corrected and retried.
	ErrDeliveryFailed = errors.New("delivery: all recipients failed")
)
