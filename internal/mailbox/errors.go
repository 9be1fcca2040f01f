package mailbox

import "errors"

// Errors.
var (
	// ErrAuthRequired means no usable mailbox credential is stored; the
	// user must connect their mailbox.
	ErrAuthRequired = errors.New("mailbox: authorization required")

	// ErrAuthExpired means a stored credential stopped working mid-use and
	// has been invalidated; the user must re-authorize.
	ErrAuthExpired = errors.New("mailbox: authorization expired")

	// ErrStateNotFound means the handshake state token is unknown, either
	// never issued or already consumed.
	ErrStateNotFound = errors.New("mailbox: authorization state not found")

	// ErrStateExpired means the handshake state token outlived its
	// 10-minute window. The dangling state is cleared as a side effect.
	ErrStateExpired = errors.New("mailbox: authorization state expired")

	// ErrNoCredentialGranted means the grant exchange succeeded but the
	// provider issued no long-lived credential to store.
	ErrNoCredentialGranted = errors.New("mailbox: provider granted no long-lived credential")
)
