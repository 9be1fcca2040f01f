package gmail

import "errors"

// Errors.
var (
	ErrMissingClientID     = errors.New("gmail: missing client ID")
	ErrMissingClientSecret = errors.New("gmail: missing client secret")
	ErrRequestFailed       = errors.New("gmail: request returned non-OK status")
	ErrDecodeFailed        = errors.New("gmail: failed to decode response")
	ErrNoSendAsIdentity    = errors.New("gmail: no send-as identities found for this mailbox")
)
