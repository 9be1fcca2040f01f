package gmail

import "strings"

// AuthErrorKind classifies provider errors that indicate the stored
// credential is no longer usable. Anything that does not match is transient:
// the caller surfaces it and leaves the credential intact.
type AuthErrorKind int

const (
	AuthErrorNone AuthErrorKind = iota
	AuthErrorInvalidGrant
	AuthErrorRevoked
	AuthErrorExpired
	AuthErrorInsufficientScope
)

// String returns the kind's log-friendly name.
func (k AuthErrorKind) String() string {
	switch k {
	case AuthErrorInvalidGrant:
		return "invalid_grant"
	case AuthErrorRevoked:
		return "revoked"
	case AuthErrorExpired:
		return "expired"
	case AuthErrorInsufficientScope:
		return "insufficient_scope"
	default:
		return "none"
	}
}

// authFatalSignatures is the single source of truth for what counts as an
// authorization-fatal provider error. Signatures are matched as lowercase
// substrings of the full error chain, covering both OAuth token endpoint
// errors (invalid_grant, invalid_client) and API-level messages ("Token has
// been expired or revoked").
var authFatalSignatures = []struct {
	substr string
	kind   AuthErrorKind
}{
	{"invalid_grant", AuthErrorInvalidGrant},
	{"invalid_client", AuthErrorInvalidGrant},
	{"has been revoked", AuthErrorRevoked},
	{"access revoked", AuthErrorRevoked},
	{"revoked", AuthErrorRevoked},
	{"has been expired", AuthErrorExpired},
	{"token expired", AuthErrorExpired},
	{"insufficient", AuthErrorInsufficientScope},
}

// ClassifyAuthError maps an error onto the closed AuthErrorKind set.
// Returns AuthErrorNone for nil errors and for transient failures such as
// timeouts and 5xx responses.
func ClassifyAuthError(err error) AuthErrorKind {
	if err == nil {
		return AuthErrorNone
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range authFatalSignatures {
		if strings.Contains(msg, sig.substr) {
			return sig.kind
		}
	}
	return AuthErrorNone
}

// IsAuthFatal reports whether the error means the credential must be
// invalidated and the user prompted to re-authorize.
func IsAuthFatal(err error) bool {
	return ClassifyAuthError(err) != AuthErrorNone
}
