// errors/auth_errors.go
package errors

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies why token verification failed. The kind maps to a
// stable machine-readable code; anything beyond the documented detail fields
// is never exposed to callers.
type AuthErrorKind string

const (
	AuthMissingToken   AuthErrorKind = "missing_token"
	AuthMalformed      AuthErrorKind = "malformed_token"
	AuthBadSignature   AuthErrorKind = "bad_signature"
	AuthExpired        AuthErrorKind = "token_expired"
	AuthNotYetValid    AuthErrorKind = "token_not_yet_valid"
	AuthBadIssuer      AuthErrorKind = "bad_issuer"
	AuthBadAudience    AuthErrorKind = "bad_audience"
	AuthKeyUnavailable AuthErrorKind = "key_unavailable"
)

// AuthError is the typed verification failure surfaced by the token verifier.
type AuthError struct {
	Kind AuthErrorKind
	// Detail carries the documented diagnostic fields only, e.g. the observed
	// aud/azp values for a bad_audience failure.
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Code returns the stable machine-readable error code
func (e *AuthError) Code() string {
	return string(e.Kind)
}

// NewAuthError creates an AuthError of the given kind
func NewAuthError(kind AuthErrorKind, detail string) *AuthError {
	return &AuthError{Kind: kind, Detail: detail}
}

// AsAuthError unwraps err into an *AuthError if possible
func AsAuthError(err error) (*AuthError, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

var (
	// ErrUnknownKey indicates the key set was fetched but does not contain the
	// requested key identifier.
	ErrUnknownKey = errors.New("signing key not found in key set")
	// ErrKeyFetch indicates the remote key set could not be retrieved.
	ErrKeyFetch = errors.New("failed to fetch key set")
)
