// errors/federation_errors.go
package errors

import (
	"errors"
	"fmt"
)

// FederationErrorKind classifies a backend endpoint failure
type FederationErrorKind string

const (
	FederationUnreachable FederationErrorKind = "endpoint_unreachable"
	FederationTimeout     FederationErrorKind = "endpoint_timeout"
	FederationBadStatus   FederationErrorKind = "endpoint_bad_status"
	FederationBadResults  FederationErrorKind = "endpoint_bad_results"
)

// FederationError reports the failure of one backend endpoint. Any endpoint
// failing fails the whole aggregate call: silently dropping a site's rows
// would make the merged answer misleading about completeness.
type FederationError struct {
	Endpoint string
	Kind     FederationErrorKind
	Err      error
}

func (e *FederationError) Error() string {
	return fmt.Sprintf("endpoint %s: %s: %v", e.Endpoint, e.Kind, e.Err)
}

func (e *FederationError) Unwrap() error {
	return e.Err
}

// Code returns the stable machine-readable error code
func (e *FederationError) Code() string {
	return string(e.Kind)
}

// NewFederationError creates a FederationError for the named endpoint
func NewFederationError(endpoint string, kind FederationErrorKind, err error) *FederationError {
	return &FederationError{Endpoint: endpoint, Kind: kind, Err: err}
}

// AsFederationError unwraps err into a *FederationError if possible
func AsFederationError(err error) (*FederationError, bool) {
	var fedErr *FederationError
	if errors.As(err, &fedErr) {
		return fedErr, true
	}
	return nil, false
}

// ErrRecordNotFound indicates a point lookup matched no endpoint. This is a
// non-error outcome at the HTTP layer (200 with reason not_found).
var ErrRecordNotFound = errors.New("record not found at any endpoint")
