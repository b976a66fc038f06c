// errors/policy_errors.go
package errors

import "errors"

var (
	ErrInsufficientRole = errors.New("insufficient role")
	ErrDenyByPolicy     = errors.New("denied by policy")
	ErrInternalServer   = errors.New("internal server error")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidQueryData = errors.New("invalid query data")
)
