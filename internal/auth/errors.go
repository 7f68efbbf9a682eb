package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: resource conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = errors.New("auth: forbidden")

	// ErrInvalidToken indicates the token failed signature or claim validation.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// ForbiddenError is an authorization denial with a human-readable reason.
// The reason distinguishes missing business context, missing membership and
// insufficient permissions; the caller already authenticated, so exposing it
// aids debugging without leaking anything.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return "auth: forbidden: " + e.Reason }

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// Forbidden builds a ForbiddenError with the given reason.
func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}
