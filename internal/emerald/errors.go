package emerald

import (
	"errors"
	"fmt"
)

// Domain errors for the emerald package.
//
// Check with errors.Is; the *APIError carrying the response details
// wraps one of these:
//
//	var apiErr *emerald.APIError
//	if errors.As(err, &apiErr) && errors.Is(err, emerald.ErrAuthentication) {
//	    log.Println(apiErr.Message)
//	}
var (
	// ErrAuthentication is returned when sign-in is rejected or cannot be completed.
	ErrAuthentication = errors.New("emerald: authentication failed")

	// ErrInventory is returned when the property list cannot be fetched.
	ErrInventory = errors.New("emerald: inventory fetch failed")

	// ErrEmptyInventory is returned when the account has no heat pumps.
	ErrEmptyInventory = errors.New("emerald: no heat pumps on account")
)

// APIError describes a vendor API call that signalled failure.
type APIError struct {
	// Op is the operation, "sign-in" or "property list".
	Op string

	// StatusCode is the HTTP status.
	StatusCode int

	// Code and Message are the vendor's body fields, when present.
	Code    int
	Message string

	// Body is the raw response body.
	Body string

	kind error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "no message"
	}
	return fmt.Sprintf("%v: %s: http %d, code %d: %s", e.kind, e.Op, e.StatusCode, e.Code, msg)
}

// Unwrap returns ErrAuthentication or ErrInventory.
func (e *APIError) Unwrap() error {
	return e.kind
}
