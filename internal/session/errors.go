package session

import "errors"

// Domain errors for the session package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrSubscriptionFailed is returned when a device topic cannot be
	// subscribed, either because no session could be established within
	// the attempt limit or because the broker rejected the request.
	ErrSubscriptionFailed = errors.New("session: subscription failed")

	// ErrPublishFailed is returned when a publish is not acknowledged.
	ErrPublishFailed = errors.New("session: publish failed")

	// ErrNotConnected is returned when no session object exists.
	ErrNotConnected = errors.New("session: not connected")

	// ErrDialFailed is returned when a session object could not be created
	// or started (credentials, endpoint presigning, client construction).
	ErrDialFailed = errors.New("session: dial failed")

	// ErrClosed is returned by operations on a closed Manager.
	ErrClosed = errors.New("session: manager closed")

	// ErrInvalidClientID classifies a connection failure caused by the
	// broker rejecting the client identifier. Transports wrap their
	// native error with it so the Manager can re-authenticate.
	ErrInvalidClientID = errors.New("session: client identifier rejected")
)
