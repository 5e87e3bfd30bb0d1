package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInvalidOptions is returned when session options are incomplete.
	ErrInvalidOptions = errors.New("mqtt: invalid options")

	// ErrAlreadyStarted is returned when Start is called twice on one session.
	ErrAlreadyStarted = errors.New("mqtt: session already started")

	// ErrStopped is returned by operations on a stopped session.
	ErrStopped = errors.New("mqtt: session stopped")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrPayloadTooLarge is returned when a payload exceeds the broker limit.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrReconnectFailed is reported through OnConnectionFailure when an
	// automatic reconnect attempt does not succeed.
	ErrReconnectFailed = errors.New("mqtt: reconnect attempt failed")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
