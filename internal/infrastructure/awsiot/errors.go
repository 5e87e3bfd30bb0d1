package awsiot

import "errors"

// Domain-specific errors for AWS IoT session setup.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrIdentity is returned when Cognito does not issue an identity.
	ErrIdentity = errors.New("awsiot: identity unavailable")

	// ErrCredentials is returned when Cognito does not issue credentials
	// for the identity.
	ErrCredentials = errors.New("awsiot: credentials unavailable")

	// ErrPresign is returned when the WebSocket URL cannot be signed.
	ErrPresign = errors.New("awsiot: presigning failed")
)
