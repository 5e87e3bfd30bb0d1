package hws

import "errors"

// Domain errors for the hws package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrClosed is returned by operations on a closed Client.
	ErrClosed = errors.New("hws: client closed")

	// ErrNotConnected is returned by Reconnect before Connect has succeeded.
	ErrNotConnected = errors.New("hws: not connected")
)
