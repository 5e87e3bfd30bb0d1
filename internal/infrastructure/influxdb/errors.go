package influxdb

import "errors"

// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps the reason Connect could not reach the server.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrUnhealthy means the server answered the ping but reported itself not ready.
	ErrUnhealthy = errors.New("influxdb: server not healthy")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
