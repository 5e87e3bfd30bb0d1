package heatpump

import (
	"errors"
	"fmt"
)

// Domain errors for the heatpump package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, heatpump.ErrDeviceNotFound) {
//	    // unknown id, nothing was sent
//	}
var (
	// ErrDeviceNotFound is returned when a device ID is not in the store.
	ErrDeviceNotFound = errors.New("heatpump: device not found")

	// ErrMalformedMessage is returned when an inbound envelope is not a
	// two-element [header, payload] JSON array.
	ErrMalformedMessage = errors.New("heatpump: malformed message")

	// ErrInvalidSample is returned when an energy sample lacks data or start_time.
	ErrInvalidSample = errors.New("heatpump: invalid energy sample")
)

// DecodeError reports a device's stored consumption document that is not valid JSON.
type DecodeError struct {
	DeviceID string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("heatpump: decoding consumption_data for device %s: %v", e.DeviceID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
