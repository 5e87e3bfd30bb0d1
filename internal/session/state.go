package session

import "time"

// State is the lifecycle state of the messaging session.
type State uint8

// Session states.
const (
	StateUninitialized State = iota
	StateConnecting
	StateConnected
	StateFailed
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reason labels why a reconnect was requested.
type Reason string

// Reconnect reasons.
const (
	ReasonScheduled       Reason = "scheduled"
	ReasonHealthCheck     Reason = "health_check"
	ReasonInvalidClientID Reason = "invalid_client_id"
	ReasonManual          Reason = "manual"
)

// Status is a point-in-time snapshot of the Manager.
type Status struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastMessageAt       time.Time `json:"last_message_at,omitzero"`
	Reconnects          int       `json:"reconnects"`
	Subscriptions       int       `json:"subscriptions"`
}
