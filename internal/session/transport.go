package session

import (
	"context"
	"time"
)

// Events are the lifecycle callbacks a Transport delivers. They may be
// invoked on any goroutine. Nil fields are skipped by transports.
type Events struct {
	// OnAttemptingConnect fires before each connection attempt.
	OnAttemptingConnect func()

	// OnConnectionSuccess fires when the broker accepts the connection,
	// including after a transport-internal reconnect.
	OnConnectionSuccess func()

	// OnConnectionFailure fires when a connection attempt fails. Errors
	// caused by a rejected client identifier wrap ErrInvalidClientID.
	OnConnectionFailure func(err error)

	// OnDisconnection fires when an established connection drops.
	OnDisconnection func(err error)

	// OnStopped fires once the transport has been stopped.
	OnStopped func()

	// OnMessage fires for every message on a subscribed topic.
	OnMessage func(topic string, payload []byte)
}

// Transport is one pub/sub session object. Start returns once the
// connection attempt is under way; the outcome arrives through Events.
type Transport interface {
	Start() error
	Stop(timeout time.Duration) error
	Subscribe(topic string, timeout time.Duration) error
	Publish(topic string, payload []byte, timeout time.Duration) error
}

// Dialer creates transports. Credential acquisition for the managed
// broker happens inside Dial.
type Dialer interface {
	Dial(ctx context.Context, events Events) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, events Events) (Transport, error)

// Dial calls f(ctx, events).
func (f DialerFunc) Dial(ctx context.Context, events Events) (Transport, error) {
	return f(ctx, events)
}
