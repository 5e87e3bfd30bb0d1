// Package session manages the long-lived pub/sub session to the vendor's
// managed broker.
//
// # Architecture
//
// A Manager owns exactly one Transport at a time, created through a
// Dialer. Transports report lifecycle events (attempting, success,
// failure, disconnection, stopped, message) on arbitrary goroutines;
// the Manager folds them into a small state machine:
//
//	uninitialized → connecting → connected | failed → stopped → connecting …
//
// A disconnection moves connected back to connecting while the transport
// retries; each failed retry is a failure. Events from a transport that
// has since been replaced are ignored.
//
// EnsureConnected, and therefore Subscribe and Publish, treat a failed
// transport as absent: it is stopped and a new one is dialled, with the
// tracked subscriptions restored.
//
// # Recovery
//
// Three paths lead to Reconnect, which always tears down the current
// session object before creating a new one:
//
//   - a scheduled timer (default every 12h)
//   - a health check (default every 1h) that fires when no message has
//     arrived for longer than its interval, backing off
//     min(2^(n-1), 60) seconds first when n consecutive failures are pending
//   - a connection failure classified as ErrInvalidClientID, which runs
//     the re-authentication hook first
//
// Non-zero intervals are floored at five minutes; zero disables a timer.
//
// # Usage
//
//	mgr := session.New(session.ConfigFromMinutes(720, 60), dialer, logger)
//	mgr.SetMessageHandler(func(topic string, payload []byte) { ... })
//	if err := mgr.EnsureConnected(ctx); err != nil { ... }
//	if err := mgr.Subscribe(ctx, deviceID); err != nil { ... }
//	mgr.StartTimers()
//	defer mgr.Close()
package session
