// Package mqtt provides the pub/sub session object for the Emerald HWS daemon.
//
// A Session wraps one paho client connected to the vendor's managed broker
// (AWS IoT Core over presigned WebSocket). It reports its lifecycle through
// session.Events and is driven by session.Manager, which decides when to
// create, replace and stop sessions.
//
// # Behaviour
//
//   - Start returns immediately; success and failure arrive as events
//   - A CONNACK "identifier rejected" wraps session.ErrInvalidClientID
//   - paho auto-reconnects dropped connections; tracked subscriptions are
//     restored on every connect (clean session)
//   - Each failed automatic reconnect is reported as ErrReconnectFailed
//     when paho begins the next attempt
//   - Subscribe and Publish use QoS 1 and wait for the acknowledgement
//   - Message handlers run with panic recovery
//
// # Usage
//
//	s, err := mqtt.New(mqtt.Options{
//	    BrokerURL: presignedURL,
//	    ClientID:  "emeraldhws-" + uuid.NewString(),
//	}, events)
//	if err != nil {
//	    return err
//	}
//	if err := s.Start(); err != nil {
//	    return err
//	}
//	defer s.Stop(10 * time.Second)
package mqtt
