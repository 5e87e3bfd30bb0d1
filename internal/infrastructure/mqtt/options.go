package mqtt

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time paho spends on one connection attempt.
	defaultConnectTimeout = 30 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxReconnectInterval caps paho's backoff between automatic reconnects.
	maxReconnectInterval = time.Minute

	// protocolVersion311 is MQTT 3.1.1, the version AWS IoT Core speaks.
	protocolVersion311 = 4

	// qosAtLeastOnce is used for every subscribe and publish.
	qosAtLeastOnce byte = 1

	// maxPayloadSize is the AWS IoT Core message size limit (128KB).
	maxPayloadSize = 128 * 1024

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Options configures one broker session.
type Options struct {
	// BrokerURL is the full broker URL, e.g. a presigned
	// "wss://host/mqtt?X-Amz-..." address.
	BrokerURL string

	// ClientID identifies the session to the broker. It must be unique
	// per concurrent connection.
	ClientID string

	// KeepAlive is the MQTT keepalive interval. Zero uses 60s.
	KeepAlive time.Duration

	// ConnectTimeout bounds a single connection attempt. Zero uses 30s.
	ConnectTimeout time.Duration

	// TLSConfig overrides the TLS settings for ssl:// and wss:// brokers.
	TLSConfig *tls.Config
}

func (o Options) validate() error {
	if o.ClientID == "" {
		return fmt.Errorf("%w: client id is required", ErrInvalidOptions)
	}
	u, err := url.Parse(o.BrokerURL)
	if err != nil {
		return fmt.Errorf("%w: broker url: %w", ErrInvalidOptions, err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss":
	default:
		return fmt.Errorf("%w: unsupported broker scheme %q", ErrInvalidOptions, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: broker url has no host", ErrInvalidOptions)
	}
	return nil
}

// buildClientOptions creates paho options for one session.
//
// This configures:
//   - Broker URL and client ID
//   - Clean session mode (subscriptions are restored by Session)
//   - MQTT 3.1.1 only, without falling back to 3.1
//   - Auto-reconnect after an established connection drops, backing off
//     to at most maxReconnectInterval
//   - No connect retry, so a failed first attempt surfaces as an error
//   - Unordered delivery, so a slow handler cannot stall the network loop
//   - TLS 1.2 minimum for secure schemes
func buildClientOptions(o Options) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.BrokerURL)
	opts.SetClientID(o.ClientID)
	opts.SetCleanSession(true)

	opts.SetProtocolVersion(protocolVersion311)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(maxReconnectInterval)
	opts.SetConnectRetry(false)
	opts.SetOrderMatters(false)

	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	opts.SetConnectTimeout(connectTimeout)

	keepAlive := o.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	opts.SetKeepAlive(keepAlive)

	tlsConfig := o.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tlsMinVersion}
	}
	opts.SetTLSConfig(tlsConfig)

	return opts
}
