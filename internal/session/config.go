package session

import "time"

// Default timing values.
const (
	// DefaultReconnectInterval is the scheduled reconnect period (12h).
	DefaultReconnectInterval = 720 * time.Minute

	// DefaultHealthCheckInterval is the message-activity check period (1h).
	DefaultHealthCheckInterval = 60 * time.Minute

	// MinInterval is the floor for non-disabled timer intervals.
	MinInterval = 5 * time.Minute

	defaultConnectTimeout    = 30 * time.Second
	defaultStopTimeout       = 10 * time.Second
	defaultAckTimeout        = 20 * time.Second
	defaultSubscribeAttempts = 3
	defaultMaxBackoff        = 60 * time.Second
	defaultTopicPrefix       = "ep/heat_pump"
)

// Config controls Manager timing.
type Config struct {
	// ReconnectInterval is the scheduled reconnect period. 0 disables it;
	// any other value below MinInterval (negative included) is raised to MinInterval.
	ReconnectInterval time.Duration

	// HealthCheckInterval is the message-activity check period. 0 or
	// negative disables it; positive values below MinInterval are raised.
	HealthCheckInterval time.Duration

	// ConnectTimeout bounds the wait for the connection-success event.
	ConnectTimeout time.Duration

	// StopTimeout bounds the wait for a transport to stop.
	StopTimeout time.Duration

	// AckTimeout bounds subscribe and publish acknowledgements.
	AckTimeout time.Duration

	// SubscribeAttempts is how many times Subscribe tries to obtain a session.
	SubscribeAttempts int

	// MaxBackoff caps the health-check backoff delay.
	MaxBackoff time.Duration

	// TopicPrefix is the root of the device topics.
	TopicPrefix string
}

// DefaultConfig returns the standard timing configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectInterval:   DefaultReconnectInterval,
		HealthCheckInterval: DefaultHealthCheckInterval,
		ConnectTimeout:      defaultConnectTimeout,
		StopTimeout:         defaultStopTimeout,
		AckTimeout:          defaultAckTimeout,
		SubscribeAttempts:   defaultSubscribeAttempts,
		MaxBackoff:          defaultMaxBackoff,
		TopicPrefix:         defaultTopicPrefix,
	}
}

// ConfigFromMinutes returns DefaultConfig with the two timer intervals
// given in minutes, as they appear in configuration files.
func ConfigFromMinutes(reconnectMinutes, healthCheckMinutes int) Config {
	cfg := DefaultConfig()
	cfg.ReconnectInterval = time.Duration(reconnectMinutes) * time.Minute
	cfg.HealthCheckInterval = time.Duration(healthCheckMinutes) * time.Minute
	return cfg
}

// normalize applies the interval floors and fills zero-valued timeouts.
// It reports which intervals were raised to the floor.
func (c *Config) normalize() (reconnectRaised, healthRaised bool) {
	if c.ReconnectInterval != 0 && c.ReconnectInterval < MinInterval {
		c.ReconnectInterval = MinInterval
		reconnectRaised = true
	}
	switch {
	case c.HealthCheckInterval <= 0:
		c.HealthCheckInterval = 0
	case c.HealthCheckInterval < MinInterval:
		c.HealthCheckInterval = MinInterval
		healthRaised = true
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = defaultAckTimeout
	}
	if c.SubscribeAttempts <= 0 {
		c.SubscribeAttempts = defaultSubscribeAttempts
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = defaultMaxBackoff
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = defaultTopicPrefix
	}
	return reconnectRaised, healthRaised
}

// Backoff returns min(2^(failures-1) seconds, limit). It is zero for
// failures < 1.
func Backoff(failures int, limit time.Duration) time.Duration {
	if failures < 1 {
		return 0
	}
	shift := failures - 1
	if shift > 30 {
		return limit
	}
	d := time.Duration(1<<shift) * time.Second
	if d > limit {
		return limit
	}
	return d
}
