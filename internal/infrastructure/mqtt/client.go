package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/emerald-hws/internal/session"
)

// Session wraps a paho client as one pub/sub session object.
//
// Start begins the connection asynchronously; the outcome and every later
// lifecycle change are reported through session.Events, including each
// failed attempt of paho's automatic reconnect. Subscriptions are tracked
// and restored whenever paho re-establishes the connection.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - A Session is single-use: once stopped it cannot be restarted.
type Session struct {
	client pahomqtt.Client
	opts   Options
	events session.Events

	// subscriptions tracks topics for re-subscription on reconnect.
	subscriptions map[string]struct{}
	subMu         sync.RWMutex

	started  atomic.Bool
	stopping chan struct{}

	// reconnecting is set by each automatic reconnect attempt and cleared
	// by a successful connect.
	reconnecting atomic.Bool
	stopOnce sync.Once

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// clientFactory builds the underlying paho client. Replaced in tests.
type clientFactory func(*pahomqtt.ClientOptions) pahomqtt.Client

// New creates an unstarted Session.
//
// Parameters:
//   - opts: Broker URL, client ID and connection settings
//   - events: Lifecycle callbacks; nil fields are skipped
//
// Returns:
//   - *Session: Session ready to Start
//   - error: ErrInvalidOptions if the broker URL or client ID is unusable
func New(opts Options, events session.Events) (*Session, error) {
	return newSession(opts, events, pahomqtt.NewClient)
}

func newSession(opts Options, events session.Events, factory clientFactory) (*Session, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		opts:          opts,
		events:        events,
		subscriptions: make(map[string]struct{}),
		stopping:      make(chan struct{}),
	}

	po := buildClientOptions(opts)
	po.SetConnectionAttemptHandler(func(_ *url.URL, cfg *tls.Config) *tls.Config {
		s.handleAttempt()
		return cfg
	})
	po.SetOnConnectHandler(func(_ pahomqtt.Client) {
		s.handleConnect()
	})
	po.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		s.handleReconnecting()
	})
	po.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.handleConnectionLost(err)
	})
	po.SetDefaultPublishHandler(s.wrapHandler())

	s.client = factory(po)
	return s, nil
}

// ClientID returns the identifier the session connects with.
func (s *Session) ClientID() string {
	return s.opts.ClientID
}

// Start begins connecting and returns immediately. A failed attempt is
// reported through OnConnectionFailure; an identifier rejection wraps
// session.ErrInvalidClientID.
func (s *Session) Start() error {
	if s.isStopping() {
		return ErrStopped
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	token := s.client.Connect()
	go s.awaitConnect(token)
	return nil
}

func (s *Session) awaitConnect(token pahomqtt.Token) {
	select {
	case <-token.Done():
	case <-s.stopping:
		return
	}
	if err := token.Error(); err != nil && !s.isStopping() {
		s.reportFailure(classifyConnectError(err))
	}
}

// classifyConnectError marks broker identifier rejections so the session
// manager can re-authenticate before reconnecting.
func classifyConnectError(err error) error {
	if errors.Is(err, packets.ErrorRefusedIDRejected) {
		return fmt.Errorf("%w: %w", session.ErrInvalidClientID, err)
	}
	return err
}

// handleAttempt is called before each connection attempt, including
// paho's internal reconnects.
func (s *Session) handleAttempt() {
	if fn := s.events.OnAttemptingConnect; fn != nil {
		fn()
	}
}

// handleReconnecting is called before each automatic reconnect attempt.
// paho does not report failed reconnect attempts, so a failure is
// reported when the next attempt begins without a connect in between.
func (s *Session) handleReconnecting() {
	if s.reconnecting.Swap(true) && !s.isStopping() {
		s.reportFailure(ErrReconnectFailed)
	}
}

func (s *Session) reportFailure(err error) {
	if fn := s.events.OnConnectionFailure; fn != nil {
		fn(err)
	}
}

// handleConnect is called when the connection is established.
func (s *Session) handleConnect() {
	s.reconnecting.Store(false)
	s.restoreSubscriptions()

	if fn := s.events.OnConnectionSuccess; fn != nil {
		fn()
	}
}

// handleConnectionLost is called when an established connection drops.
func (s *Session) handleConnectionLost(err error) {
	if fn := s.events.OnDisconnection; fn != nil {
		fn(err)
	}

	// paho runs the lost and connect handlers on separate goroutines, so
	// a fast reconnect may already have been reported.
	if s.client.IsConnectionOpen() {
		if fn := s.events.OnConnectionSuccess; fn != nil {
			fn()
		}
	}
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (s *Session) restoreSubscriptions() {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for topic := range s.subscriptions {
		// Re-subscribe (completion is not awaited inside the connect handler)
		s.client.Subscribe(topic, qosAtLeastOnce, s.wrapHandler())
	}
}

// Stop disconnects from the broker, waiting at most timeout for pending
// work to drain. OnStopped fires once, even if the wait times out.
func (s *Session) Stop(timeout time.Duration) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopping)

		quiesce := uint(defaultDisconnectQuiesce)
		if ms := timeout.Milliseconds(); ms >= 0 && ms < defaultDisconnectQuiesce {
			quiesce = uint(ms)
		}

		done := make(chan struct{})
		go func() {
			s.client.Disconnect(quiesce)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("%w: stop after %v", ErrTimeout, timeout)
		}

		if fn := s.events.OnStopped; fn != nil {
			fn()
		}
	})
	return err
}

func (s *Session) isStopping() bool {
	select {
	case <-s.stopping:
		return true
	default:
		return false
	}
}

// Subscribe registers the session for messages on topic at QoS 1 and
// waits up to timeout for the broker's acknowledgement. The topic is
// tracked for restoration whether or not the acknowledgement arrives.
func (s *Session) Subscribe(topic string, timeout time.Duration) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if s.isStopping() {
		return ErrStopped
	}

	s.subMu.Lock()
	s.subscriptions[topic] = struct{}{}
	s.subMu.Unlock()

	token := s.client.Subscribe(topic, qosAtLeastOnce, s.wrapHandler())
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %s: %w after %v", ErrSubscribeFailed, topic, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// Publish sends payload to topic at QoS 1 and waits up to timeout for
// the acknowledgement.
func (s *Session) Publish(topic string, payload []byte, timeout time.Duration) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d bytes exceeds maximum %d", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}
	if s.isStopping() {
		return ErrStopped
	}

	token := s.client.Publish(topic, qosAtLeastOnce, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: %s: %w after %v", ErrPublishFailed, topic, ErrTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// SubscriptionCount returns the number of tracked subscriptions.
func (s *Session) SubscriptionCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subscriptions)
}

// SetLogger sets a logger for panic logging.
// If not set, handler panics are recovered silently.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// wrapHandler forwards messages to OnMessage with panic recovery.
func (s *Session) wrapHandler() pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := s.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if fn := s.events.OnMessage; fn != nil {
			fn(msg.Topic(), msg.Payload())
		}
	}
}
