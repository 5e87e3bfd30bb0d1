package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler receives every inbound message.
type MessageHandler func(topic string, payload []byte)

// ReauthFunc obtains fresh vendor credentials after the broker rejects
// the client identifier.
type ReauthFunc func(ctx context.Context) error

// Manager owns the pub/sub session object and drives its lifecycle:
// initial connect, scheduled and health-triggered reconnects, capped
// exponential backoff and subscription restore.
//
// Lock discipline:
//   - sessionMu serialises transport create/stop/replace and the
//     subscribe/publish calls that need the current transport.
//   - stateMu guards state, counters and the ready signal. Transport
//     callbacks only ever take stateMu.
//   - Neither lock is held while calling the message handler.
//
// Thread Safety: All public methods are safe for concurrent use.
type Manager struct {
	cfg    Config
	topics Topics
	dialer Dialer
	logger Logger

	sessionMu sync.Mutex
	transport Transport

	// generation identifies the current transport. Events from older
	// generations are ignored.
	generation atomic.Uint64

	stateMu    sync.Mutex
	state      State
	failures   int
	reconnects int
	ready      chan struct{} // closed on connection success, nil once signalled

	subMu         sync.RWMutex
	subscriptions map[string]struct{}

	// lastMessage is the UnixNano time of the last inbound message, 0 if none.
	lastMessage atomic.Int64

	hooksMu   sync.RWMutex
	onMessage MessageHandler
	reauth    ReauthFunc

	recovering atomic.Bool

	// Injectable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	ctx        context.Context
	cancel     context.CancelFunc
	lifeMu     sync.Mutex
	closed     bool
	wg         sync.WaitGroup
	timersOnce sync.Once
	closeOnce  sync.Once
}

// New creates a Manager. Intervals outside the allowed range are
// normalised and a warning is logged for each one raised to MinInterval.
func New(cfg Config, dialer Dialer, logger Logger) *Manager {
	if logger == nil {
		logger = noopLogger{}
	}

	reconnectRaised, healthRaised := cfg.normalize()
	if reconnectRaised {
		logger.Warn("connection timeout too short, using minimum", "minimum", MinInterval)
	}
	if healthRaised {
		logger.Warn("health check interval too short, using minimum", "minimum", MinInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:           cfg,
		topics:        Topics{Prefix: cfg.TopicPrefix},
		dialer:        dialer,
		logger:        logger,
		subscriptions: make(map[string]struct{}),
		now:           time.Now,
		sleep:         sleepContext,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Config returns the normalised configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Topics returns the topic builder in use.
func (m *Manager) Topics() Topics {
	return m.topics
}

// SetMessageHandler sets the callback for inbound messages.
func (m *Manager) SetMessageHandler(fn MessageHandler) {
	m.hooksMu.Lock()
	m.onMessage = fn
	m.hooksMu.Unlock()
}

// SetReauthenticate sets the hook run before reconnecting after the
// broker rejects the client identifier.
func (m *Manager) SetReauthenticate(fn ReauthFunc) {
	m.hooksMu.Lock()
	m.reauth = fn
	m.hooksMu.Unlock()
}

// =============================================================================
// Connection lifecycle
// =============================================================================

// EnsureConnected creates and starts a session object if there is no
// active one, then waits up to ConnectTimeout for the connection-success
// event. A session object in the failed state is stopped and replaced.
//
// A timeout is logged and is not an error: the connection may still
// complete asynchronously. Returns ErrDialFailed when the session object
// cannot be created or started, ErrClosed after Close.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}

	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	// Close may have stopped the transport while we waited for the lock.
	if m.isClosed() {
		return ErrClosed
	}

	if m.activeLocked() != nil {
		return nil
	}
	replacing := m.transport != nil
	if replacing {
		m.logger.Info("replacing failed session")
		m.stopLocked()
	}

	ready, err := m.startLocked(ctx)
	if err != nil {
		return err
	}
	m.awaitReady(ctx, ready)
	if replacing {
		m.restoreSubscriptionsLocked()
	}
	return nil
}

// Reconnect tears down the current session object (if any), starts a
// new one, waits for it to connect and restores every tracked
// subscription. Concurrent calls are serialised.
func (m *Manager) Reconnect(ctx context.Context, reason Reason) error {
	if m.isClosed() {
		return ErrClosed
	}

	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if m.isClosed() {
		return ErrClosed
	}

	m.logger.Info("reconnecting", "reason", string(reason))

	m.stopLocked()

	m.stateMu.Lock()
	m.reconnects++
	m.stateMu.Unlock()

	ready, err := m.startLocked(ctx)
	if err != nil {
		return err
	}
	m.awaitReady(ctx, ready)
	m.restoreSubscriptionsLocked()
	return nil
}

// startLocked dials and starts a new transport. Caller must hold sessionMu.
func (m *Manager) startLocked(ctx context.Context) (<-chan struct{}, error) {
	gen := m.generation.Add(1)
	ready := make(chan struct{})

	m.stateMu.Lock()
	m.state = StateConnecting
	m.ready = ready
	m.stateMu.Unlock()

	t, err := m.dialer.Dial(ctx, m.eventsFor(gen))
	if err != nil {
		m.handleFailure(gen, err)
		return nil, fmt.Errorf("%w: %w", ErrDialFailed, err)
	}
	if err := t.Start(); err != nil {
		m.handleFailure(gen, err)
		return nil, fmt.Errorf("%w: starting session: %w", ErrDialFailed, err)
	}

	m.transport = t
	return ready, nil
}

// stopLocked stops and discards the current transport. A stop that does
// not complete within StopTimeout is logged and abandoned.
// Caller must hold sessionMu.
func (m *Manager) stopLocked() {
	old := m.transport
	if old == nil {
		return
	}

	// Invalidate before stopping so the old transport's teardown events are ignored.
	m.generation.Add(1)
	m.transport = nil

	m.stateMu.Lock()
	m.state = StateStopped
	m.closeReadyLocked()
	m.stateMu.Unlock()

	if err := old.Stop(m.cfg.StopTimeout); err != nil {
		m.logger.Warn("session did not stop cleanly", "timeout", m.cfg.StopTimeout, "error", err)
	}
}

// awaitReady blocks until ready closes, ConnectTimeout elapses, or ctx
// or the Manager is cancelled.
func (m *Manager) awaitReady(ctx context.Context, ready <-chan struct{}) {
	timer := time.NewTimer(m.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-timer.C:
		m.logger.Warn("timed out waiting for connection, continuing", "timeout", m.cfg.ConnectTimeout)
	case <-ctx.Done():
	case <-m.ctx.Done():
	}
}

// activeTransport returns the current transport unless it has failed.
func (m *Manager) activeTransport() Transport {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	return m.activeLocked()
}

// activeLocked returns the current transport, or nil if there is none or
// its last connection attempt failed. Caller must hold sessionMu.
func (m *Manager) activeLocked() Transport {
	if m.transport == nil {
		return nil
	}
	m.stateMu.Lock()
	failed := m.state == StateFailed
	m.stateMu.Unlock()
	if failed {
		return nil
	}
	return m.transport
}

// =============================================================================
// Transport events
// =============================================================================

func (m *Manager) eventsFor(gen uint64) Events {
	return Events{
		OnAttemptingConnect: func() {
			m.logger.Debug("attempting to connect", "generation", gen)
		},
		OnConnectionSuccess: func() {
			m.handleSuccess(gen)
		},
		OnConnectionFailure: func(err error) {
			m.handleFailure(gen, err)
		},
		OnDisconnection: func(err error) {
			m.handleDisconnection(gen, err)
		},
		OnStopped: func() {
			m.logger.Debug("session stopped", "generation", gen)
		},
		OnMessage: m.handleMessage,
	}
}

func (m *Manager) isCurrent(gen uint64) bool {
	return m.generation.Load() == gen
}

func (m *Manager) handleSuccess(gen uint64) {
	if !m.isCurrent(gen) {
		m.logger.Debug("ignoring connection success from stale session", "generation", gen)
		return
	}

	m.stateMu.Lock()
	m.state = StateConnected
	m.failures = 0
	m.closeReadyLocked()
	m.stateMu.Unlock()

	m.logger.Info("session connected")
}

func (m *Manager) handleFailure(gen uint64, err error) {
	if !m.isCurrent(gen) {
		m.logger.Debug("ignoring connection failure from stale session", "generation", gen, "error", err)
		return
	}

	m.stateMu.Lock()
	m.state = StateFailed
	m.failures++
	failures := m.failures
	m.closeReadyLocked()
	m.stateMu.Unlock()

	m.logger.Info("connection failed", "consecutive_failures", failures, "error", err)

	if errors.Is(err, ErrInvalidClientID) {
		m.recoverClientID()
	}
}

// handleDisconnection moves a connected session back to connecting while
// the session object retries on its own.
func (m *Manager) handleDisconnection(gen uint64, err error) {
	if !m.isCurrent(gen) {
		m.logger.Debug("ignoring disconnection from stale session", "generation", gen)
		return
	}

	m.stateMu.Lock()
	if m.state == StateConnected {
		m.state = StateConnecting
	}
	m.stateMu.Unlock()

	m.logger.Info("disconnected", "error", err)
}

// recoverClientID re-authenticates and reconnects on a tracked
// goroutine. Only one recovery runs at a time.
func (m *Manager) recoverClientID() {
	if !m.recovering.CompareAndSwap(false, true) {
		return
	}

	started := m.goTracked(func(ctx context.Context) {
		defer m.recovering.Store(false)

		m.hooksMu.RLock()
		reauth := m.reauth
		m.hooksMu.RUnlock()

		if reauth != nil {
			if err := reauth(ctx); err != nil {
				m.logger.Error("re-authentication after client id rejection failed", "error", err)
				return
			}
		}
		if err := m.Reconnect(ctx, ReasonInvalidClientID); err != nil && !errors.Is(err, ErrClosed) {
			m.logger.Error("reconnect after client id rejection failed", "error", err)
		}
	})
	if !started {
		m.recovering.Store(false)
	}
}

func (m *Manager) handleMessage(topic string, payload []byte) {
	m.lastMessage.Store(m.now().UnixNano())
	m.logger.Debug("message received", "topic", topic, "bytes", len(payload))

	m.hooksMu.RLock()
	fn := m.onMessage
	m.hooksMu.RUnlock()

	if fn != nil {
		fn(topic, payload)
	}
}

// closeReadyLocked signals waiters once. Caller must hold stateMu.
func (m *Manager) closeReadyLocked() {
	if m.ready != nil {
		close(m.ready)
		m.ready = nil
	}
}

// =============================================================================
// Subscribe / Publish
// =============================================================================

// Subscribe subscribes to the device's from-gateway topic and tracks it
// for restoration after reconnects.
//
// When no active session object exists (none yet, or the last attempt
// failed), EnsureConnected is called before each of up to
// SubscribeAttempts attempts. Exhausting them, or a rejected
// subscription, returns ErrSubscriptionFailed.
func (m *Manager) Subscribe(ctx context.Context, deviceID string) error {
	topic := m.topics.FromGateway(deviceID)

	var lastErr error
	for attempt := 1; attempt <= m.cfg.SubscribeAttempts; attempt++ {
		t := m.activeTransport()
		if t == nil {
			if err := m.EnsureConnected(ctx); err != nil {
				lastErr = err
				if errors.Is(err, ErrClosed) {
					break
				}
				m.logger.Warn("no session for subscribe", "topic", topic, "attempt", attempt, "error", err)
				continue
			}
			if t = m.activeTransport(); t == nil {
				lastErr = ErrNotConnected
				continue
			}
		}

		m.track(topic)
		if err := t.Subscribe(topic, m.cfg.AckTimeout); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSubscriptionFailed, topic, err)
		}
		m.logger.Debug("subscribed", "topic", topic)
		return nil
	}

	if lastErr == nil {
		lastErr = ErrNotConnected
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrSubscriptionFailed, topic, m.cfg.SubscribeAttempts, lastErr)
}

// Publish sends payload to the device's to-gateway topic at least once,
// waiting up to AckTimeout for the acknowledgement.
func (m *Manager) Publish(ctx context.Context, deviceID string, payload []byte) error {
	topic := m.topics.ToGateway(deviceID)

	if err := m.EnsureConnected(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	t := m.activeTransport()
	if t == nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, ErrNotConnected)
	}
	if err := t.Publish(topic, payload, m.cfg.AckTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

func (m *Manager) track(topic string) {
	m.subMu.Lock()
	m.subscriptions[topic] = struct{}{}
	m.subMu.Unlock()
}

func (m *Manager) trackedTopics() []string {
	m.subMu.RLock()
	topics := make([]string, 0, len(m.subscriptions))
	for t := range m.subscriptions {
		topics = append(topics, t)
	}
	m.subMu.RUnlock()
	sort.Strings(topics)
	return topics
}

// restoreSubscriptionsLocked re-subscribes every tracked topic on the
// current transport, unless it has already failed. Caller must hold
// sessionMu.
func (m *Manager) restoreSubscriptionsLocked() {
	t := m.activeLocked()
	if t == nil {
		return
	}
	for _, topic := range m.trackedTopics() {
		if err := t.Subscribe(topic, m.cfg.AckTimeout); err != nil {
			m.logger.Warn("restoring subscription failed", "topic", topic, "error", err)
		}
	}
}

// =============================================================================
// Status / Close
// =============================================================================

// Status returns a snapshot of the session.
func (m *Manager) Status() Status {
	m.stateMu.Lock()
	st := Status{
		State:               m.state,
		ConsecutiveFailures: m.failures,
		Reconnects:          m.reconnects,
	}
	m.stateMu.Unlock()

	if ns := m.lastMessage.Load(); ns != 0 {
		st.LastMessageAt = time.Unix(0, ns)
	}
	m.subMu.RLock()
	st.Subscriptions = len(m.subscriptions)
	m.subMu.RUnlock()
	return st
}

// Close stops the timers and any recovery in progress, then stops the
// session object. It is safe to call more than once.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.lifeMu.Lock()
		m.closed = true
		m.lifeMu.Unlock()

		m.cancel()
		m.wg.Wait()

		m.sessionMu.Lock()
		m.stopLocked()
		m.sessionMu.Unlock()

		m.logger.Info("session manager closed")
	})
	return nil
}

func (m *Manager) isClosed() bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	return m.closed
}

// goTracked runs fn on a goroutine counted by wg, unless the Manager is closed.
func (m *Manager) goTracked(fn func(ctx context.Context)) bool {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.closed {
		return false
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(m.ctx)
	}()
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
