package session

import (
	"context"
	"errors"
	"time"
)

// StartTimers starts the scheduled-reconnect and health-check timers.
// Disabled intervals start nothing. Calling it again has no effect.
// The timers stop when Close is called.
func (m *Manager) StartTimers() {
	m.timersOnce.Do(func() {
		if d := m.cfg.ReconnectInterval; d > 0 {
			m.goTracked(func(ctx context.Context) {
				m.runEvery(ctx, d, m.scheduledReconnect)
			})
			m.logger.Debug("scheduled reconnect enabled", "interval", d)
		}
		if d := m.cfg.HealthCheckInterval; d > 0 {
			m.goTracked(func(ctx context.Context) {
				m.runEvery(ctx, d, m.checkHealth)
			})
			m.logger.Debug("health check enabled", "interval", d)
		}
	})
}

// runEvery calls fn each time interval elapses, re-arming only after fn
// returns, until ctx is cancelled.
func (m *Manager) runEvery(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			fn(ctx)
			timer.Reset(interval)
		}
	}
}

func (m *Manager) scheduledReconnect(ctx context.Context) {
	if err := m.Reconnect(ctx, ReasonScheduled); err != nil && !errors.Is(err, ErrClosed) {
		m.logger.Error("scheduled reconnect failed", "error", err)
	}
}

// checkHealth reconnects when no message has arrived within the
// health-check interval. If the session is in the failed state it first
// waits Backoff(consecutive failures).
func (m *Manager) checkHealth(ctx context.Context) {
	last := m.lastMessage.Load()
	if last == 0 {
		m.logger.Debug("health check: no messages received yet")
		return
	}

	since := m.now().Sub(time.Unix(0, last))
	if since <= m.cfg.HealthCheckInterval {
		m.logger.Debug("health check: session active", "minutes_since_last_message", since.Minutes())
		return
	}

	m.logger.Info("no messages received recently, reconnecting", "minutes_since_last_message", since.Minutes())

	m.stateMu.Lock()
	state, failures := m.state, m.failures
	m.stateMu.Unlock()

	if state == StateFailed && failures > 0 {
		backoff := Backoff(failures, m.cfg.MaxBackoff)
		m.logger.Info("session in failed state, backing off before retry",
			"backoff", backoff,
			"attempt", failures,
		)
		if err := m.sleep(ctx, backoff); err != nil {
			return
		}
	}

	if err := m.Reconnect(ctx, ReasonHealthCheck); err != nil && !errors.Is(err, ErrClosed) {
		m.logger.Error("health check reconnect failed", "error", err)
	}
}
