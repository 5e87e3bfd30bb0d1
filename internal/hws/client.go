package hws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/emerald-hws/internal/emerald"
	"github.com/nerrad567/emerald-hws/internal/heatpump"
	"github.com/nerrad567/emerald-hws/internal/session"
)

// Logger defines the logging interface used by the Client.
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

// Authenticator performs the vendor REST exchange.
// *emerald.Client satisfies this interface.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (emerald.Token, error)
	FetchInventory(ctx context.Context, token emerald.Token) ([]heatpump.Property, error)
}

// SessionManager is the messaging session used by the Client.
// *session.Manager satisfies this interface.
type SessionManager interface {
	EnsureConnected(ctx context.Context) error
	Subscribe(ctx context.Context, deviceID string) error
	Publish(ctx context.Context, deviceID string, payload []byte) error
	Reconnect(ctx context.Context, reason session.Reason) error
	StartTimers()
	Status() session.Status
	SetMessageHandler(fn session.MessageHandler)
	SetReauthenticate(fn session.ReauthFunc)
	Close() error
}

// Credentials are the vendor account credentials.
type Credentials struct {
	Email    string
	Password string
}

// Control payloads.
var (
	payloadOn     = map[string]any{heatpump.KeySwitch: 1}
	payloadOff    = map[string]any{heatpump.KeySwitch: 0}
	payloadNormal = map[string]any{heatpump.KeyMode: int(heatpump.ModeNormal)}
	payloadBoost  = map[string]any{heatpump.KeyMode: int(heatpump.ModeBoost)}
	payloadQuiet  = map[string]any{heatpump.KeyMode: int(heatpump.ModeQuiet)}
)

// Client is the query/control facade over the vendor services: it
// authenticates, loads the inventory, keeps the device store current from
// inbound messages and publishes control commands.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	creds   Credentials
	auth    Authenticator
	session SessionManager
	store   *heatpump.Store
	logger  Logger

	connectMu sync.Mutex
	connected atomic.Bool
	closed    atomic.Bool

	tokenMu sync.RWMutex
	token   emerald.Token

	hooksMu          sync.RWMutex
	resetCredentials func()

	// now is injectable for the date-keyed energy getters.
	now func() time.Time
}

// New creates an unconnected Client and registers its message handler
// and re-authentication hook on sess.
//
// Parameters:
//   - creds: Vendor account email and password
//   - auth: REST sign-in and inventory source
//   - sess: Messaging session manager
//   - store: Device store to populate; nil creates a new one
//
// Returns:
//   - *Client: Call Connect before issuing control commands
func New(creds Credentials, auth Authenticator, sess SessionManager, store *heatpump.Store) *Client {
	if store == nil {
		store = heatpump.NewStore()
	}
	c := &Client{
		creds:   creds,
		auth:    auth,
		session: sess,
		store:   store,
		logger:  noopLogger{},
		now:     time.Now,
	}
	sess.SetMessageHandler(c.handleMessage)
	sess.SetReauthenticate(c.reauthenticate)
	return c
}

// SetLogger sets the logger for connection and control events.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// SetCredentialReset registers fn to discard cached broker credentials
// when the broker rejects the client identifier.
func (c *Client) SetCredentialReset(fn func()) {
	c.hooksMu.Lock()
	c.resetCredentials = fn
	c.hooksMu.Unlock()
}

// Store returns the device store backing the Client.
func (c *Client) Store() *heatpump.Store {
	return c.store
}

// ReplaceCallback replaces the state-change notification callback.
func (c *Client) ReplaceCallback(fn heatpump.Callback) {
	c.store.SetCallback(fn)
}

// =============================================================================
// Connection
// =============================================================================

// Connect signs in, loads the inventory, starts the messaging session,
// subscribes to every device and starts the session timers.
//
// It is idempotent: concurrent callers collapse into one attempt and
// later calls return immediately once connected. A failed attempt leaves
// the Client unconnected so it can be retried.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.connected.Load() {
		return nil
	}

	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.connected.Load() {
		return nil
	}

	token, err := c.auth.Login(ctx, c.creds.Email, c.creds.Password)
	if err != nil {
		return err
	}
	c.setToken(token)
	if !token.ExpiresAt.IsZero() {
		c.logger.Debug("vendor token issued", "expires_at", token.ExpiresAt)
	}

	properties, err := c.auth.FetchInventory(ctx, token)
	if err != nil {
		return err
	}
	c.store.ReplaceAll(properties)
	c.logger.Info("inventory loaded", "properties", len(properties), "devices", c.store.Len())

	// Subscribe retries the session itself; a first-attempt failure here
	// is not final.
	if err := c.session.EnsureConnected(ctx); err != nil {
		c.logger.Warn("initial session start failed", "error", err)
	}

	for _, id := range c.store.DeviceIDs() {
		if err := c.session.Subscribe(ctx, id); err != nil {
			return fmt.Errorf("subscribing %s: %w", id, err)
		}
	}

	c.session.StartTimers()
	c.connected.Store(true)
	c.logger.Info("connected", "devices", c.store.Len())
	return nil
}

// IsConnected reports whether Connect has completed successfully.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Token returns the most recent vendor token.
func (c *Client) Token() emerald.Token {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

func (c *Client) setToken(t emerald.Token) {
	c.tokenMu.Lock()
	c.token = t
	c.tokenMu.Unlock()
}

// reauthenticate runs after a client identifier rejection: broker
// credentials are discarded and a fresh vendor token is obtained. The
// inventory is not re-fetched.
func (c *Client) reauthenticate(ctx context.Context) error {
	c.hooksMu.RLock()
	reset := c.resetCredentials
	c.hooksMu.RUnlock()
	if reset != nil {
		reset()
	}

	token, err := c.auth.Login(ctx, c.creds.Email, c.creds.Password)
	if err != nil {
		return err
	}
	c.setToken(token)
	c.logger.Info("re-authenticated after client id rejection")
	return nil
}

// Reconnect replaces the messaging session on request.
func (c *Client) Reconnect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.connected.Load() {
		return ErrNotConnected
	}
	return c.session.Reconnect(ctx, session.ReasonManual)
}

// Status returns the messaging session snapshot.
func (c *Client) Status() session.Status {
	return c.session.Status()
}

// Close stops the session timers and the messaging session.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.session.Close()
}

// handleMessage decodes an inbound message and applies it to the store.
// Undecodable messages are logged and dropped.
func (c *Client) handleMessage(topic string, payload []byte) {
	msg, err := heatpump.Decode(topic, payload)
	if err != nil {
		c.logger.Debug("dropping undecodable message", "topic", topic, "error", err)
		return
	}
	if err := c.store.Apply(msg); err != nil {
		c.logger.Warn("could not apply message",
			"device_id", msg.DeviceID,
			"command", msg.Header.Command,
			"error", err,
		)
	}
}

// =============================================================================
// Queries
// =============================================================================

// Info is the identifying subset of a device record.
type Info struct {
	ID           string `json:"id"`
	SerialNumber string `json:"serial_number"`
	Brand        string `json:"brand"`
	HWVersion    string `json:"hw_version"`
	SoftVersion  string `json:"soft_version"`
}

// ListDevices returns every device id, connecting first if needed.
func (c *Client) ListDevices(ctx context.Context) ([]string, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c.store.DeviceIDs(), nil
}

// FullStatus returns a snapshot of the device record.
func (c *Client) FullStatus(id string) (heatpump.Device, bool) {
	return c.store.Device(id)
}

// Info returns the device's identifying fields.
func (c *Client) Info(id string) (Info, bool) {
	d, ok := c.store.Device(id)
	if !ok {
		return Info{}, false
	}
	return Info{
		ID:           id,
		SerialNumber: d.SerialNumber,
		Brand:        d.Brand,
		HWVersion:    d.HWVersion,
		SoftVersion:  d.SoftVersion,
	}, true
}

// IsOn reports whether the device is switched on. Unknown devices are off.
func (c *Client) IsOn(id string) bool {
	d, ok := c.store.Device(id)
	return ok && d.IsOn()
}

// IsHeating reports whether the device is actively heating.
func (c *Client) IsHeating(id string) bool {
	d, ok := c.store.Device(id)
	return ok && d.IsHeating()
}

// CurrentMode returns the device's operating mode, or false if unknown.
func (c *Client) CurrentMode(id string) (heatpump.Mode, bool) {
	d, ok := c.store.Device(id)
	if !ok {
		return 0, false
	}
	return d.Mode()
}

// =============================================================================
// Control
// =============================================================================

// TurnOn switches the device on.
func (c *Client) TurnOn(ctx context.Context, id string) error {
	return c.SendControl(ctx, id, payloadOn)
}

// TurnOff switches the device off.
func (c *Client) TurnOff(ctx context.Context, id string) error {
	return c.SendControl(ctx, id, payloadOff)
}

// SetNormalMode selects normal mode.
func (c *Client) SetNormalMode(ctx context.Context, id string) error {
	return c.SendControl(ctx, id, payloadNormal)
}

// SetBoostMode selects boost (high power) mode.
func (c *Client) SetBoostMode(ctx context.Context, id string) error {
	return c.SendControl(ctx, id, payloadBoost)
}

// SetQuietMode selects quiet (low power) mode.
func (c *Client) SetQuietMode(ctx context.Context, id string) error {
	return c.SendControl(ctx, id, payloadQuiet)
}

// SendControl publishes a control envelope carrying payload to the
// device, connecting first if needed.
//
// Returns heatpump.ErrDeviceNotFound, without publishing, for unknown ids.
func (c *Client) SendControl(ctx context.Context, id string, payload map[string]any) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	d, ok := c.store.Device(id)
	if !ok {
		return fmt.Errorf("%w: %s", heatpump.ErrDeviceNotFound, id)
	}
	env, data, err := heatpump.EncodeControl(&d, payload)
	if err != nil {
		return err
	}

	c.logger.Debug("sending control message", "device_id", id, "msg_id", env.Header.MsgID, "payload", payload)
	if err := c.session.Publish(ctx, id, data); err != nil {
		if errors.Is(err, session.ErrClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}
