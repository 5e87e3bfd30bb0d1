package emerald

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/emerald-hws/internal/heatpump"
	"github.com/nerrad567/emerald-hws/internal/infrastructure/config"
)

const (
	defaultRequestTimeout = 30 * time.Second

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 4 << 20

	signInPath       = "/customer/sign-in"
	propertyListPath = "/customer/property/list"

	codeOK = 200
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

// Client talks to the Emerald customer REST API.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	baseURL    string
	app        config.EmeraldAppConfig
	httpClient *http.Client
	logger     Logger
}

// New creates a Client from the emerald configuration section.
func New(cfg config.EmeraldConfig) *Client {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		app:     cfg.App,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

type signInRequest struct {
	AppVersion      string `json:"app_version"`
	DeviceName      string `json:"device_name"`
	DeviceOSVersion string `json:"device_os_version"`
	DeviceType      string `json:"device_type"`
	Email           string `json:"email"`
	Password        string `json:"password"`
}

type signInResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Token   string `json:"token"`
}

type propertyListResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Info    struct {
		Property       []heatpump.Property `json:"property"`
		SharedProperty []heatpump.Property `json:"shared_property"`
	} `json:"info"`
}

// Login exchanges account credentials for a bearer token.
//
// Parameters:
//   - ctx: Context for cancellation
//   - email, password: Account credentials
//
// Returns:
//   - Token: The issued token
//   - error: *APIError wrapping ErrAuthentication when the body code is
//     not 200, or ErrAuthentication wrapping the transport/decode failure
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	body, err := json.Marshal(signInRequest{
		AppVersion:      c.app.Version,
		DeviceName:      c.app.DeviceName,
		DeviceOSVersion: c.app.DeviceOS,
		DeviceType:      c.app.DeviceType,
		Email:           email,
		Password:        password,
	})
	if err != nil {
		return Token{}, fmt.Errorf("%w: encoding request: %w", ErrAuthentication, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, signInPath, body)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	status, raw, err := c.do(req)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	var resp signInResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Token{}, &APIError{Op: "sign-in", StatusCode: status, Message: "undecodable response", Body: string(raw), kind: ErrAuthentication}
	}
	if resp.Code != codeOK || resp.Token == "" {
		return Token{}, &APIError{Op: "sign-in", StatusCode: status, Code: resp.Code, Message: resp.Message, Body: string(raw), kind: ErrAuthentication}
	}

	tok := parseToken(resp.Token)
	if tok.ExpiresAt.IsZero() {
		c.logger.Info("signed in")
	} else {
		c.logger.Info("signed in", "token_expires_at", tok.ExpiresAt)
	}
	return tok, nil
}

// FetchInventory retrieves owned and shared properties and merges them.
//
// Each property is tagged with its ownership and every device missing a
// property_id is given its property's ID.
//
// Returns:
//   - []heatpump.Property: Owned properties followed by shared ones
//   - error: *APIError wrapping ErrInventory, ErrInventory wrapping a
//     transport failure, or ErrEmptyInventory when no heat pumps exist
func (c *Client) FetchInventory(ctx context.Context, token Token) ([]heatpump.Property, error) {
	req, err := c.newRequest(ctx, http.MethodGet, propertyListPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInventory, err)
	}
	req.Header.Set("authorization", "Bearer "+token.Value)

	status, raw, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInventory, err)
	}

	var resp propertyListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &APIError{Op: "property list", StatusCode: status, Message: "undecodable response", Body: string(raw), kind: ErrInventory}
	}
	if resp.Code != codeOK {
		return nil, &APIError{Op: "property list", StatusCode: status, Code: resp.Code, Message: resp.Message, Body: string(raw), kind: ErrInventory}
	}

	properties := make([]heatpump.Property, 0, len(resp.Info.Property)+len(resp.Info.SharedProperty))
	properties = appendProperties(properties, resp.Info.Property, heatpump.OwnershipSelf)
	properties = appendProperties(properties, resp.Info.SharedProperty, heatpump.OwnershipShared)

	devices := 0
	for _, p := range properties {
		devices += len(p.HeatPumps)
	}
	if devices == 0 {
		return nil, ErrEmptyInventory
	}

	c.logger.Info("inventory fetched",
		"owned", len(resp.Info.Property),
		"shared", len(resp.Info.SharedProperty),
		"devices", devices,
	)
	return properties, nil
}

func appendProperties(dst, src []heatpump.Property, ownership heatpump.Ownership) []heatpump.Property {
	for _, p := range src {
		p.Ownership = ownership
		for i := range p.HeatPumps {
			if p.HeatPumps[i].PropertyID == "" {
				p.HeatPumps[i].PropertyID = p.ID
			}
		}
		dst = append(dst, p)
	}
	return dst
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("accept", "*/*")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("user-agent", c.app.UserAgent)
	req.Header.Set("accept-language", c.app.AcceptLanguage)
	return req, nil
}

// do sends req and returns the status and body. Non-2xx statuses are
// not errors here; the vendor reports failures in the body code.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, raw, nil
}
