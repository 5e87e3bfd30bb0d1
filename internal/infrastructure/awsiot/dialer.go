package awsiot

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/google/uuid"

	"github.com/nerrad567/emerald-hws/internal/infrastructure/config"
	"github.com/nerrad567/emerald-hws/internal/infrastructure/mqtt"
	"github.com/nerrad567/emerald-hws/internal/session"
)

// Logger defines the logging interface used by the Dialer.
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

// transportFactory builds a session object for a presigned broker URL.
type transportFactory func(opts mqtt.Options, events session.Events) (session.Transport, error)

// Dialer creates MQTT-over-WebSocket sessions to AWS IoT Core using
// Cognito unauthenticated credentials. It implements session.Dialer.
//
// Each Dial retrieves (cached) credentials, presigns a fresh URL and uses
// a new random client identifier.
type Dialer struct {
	endpoint  string
	region    string
	prefix    string
	keepAlive time.Duration

	identity *CognitoProvider
	creds    *aws.CredentialsCache
	logger   Logger

	newTransport transportFactory
	now          func() time.Time
}

// NewDialer creates a Dialer from the aws_iot configuration section.
//
// Returns:
//   - *Dialer: Dialer ready for use by session.Manager
//   - error: If the region cannot be derived from the endpoint
func NewDialer(cfg config.AWSIoTConfig, logger Logger) (*Dialer, error) {
	region, err := cfg.Region()
	if err != nil {
		return nil, err
	}
	return newDialer(cfg, region, NewCognitoProvider(region, cfg.IdentityPoolID), logger), nil
}

func newDialer(cfg config.AWSIoTConfig, region string, identity *CognitoProvider, logger Logger) *Dialer {
	if logger == nil {
		logger = noopLogger{}
	}
	d := &Dialer{
		endpoint:  cfg.Endpoint,
		region:    region,
		prefix:    cfg.ClientIDPrefix,
		keepAlive: time.Duration(cfg.KeepAlive) * time.Second,
		identity:  identity,
		creds:     aws.NewCredentialsCache(identity),
		logger:    logger,
		now:       time.Now,
	}
	d.newTransport = d.mqttTransport
	return d
}

func (d *Dialer) mqttTransport(opts mqtt.Options, events session.Events) (session.Transport, error) {
	s, err := mqtt.New(opts, events)
	if err != nil {
		return nil, err
	}
	s.SetLogger(d.logger)
	return s, nil
}

// Region returns the AWS region derived from the endpoint.
func (d *Dialer) Region() string {
	return d.region
}

// Dial creates one unstarted session object.
func (d *Dialer) Dial(ctx context.Context, events session.Events) (session.Transport, error) {
	creds, err := d.creds.Retrieve(ctx)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("aws iot identity", "identity_id", d.identity.IdentityID())

	brokerURL, err := PresignURL(ctx, creds, d.endpoint, d.region, d.now())
	if err != nil {
		return nil, err
	}

	clientID := d.clientID()
	t, err := d.newTransport(mqtt.Options{
		BrokerURL: brokerURL,
		ClientID:  clientID,
		KeepAlive: d.keepAlive,
	}, events)
	if err != nil {
		return nil, fmt.Errorf("creating mqtt session: %w", err)
	}

	d.logger.Debug("mqtt session created", "client_id", clientID, "endpoint", d.endpoint)
	return t, nil
}

func (d *Dialer) clientID() string {
	if d.prefix == "" {
		return uuid.NewString()
	}
	return d.prefix + "-" + uuid.NewString()
}

// Reset discards the cached identity and credentials so the next Dial
// obtains new ones.
func (d *Dialer) Reset() {
	d.identity.Reset()
	d.creds.Invalidate()
}
