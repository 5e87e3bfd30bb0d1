// emeraldhws - Emerald hot-water heat pump daemon
//
// This is the main entry point. It signs in to the Emerald customer API,
// keeps a live view of every heat pump on the account over the AWS IoT
// messaging session, and serves it over HTTP, WebSocket and Prometheus,
// optionally recording history in InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/emerald-hws/internal/api"
	"github.com/nerrad567/emerald-hws/internal/emerald"
	"github.com/nerrad567/emerald-hws/internal/heatpump"
	"github.com/nerrad567/emerald-hws/internal/hws"
	"github.com/nerrad567/emerald-hws/internal/infrastructure/awsiot"
	"github.com/nerrad567/emerald-hws/internal/infrastructure/config"
	"github.com/nerrad567/emerald-hws/internal/infrastructure/influxdb"
	"github.com/nerrad567/emerald-hws/internal/infrastructure/logging"
	"github.com/nerrad567/emerald-hws/internal/session"
	"github.com/nerrad567/emerald-hws/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting emeraldhws",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var history telemetry.Writer
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		history = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing heat pump client")
		if closeErr := client.Close(); closeErr != nil && !errors.Is(closeErr, hws.ErrClosed) {
			log.Error("error closing heat pump client", "error", closeErr)
		}
	}()

	// Metrics registry with runtime collectors
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	telemetry.RegisterSessionMetrics(registry, client)
	recorder := telemetry.NewRecorder(client.Store(), telemetry.NewMetrics(registry), history)
	recorder.SetLogger(log.With("component", "telemetry"))

	// Start API server (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log.With("component", "api"),
			Controller: client,
			Gatherer:   registry,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	client.ReplaceCallback(func(deviceID string) {
		recorder.HandleChange(deviceID)
		if apiServer != nil {
			apiServer.NotifyDeviceChanged(deviceID)
		}
	})

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to Emerald: %w", err)
	}
	log.Info("heat pump client connected", "devices", client.Store().Len())

	if err := healthCheck(ctx, apiServer, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Heat pump client (session timers and transport)
	// 3. InfluxDB (flushes pending history)

	log.Info("emeraldhws stopped")
	return nil
}

// newClient wires the REST client, the AWS IoT dialer, the session
// manager and the device store into the facade.
func newClient(cfg *config.Config, log *logging.Logger) (*hws.Client, error) {
	rest := emerald.New(cfg.Emerald)
	rest.SetLogger(log.With("component", "emerald"))

	dialer, err := awsiot.NewDialer(cfg.AWSIoT, log.With("component", "awsiot"))
	if err != nil {
		return nil, fmt.Errorf("creating AWS IoT dialer: %w", err)
	}

	sessCfg := session.ConfigFromMinutes(cfg.Session.ConnectionTimeoutMinutes, cfg.Session.HealthCheckMinutes)
	sessCfg.TopicPrefix = cfg.Session.TopicPrefix
	manager := session.New(sessCfg, dialer, log.With("component", "session"))

	store := heatpump.NewStore()
	store.SetLogger(log.With("component", "store"))

	client := hws.New(
		hws.Credentials{Email: cfg.Emerald.Email, Password: cfg.Emerald.Password},
		rest,
		manager,
		store,
	)
	client.SetLogger(log.With("component", "hws"))
	client.SetCredentialReset(dialer.Reset)
	return client, nil
}

// getConfigPath returns the configuration file path.
// Uses EMERALD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("EMERALD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the optional infrastructure is healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - apiServer: API server to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, apiServer *api.Server, influxClient *influxdb.Client) error {
	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
