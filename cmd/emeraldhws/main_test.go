package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfig writes content to a temporary config file and points
// EMERALD_CONFIG at it for the duration of the test.
func writeConfig(t *testing.T, content string) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("EMERALD_CONFIG", configPath)
	t.Setenv("EMERALD_EMAIL", "")
	t.Setenv("EMERALD_PASSWORD", "")
	t.Setenv("EMERALD_API_HOST", "")
	t.Setenv("EMERALD_INFLUXDB_TOKEN", "")
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("EMERALD_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_MissingCredentials verifies run fails validation without an
// account email and password.
func TestRun_MissingCredentials(t *testing.T) {
	writeConfig(t, `
emerald:
  email: ""
  password: ""
api:
  enabled: false
logging:
  level: info
  format: text
  output: stdout
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail without credentials")
	}
	if !strings.Contains(err.Error(), "emerald.email is required") {
		t.Errorf("error = %v, want missing email", err)
	}
}

// TestRun_InfluxUnreachable verifies run fails when InfluxDB is enabled
// but cannot be reached, before any Emerald traffic.
func TestRun_InfluxUnreachable(t *testing.T) {
	writeConfig(t, `
emerald:
  email: "user@example.com"
  password: "secret"
api:
  enabled: false
influxdb:
  enabled: true
  url: "http://127.0.0.1:1"
  token: "test-token"
  org: "home"
  bucket: "hws"
logging:
  level: error
  format: text
  output: stdout
`)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail when InfluxDB is unreachable")
	}
	if !strings.Contains(err.Error(), "connecting to InfluxDB") {
		t.Errorf("error = %v, want InfluxDB connection failure", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv("EMERALD_CONFIG", "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	customPath := "/custom/path/config.yaml"
	t.Setenv("EMERALD_CONFIG", customPath)

	if path := getConfigPath(); path != customPath {
		t.Errorf("getConfigPath() = %q, want %q", path, customPath)
	}
}

// TestHealthCheck_NilComponents verifies health check passes when the
// optional components are disabled.
func TestHealthCheck_NilComponents(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil); err != nil {
		t.Errorf("healthCheck() with nil components = %v, want nil", err)
	}
}
