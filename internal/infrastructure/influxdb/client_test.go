package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/emerald-hws/internal/infrastructure/config"
	"github.com/nerrad567/emerald-hws/internal/infrastructure/influxdb"
)

// fakeServer implements the two InfluxDB v2 endpoints the client uses.
type fakeServer struct {
	*httptest.Server

	mu      sync.Mutex
	lines   []string
	queries []string

	pingStatus  int
	writeStatus int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{pingStatus: http.StatusNoContent, writeStatus: http.StatusNoContent}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	switch r.URL.Path {
	case "/ping", "/health":
		w.WriteHeader(fs.pingStatus)
	case "/api/v2/write":
		body, _ := io.ReadAll(r.Body)
		fs.queries = append(fs.queries, r.URL.RawQuery)
		for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
			if line != "" {
				fs.lines = append(fs.lines, line)
			}
		}
		if fs.writeStatus != http.StatusNoContent {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fs.writeStatus)
			_, _ = w.Write([]byte(`{"code":"invalid","message":"rejected"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fs *fakeServer) written() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.lines...)
}

func (fs *fakeServer) writeQueries() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.queries...)
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "emerald-dev-token",
		Org:           "home",
		Bucket:        "hws",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, fs *fakeServer) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// waitForLines polls until at least n lines reached the server.
func waitForLines(t *testing.T, fs *fakeServer, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if lines := fs.written(); len(lines) >= n {
			return lines
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server received %d lines, want %d", len(fs.written()), n)
	return nil
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	fs := newFakeServer(t)
	url := fs.URL
	fs.Close()

	_, err := influxdb.Connect(context.Background(), testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	fs := newFakeServer(t)
	fs.pingStatus = http.StatusServiceUnavailable

	_, err := influxdb.Connect(context.Background(), testConfig(fs.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_CancelledContext(t *testing.T) {
	fs := newFakeServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := influxdb.Connect(ctx, testConfig(fs.URL))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	fs := newFakeServer(t)
	cfg := testConfig(fs.URL)
	cfg.BatchSize = 0
	cfg.FlushInterval = -1

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false with defaulted batch settings")
	}
}

func TestHealthCheck(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)
	client.Close()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteDeviceState(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	ts := time.Date(2026, 10, 14, 8, 30, 0, 0, time.UTC)
	client.WriteDeviceState("hws-1", map[string]any{
		"temp_current": 59.0,
		"switch":       1,
		"heating":      true,
	}, ts)
	client.Flush()

	lines := waitForLines(t, fs, 1)
	line := lines[0]
	for _, want := range []string{
		"heat_pump_state,device_id=hws-1,service=emeraldhws ",
		"temp_current=59",
		"switch=1i",
		"heating=true",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if !strings.HasSuffix(line, " "+strconv.FormatInt(ts.Unix(), 10)) {
		t.Errorf("line %q not stamped with %d", line, ts.Unix())
	}

	q := fs.writeQueries()[0]
	for _, want := range []string{"org=home", "bucket=hws", "precision=s"} {
		if !strings.Contains(q, want) {
			t.Errorf("write query = %q, missing %q", q, want)
		}
	}
}

func TestWriteDeviceState_EmptyFields(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	client.WriteDeviceState("hws-1", nil, time.Now())
	client.WriteHourlyEnergy("hws-1", 0.5, time.Now())
	client.Flush()

	lines := waitForLines(t, fs, 1)
	if len(lines) != 1 || !strings.HasPrefix(lines[0], influxdb.MeasurementEnergy) {
		t.Errorf("lines = %v, want only the energy point", lines)
	}
}

func TestWriteHourlyEnergy(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	hour := time.Date(2025, 10, 12, 13, 0, 0, 0, time.UTC)
	client.WriteHourlyEnergy("hws-1", 0.96, hour)
	client.Flush()

	lines := waitForLines(t, fs, 1)
	want := "heat_pump_energy,device_id=hws-1,service=emeraldhws energy_kwh=0.96 " + strconv.FormatInt(hour.Unix(), 10)
	if lines[0] != want {
		t.Errorf("line = %q, want %q", lines[0], want)
	}
}

func TestWrite_AfterCloseIsNoop(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)
	client.Close()

	client.WriteHourlyEnergy("hws-1", 1, time.Now())
	client.Flush()
	time.Sleep(50 * time.Millisecond)

	if lines := fs.written(); len(lines) != 0 {
		t.Errorf("lines after Close = %v, want none", lines)
	}
}

func TestSetOnError(t *testing.T) {
	fs := newFakeServer(t)
	fs.writeStatus = http.StatusBadRequest
	client := connect(t, fs)

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WriteHourlyEnergy("hws-1", 1, time.Now())
	client.Flush()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("onError called with nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("onError not called for rejected write")
	}
}

// =============================================================================
// Close Tests
// =============================================================================

func TestClose_Idempotent(t *testing.T) {
	fs := newFakeServer(t)
	client := connect(t, fs)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	client.Flush()
}

func TestClose_ZeroValue(t *testing.T) {
	var client influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
