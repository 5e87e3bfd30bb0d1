package telemetry

import (
	"sync"
	"time"

	"github.com/nerrad567/emerald-hws/internal/heatpump"
)

// sampleLayout is the layout of an energy sample's start time.
const sampleLayout = "2006-01-02 15:04"

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// DeviceSource looks up device snapshots. *heatpump.Store satisfies it.
type DeviceSource interface {
	Device(id string) (heatpump.Device, bool)
}

// Writer persists device history. *influxdb.Client satisfies it.
type Writer interface {
	WriteDeviceState(deviceID string, fields map[string]any, ts time.Time)
	WriteHourlyEnergy(deviceID string, kWh float64, hourStart time.Time)
}

// Recorder turns store change notifications into metrics and history.
//
// HandleChange is shaped as a heatpump.Callback. Each call refreshes the
// device's gauges and writes a state point; an hourly energy point is
// written only when the device reports a sample it has not seen before.
//
// Thread Safety:
//   - HandleChange is safe for concurrent use.
type Recorder struct {
	devices DeviceSource
	metrics *Metrics
	writer  Writer
	logger  Logger

	now      func() time.Time
	location *time.Location

	mu         sync.Mutex
	lastSample map[string]string
}

// NewRecorder creates a Recorder.
//
// Parameters:
//   - devices: Source of device snapshots
//   - metrics: Gauges to update; nil disables metrics
//   - writer: History sink; nil disables history
//
// Returns:
//   - *Recorder: Recorder ready to receive notifications
func NewRecorder(devices DeviceSource, metrics *Metrics, writer Writer) *Recorder {
	return &Recorder{
		devices:    devices,
		metrics:    metrics,
		writer:     writer,
		logger:     noopLogger{},
		now:        time.Now,
		location:   time.Local,
		lastSample: make(map[string]string),
	}
}

// SetLogger sets the logger. A nil logger disables logging.
func (r *Recorder) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// SetLocation sets the zone energy sample start times are read in.
// The default is the local zone.
func (r *Recorder) SetLocation(loc *time.Location) {
	if loc != nil {
		r.location = loc
	}
}

// HandleChange records the current state of deviceID.
func (r *Recorder) HandleChange(deviceID string) {
	d, ok := r.devices.Device(deviceID)
	if !ok {
		return
	}
	now := r.now()

	if r.metrics != nil {
		if err := r.metrics.ObserveDevice(d, now); err != nil {
			r.logger.Warn("consumption document unreadable", "device_id", deviceID, "error", err)
		}
	}

	if r.writer == nil {
		return
	}
	r.writer.WriteDeviceState(deviceID, stateFields(&d), now)
	r.recordEnergy(&d)
}

func (r *Recorder) recordEnergy(d *heatpump.Device) {
	c, found, err := d.Consumption()
	if err != nil || !found || c.CurrentHour == nil || c.LastDataAt == "" {
		return
	}

	r.mu.Lock()
	seen := r.lastSample[d.ID] == c.LastDataAt
	if !seen {
		r.lastSample[d.ID] = c.LastDataAt
	}
	r.mu.Unlock()
	if seen {
		return
	}

	hourStart, err := time.ParseInLocation(sampleLayout, c.LastDataAt, r.location)
	if err != nil {
		r.logger.Debug("energy sample time unparseable", "device_id", d.ID, "last_data_at", c.LastDataAt)
		return
	}
	r.writer.WriteHourlyEnergy(d.ID, *c.CurrentHour, hourStart)
}

// stateFields collects the reported state fields of d.
func stateFields(d *heatpump.Device) map[string]any {
	fields := map[string]any{
		"switch":  int(boolValue(d.IsOn())),
		"heating": d.IsHeating(),
	}
	if v, ok := d.LastState.Float(heatpump.KeyTempCurrent); ok {
		fields[heatpump.KeyTempCurrent] = v
	}
	if v, ok := d.LastState.Float(heatpump.KeyTempSet); ok {
		fields[heatpump.KeyTempSet] = v
	}
	if mode, ok := d.Mode(); ok {
		fields[heatpump.KeyMode] = int(mode)
	}
	return fields
}
