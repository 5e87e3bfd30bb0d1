package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by this package.
const (
	MeasurementState  = "heat_pump_state"
	MeasurementEnergy = "heat_pump_energy"
)

// WriteDeviceState records a snapshot of a heat pump's state fields.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Nothing is written when fields is empty.
//
// Parameters:
//   - deviceID: Device identifier, stored as the device_id tag
//   - fields: Field values (e.g. temp_current, temp_set, switch, heating, mode)
//   - ts: Time of the observation
//
// Example:
//
//	client.WriteDeviceState("hws-1", map[string]any{"temp_current": 59.0, "heating": true}, time.Now())
func (c *Client) WriteDeviceState(deviceID string, fields map[string]any, ts time.Time) {
	if len(fields) == 0 {
		return
	}
	c.writePoint(MeasurementState, deviceID, fields, ts)
}

// WriteHourlyEnergy records one hourly consumption sample.
//
// Parameters:
//   - deviceID: Device identifier
//   - kWh: Energy used during the hour
//   - hourStart: Start of the hour the sample covers
func (c *Client) WriteHourlyEnergy(deviceID string, kWh float64, hourStart time.Time) {
	c.writePoint(MeasurementEnergy, deviceID, map[string]any{"energy_kwh": kWh}, hourStart)
}

// writePoint queues one point tagged with deviceID. It is a no-op once
// the client is closed.
func (c *Client) writePoint(measurement, deviceID string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, map[string]string{"device_id": deviceID}, fields, ts))
}
