// Package influxdb records heat pump telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks.
//
// # Measurements
//
//   - heat_pump_state: temperatures, switch, heating and mode per device
//   - heat_pump_energy: hourly kWh samples, stamped with the hour start
//
// Both carry a device_id tag and a service=emeraldhws default tag, and are
// written at second precision.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteHourlyEnergy("hws-1", 0.96, hourStart)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write errors arrive asynchronously through the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
