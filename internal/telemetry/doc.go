// Package telemetry exports heat pump state as Prometheus metrics and
// InfluxDB history.
//
// Metrics holds per-device gauges registered under the emerald_hws
// namespace. RegisterSessionMetrics adds gauges that read the messaging
// session status at scrape time. A Recorder is installed as the store's
// change callback and keeps both sinks current:
//
//	reg := prometheus.NewRegistry()
//	rec := telemetry.NewRecorder(client.Store(), telemetry.NewMetrics(reg), influx)
//	telemetry.RegisterSessionMetrics(reg, client)
//	client.ReplaceCallback(rec.HandleChange)
package telemetry
