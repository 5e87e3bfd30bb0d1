// Package api implements the HTTP REST API and WebSocket server over the
// heat pump facade.
//
// This package provides:
//   - REST endpoints for device status, identity, energy usage and control
//   - Session status and manual reconnect endpoints
//   - WebSocket hub broadcasting device.state_changed summaries
//   - A Prometheus scrape endpoint at /metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/system
//	GET  /api/v1/devices
//	GET  /api/v1/devices/{id}
//	GET  /api/v1/devices/{id}/info
//	GET  /api/v1/devices/{id}/energy
//	GET  /api/v1/devices/{id}/energy/history
//	PUT  /api/v1/devices/{id}/power     {"on": true}
//	PUT  /api/v1/devices/{id}/mode      {"mode": "boost"}
//	POST /api/v1/devices/{id}/control   {"temp_set": 60}
//	GET  /api/v1/session
//	POST /api/v1/session/reconnect
//	GET  /api/v1/ws
//
// Control endpoints answer 202 once the command is acknowledged by the
// broker; the device's new state arrives later over the WebSocket.
//
// # Security
//
// The server has no authentication of its own and is meant to listen on
// a trusted network.
package api
