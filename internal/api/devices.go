package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/emerald-hws/internal/heatpump"
)

// DeviceSummary is the list view of one heat pump.
type DeviceSummary struct {
	ID           string   `json:"id"`
	SerialNumber string   `json:"serial_number,omitempty"`
	IsOn         bool     `json:"is_on"`
	IsHeating    bool     `json:"is_heating"`
	Mode         *string  `json:"mode"`
	TempCurrent  *float64 `json:"temp_current"`
	TempSet      *float64 `json:"temp_set"`
}

// summarize builds the list view of d.
func summarize(d *heatpump.Device) DeviceSummary {
	sum := DeviceSummary{
		ID:           d.ID,
		SerialNumber: d.SerialNumber,
		IsOn:         d.IsOn(),
		IsHeating:    d.IsHeating(),
	}
	if m, ok := d.Mode(); ok {
		name := m.String()
		sum.Mode = &name
	}
	if v, ok := d.LastState.Float(heatpump.KeyTempCurrent); ok {
		sum.TempCurrent = &v
	}
	if v, ok := d.LastState.Float(heatpump.KeyTempSet); ok {
		sum.TempSet = &v
	}
	return sum
}

// handleListDevices returns a summary of every heat pump, connecting first
// if the client has not connected yet.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ids, err := s.controller.ListDevices(r.Context())
	if err != nil {
		s.logger.Warn("listing devices failed", "error", err)
		writeFacadeError(w, err)
		return
	}

	devices := make([]DeviceSummary, 0, len(ids))
	for _, id := range ids {
		if d, ok := s.controller.FullStatus(id); ok {
			devices = append(devices, summarize(&d))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns the full record of one heat pump.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, ok := s.controller.FullStatus(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleGetDeviceInfo returns the identity fields of one heat pump.
func (s *Server) handleGetDeviceInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := s.controller.Info(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// EnergyResponse reports the energy getters for one heat pump.
// A nil field means the value is not available.
type EnergyResponse struct {
	DeviceID    string   `json:"device_id"`
	CurrentHour *float64 `json:"current_hour"`
	LastDataAt  *string  `json:"last_data_at"`
	Today       *float64 `json:"today"`
	Week        *float64 `json:"week"`
	Month       *float64 `json:"month"`
}

// handleGetEnergy returns hourly, daily, weekly and monthly usage.
func (s *Server) handleGetEnergy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.controller.FullStatus(id); !ok {
		writeNotFound(w, "device not found")
		return
	}

	resp := EnergyResponse{DeviceID: id}

	hourly, found, err := s.controller.HourlyEnergyUsage(id)
	if err != nil {
		writeFacadeError(w, err)
		return
	}
	if found {
		resp.CurrentHour = &hourly.KWh
		resp.LastDataAt = &hourly.At
	}

	totals := []struct {
		get func(string) (float64, bool, error)
		dst **float64
	}{
		{s.controller.DailyEnergyUsage, &resp.Today},
		{s.controller.WeeklyEnergyUsage, &resp.Week},
		{s.controller.MonthlyEnergyUsage, &resp.Month},
	}
	for _, t := range totals {
		v, found, err := t.get(id)
		if err != nil {
			writeFacadeError(w, err)
			return
		}
		if found {
			*t.dst = &v
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleGetEnergyHistory returns the device's whole consumption document.
func (s *Server) handleGetEnergyHistory(w http.ResponseWriter, r *http.Request) {
	c, found, err := s.controller.HistoricalConsumption(chi.URLParam(r, "id"))
	if err != nil {
		writeFacadeError(w, err)
		return
	}
	if !found {
		writeNotFound(w, "no consumption data")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// PowerRequest is the body of PUT /devices/{id}/power.
type PowerRequest struct {
	On *bool `json:"on"`
}

// handleSetPower switches a heat pump on or off.
func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	var req PowerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.On == nil {
		writeBadRequest(w, "on is required")
		return
	}

	send := s.controller.TurnOff
	if *req.On {
		send = s.controller.TurnOn
	}
	s.runControl(w, r, send)
}

// ModeRequest is the body of PUT /devices/{id}/mode.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// handleSetMode changes the operating mode of a heat pump.
func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var req ModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	var send func(context.Context, string) error
	switch strings.ToLower(req.Mode) {
	case heatpump.ModeNormal.String():
		send = s.controller.SetNormalMode
	case heatpump.ModeBoost.String():
		send = s.controller.SetBoostMode
	case heatpump.ModeQuiet.String():
		send = s.controller.SetQuietMode
	default:
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "mode must be one of normal, boost, quiet")
		return
	}
	s.runControl(w, r, send)
}

// handleSendControl publishes an arbitrary control payload.
func (s *Server) handleSendControl(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(payload) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "control payload must not be empty")
		return
	}

	s.runControl(w, r, func(ctx context.Context, id string) error {
		return s.controller.SendControl(ctx, id, payload)
	})
}

// runControl sends one command and writes the result. The device reports
// its new state asynchronously, so success is 202.
func (s *Server) runControl(w http.ResponseWriter, r *http.Request, send func(context.Context, string) error) {
	id := chi.URLParam(r, "id")
	if err := send(r.Context(), id); err != nil {
		s.logger.Warn("control command failed", "device_id", id, "error", err)
		writeFacadeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted", "device_id": id})
}
