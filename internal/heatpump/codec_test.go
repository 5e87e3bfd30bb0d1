package heatpump

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"
)

const fromGatewayTopic = "ep/heat_pump/from_gw/" + selfDeviceID

func TestDecode_UploadStatus(t *testing.T) {
	payload := `[{"device_id":"header-is-ignored","command":"upload_status","msg_id":"1"},{"temp_current":59}]`

	msg, err := Decode(fromGatewayTopic, []byte(payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if msg.DeviceID != selfDeviceID {
		t.Errorf("DeviceID = %q, topic must win over header", msg.DeviceID)
	}
	if msg.Header.Command != CommandUploadStatus {
		t.Errorf("Command = %q", msg.Header.Command)
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{name: "not json", topic: fromGatewayTopic, payload: "garbage"},
		{name: "object not array", topic: fromGatewayTopic, payload: `{"command":"upload_status"}`},
		{name: "one element", topic: fromGatewayTopic, payload: `[{"command":"upload_status"}]`},
		{name: "three elements", topic: fromGatewayTopic, payload: `[{}, {}, {}]`},
		{name: "header not object", topic: fromGatewayTopic, payload: `["upload_status", {}]`},
		{name: "topic without id", topic: "ep/heat_pump/from_gw/", payload: `[{}, {}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.topic, []byte(tt.payload))
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Decode() error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestDeviceIDFromTopic(t *testing.T) {
	tests := map[string]string{
		"ep/heat_pump/from_gw/abc": "abc",
		"abc":                      "abc",
		"a/b/":                     "",
	}
	for topic, want := range tests {
		if got := DeviceIDFromTopic(topic); got != want {
			t.Errorf("DeviceIDFromTopic(%q) = %q, want %q", topic, got, want)
		}
	}
}

// =============================================================================
// Apply
// =============================================================================

func applyRaw(t *testing.T, s *Store, topic, payload string) error {
	t.Helper()
	msg, err := Decode(topic, []byte(payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return s.Apply(msg)
}

func TestApply_UploadStatusSingleKey(t *testing.T) {
	s := fixtureStore(t)
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	err := applyRaw(t, s, fromGatewayTopic, `[{"command":"upload_status"},{"temp_current":59}]`)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	d, _ := s.Device(selfDeviceID)
	if v, _ := d.LastState.Int(KeyTempCurrent); v != 59 {
		t.Errorf("temp_current = %d, want 59", v)
	}
	if rec.count() != 1 {
		t.Errorf("callback count = %d, want 1", rec.count())
	}
}

func TestApply_UploadStatusMultipleKeys(t *testing.T) {
	s := fixtureStore(t)
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	err := applyRaw(t, s, fromGatewayTopic, `[{"command":"upload_status"},{"work_state":1,"switch":0,"mode":2}]`)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if rec.count() != 3 {
		t.Errorf("callback count = %d, want one per key", rec.count())
	}
	d, _ := s.Device(selfDeviceID)
	if d.IsOn() || !d.IsHeating() {
		t.Errorf("IsOn() = %v, IsHeating() = %v", d.IsOn(), d.IsHeating())
	}
	if m, _ := d.Mode(); m != ModeQuiet {
		t.Errorf("Mode() = %v", m)
	}
}

func TestApply_UpdateHourEnergy(t *testing.T) {
	s := fixtureStore(t)
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	err := applyRaw(t, s, "ep/heat_pump/from_gw/"+sharedDeviceID,
		`[{"command":"update_hour_energy"},{"start_time":"2099-12-31 09:00","end_time":"2099-12-31 10:00","data":0.68}]`)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	d, _ := s.Device(sharedDeviceID)
	c, _, _ := d.Consumption()
	if c.CurrentHour == nil || *c.CurrentHour != 0.68 {
		t.Errorf("CurrentHour = %v", c.CurrentHour)
	}
	if rec.count() != 1 {
		t.Errorf("callback count = %d, want 1", rec.count())
	}
}

func TestApply_IgnoresUnknownCommandsAndDevices(t *testing.T) {
	s := fixtureStore(t)
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	payloads := []struct{ topic, payload string }{
		{fromGatewayTopic, `[{"command":"firmware_notice"},{"version":"2"}]`},
		{fromGatewayTopic, `[{},{"temp_current":1}]`},
		{"ep/heat_pump/from_gw/unknown", `[{"command":"upload_status"},{"temp_current":1}]`},
		{"ep/heat_pump/from_gw/unknown", `[{"command":"update_hour_energy"},{"start_time":"2099-12-31 09:00","data":1}]`},
	}
	for _, p := range payloads {
		if err := applyRaw(t, s, p.topic, p.payload); err != nil {
			t.Errorf("Apply(%s) error = %v", p.payload, err)
		}
	}
	if rec.count() != 0 {
		t.Errorf("callback count = %d, want 0", rec.count())
	}
}

func TestApply_BadPayloadShapes(t *testing.T) {
	s := fixtureStore(t)

	err := applyRaw(t, s, fromGatewayTopic, `[{"command":"upload_status"},[1,2]]`)
	if !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("upload_status with array payload: error = %v", err)
	}

	err = applyRaw(t, s, fromGatewayTopic, `[{"command":"update_hour_energy"},{"start_time":"2099-12-31 09:00"}]`)
	if !errors.Is(err, ErrInvalidSample) {
		t.Errorf("energy sample without data: error = %v", err)
	}
}

// =============================================================================
// EncodeControl
// =============================================================================

func TestEncodeControl_Header(t *testing.T) {
	s := fixtureStore(t)
	d, _ := s.Device(selfDeviceID)

	env, data, err := EncodeControl(&d, map[string]any{"switch": 1})
	if err != nil {
		t.Fatalf("EncodeControl() error = %v", err)
	}

	var parts []map[string]any
	if err := json.Unmarshal(data, &parts); err != nil {
		t.Fatalf("envelope is not a JSON array: %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("len(envelope) = %d, want 2", len(parts))
	}

	header := parts[0]
	want := map[string]string{
		"device_id":   selfDeviceID,
		"namespace":   "business",
		"direction":   "app2gw",
		"property_id": selfPropertyID,
		"command":     "control",
		"hw_id":       "aabbccddeeff",
	}
	for k, v := range want {
		if header[k] != v {
			t.Errorf("header[%s] = %v, want %q", k, header[k], v)
		}
	}

	msgID, ok := header["msg_id"].(string)
	if !ok {
		t.Fatalf("msg_id = %#v, want string", header["msg_id"])
	}
	if n, err := strconv.Atoi(msgID); err != nil || n < 100 || n > 9999 {
		t.Errorf("msg_id = %q, want 100..9999", msgID)
	}
	if env.Header.MsgID != msgID {
		t.Errorf("Envelope.Header.MsgID = %q, encoded %q", env.Header.MsgID, msgID)
	}
	if parts[1]["switch"] != float64(1) {
		t.Errorf("payload = %v", parts[1])
	}
}

func TestEncodeControl_NilDevice(t *testing.T) {
	_, _, err := EncodeControl(nil, map[string]any{"switch": 1})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("EncodeControl(nil) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestEncodeControl_RoundTrip(t *testing.T) {
	payloads := []map[string]any{
		{"switch": float64(1)},
		{"switch": float64(0)},
		{"mode": float64(0)},
		{"mode": float64(2), "temp_set": float64(55)},
	}
	d := Device{ID: selfDeviceID, PropertyID: selfPropertyID, MACAddress: "aabbccddeeff"}

	for _, p := range payloads {
		_, data, err := EncodeControl(&d, p)
		if err != nil {
			t.Fatalf("EncodeControl() error = %v", err)
		}

		msg, err := Decode("ep/heat_pump/to_gw/"+d.ID, data)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if msg.DeviceID != d.ID {
			t.Errorf("DeviceID = %q, want %q", msg.DeviceID, d.ID)
		}

		var got map[string]any
		if err := json.Unmarshal(msg.Payload, &got); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if len(got) != len(p) {
			t.Errorf("payload = %v, want %v", got, p)
		}
		for k, v := range p {
			if got[k] != v {
				t.Errorf("payload[%s] = %v, want %v", k, got[k], v)
			}
		}
	}
}

func TestNewMsgID_Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		n, err := strconv.Atoi(NewMsgID())
		if err != nil || n < 100 || n > 9999 {
			t.Fatalf("NewMsgID() = %d, %v", n, err)
		}
	}
}
