package heatpump

import (
	"encoding/json"
	"sync"
	"testing"
)

const (
	selfDeviceID   = "hws-1111-aaaa-2222-bbbb"
	selfPropertyID = "prop-aaaa-1111-bbbb-2222"
	sharedDeviceID = "hws-9999-eeee-8888-ffff"
)

// inventoryJSON mirrors the vendor's property list payload: the
// consumption document is a JSON string inside the JSON body.
const inventoryJSON = `[
  {
    "id": "prop-aaaa-1111-bbbb-2222",
    "property_name": "Test Home",
    "heat_pump": [{
      "id": "hws-1111-aaaa-2222-bbbb",
      "serial_number": "TEST1234567890",
      "brand": "Emerald",
      "model": "model",
      "hw_version": "V1.0.0",
      "soft_version": "V1.0.34",
      "mac_address": "aabbccddeeff",
      "property_id": "prop-aaaa-1111-bbbb-2222",
      "last_state": {"mode": 1, "switch": "on", "temp_set": 60, "temp_current": 60},
      "device_operation_status": 2,
      "is_online": 1,
      "consumption_data": "{\"current_hour\": 0.96, \"last_data_at\": \"2025-10-12 13:00\", \"past_seven_days\": {\"2025-10-06\": 3.17, \"2025-10-07\": 4.14, \"2025-10-08\": 3.86, \"2025-10-09\": 4.73, \"2025-10-10\": 2.69, \"2025-10-11\": 4.08, \"2025-10-12\": 3.86}, \"monthly_consumption\": {\"2025-09\": 130.81, \"2025-10\": 46.01}}"
    }]
  },
  {
    "id": "prop-9999-eeee-8888-ffff",
    "heat_pump": [{
      "id": "hws-9999-eeee-8888-ffff",
      "serial_number": "SHARED000001",
      "brand": "Emerald",
      "mac_address": "112233445566",
      "property_id": "prop-9999-eeee-8888-ffff",
      "last_state": {"mode": 0, "switch": 0, "temp_set": 55, "temp_current": 56},
      "consumption_data": null
    }]
  }
]`

func fixtureProperties(t *testing.T) []Property {
	t.Helper()
	var props []Property
	if err := json.Unmarshal([]byte(inventoryJSON), &props); err != nil {
		t.Fatalf("decoding fixture inventory: %v", err)
	}
	return props
}

func fixtureStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.ReplaceAll(fixtureProperties(t))
	return s
}

// callbackRecorder counts change notifications per device.
type callbackRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callbackRecorder) record(id string) {
	r.mu.Lock()
	r.calls = append(r.calls, id)
	r.mu.Unlock()
}

func (r *callbackRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func ptr[T any](v T) *T { return &v }
