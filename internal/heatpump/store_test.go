package heatpump

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// =============================================================================
// Lookup
// =============================================================================

func TestStore_ReplaceAllAndLookup(t *testing.T) {
	s := fixtureStore(t)

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	ids := s.DeviceIDs()
	if len(ids) != 2 || ids[0] != selfDeviceID || ids[1] != sharedDeviceID {
		t.Errorf("DeviceIDs() = %v", ids)
	}

	d, ok := s.Device(selfDeviceID)
	if !ok {
		t.Fatal("Device() not found")
	}
	if d.SerialNumber != "TEST1234567890" {
		t.Errorf("SerialNumber = %q", d.SerialNumber)
	}
}

func TestStore_DeviceNotFound(t *testing.T) {
	s := fixtureStore(t)

	if _, ok := s.Device("nonexistent-id"); ok {
		t.Error("Device() found an unknown id")
	}

	empty := NewStore()
	if _, ok := empty.Device(selfDeviceID); ok {
		t.Error("empty store found a device")
	}
	if ids := empty.DeviceIDs(); len(ids) != 0 {
		t.Errorf("empty DeviceIDs() = %v", ids)
	}
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	s := fixtureStore(t)

	d, _ := s.Device(selfDeviceID)
	d.LastState[KeyTempCurrent] = float64(10)

	props := s.Properties()
	props[0].HeatPumps[0].LastState[KeyTempCurrent] = float64(11)

	again, _ := s.Device(selfDeviceID)
	if v, _ := again.LastState.Int(KeyTempCurrent); v != 60 {
		t.Errorf("temp_current = %d, snapshot mutation leaked into store", v)
	}
}

func TestStore_ReplaceAllCopiesInput(t *testing.T) {
	props := fixtureProperties(t)
	s := NewStore()
	s.ReplaceAll(props)

	props[0].HeatPumps[0].LastState[KeyMode] = float64(2)

	d, _ := s.Device(selfDeviceID)
	if m, _ := d.Mode(); m != ModeNormal {
		t.Errorf("Mode() = %v, caller mutation leaked into store", m)
	}
}

func TestStore_DuplicateIDKeepsFirst(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]Property{
		{ID: "p1", HeatPumps: []Device{{ID: "dup", SerialNumber: "first"}}},
		{ID: "p2", HeatPumps: []Device{{ID: "dup", SerialNumber: "second"}}},
	})

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	d, _ := s.Device("dup")
	if d.SerialNumber != "first" {
		t.Errorf("SerialNumber = %q, want first", d.SerialNumber)
	}
	if ids := s.DeviceIDs(); len(ids) != 1 {
		t.Errorf("DeviceIDs() = %v", ids)
	}
}

// =============================================================================
// Mutation and notification
// =============================================================================

func TestStore_SetField(t *testing.T) {
	s := fixtureStore(t)
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	if !s.SetField(selfDeviceID, KeyTempCurrent, float64(59)) {
		t.Fatal("SetField() = false for known device")
	}

	d, _ := s.Device(selfDeviceID)
	if v, _ := d.LastState.Int(KeyTempCurrent); v != 59 {
		t.Errorf("temp_current = %d, want 59", v)
	}
	if rec.count() != 1 {
		t.Errorf("callback count = %d, want 1", rec.count())
	}
}

func TestStore_SetFieldUnknownDevice(t *testing.T) {
	s := fixtureStore(t)
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	if s.SetField("nonexistent-id", KeyTempCurrent, float64(59)) {
		t.Error("SetField() = true for unknown device")
	}
	if rec.count() != 0 {
		t.Errorf("callback count = %d, want 0", rec.count())
	}
}

func TestStore_SetFieldCreatesMissingState(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]Property{{ID: "p", HeatPumps: []Device{{ID: "d"}}}})

	s.SetField("d", KeySwitch, float64(1))

	d, _ := s.Device("d")
	if !d.IsOn() {
		t.Error("IsOn() = false after switch set to 1")
	}
}

func TestStore_ReplaceAllNotifiesEachDevice(t *testing.T) {
	s := NewStore()
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	s.ReplaceAll(fixtureProperties(t))

	if rec.count() != 2 {
		t.Errorf("callback count = %d, want 2", rec.count())
	}
}

func TestStore_CallbackCanQueryStore(t *testing.T) {
	s := fixtureStore(t)

	var seen float64
	s.SetCallback(func(id string) {
		// Would deadlock if invoked under the store lock.
		d, _ := s.Device(id)
		seen, _ = d.LastState.Float(KeyTempCurrent)
	})

	s.SetField(selfDeviceID, KeyTempCurrent, float64(61))

	if seen != 61 {
		t.Errorf("callback observed %v, want 61", seen)
	}
}

func TestStore_CallbackReplaceAndClear(t *testing.T) {
	s := fixtureStore(t)
	first := &callbackRecorder{}
	second := &callbackRecorder{}

	s.SetCallback(first.record)
	s.SetField(selfDeviceID, KeyMode, float64(0))
	s.SetCallback(second.record)
	s.SetField(selfDeviceID, KeyMode, float64(1))
	s.SetCallback(nil)
	s.SetField(selfDeviceID, KeyMode, float64(2))

	if first.count() != 1 || second.count() != 1 {
		t.Errorf("counts = %d, %d; want 1, 1", first.count(), second.count())
	}
}

func TestStore_MergeEnergySampleUnknownDevice(t *testing.T) {
	s := fixtureStore(t)
	err := s.MergeEnergySample("nonexistent-id", EnergySample{StartTime: "2099-12-31 09:00", Data: ptr(0.5)})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("MergeEnergySample() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestStore_MergeEnergySampleKeepsUnknownFields(t *testing.T) {
	props := fixtureProperties(t)
	props[0].HeatPumps[0].ConsumptionData = ConsumptionData(`{"current_hour": 0.96, "last_data_at": "2025-10-12 13:00", "past_seven_days": {"2025-10-12": 3.5}, "monthly_consumption": {"2025-10": 46.01}, "tariff": {"peak": 0.31}, "unit": "kWh"}`)
	s := NewStore()
	s.ReplaceAll(props)

	if err := s.MergeEnergySample(selfDeviceID, EnergySample{StartTime: "2025-10-12 14:00", Data: ptr(0.5)}); err != nil {
		t.Fatalf("MergeEnergySample() error = %v", err)
	}

	d, _ := s.Device(selfDeviceID)
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(d.ConsumptionData), &raw); err != nil {
		t.Fatalf("stored document is not JSON: %v", err)
	}
	if got := string(raw["tariff"]); got != `{"peak":0.31}` {
		t.Errorf("tariff = %s, want {\"peak\":0.31}", got)
	}
	if got := string(raw["unit"]); got != `"kWh"` {
		t.Errorf("unit = %s, want \"kWh\"", got)
	}

	c, _, err := d.Consumption()
	if err != nil {
		t.Fatalf("Consumption() error = %v", err)
	}
	if c.CurrentHour == nil || *c.CurrentHour != 0.5 || c.PastSevenDays["2025-10-12"] != 4.0 {
		t.Errorf("merged consumption = %+v", c)
	}
	if len(c.Extra) != 2 {
		t.Errorf("Extra = %v, want tariff and unit", c.Extra)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := fixtureStore(t)
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	const workers = 8
	const iterations = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				s.SetField(selfDeviceID, fmt.Sprintf("k%d", w), float64(i))
				_ = s.MergeEnergySample(sharedDeviceID, EnergySample{
					StartTime: "2099-12-31 09:00",
					Data:      ptr(1.0),
				})
				_, _ = s.Device(selfDeviceID)
				_ = s.DeviceIDs()
			}
		}(w)
	}
	wg.Wait()

	if got, want := rec.count(), workers*iterations*2; got != want {
		t.Errorf("callback count = %d, want %d", got, want)
	}

	d, _ := s.Device(sharedDeviceID)
	c, _, err := d.Consumption()
	if err != nil {
		t.Fatalf("Consumption() error = %v", err)
	}
	if got := c.MonthlyConsumption["2099-12"]; got != float64(workers*iterations) {
		t.Errorf("monthly total = %v, want %d", got, workers*iterations)
	}
}
