package heatpump

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEnergySample_Keys(t *testing.T) {
	tests := []struct {
		start      string
		day, month string
	}{
		{start: "2099-12-31 09:00", day: "2099-12-31", month: "2099-12"},
		{start: "2025-10-12", day: "2025-10-12", month: "2025-10"},
		{start: "2025", day: "2025", month: "2025"},
		{start: "", day: "", month: ""},
	}
	for _, tt := range tests {
		day, month := EnergySample{StartTime: tt.start}.Keys()
		if day != tt.day || month != tt.month {
			t.Errorf("Keys(%q) = %q, %q; want %q, %q", tt.start, day, month, tt.day, tt.month)
		}
	}
}

func TestConsumption_AddFromEmpty(t *testing.T) {
	var c Consumption
	if err := c.Add(EnergySample{StartTime: "2099-12-31 09:00", Data: ptr(0.68)}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if c.CurrentHour == nil || *c.CurrentHour != 0.68 {
		t.Errorf("CurrentHour = %v, want 0.68", c.CurrentHour)
	}
	if c.LastDataAt != "2099-12-31 09:00" {
		t.Errorf("LastDataAt = %q", c.LastDataAt)
	}
	if c.PastSevenDays["2099-12-31"] != 0.68 {
		t.Errorf("PastSevenDays = %v", c.PastSevenDays)
	}
	if c.MonthlyConsumption["2099-12"] != 0.68 {
		t.Errorf("MonthlyConsumption = %v", c.MonthlyConsumption)
	}
}

func TestConsumption_SameDayAccumulates(t *testing.T) {
	var c Consumption
	_ = c.Add(EnergySample{StartTime: "2099-12-31 09:00", Data: ptr(0.68)})
	_ = c.Add(EnergySample{StartTime: "2099-12-31 10:00", Data: ptr(1.23)})

	if !approxEqual(c.PastSevenDays["2099-12-31"], 1.91) {
		t.Errorf("day total = %v, want 1.91", c.PastSevenDays["2099-12-31"])
	}
	if !approxEqual(c.MonthlyConsumption["2099-12"], 1.91) {
		t.Errorf("month total = %v, want 1.91", c.MonthlyConsumption["2099-12"])
	}
	if *c.CurrentHour != 1.23 || c.LastDataAt != "2099-12-31 10:00" {
		t.Errorf("latest sample not kept: %v, %q", *c.CurrentHour, c.LastDataAt)
	}
}

func TestConsumption_EvictsOldestDays(t *testing.T) {
	var c Consumption
	for day := 1; day <= 8; day++ {
		start := fmt.Sprintf("2099-12-%02d 09:00", day)
		if err := c.Add(EnergySample{StartTime: start, Data: ptr(1.0)}); err != nil {
			t.Fatalf("Add(%s) error = %v", start, err)
		}
	}

	if len(c.PastSevenDays) != MaxDailyEntries {
		t.Fatalf("len(PastSevenDays) = %d, want %d", len(c.PastSevenDays), MaxDailyEntries)
	}
	if _, ok := c.PastSevenDays["2099-12-01"]; ok {
		t.Error("oldest day was not evicted")
	}
	for day := 2; day <= 8; day++ {
		key := fmt.Sprintf("2099-12-%02d", day)
		if _, ok := c.PastSevenDays[key]; !ok {
			t.Errorf("day %s missing", key)
		}
	}
	// Monthly totals are never pruned.
	if c.MonthlyConsumption["2099-12"] != 8 {
		t.Errorf("month total = %v, want 8", c.MonthlyConsumption["2099-12"])
	}
}

func TestConsumption_RetainsLargestKeysOutOfOrder(t *testing.T) {
	days := []string{"2099-01-09", "2099-01-01", "2099-01-05", "2099-01-03", "2099-01-10",
		"2099-01-02", "2099-01-07", "2099-01-04", "2099-01-08", "2099-01-06"}

	var c Consumption
	for _, d := range days {
		_ = c.Add(EnergySample{StartTime: d + " 00:00", Data: ptr(0.1)})
		if len(c.PastSevenDays) > MaxDailyEntries {
			t.Fatalf("len(PastSevenDays) = %d after %s", len(c.PastSevenDays), d)
		}
	}

	seen := append([]string(nil), days...)
	sort.Strings(seen)
	for _, want := range seen[len(seen)-MaxDailyEntries:] {
		if _, ok := c.PastSevenDays[want]; !ok {
			t.Errorf("retained keys missing %s: %v", want, c.PastSevenDays)
		}
	}
}

func TestConsumption_MonthlySumIsOrderIndependent(t *testing.T) {
	samples := []float64{0.4, 1.1, 0.25, 2.0, 0.05}

	var forward, backward Consumption
	for i, v := range samples {
		_ = forward.Add(EnergySample{StartTime: fmt.Sprintf("2099-03-%02d 01:00", i+1), Data: ptr(v)})
	}
	for i := len(samples) - 1; i >= 0; i-- {
		_ = backward.Add(EnergySample{StartTime: fmt.Sprintf("2099-03-%02d 01:00", i+1), Data: ptr(samples[i])})
	}

	var sum float64
	for _, v := range samples {
		sum += v
	}
	if !approxEqual(forward.MonthlyConsumption["2099-03"], sum) ||
		!approxEqual(backward.MonthlyConsumption["2099-03"], sum) {
		t.Errorf("monthly totals %v / %v, want %v",
			forward.MonthlyConsumption["2099-03"], backward.MonthlyConsumption["2099-03"], sum)
	}
}

func TestConsumption_AddRejectsInvalidSample(t *testing.T) {
	tests := []struct {
		name   string
		sample EnergySample
	}{
		{name: "missing data", sample: EnergySample{StartTime: "2099-12-31 09:00"}},
		{name: "missing start_time", sample: EnergySample{Data: ptr(1.0)}},
		{name: "blank start_time", sample: EnergySample{StartTime: "   ", Data: ptr(1.0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Consumption
			if err := c.Add(tt.sample); !errors.Is(err, ErrInvalidSample) {
				t.Errorf("Add() error = %v, want ErrInvalidSample", err)
			}
			if c.PastSevenDays != nil {
				t.Error("invalid sample mutated the document")
			}
		})
	}
}

func TestStore_MergeEnergySampleIntoFixture(t *testing.T) {
	s := fixtureStore(t)
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	// The fixture already holds seven days; a new day evicts 2025-10-06.
	err := s.MergeEnergySample(selfDeviceID, EnergySample{StartTime: "2025-10-13 09:00", Data: ptr(0.5)})
	if err != nil {
		t.Fatalf("MergeEnergySample() error = %v", err)
	}

	d, _ := s.Device(selfDeviceID)
	c, found, err := d.Consumption()
	if err != nil || !found {
		t.Fatalf("Consumption() = %v, %v", found, err)
	}
	if len(c.PastSevenDays) != 7 {
		t.Errorf("len(PastSevenDays) = %d, want 7", len(c.PastSevenDays))
	}
	if _, ok := c.PastSevenDays["2025-10-06"]; ok {
		t.Error("2025-10-06 should have been evicted")
	}
	if !approxEqual(c.MonthlyConsumption["2025-10"], 46.51) {
		t.Errorf("2025-10 total = %v, want 46.51", c.MonthlyConsumption["2025-10"])
	}
	if c.MonthlyConsumption["2025-09"] != 130.81 {
		t.Errorf("2025-09 total changed: %v", c.MonthlyConsumption["2025-09"])
	}
	if rec.count() != 1 {
		t.Errorf("callback count = %d, want 1", rec.count())
	}
}

func TestStore_MergeEnergySampleInitialisesAbsentDocument(t *testing.T) {
	s := fixtureStore(t)

	if err := s.MergeEnergySample(sharedDeviceID, EnergySample{StartTime: "2099-12-31 09:00", Data: ptr(0.42)}); err != nil {
		t.Fatalf("MergeEnergySample() error = %v", err)
	}

	d, _ := s.Device(sharedDeviceID)
	c, found, _ := d.Consumption()
	if !found {
		t.Fatal("consumption document not created")
	}
	if *c.CurrentHour != 0.42 || c.PastSevenDays["2099-12-31"] != 0.42 || c.MonthlyConsumption["2099-12"] != 0.42 {
		t.Errorf("unexpected document: %+v", c)
	}
}

func TestStore_MergeEnergySampleMalformedDocument(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]Property{{ID: "p", HeatPumps: []Device{{ID: "d", ConsumptionData: "{broken"}}}})
	rec := &callbackRecorder{}
	s.SetCallback(rec.record)

	err := s.MergeEnergySample("d", EnergySample{StartTime: "2099-12-31 09:00", Data: ptr(1.0)})

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("MergeEnergySample() error = %v, want *DecodeError", err)
	}
	d, _ := s.Device("d")
	if d.ConsumptionData != "{broken" {
		t.Errorf("document was modified: %q", d.ConsumptionData)
	}
	if rec.count() != 0 {
		t.Errorf("callback count = %d, want 0", rec.count())
	}
}
