package heatpump

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// MaxDailyEntries is the number of days retained in past_seven_days.
const MaxDailyEntries = 7

// EnergySample is the payload of an update_hour_energy message.
type EnergySample struct {
	// StartTime is "YYYY-MM-DD HH:MM".
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time,omitempty"`
	Data      *float64 `json:"data"`
}

// Keys returns the day key (first space-separated token of StartTime)
// and the month key (first seven characters of the day key).
func (s EnergySample) Keys() (day, month string) {
	day, _, _ = strings.Cut(strings.TrimSpace(s.StartTime), " ")
	month = day
	if len(month) > 7 {
		month = month[:7]
	}
	return day, month
}

func (s EnergySample) validate() error {
	if s.Data == nil {
		return fmt.Errorf("%w: missing data", ErrInvalidSample)
	}
	day, _ := s.Keys()
	if day == "" {
		return fmt.Errorf("%w: missing start_time", ErrInvalidSample)
	}
	return nil
}

// Add folds one hourly sample into c.
//
// current_hour and last_data_at are overwritten. The day and month
// totals are incremented, and past_seven_days is trimmed to the
// MaxDailyEntries largest date keys.
func (c *Consumption) Add(s EnergySample) error {
	if err := s.validate(); err != nil {
		return err
	}
	day, month := s.Keys()
	kwh := *s.Data

	c.CurrentHour = &kwh
	c.LastDataAt = s.StartTime

	if c.PastSevenDays == nil {
		c.PastSevenDays = make(map[string]float64)
	}
	if c.MonthlyConsumption == nil {
		c.MonthlyConsumption = make(map[string]float64)
	}

	c.PastSevenDays[day] += kwh
	evictOldestDays(c.PastSevenDays, MaxDailyEntries)

	c.MonthlyConsumption[month] += kwh
	return nil
}

// evictOldestDays deletes the smallest keys until at most limit remain.
// ISO dates sort chronologically, so this drops the oldest days.
func evictOldestDays(days map[string]float64, limit int) {
	if len(days) <= limit {
		return
	}
	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys[:len(keys)-limit] {
		delete(days, k)
	}
}

// mergeInto applies s to the device's consumption document in place.
// Caller must hold the store write lock.
func mergeInto(d *Device, s EnergySample) error {
	if err := s.validate(); err != nil {
		return err
	}
	cons, _, err := d.Consumption()
	if err != nil {
		return err
	}
	if err := cons.Add(s); err != nil {
		return err
	}
	encoded, err := json.Marshal(cons)
	if err != nil {
		return fmt.Errorf("encoding consumption_data: %w", err)
	}
	d.ConsumptionData = ConsumptionData(encoded)
	return nil
}
