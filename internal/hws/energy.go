package hws

import "github.com/nerrad567/emerald-hws/internal/heatpump"

// Date key layouts used by the consumption document.
const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// HourlyUsage is the most recent hourly sample.
type HourlyUsage struct {
	KWh float64 `json:"current_hour"`

	// At is the sample's start_time, "YYYY-MM-DD HH:MM".
	At string `json:"last_data_at"`
}

// consumption decodes the device's consumption document. found is false
// for unknown devices and devices without a document.
func (c *Client) consumption(id string) (heatpump.Consumption, bool, error) {
	d, ok := c.store.Device(id)
	if !ok {
		return heatpump.Consumption{}, false, nil
	}
	return d.Consumption()
}

// HourlyEnergyUsage returns the most recent hourly sample. found is false
// when either current_hour or last_data_at has not been reported.
func (c *Client) HourlyEnergyUsage(id string) (HourlyUsage, bool, error) {
	cons, found, err := c.consumption(id)
	if err != nil || !found {
		return HourlyUsage{}, false, err
	}
	if cons.CurrentHour == nil || cons.LastDataAt == "" {
		return HourlyUsage{}, false, nil
	}
	return HourlyUsage{KWh: *cons.CurrentHour, At: cons.LastDataAt}, true, nil
}

// DailyEnergyUsage returns today's total (local date). found is false
// when nothing has been reported today yet.
func (c *Client) DailyEnergyUsage(id string) (float64, bool, error) {
	cons, found, err := c.consumption(id)
	if err != nil || !found {
		return 0, false, err
	}
	v, ok := cons.PastSevenDays[c.now().Format(dayLayout)]
	return v, ok, nil
}

// WeeklyEnergyUsage returns the sum of the retained daily totals.
func (c *Client) WeeklyEnergyUsage(id string) (float64, bool, error) {
	cons, found, err := c.consumption(id)
	if err != nil || !found || cons.PastSevenDays == nil {
		return 0, false, err
	}
	return cons.WeeklyTotal(), true, nil
}

// MonthlyEnergyUsage returns the current month's total (local time).
func (c *Client) MonthlyEnergyUsage(id string) (float64, bool, error) {
	cons, found, err := c.consumption(id)
	if err != nil || !found {
		return 0, false, err
	}
	v, ok := cons.MonthlyConsumption[c.now().Format(monthLayout)]
	return v, ok, nil
}

// HistoricalConsumption returns the whole decoded consumption document.
func (c *Client) HistoricalConsumption(id string) (heatpump.Consumption, bool, error) {
	return c.consumption(id)
}
