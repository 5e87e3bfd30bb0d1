package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/emerald-hws/internal/heatpump"
	"github.com/nerrad567/emerald-hws/internal/session"
)

const namespace = "emerald_hws"

// Layouts of the consumption document's day and month keys.
const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Metrics holds the per-device Prometheus gauges.
type Metrics struct {
	temperatureCurrent *prometheus.GaugeVec
	temperatureSet     *prometheus.GaugeVec
	switchState        *prometheus.GaugeVec
	heating            *prometheus.GaugeVec
	mode               *prometheus.GaugeVec
	online             *prometheus.GaugeVec
	energyCurrentHour  *prometheus.GaugeVec
	energyToday        *prometheus.GaugeVec
	energyMonth        *prometheus.GaugeVec
	updates            *prometheus.CounterVec
}

func deviceGauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		[]string{"device_id"},
	)
}

// NewMetrics creates the device gauges and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		temperatureCurrent: deviceGauge("temperature_current_celsius", "Current water temperature in degree celsius."),
		temperatureSet:     deviceGauge("temperature_set_celsius", "Target water temperature in degree celsius."),
		switchState:        deviceGauge("switch_on", "1 when the heat pump is switched on."),
		heating:            deviceGauge("heating", "1 when the heat pump is actively heating."),
		mode:               deviceGauge("mode", "Operating mode (0 boost, 1 normal, 2 quiet)."),
		online:             deviceGauge("online", "Online flag reported by the inventory."),
		energyCurrentHour:  deviceGauge("energy_current_hour_kwh", "Most recent hourly energy sample in kWh."),
		energyToday:        deviceGauge("energy_today_kwh", "Energy used today in kWh."),
		energyMonth:        deviceGauge("energy_month_kwh", "Energy used this month in kWh."),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "device_updates_total",
				Help:      "State change notifications per device.",
			},
			[]string{"device_id"},
		),
	}
	reg.MustRegister(
		m.temperatureCurrent,
		m.temperatureSet,
		m.switchState,
		m.heating,
		m.mode,
		m.online,
		m.energyCurrentHour,
		m.energyToday,
		m.energyMonth,
		m.updates,
	)
	return m
}

// ObserveDevice updates every gauge for d. Fields d has not reported are
// left untouched. Today and this month are taken from now.
//
// Returns the consumption decode error, if any; the state gauges are set
// regardless.
func (m *Metrics) ObserveDevice(d heatpump.Device, now time.Time) error {
	id := d.ID
	m.updates.WithLabelValues(id).Inc()

	if v, ok := d.LastState.Float(heatpump.KeyTempCurrent); ok {
		m.temperatureCurrent.WithLabelValues(id).Set(v)
	}
	if v, ok := d.LastState.Float(heatpump.KeyTempSet); ok {
		m.temperatureSet.WithLabelValues(id).Set(v)
	}
	if mode, ok := d.Mode(); ok {
		m.mode.WithLabelValues(id).Set(float64(mode))
	}
	m.switchState.WithLabelValues(id).Set(boolValue(d.IsOn()))
	m.heating.WithLabelValues(id).Set(boolValue(d.IsHeating()))
	m.online.WithLabelValues(id).Set(float64(d.IsOnline))

	c, found, err := d.Consumption()
	if err != nil || !found {
		return err
	}
	if c.CurrentHour != nil {
		m.energyCurrentHour.WithLabelValues(id).Set(*c.CurrentHour)
	}
	// A day or month absent from the document has no usage yet.
	m.energyToday.WithLabelValues(id).Set(c.PastSevenDays[now.Format(dayLayout)])
	m.energyMonth.WithLabelValues(id).Set(c.MonthlyConsumption[now.Format(monthLayout)])
	return nil
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// StatusSource reports the messaging session status.
type StatusSource interface {
	Status() session.Status
}

// RegisterSessionMetrics registers gauges that read src at scrape time.
func RegisterSessionMetrics(reg prometheus.Registerer, src StatusSource) {
	gauge := func(name, help string, value func(session.Status) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      name,
				Help:      help,
			},
			func() float64 { return value(src.Status()) },
		)
	}

	reg.MustRegister(
		gauge("state", "Session state (0 uninitialized, 1 connecting, 2 connected, 3 failed, 4 stopped).",
			func(s session.Status) float64 { return float64(s.State) }),
		gauge("connected", "1 when the session is connected.",
			func(s session.Status) float64 { return boolValue(s.State == session.StateConnected) }),
		gauge("consecutive_failures", "Connection failures since the last success.",
			func(s session.Status) float64 { return float64(s.ConsecutiveFailures) }),
		gauge("reconnects", "Reconnects performed since start.",
			func(s session.Status) float64 { return float64(s.Reconnects) }),
		gauge("subscriptions", "Topics the session is subscribed to.",
			func(s session.Status) float64 { return float64(s.Subscriptions) }),
		gauge("last_message_timestamp_seconds", "Unix time of the last inbound message, 0 if none.",
			func(s session.Status) float64 {
				if s.LastMessageAt.IsZero() {
					return 0
				}
				return float64(s.LastMessageAt.Unix()) + float64(s.LastMessageAt.Nanosecond())/float64(time.Second)
			}),
	)
}
