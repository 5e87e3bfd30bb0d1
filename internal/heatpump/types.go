package heatpump

import "encoding/json"

// Ownership distinguishes properties owned by the account from ones shared with it.
type Ownership string

// Ownership values.
const (
	OwnershipSelf   Ownership = "self"
	OwnershipShared Ownership = "shared"
)

// Property groups the heat pumps installed at one address.
type Property struct {
	ID        string    `json:"id"`
	Name      string    `json:"property_name,omitempty"`
	Ownership Ownership `json:"ownership,omitempty"`
	HeatPumps []Device  `json:"heat_pump"`
}

// DeepCopy returns a copy of the property whose devices share no mutable state with p.
func (p *Property) DeepCopy() Property {
	cp := *p
	if p.HeatPumps != nil {
		cp.HeatPumps = make([]Device, len(p.HeatPumps))
		for i := range p.HeatPumps {
			cp.HeatPumps[i] = p.HeatPumps[i].DeepCopy()
		}
	}
	return cp
}

// Device is a single hot-water heat pump as reported by the inventory and
// kept current by inbound messages.
type Device struct {
	ID           string `json:"id"`
	SerialNumber string `json:"serial_number,omitempty"`
	Brand        string `json:"brand,omitempty"`
	Model        string `json:"model,omitempty"`
	HWVersion    string `json:"hw_version,omitempty"`
	SoftVersion  string `json:"soft_version,omitempty"`

	// MACAddress is sent as hw_id in control envelopes.
	MACAddress string `json:"mac_address,omitempty"`

	// PropertyID is sent as property_id in control envelopes.
	PropertyID string `json:"property_id,omitempty"`

	// LastState holds the sparse status fields. A nil State means the
	// vendor sent no last_state at all.
	LastState State `json:"last_state"`

	// DeviceOperationStatus is the fallback heating indicator (1 = heating).
	DeviceOperationStatus *int `json:"device_operation_status,omitempty"`

	ConsumptionData ConsumptionData `json:"consumption_data"`

	IsOnline int `json:"is_online,omitempty"`
}

// DeepCopy returns a copy of the device that shares no mutable state with d.
func (d *Device) DeepCopy() Device {
	cp := *d
	cp.LastState = d.LastState.Clone()
	if d.DeviceOperationStatus != nil {
		v := *d.DeviceOperationStatus
		cp.DeviceOperationStatus = &v
	}
	return cp
}

// IsOn reports whether the switch field is 1, "on" or true.
// Any other value, or a missing field, is off.
func (d *Device) IsOn() bool {
	v, ok := d.LastState.Value(KeySwitch)
	if !ok {
		return false
	}
	switch sw := v.(type) {
	case string:
		return sw == "on"
	case bool:
		return sw
	}
	n, ok := asFloat(v)
	return ok && n == 1
}

// IsHeating prefers work_state == 1 and falls back to
// device_operation_status == 1 only when work_state is absent.
func (d *Device) IsHeating() bool {
	if ws, ok := d.LastState.Int(KeyWorkState); ok {
		return WorkState(ws) == WorkStateHeating
	}
	if _, present := d.LastState.Value(KeyWorkState); present {
		return false
	}
	return d.DeviceOperationStatus != nil && *d.DeviceOperationStatus == 1
}

// Mode returns the current operating mode, or false when mode has not been reported.
func (d *Device) Mode() (Mode, bool) {
	m, ok := d.LastState.Int(KeyMode)
	if !ok {
		return 0, false
	}
	return Mode(m), true
}

// Consumption decodes the device's consumption document.
// found is false when the device has none.
func (d *Device) Consumption() (c Consumption, found bool, err error) {
	c, found, err = d.ConsumptionData.Decode()
	if err != nil {
		return Consumption{}, false, &DecodeError{DeviceID: d.ID, Err: err}
	}
	return c, found, nil
}

// Mode is the heat pump operating mode.
type Mode int

// Operating modes as encoded on the wire.
const (
	ModeBoost  Mode = 0
	ModeNormal Mode = 1
	ModeQuiet  Mode = 2
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeBoost:
		return "boost"
	case ModeNormal:
		return "normal"
	case ModeQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// WorkState is the compressor activity reported in last_state.work_state.
type WorkState int

// Work states.
const (
	WorkStateIdle    WorkState = 0
	WorkStateHeating WorkState = 1
	WorkStateStandby WorkState = 2
)

// ConsumptionData is the consumption document as stored by the vendor:
// JSON text carried inside a JSON string. An empty value means absent.
type ConsumptionData string

// UnmarshalJSON accepts a JSON string holding the document, a bare
// object (kept verbatim) or null.
func (c *ConsumptionData) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ConsumptionData(s)
		return nil
	}
	*c = ConsumptionData(b)
	return nil
}

// MarshalJSON writes the document back as a JSON string, or null when absent.
func (c ConsumptionData) MarshalJSON() ([]byte, error) {
	if c == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

// Decode parses the document. found is false when c is empty or holds JSON null.
func (c ConsumptionData) Decode() (cons Consumption, found bool, err error) {
	if c == "" {
		return Consumption{}, false, nil
	}
	var raw *Consumption
	if err := json.Unmarshal([]byte(c), &raw); err != nil {
		return Consumption{}, false, err
	}
	if raw == nil {
		return Consumption{}, false, nil
	}
	return *raw, true, nil
}

// Consumption is the decoded energy document.
type Consumption struct {
	// CurrentHour is the most recent hourly sample in kWh.
	CurrentHour *float64 `json:"current_hour"`

	// LastDataAt is the start_time of the most recent sample.
	LastDataAt string `json:"last_data_at"`

	// PastSevenDays maps YYYY-MM-DD to kWh, at most MaxDailyEntries keys.
	PastSevenDays map[string]float64 `json:"past_seven_days"`

	// MonthlyConsumption maps YYYY-MM to kWh.
	MonthlyConsumption map[string]float64 `json:"monthly_consumption"`

	// Extra holds any other top-level keys of the vendor document so
	// they survive a merge.
	Extra map[string]json.RawMessage `json:"-"`
}

type consumptionFields Consumption

var consumptionKeys = []string{"current_hour", "last_data_at", "past_seven_days", "monthly_consumption"}

// UnmarshalJSON decodes the known fields and keeps the rest in Extra.
func (c *Consumption) UnmarshalJSON(b []byte) error {
	var known consumptionFields
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range consumptionKeys {
		delete(all, k)
	}
	if len(all) > 0 {
		known.Extra = all
	}
	*c = Consumption(known)
	return nil
}

// MarshalJSON encodes the known fields plus Extra. Known fields win over
// Extra keys of the same name.
func (c Consumption) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(consumptionFields(c))
	if err != nil || len(c.Extra) == 0 {
		return known, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(known, &all); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if _, ok := all[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// WeeklyTotal sums every retained day.
func (c Consumption) WeeklyTotal() float64 {
	var total float64
	for _, v := range c.PastSevenDays {
		total += v
	}
	return total
}
