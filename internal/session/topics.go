package session

// Topics builds the per-device topic names.
//
//	topics := session.Topics{Prefix: "ep/heat_pump"}
//	topics.FromGateway("hws-1")  // "ep/heat_pump/from_gw/hws-1"
type Topics struct {
	Prefix string
}

// FromGateway returns the topic carrying status and energy updates from a device.
//
// Example: ep/heat_pump/from_gw/{id}
func (t Topics) FromGateway(deviceID string) string {
	return t.Prefix + "/from_gw/" + deviceID
}

// ToGateway returns the topic carrying control commands to a device.
//
// Example: ep/heat_pump/to_gw/{id}
func (t Topics) ToGateway(deviceID string) string {
	return t.Prefix + "/to_gw/" + deviceID
}
