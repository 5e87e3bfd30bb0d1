package heatpump

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Message commands.
const (
	CommandUploadStatus     = "upload_status"
	CommandUpdateHourEnergy = "update_hour_energy"
	CommandControl          = "control"
)

// Outbound header constants.
const (
	NamespaceBusiness = "business"
	DirectionAppToGW  = "app2gw"
)

// Header is the first element of every [header, payload] envelope.
type Header struct {
	DeviceID   string `json:"device_id"`
	Namespace  string `json:"namespace"`
	Direction  string `json:"direction"`
	PropertyID string `json:"property_id"`
	Command    string `json:"command"`
	HWID       string `json:"hw_id"`
	MsgID      string `json:"msg_id"`
}

// Message is a decoded inbound envelope.
type Message struct {
	Topic string

	// DeviceID comes from the topic, not the header.
	DeviceID string

	Header  Header
	Payload json.RawMessage
}

// Envelope is an outbound [header, payload] pair.
type Envelope struct {
	Header  Header
	Payload map[string]any
}

// MarshalJSON encodes the envelope as a two-element array.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Header, e.Payload})
}

// DeviceIDFromTopic returns the trailing path segment of topic.
func DeviceIDFromTopic(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

// Decode parses an inbound payload received on topic.
//
// Returns ErrMalformedMessage when the payload is not a [header, payload]
// array, the header is not an object, or the topic has no device segment.
func Decode(topic string, payload []byte) (Message, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(payload, &parts); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if len(parts) != 2 {
		return Message{}, fmt.Errorf("%w: envelope has %d elements, want 2", ErrMalformedMessage, len(parts))
	}

	var header Header
	if err := json.Unmarshal(parts[0], &header); err != nil {
		return Message{}, fmt.Errorf("%w: header: %w", ErrMalformedMessage, err)
	}

	id := DeviceIDFromTopic(topic)
	if id == "" {
		return Message{}, fmt.Errorf("%w: no device id in topic %q", ErrMalformedMessage, topic)
	}

	return Message{
		Topic:    topic,
		DeviceID: id,
		Header:   header,
		Payload:  parts[1],
	}, nil
}

// Apply folds a decoded message into the store.
//
// upload_status sets one field per payload key, in sorted key order,
// notifying once per key. update_hour_energy merges one sample and
// notifies once. Unknown commands and unknown devices are ignored.
func (s *Store) Apply(msg Message) error {
	switch msg.Header.Command {
	case CommandUploadStatus:
		var fields map[string]any
		if err := json.Unmarshal(msg.Payload, &fields); err != nil {
			return fmt.Errorf("%w: upload_status payload: %w", ErrMalformedMessage, err)
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !s.SetField(msg.DeviceID, k, fields[k]) {
				return nil
			}
		}
		return nil

	case CommandUpdateHourEnergy:
		var sample EnergySample
		if err := json.Unmarshal(msg.Payload, &sample); err != nil {
			return fmt.Errorf("%w: update_hour_energy payload: %w", ErrMalformedMessage, err)
		}
		err := s.MergeEnergySample(msg.DeviceID, sample)
		if errors.Is(err, ErrDeviceNotFound) {
			s.logger.Debug("energy update for unknown device ignored", "device_id", msg.DeviceID)
			return nil
		}
		return err

	default:
		s.logger.Debug("ignoring message", "device_id", msg.DeviceID, "command", msg.Header.Command)
		return nil
	}
}

// EncodeControl builds a control envelope addressed to d.
// A nil device yields ErrDeviceNotFound.
func EncodeControl(d *Device, payload map[string]any) (Envelope, []byte, error) {
	if d == nil {
		return Envelope{}, nil, ErrDeviceNotFound
	}
	env := Envelope{
		Header: Header{
			DeviceID:   d.ID,
			Namespace:  NamespaceBusiness,
			Direction:  DirectionAppToGW,
			PropertyID: d.PropertyID,
			Command:    CommandControl,
			HWID:       d.MACAddress,
			MsgID:      NewMsgID(),
		},
		Payload: payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("encoding control envelope: %w", err)
	}
	return env, data, nil
}

// NewMsgID returns a random message identifier in [100, 9999].
func NewMsgID() string {
	return strconv.Itoa(100 + rand.Intn(9900))
}
