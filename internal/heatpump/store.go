package heatpump

import (
	"sync"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Callback is invoked after a device record changes.
type Callback func(deviceID string)

// Store is the in-memory mirror of every property and heat pump on the account.
//
// A single RWMutex guards the nested records. The change callback is
// always invoked after the lock is released, so it may query the store.
//
// All public methods are thread-safe.
type Store struct {
	mu         sync.RWMutex
	properties []Property
	index      map[string]position // device ID → location in properties

	cbMu     sync.RWMutex
	callback Callback

	logger Logger
}

type position struct {
	property int
	device   int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		index:  make(map[string]position),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetCallback replaces the change callback. A nil fn disables notifications.
func (s *Store) SetCallback(fn Callback) {
	s.cbMu.Lock()
	s.callback = fn
	s.cbMu.Unlock()
}

func (s *Store) notify(ids ...string) {
	s.cbMu.RLock()
	fn := s.callback
	s.cbMu.RUnlock()

	if fn == nil {
		return
	}
	for _, id := range ids {
		fn(id)
	}
}

// ReplaceAll swaps in a new inventory. The store keeps its own deep copy.
// A device ID appearing more than once keeps its first occurrence for lookups.
// The callback fires once per device after the swap.
func (s *Store) ReplaceAll(properties []Property) {
	props := make([]Property, len(properties))
	index := make(map[string]position)
	var ids []string

	for pi := range properties {
		props[pi] = properties[pi].DeepCopy()
		for di, d := range props[pi].HeatPumps {
			if _, dup := index[d.ID]; dup {
				s.logger.Warn("duplicate device id in inventory", "device_id", d.ID)
				continue
			}
			index[d.ID] = position{property: pi, device: di}
			ids = append(ids, d.ID)
		}
	}

	s.mu.Lock()
	s.properties = props
	s.index = index
	s.mu.Unlock()

	s.logger.Info("device store replaced", "properties", len(props), "devices", len(ids))
	s.notify(ids...)
}

// Device returns a snapshot of the device. ok is false for unknown IDs.
func (s *Store) Device(id string) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.locate(id)
	if d == nil {
		return Device{}, false
	}
	return d.DeepCopy(), true
}

// DeviceIDs returns every device ID in inventory order.
func (s *Store) DeviceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.index))
	seen := make(map[string]struct{}, len(s.index))
	for pi := range s.properties {
		for _, d := range s.properties[pi].HeatPumps {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// Properties returns a deep copy of the inventory.
func (s *Store) Properties() []Property {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Property, len(s.properties))
	for i := range s.properties {
		out[i] = s.properties[i].DeepCopy()
	}
	return out
}

// Len returns the number of distinct devices.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// SetField sets last_state[key] = value. It reports false, without
// notifying, when the device is unknown.
func (s *Store) SetField(id, key string, value any) bool {
	s.mu.Lock()
	d := s.locate(id)
	if d == nil {
		s.mu.Unlock()
		s.logger.Debug("state update for unknown device ignored", "device_id", id, "key", key)
		return false
	}
	if d.LastState == nil {
		d.LastState = make(State)
	}
	d.LastState[key] = value
	s.mu.Unlock()

	s.notify(id)
	return true
}

// MergeEnergySample folds an hourly energy sample into the device's
// consumption document and notifies once.
//
// Returns:
//   - ErrDeviceNotFound for unknown devices
//   - ErrInvalidSample when data or start_time is missing
//   - *DecodeError when the stored document is not valid JSON (left untouched)
func (s *Store) MergeEnergySample(id string, sample EnergySample) error {
	s.mu.Lock()
	d := s.locate(id)
	if d == nil {
		s.mu.Unlock()
		return ErrDeviceNotFound
	}
	if err := mergeInto(d, sample); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.notify(id)
	return nil
}

// locate returns a pointer into s.properties. Caller must hold s.mu.
func (s *Store) locate(id string) *Device {
	pos, ok := s.index[id]
	if !ok {
		return nil
	}
	return &s.properties[pos.property].HeatPumps[pos.device]
}
