// Package heatpump models Emerald hot-water heat pumps and keeps an
// in-memory mirror of their state.
//
// # Architecture
//
// The package has three parts:
//
//   - Types: Property, Device, the sparse State record and the
//     JSON-in-a-string ConsumptionData document.
//   - Store: a thread-safe collection of properties, mutated field by
//     field from inbound messages and read by the facade.
//   - Codec: Decode turns a topic and [header, payload] array into a
//     Message, Store.Apply folds it in, EncodeControl builds the
//     outbound control envelope.
//
// # Energy aggregation
//
// update_hour_energy samples overwrite current_hour and last_data_at,
// add to the day's past_seven_days total (keeping the seven newest
// days) and add to the month's monthly_consumption total.
//
// # Thread Safety
//
// Store methods are safe for concurrent use. The change callback runs
// after the store lock is released.
//
// # Usage
//
//	store := heatpump.NewStore()
//	store.SetCallback(func(id string) { log.Println("changed", id) })
//	store.ReplaceAll(properties)
//
//	msg, err := heatpump.Decode(topic, payload)
//	if err == nil {
//	    _ = store.Apply(msg)
//	}
package heatpump
