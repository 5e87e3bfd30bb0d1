// Package hws is the query/control facade for Emerald hot-water heat pumps.
//
// A Client signs in to the vendor REST API, loads the account's heat pumps
// into a heatpump.Store, subscribes to each device over the messaging
// session and keeps the store current from inbound messages. Queries are
// plain store reads; control commands are encoded and published on the
// device's to-gateway topic.
//
// # Usage
//
//	client := hws.New(hws.Credentials{Email: e, Password: p}, restClient, manager, nil)
//	client.ReplaceCallback(func(id string) { log.Println("updated", id) })
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	if !client.IsOn(id) {
//	    _ = client.TurnOn(ctx, id)
//	}
package hws
