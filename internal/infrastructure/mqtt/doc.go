// Package mqtt is the broker connection behind the identity bus.
//
// Each client instance owns a subtree under the configured prefix:
//
//	{prefix}/session/{client_id}/status          online/offline, retained, LWT
//	{prefix}/session/{client_id}/identity        retained identity summary
//	{prefix}/session/{client_id}/command/logout  remote logout request
//
// Credentials never travel on the bus, only the identity summary.
//
// The client reconnects on its own. After each reconnect it republishes its
// status and restores its subscriptions, then runs the SetOnConnect hook.
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishRetained(client.Topics().SessionIdentity(client.ClientID()), payload)
package mqtt
