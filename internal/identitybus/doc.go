// Package identitybus mirrors the session identity onto the MQTT broker.
//
// A Publisher subscribes to session.State and publishes a retained summary
// (id, name, email, role) to {prefix}/session/{client_id}/identity every
// time the identity changes. Tokens are never published. The same client
// listens on {prefix}/session/{client_id}/command/logout and signs the user
// out when a message arrives there.
//
// Publishing happens on a background goroutine, so a slow broker never
// holds up the session observers. Only the newest identity is kept while a
// publish is in flight.
package identitybus
