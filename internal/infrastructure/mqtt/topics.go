package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "catalog"

// Topics builds the identity bus topic hierarchy.
//
// Every client instance owns one subtree keyed by its client ID:
//
//	topics := mqtt.Topics{Prefix: "catalog"}
//	topics.SessionIdentity("desk-01")
//	// Returns: "catalog/session/desk-01/identity"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// SessionIdentity returns the retained identity summary topic of a client.
//
// Example: catalog/session/desk-01/identity
func (t Topics) SessionIdentity(clientID string) string {
	return fmt.Sprintf("%s/session/%s/identity", t.prefix(), clientID)
}

// SessionStatus returns the online/offline status topic of a client. It also
// carries the Last Will message.
//
// Example: catalog/session/desk-01/status
func (t Topics) SessionStatus(clientID string) string {
	return fmt.Sprintf("%s/session/%s/status", t.prefix(), clientID)
}

// SessionLogoutCommand returns the topic on which a remote logout is requested.
//
// Example: catalog/session/desk-01/command/logout
func (t Topics) SessionLogoutCommand(clientID string) string {
	return fmt.Sprintf("%s/session/%s/command/logout", t.prefix(), clientID)
}

// AllSessionIdentities returns a pattern matching every client's identity topic.
//
// Pattern: catalog/session/+/identity
func (t Topics) AllSessionIdentities() string {
	return fmt.Sprintf("%s/session/+/identity", t.prefix())
}
