// Package credstore is the durable key→string mapping the session manager
// persists credentials into.
//
// Three keys are used, all in the application's namespace:
//
//	auth_token     access token
//	refresh_token  refresh token
//	user           identity as a flat JSON record
//
// The store is a durability primitive, not a security boundary: values are
// stored as given, with no expiry and no transactions across keys. Every write
// touches exactly one key so a failed write never disturbs the others.
//
// Two implementations are provided: SQLiteStore for real use and MemoryStore
// for tests and ephemeral sessions.
package credstore
