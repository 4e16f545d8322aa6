// Package session owns the client's authenticated session.
//
// It provides:
//   - State, the observable current identity (replay-latest, synchronous,
//     ordered fan-out to subscribers)
//   - Manager, the only writer of the credential store and of State, with
//     Login, Register, Refresh and Logout
//   - Event and Recorder, a hook for auditing every operation
//
// Lifecycle:
//
//	state := session.NewState()
//	mgr, err := session.NewManager(session.Deps{Store: store, Exchanger: client, State: state})
//	mgr.Start(ctx) // seed from the store
//	...
//	mgr.Login(ctx, email, password)
//
// The Manager is constructed once at startup, shared by reference, and never
// torn down. Everything other than the Manager reads CurrentIdentity, HasRole
// and Can, or subscribes to State; nothing else writes the store.
//
// Observers are called synchronously while the Manager applies a change, so
// by the time Login returns every subscriber has seen the new identity. An
// observer must not call Login, Register, Refresh or Logout.
package session
