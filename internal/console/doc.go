// Package console serves the local navigation console: the login, register
// and logout actions, the gated views of the catalog app, and a websocket
// feed of the current identity.
//
// Every view is wrapped by the navigator's gate for its route, so a request
// the gates would refuse gets a 303 to the redirect target instead of the
// view. Unknown paths land on the fallback route.
//
// The server follows the same lifecycle as the other components:
//
//	srv, err := console.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package console
