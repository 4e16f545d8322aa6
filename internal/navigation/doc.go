// Package navigation decides whether the user may enter a view.
//
// Two gates read the session and never change it:
//   - AuthGate permits when a session is established, else redirects to the
//     public entry point (/auth/login)
//   - RoleGate permits when the current identity holds one of the route's
//     declared roles, else redirects to /unauthorized
//
// Routes without a role declaration follow an explicit MissingRolesPolicy;
// FailClosed is the default.
//
// A Navigator runs the gates in order for each navigation, authentication
// first, and keeps the current location. Guard adapts the same evaluation
// to net/http middleware for the console router.
package navigation
