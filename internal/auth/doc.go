// Package auth defines the identity model shared by the session and
// navigation layers.
//
// It provides:
//   - Identity, the id/name/email/role record issued by the catalog server
//   - Bundle, the access token + refresh token + identity unit of session truth
//   - A closed role set (ADMIN, USER) with a static role-permission mapping
//   - Error kinds for failed exchanges, checked with errors.Is
//   - Local input validation for the login and registration forms
//
// Nothing in this package talks to the network or to storage.
package auth
