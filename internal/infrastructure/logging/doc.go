// Package logging is the structured logger shared by every component.
//
//	logging:
//	  level: info     # debug, info, warn, error
//	  format: json    # json, text
//	  output: stdout  # stdout, stderr
//
// Entries carry service and version. Attributes whose key names a secret
// (token, refresh_token, password, authorization, ...) are written as
// [REDACTED]; identities should still be logged by id and role only.
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("session established", "user_id", id.ID, "role", id.Role)
package logging
