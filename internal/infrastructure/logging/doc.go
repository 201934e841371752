// Package logging wraps log/slog so the rest of the codebase logs through
// one consistent type.
//
// Output format, level and destination come from the logging section of
// config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Every record carries the service name and build version. Callers derive
// component loggers with With:
//
//	log := logger.With("component", "watch")
//	log.Info("watch started", "var_name", name)
//
// Secrets never go into log fields. Host passwords and JWT tokens in
// particular are scrubbed or omitted at the call site.
package logging
