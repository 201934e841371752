// Package config loads the YAML configuration file, layers environment
// variable overrides on top, applies defaults and validates the result.
// Loading happens once at startup; the rest of the process reads the
// returned struct.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// Secrets (the JWT secret, broker passwords, InfluxDB tokens) belong in
// environment variables rather than the file, and the file itself should be
// mode 0600 when they appear there anyway.
package config
