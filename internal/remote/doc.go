// Package remote provides SSH session access to registered hosts.
//
// The action engine talks to remote machines through the Dialer interface,
// which hides connection setup and authentication. The production
// implementation uses golang.org/x/crypto/ssh with password or private-key
// auth; tests substitute a fake dialer.
//
// Private keys are resolved through the Keystore: a key id names a file in
// the configured key directory, falling back to treating the id as a
// filesystem path for ad-hoc keys.
package remote
