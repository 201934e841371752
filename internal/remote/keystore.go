package remote

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Keystore resolves private keys by id.
//
// A key id names a file in the keystore directory (with or without a .pem
// suffix). Ids that do not resolve there are treated as filesystem paths,
// which keeps ad-hoc keys outside the keystore usable.
type Keystore struct {
	dir string
}

// NewKeystore creates a keystore rooted at dir. An empty dir disables the
// directory lookup; ids are then always treated as paths.
func NewKeystore(dir string) *Keystore {
	return &Keystore{dir: dir}
}

// LoadPrivateKey returns the PEM-encoded key material for a key id.
func (k *Keystore) LoadPrivateKey(keyID string) ([]byte, error) {
	if keyID == "" {
		return nil, fmt.Errorf("%w: empty key id", ErrKeyNotFound)
	}

	if k.dir != "" && !strings.ContainsAny(keyID, "/\\") {
		for _, name := range []string{keyID, keyID + ".pem"} {
			data, err := os.ReadFile(filepath.Join(k.dir, name))
			if err == nil {
				return data, nil
			}
		}
	}

	// Fall back to treating the id as a path.
	data, err := os.ReadFile(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, keyID)
	}
	return data, nil
}
