package configpack

import "errors"

var (
	// ErrBadMagic is returned when a file does not start with the pack
	// magic header.
	ErrBadMagic = errors.New("configpack: not a pack file")

	// ErrDecrypt is returned when a pack fails authentication or
	// decryption, typically from tampering or a wrong key.
	ErrDecrypt = errors.New("configpack: decrypt failed")

	// ErrKeySize is returned when the key file does not hold a valid
	// 256-bit key.
	ErrKeySize = errors.New("configpack: key must be 32 bytes")

	// ErrTruncated is returned when a pack file is too short to contain
	// the header and nonce.
	ErrTruncated = errors.New("configpack: truncated pack")
)
