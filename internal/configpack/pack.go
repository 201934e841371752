package configpack

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// Ext is the file extension for encrypted packs.
const Ext = ".efpack"

// magic identifies pack files. The trailing byte is the format version.
var magic = []byte("EFPK\x01")

// Codec seals and opens pack files with a single symmetric key.
type Codec struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewCodec loads the pack key from keyFile and returns a ready codec.
// The key file holds either 32 raw bytes or 64 hex characters.
func NewCodec(keyFile string) (*Codec, error) {
	raw, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("configpack: read key file: %w", err)
	}

	key := bytes.TrimSpace(raw)
	if len(key) == 2*chacha20poly1305.KeySize {
		decoded, err := hex.DecodeString(string(key))
		if err == nil {
			key = decoded
		}
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("configpack: init cipher: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Seal wraps plaintext into the pack envelope.
func (c *Codec) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("configpack: nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+len(nonce)+len(plaintext)+16)
	out = append(out, magic...)
	out = append(out, nonce...)
	out = c.aead.Seal(out, nonce, plaintext, magic)
	return out, nil
}

// Open unwraps a pack envelope and returns the plaintext.
func (c *Codec) Open(data []byte) ([]byte, error) {
	if len(data) < len(magic) {
		return nil, ErrTruncated
	}
	if !bytes.Equal(data[:len(magic)], magic) {
		return nil, ErrBadMagic
	}

	body := data[len(magic):]
	nonceSize := c.aead.NonceSize()
	if len(body) < nonceSize {
		return nil, ErrTruncated
	}

	plaintext, err := c.aead.Open(nil, body[:nonceSize], body[nonceSize:], magic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return plaintext, nil
}

// SealToFile seals plaintext and writes it to path.
func (c *Codec) SealToFile(path string, plaintext []byte) error {
	sealed, err := c.Seal(plaintext)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, sealed, 0o600); err != nil {
		return fmt.Errorf("configpack: write %s: %w", path, err)
	}
	return nil
}

// OpenFile reads and unwraps a pack file.
func (c *Codec) OpenFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configpack: read %s: %w", path, err)
	}
	return c.Open(data)
}

// PackPath returns the .efpack sibling of a .json path. Paths without a
// .json suffix get the pack extension appended.
func PackPath(jsonPath string) string {
	if strings.HasSuffix(jsonPath, ".json") {
		return strings.TrimSuffix(jsonPath, ".json") + Ext
	}
	return jsonPath + Ext
}

// LoadWithPriority loads the content for a .json path, preferring the
// encrypted .efpack sibling when one exists and a codec is available.
// It reports whether the encrypted tier was used.
func LoadWithPriority(codec *Codec, jsonPath string) ([]byte, bool, error) {
	if codec != nil {
		packPath := PackPath(jsonPath)
		if _, err := os.Stat(packPath); err == nil {
			content, err := codec.OpenFile(packPath)
			if err != nil {
				return nil, false, err
			}
			return content, true, nil
		}
	}

	content, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, false, fmt.Errorf("configpack: read %s: %w", jsonPath, err)
	}
	return content, false, nil
}
