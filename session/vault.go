package session

import (
	"context"
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the required length of a vault encryption key.
const KeySize = chacha20poly1305.KeySize

// ErrVaultKeySize is returned when the configured key is not KeySize bytes.
var ErrVaultKeySize = errors.New("vault key must be 32 bytes")

// Vault persists the device's single session record at rest, encrypted.
// Load returns (nil, nil) when no usable record exists: absence, an
// undecryptable blob, and a schema mismatch are all treated the same way
// so a corrupt store forces re-authentication instead of a crash.
type Vault interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}

type cipherBox struct {
	key []byte
}

func newCipherBox(key []byte) (*cipherBox, error) {
	if len(key) != KeySize {
		return nil, ErrVaultKeySize
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &cipherBox{key: k}, nil
}

func (c *cipherBox) seal(s *Session) ([]byte, error) {
	plain, err := Encode(s)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plain, nil), nil
}

// open decrypts and decodes a sealed blob. Any failure returns
// ErrInvalidRecord so callers uniformly treat the record as absent.
func (c *cipherBox) open(blob []byte) (*Session, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return nil, err
	}
	if len(blob) < aead.NonceSize() {
		return nil, ErrInvalidRecord
	}

	nonce, sealed := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrInvalidRecord
	}

	return Decode(plain)
}
