package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileVault stores the sealed session record in a single file, written
// atomically via rename. It is the default vault for standalone devices.
type FileVault struct {
	path string
	box  *cipherBox
}

// NewFileVault creates a vault over the given file path. key must be
// KeySize bytes.
func NewFileVault(path string, key []byte) (*FileVault, error) {
	if path == "" {
		return nil, errors.New("vault path required")
	}
	box, err := newCipherBox(key)
	if err != nil {
		return nil, err
	}
	return &FileVault{path: path, box: box}, nil
}

// Save seals and persists the session record. The plaintext never touches
// the filesystem.
func (v *FileVault) Save(_ context.Context, s *Session) error {
	blob, err := v.box.seal(s)
	if err != nil {
		return err
	}

	tmp := v.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("vault write: %w", err)
	}
	if err := os.Rename(tmp, v.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("vault write: %w", err)
	}
	return nil
}

// Load reads and opens the sealed record. A missing file, an
// undecryptable blob, or an unknown schema all yield (nil, nil); the
// unreadable blob is cleared so the next Load is cheap.
func (v *FileVault) Load(ctx context.Context) (*Session, error) {
	blob, err := os.ReadFile(v.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("vault read: %w", err)
	}

	s, err := v.box.open(blob)
	if err != nil {
		_ = v.Clear(ctx)
		return nil, nil
	}
	return s, nil
}

// Clear removes the record. Clearing an empty vault is a no-op.
func (v *FileVault) Clear(context.Context) error {
	err := os.Remove(v.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("vault clear: %w", err)
	}
	return nil
}

// Path returns the vault file location.
func (v *FileVault) Path() string {
	return filepath.Clean(v.path)
}
