package guest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrStorageQuota is returned when a write would exceed the configured
// capacity. The mutation that triggered the write is rejected, never
// half-applied.
var ErrStorageQuota = errors.New("guest storage quota exceeded")

// Storage persists the entire guest collection as one serialized blob.
// Writes are synchronous: when Write returns, the data is durable.
type Storage interface {
	Read() ([]byte, error)
	Write(data []byte) error
	// Capacity returns the hard byte limit, or 0 for unlimited.
	Capacity() int
}

// FileStorage is a Storage backed by a single file, written atomically via a
// temp file rename.
type FileStorage struct {
	path     string
	capacity int
}

// NewFileStorage creates a FileStorage at path with a byte capacity
// (0 means unlimited).
func NewFileStorage(path string, capacity int) *FileStorage {
	return &FileStorage{path: path, capacity: capacity}
}

func (fs *FileStorage) Read() ([]byte, error) {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guest storage: %w", err)
	}
	return data, nil
}

func (fs *FileStorage) Write(data []byte) error {
	if fs.capacity > 0 && len(data) > fs.capacity {
		return ErrStorageQuota
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write guest storage: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("replace guest storage: %w", err)
	}
	return nil
}

func (fs *FileStorage) Capacity() int { return fs.capacity }

// DefaultPath returns the conventional guest storage location under the
// user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "listali", "guest.json"), nil
}
