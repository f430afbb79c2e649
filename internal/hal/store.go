// internal/hal/store.go
package hal

import (
	"errors"
	"fmt"
	"os"
)

// DefaultStoreSize matches a 1 KiB EEPROM part.
const DefaultStoreSize = 1024

var ErrOutOfRange = errors.New("hal: address out of range")

// ---- RAM ----

// MemStore is a zero-filled in-memory ByteStore.
type MemStore struct {
	data []byte
}

func NewMemStore(size int) *MemStore {
	if size <= 0 {
		size = DefaultStoreSize
	}
	return &MemStore{data: make([]byte, size)}
}

func (m *MemStore) Load(addr uint16) (byte, error) {
	if int(addr) >= len(m.data) {
		return 0, fmt.Errorf("%w: read %#04x", ErrOutOfRange, addr)
	}
	return m.data[addr], nil
}

func (m *MemStore) Store(addr uint16, b byte) error {
	if int(addr) >= len(m.data) {
		return fmt.Errorf("%w: write %#04x", ErrOutOfRange, addr)
	}
	m.data[addr] = b
	return nil
}

func (m *MemStore) Size() int { return len(m.data) }

// Bytes exposes the backing array for fault injection.
func (m *MemStore) Bytes() []byte { return m.data }

// ---- FILE ----

// FileStore keeps an EEPROM image in a regular file.
// Every Store is written through to the file.
type FileStore struct {
	f    *os.File
	data []byte
}

// OpenFileStore opens (or creates, zero-filled) an image of the given size.
func OpenFileStore(path string, size int) (*FileStore, error) {
	if size <= 0 {
		size = DefaultStoreSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("hal: open store %s: %w", path, err)
	}

	data := make([]byte, size)
	n, err := f.ReadAt(data, 0)
	if err != nil && n < size {
		// Short or empty image: pad with zeros like a blank part.
		if err := f.Truncate(int64(size)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("hal: size store %s: %w", path, err)
		}
	}

	return &FileStore{f: f, data: data}, nil
}

func (s *FileStore) Load(addr uint16) (byte, error) {
	if int(addr) >= len(s.data) {
		return 0, fmt.Errorf("%w: read %#04x", ErrOutOfRange, addr)
	}
	return s.data[addr], nil
}

func (s *FileStore) Store(addr uint16, b byte) error {
	if int(addr) >= len(s.data) {
		return fmt.Errorf("%w: write %#04x", ErrOutOfRange, addr)
	}
	if _, err := s.f.WriteAt([]byte{b}, int64(addr)); err != nil {
		return fmt.Errorf("hal: write store: %w", err)
	}
	s.data[addr] = b
	return nil
}

func (s *FileStore) Size() int { return len(s.data) }

func (s *FileStore) Close() error {
	if err := s.f.Sync(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
