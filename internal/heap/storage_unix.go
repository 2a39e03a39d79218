//go:build unix

package heap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MmapStorage reserves an anonymous, page-aligned mapping up front (sized
// to the grid's MaxRegions bound) and tracks how much of it is committed,
// the same "reserve once, commit incrementally" shape as a real
// collector's heap reservation (grounded on the pack's mmap/uffd
// examples). Pages beyond the committed length are never touched.
type MmapStorage struct {
	data []byte
}

// NewAnonStorage reserves capBytes of anonymous memory via mmap.
func NewAnonStorage(capBytes uint64) (*MmapStorage, error) {
	if capBytes == 0 {
		capBytes = 1
	}

	data, err := unix.Mmap(-1, 0, int(capBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("heap: mmap reserve %d bytes: %w", capBytes, err)
	}

	return &MmapStorage{data: data[:0]}, nil
}

func (s *MmapStorage) Grow(nBytes uint64) error {
	if uint64(len(s.data)) >= nBytes {
		return nil
	}

	if nBytes > uint64(cap(s.data)) {
		return fmt.Errorf("heap: mmap reservation of %d bytes exceeded by commit request %d", cap(s.data), nBytes)
	}

	s.data = s.data[:nBytes]

	return nil
}

func (s *MmapStorage) Bytes() []byte { return s.data }

// Close releases the mapping.
func (s *MmapStorage) Close() error {
	if s.data == nil {
		return nil
	}

	full := s.data[:cap(s.data)]
	err := unix.Munmap(full)
	s.data = nil

	return err
}
