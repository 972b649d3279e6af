//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"
)

const (
	hostFlashDefaultPath      = "conductor.eeprom"
	hostFlashDefaultSizeBytes = 1024
)

// hostFlash models the EEPROM as a small byte-writable file.
type hostFlash struct {
	mu   sync.Mutex
	f    *os.File
	size uint32
}

func newHostFlash(path string) *hostFlash {
	if path == "" {
		path = os.Getenv("CONDUCTOR_EEPROM_PATH")
	}
	if path == "" {
		path = hostFlashDefaultPath
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return &hostFlash{f: nil}
	}

	size := uint32(hostFlashDefaultSizeBytes)
	if st, err := f.Stat(); err == nil && st.Size() >= int64(size) {
		size = uint32(st.Size())
	} else {
		if err := f.Truncate(int64(size)); err != nil {
			_ = f.Close()
			return &hostFlash{f: nil}
		}
	}
	return &hostFlash{f: f, size: size}
}

func (f *hostFlash) SizeBytes() uint32 { return f.size }

func (f *hostFlash) ReadAt(p []byte, off uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return 0, ErrNotImplemented
	}
	if off >= f.size {
		return 0, fmt.Errorf("eeprom read at %d: %w", off, os.ErrInvalid)
	}
	maxN := int(f.size - off)
	if len(p) > maxN {
		p = p[:maxN]
	}
	return f.f.ReadAt(p, int64(off))
}

func (f *hostFlash) WriteAt(p []byte, off uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return 0, ErrNotImplemented
	}
	if off >= f.size {
		return 0, fmt.Errorf("eeprom write at %d: %w", off, os.ErrInvalid)
	}
	maxN := int(f.size - off)
	if len(p) > maxN {
		p = p[:maxN]
	}
	return f.f.WriteAt(p, int64(off))
}
