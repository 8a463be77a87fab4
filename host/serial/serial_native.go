//go:build !wasm

package serial

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/tarm/serial"
)

// NativePort wraps a tarm/serial port, or a file when the device is not a
// terminal, and holds the port's advisory lock.
type NativePort struct {
	port *serial.Port
	file *os.File
	lock *flock.Flock
	cfg  *Config
}

// Open locks and opens cfg.Device. Character devices are opened with
// tarm/serial; any other path is created or truncated as a capture file.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	lock := flock.New(lockPath(cfg))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", cfg.Device, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", cfg.Device, ErrLocked)
	}

	p := &NativePort{lock: lock, cfg: cfg}
	if isCharDevice(cfg.Device) {
		p.port, err = serial.OpenPort(&serial.Config{
			Name:        cfg.Device,
			Baud:        cfg.Baud,
			ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
		})
	} else {
		p.file, err = os.OpenFile(cfg.Device, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return p, nil
}

func isCharDevice(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func lockPath(cfg *Config) string {
	dir := cfg.LockDir
	if dir == "" {
		dir = os.TempDir()
	}
	abs, err := filepath.Abs(cfg.Device)
	if err != nil {
		abs = cfg.Device
	}
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(abs)
	return filepath.Join(dir, "rtc-trace"+name+".lock")
}

// Read reads data from the port
func (p *NativePort) Read(b []byte) (int, error) {
	if p.file != nil {
		return p.file.Read(b)
	}
	return p.port.Read(b)
}

// Write writes data to the port
func (p *NativePort) Write(b []byte) (int, error) {
	if p.file != nil {
		return p.file.Write(b)
	}
	return p.port.Write(b)
}

// Close closes the port and releases the lock
func (p *NativePort) Close() error {
	var err error
	switch {
	case p.file != nil:
		err = p.file.Close()
	case p.port != nil:
		err = p.port.Close()
	}
	if uerr := p.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// Flush pushes written data to the device or file
func (p *NativePort) Flush() error {
	if p.file != nil {
		return p.file.Sync()
	}
	return p.port.Flush()
}
