// Package serial opens the port trace frames are written to.
package serial

import (
	"errors"
	"io"
)

// ErrLocked is returned when another process holds the port.
var ErrLocked = errors.New("port is in use")

// Port is an open trace port. It may be a tty or a plain capture file.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3") or a capture file
	Device string

	// Baud rate, ignored for USB CDC and files
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int

	// LockDir holds the advisory lock files. Empty selects os.TempDir.
	LockDir string
}

// DefaultConfig returns the configuration used by the host tools.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100,
	}
}
