package core

import "errors"

var (
	// ErrNotSupported is returned when the counter has not been started.
	ErrNotSupported = errors.New("not_supported")

	// ErrNoMemory is returned when every compare channel is in use.
	ErrNoMemory = errors.New("no_memory")

	// ErrInvalidArgument is returned for a delta at or below the minimum margin.
	ErrInvalidArgument = errors.New("invalid_argument")

	// ErrCanceled is returned when the counter passed the safety margin while
	// the compare channel was being programmed. The alarm was never armed.
	ErrCanceled = errors.New("canceled")
)

// errno values reported by the firmware counter API.
const (
	errnoNOMEM    = 12
	errnoINVAL    = 22
	errnoNOTSUP   = 134
	errnoCANCELED = 140
)

// Errno maps a counter error to the negative errno value the firmware API
// reports. nil maps to 0 and unknown errors to -EINVAL.
func Errno(err error) int32 {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotSupported):
		return -errnoNOTSUP
	case errors.Is(err, ErrNoMemory):
		return -errnoNOMEM
	case errors.Is(err, ErrInvalidArgument):
		return -errnoINVAL
	case errors.Is(err, ErrCanceled):
		return -errnoCANCELED
	}
	return -errnoINVAL
}

// ErrnoError is the inverse of Errno for values read back from a trace.
func ErrnoError(errno int32) error {
	switch errno {
	case 0:
		return nil
	case -errnoNOTSUP:
		return ErrNotSupported
	case -errnoNOMEM:
		return ErrNoMemory
	case -errnoCANCELED:
		return ErrCanceled
	}
	return ErrInvalidArgument
}
