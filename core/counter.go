package core

// Callback is invoked when an alarm's target has been reached. It runs in the
// device's interrupt context and must not block. Calling SetAlarm from a
// callback is allowed.
type Callback func(c Counter, userData any)

// Counter is the application-facing API of one extended counter unit.
// Each hardware variant is a CounterHardware adapter behind the same Device.
type Counter interface {
	// Start enables the hardware counter.
	Start() error

	// Stop disables the hardware counter and invalidates armed alarms.
	Stop() error

	// Read returns the 32-bit logical tick count.
	Read() uint32

	// SetAlarm arms a one-shot alarm delta ticks from now.
	SetAlarm(cb Callback, delta uint32, userData any) error

	// PendingInterrupt reports whether an interrupt for this unit has been
	// raised but not handled yet.
	PendingInterrupt() bool
}

var _ Counter = (*Device)(nil)
