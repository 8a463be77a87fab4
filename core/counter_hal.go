package core

import "strconv"

// Hardware counter geometry. The logical counter is 32 bits wide; the
// peripheral only provides the low CounterBits.
const (
	CounterBits   = 24
	CounterPeriod = 1 << CounterBits
	CounterMask   = CounterPeriod - 1

	// DefaultMinDelta is the smallest delta (exclusive) SetAlarm accepts.
	// Writing a compare value N or N+1 ticks ahead of the counter may not
	// produce a compare event.
	DefaultMinDelta = 2

	// MaxChannels bounds the compare channel count of any supported peripheral.
	MaxChannels = 4
)

// EventKind identifies an interrupt source of a counter peripheral.
type EventKind uint8

const (
	EventOverflow EventKind = iota
	EventCompare
)

// Event is posted by a CounterHardware adapter when the peripheral raises an
// interrupt. Channel is only meaningful for EventCompare.
type Event struct {
	Kind    EventKind
	Channel uint8
}

func (e Event) String() string {
	if e.Kind == EventOverflow {
		return "overflow"
	}
	return "compare" + strconv.Itoa(int(e.Channel))
}

// CounterHardware is the register-level contract a Device drives.
// Platform-specific implementations handle the actual peripheral.
type CounterHardware interface {
	// Enable starts the free-running counter.
	Enable()

	// Disable stops the counter. The raw count is retained.
	Disable()

	// Raw returns the current raw count (CounterBits wide).
	Raw() uint32

	// CompareSet programs channel ch to match raw value v and clears any
	// latched compare event for it. irq enables the compare interrupt.
	CompareSet(ch uint8, v uint32, irq bool)

	// CompareDisable disables the channel's compare event and interrupt and
	// clears any latched event.
	CompareDisable(ch uint8)

	// OverflowPending reports whether an overflow has happened that has not
	// been acknowledged with AckOverflow.
	OverflowPending() bool

	// AckOverflow clears the latched overflow event.
	AckOverflow()

	// Pending reports whether the peripheral's interrupt line is pending.
	Pending() bool

	// ChannelCount returns the number of compare channels.
	ChannelCount() uint8

	// Attach installs the interrupt handler and enables the overflow
	// interrupt. The handler must be called for one event at a time.
	Attach(handler func(Event))
}
