// Package sim provides a simulated 24-bit RTC peripheral for host builds and
// tests. It behaves like the nRF5 RTC: a free-running counter with an
// overflow event and compare channels that match when the counter steps onto
// the programmed value.
package sim

import (
	"sync"

	"rtccounter/core"
)

type compare struct {
	value   uint32
	enabled bool // event routing enabled
	irq     bool // interrupt enabled
	pending bool // event latched
}

// RTC is a simulated counter peripheral. Time only moves when Advance is
// called, which makes every interleaving reproducible.
type RTC struct {
	mu         sync.Mutex
	channels   uint8
	running    bool
	counter    uint32
	ovfPending bool
	ovfIRQ     bool
	cc         [core.MaxChannels]compare
	handler    func(core.Event)

	// onCompareSet runs after a compare register write, outside the lock.
	onCompareSet func(ch uint8, v uint32)
}

var _ core.CounterHardware = (*RTC)(nil)

// New returns a stopped peripheral with the given number of compare channels.
func New(channels uint8) *RTC {
	if channels > core.MaxChannels {
		channels = core.MaxChannels
	}
	return &RTC{channels: channels}
}

func (r *RTC) Enable() {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
}

func (r *RTC) Disable() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// Running reports whether the counter is enabled.
func (r *RTC) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RTC) Raw() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counter
}

func (r *RTC) CompareSet(ch uint8, v uint32, irq bool) {
	if ch >= r.channels {
		return
	}
	r.mu.Lock()
	r.cc[ch] = compare{value: v & core.CounterMask, enabled: true, irq: irq}
	hook := r.onCompareSet
	r.mu.Unlock()

	if hook != nil {
		hook(ch, v&core.CounterMask)
	}
}

func (r *RTC) CompareDisable(ch uint8) {
	if ch >= r.channels {
		return
	}
	r.mu.Lock()
	r.cc[ch].enabled = false
	r.cc[ch].irq = false
	r.cc[ch].pending = false
	r.mu.Unlock()
}

// Compare returns the programmed value of ch and whether it is enabled.
func (r *RTC) Compare(ch uint8) (uint32, bool) {
	if ch >= r.channels {
		return 0, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cc[ch].value, r.cc[ch].enabled
}

func (r *RTC) OverflowPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ovfPending
}

func (r *RTC) AckOverflow() {
	r.mu.Lock()
	r.ovfPending = false
	r.mu.Unlock()
}

func (r *RTC) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ovfPending && r.ovfIRQ {
		return true
	}
	for i := uint8(0); i < r.channels; i++ {
		if r.cc[i].pending && r.cc[i].irq {
			return true
		}
	}
	return false
}

func (r *RTC) ChannelCount() uint8 { return r.channels }

func (r *RTC) Attach(handler func(core.Event)) {
	r.mu.Lock()
	r.handler = handler
	r.ovfIRQ = true
	r.mu.Unlock()
}

// SetCounter forces the raw count without raising events.
func (r *RTC) SetCounter(raw uint32) {
	r.mu.Lock()
	r.counter = raw & core.CounterMask
	r.mu.Unlock()
}

// OnCompareSet installs a hook that runs after every compare register
// write. Tests use it to model preemption while an alarm is being armed.
func (r *RTC) OnCompareSet(hook func(ch uint8, v uint32)) {
	r.mu.Lock()
	r.onCompareSet = hook
	r.mu.Unlock()
}

// Advance moves the counter forward by ticks, raising events in the order
// they occur. At a shared tick the overflow is raised before compares.
// Advance is a no-op while the counter is stopped.
func (r *RTC) Advance(ticks uint32) {
	for ticks > 0 {
		used := r.Step(ticks)
		if used == 0 {
			return
		}
		ticks -= used
	}
}

// Step advances to the next tick that raises events, or by ticks if none
// comes first, and returns the number of ticks consumed. Callers that
// service events between steps see every compare at its own tick.
func (r *RTC) Step(ticks uint32) uint32 {
	if ticks == 0 {
		return 0
	}
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return 0
	}
	var buf [core.MaxChannels + 1]core.Event
	events, used := r.stepLocked(ticks, buf[:0])
	h := r.handler
	r.mu.Unlock()

	if h != nil {
		for _, ev := range events {
			h(ev)
		}
	}
	return used
}

// stepLocked advances to the next event or by ticks, whichever is first,
// and returns the raised interrupts and the number of ticks consumed.
func (r *RTC) stepLocked(ticks uint32, events []core.Event) ([]core.Event, uint32) {
	next := core.CounterPeriod - r.counter
	for i := uint8(0); i < r.channels; i++ {
		if d := r.distance(i); d != 0 && d < next {
			next = d
		}
	}
	if next > ticks {
		r.counter = (r.counter + ticks) & core.CounterMask
		return events, ticks
	}

	wrapped := r.counter+next == core.CounterPeriod
	r.counter = (r.counter + next) & core.CounterMask
	if wrapped {
		r.ovfPending = true
		if r.ovfIRQ {
			events = append(events, core.Event{Kind: core.EventOverflow})
		}
	}
	for i := uint8(0); i < r.channels; i++ {
		c := &r.cc[i]
		if c.enabled && c.value == r.counter {
			c.pending = true
			if c.irq {
				events = append(events, core.Event{Kind: core.EventCompare, Channel: i})
			}
		}
	}
	return events, next
}

// distance returns the ticks until channel i next matches, 0 if disabled.
// A compare equal to the current count matches only after a full period.
func (r *RTC) distance(i uint8) uint32 {
	c := &r.cc[i]
	if !c.enabled {
		return 0
	}
	d := (c.value - r.counter) & core.CounterMask
	if d == 0 {
		d = core.CounterPeriod
	}
	return d
}

// Wrap advances the counter to its next overflow.
func (r *RTC) Wrap() {
	r.mu.Lock()
	ticks := core.CounterPeriod - r.counter
	r.mu.Unlock()
	r.Advance(ticks)
}
