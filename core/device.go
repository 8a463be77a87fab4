package core

import (
	"sync"
	"sync/atomic"
)

// Options configures a Device.
type Options struct {
	// Name identifies the unit in debug output.
	Name string

	// MinDelta is the exclusive lower bound on SetAlarm deltas.
	// Zero selects DefaultMinDelta; values above CounterMask are clamped.
	MinDelta uint32

	// QueueLen is the capacity of the interrupt event queue.
	// Zero sizes it for one event per channel plus the overflow.
	QueueLen int

	// Trace, if set, receives every recorded TimingEvent. It is called from
	// interrupt paths and must not block.
	Trace func(TimingEvent)

	// Inline handles hardware events in the adapter's interrupt context
	// instead of queuing them for Run or Dispatch. Alarm callbacks then run
	// in interrupt context too.
	Inline bool
}

// alarm is immutable once published in a slot.
type alarm struct {
	target   uint32
	cb       Callback
	userData any
}

// alarmSlot tracks one hardware compare channel.
//
// busy is set by allocate and cleared by free. armed holds the pending alarm
// between arming and firing; whoever swaps it to nil owns the fire or cancel.
type alarmSlot struct {
	busy  atomic.Bool
	armed atomic.Pointer[alarm]
}

// Device extends one hardware counter unit to 32 bits and multiplexes alarms
// onto its compare channels.
type Device struct {
	name     string
	hw       CounterHardware
	channels uint8
	minDelta uint32

	// mu serializes Start, Stop and SetAlarm. Interrupt paths never take it.
	mu      sync.Mutex
	enabled bool

	// upper is written only by the overflow handler. seq is odd while it
	// is being updated.
	seq   atomic.Uint32
	upper atomic.Uint32

	allocCount atomic.Uint32
	freeCount  atomic.Uint32
	alarms     []alarmSlot

	irq    chan Event
	drops  atomic.Uint32
	rearms atomic.Uint32

	ring  timingRing
	trace func(TimingEvent)
}

// New binds a Device to its hardware adapter and installs the interrupt
// handler. The counter is left stopped.
func New(hw CounterHardware, opts Options) *Device {
	n := hw.ChannelCount()
	if n > MaxChannels {
		n = MaxChannels
	}
	minDelta := opts.MinDelta
	if minDelta == 0 {
		minDelta = DefaultMinDelta
	}
	if minDelta > CounterMask {
		minDelta = CounterMask
	}
	qlen := opts.QueueLen
	if qlen <= 0 {
		qlen = 2*int(n) + 2
	}
	name := opts.Name
	if name == "" {
		name = "rtc"
	}
	d := &Device{
		name:     name,
		hw:       hw,
		channels: n,
		minDelta: minDelta,
		alarms:   make([]alarmSlot, n),
		irq:      make(chan Event, qlen),
		trace:    opts.Trace,
	}
	if opts.Inline {
		hw.Attach(d.HandleEvent)
	} else {
		hw.Attach(d.post)
	}
	return d
}

// Name returns the unit name given in Options.
func (d *Device) Name() string { return d.name }

// Channels returns the number of compare channels in use.
func (d *Device) Channels() int { return int(d.channels) }

// MinDelta returns the exclusive lower bound on alarm deltas.
func (d *Device) MinDelta() uint32 { return d.minDelta }

// Start enables the hardware counter.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hw.Enable()
	d.enabled = true
	d.record(EvtStart, NoChannel, 0, 0)
	return nil
}

// Stop disables the hardware counter. Armed alarms are invalidated: their
// channels are disabled and freed without invoking the callbacks. An alarm
// whose callback is already running completes normally.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hw.Disable()
	d.enabled = false

	var dropped uint32
	for i := range d.alarms {
		s := &d.alarms[i]
		a := s.armed.Load()
		if a != nil && s.armed.CompareAndSwap(a, nil) {
			d.free(uint8(i))
			dropped++
		}
	}
	d.record(EvtStop, NoChannel, dropped, 0)
	return nil
}

// Enabled reports whether the counter has been started.
func (d *Device) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// SetAlarm arms a one-shot alarm that fires delta ticks from now.
//
// The checks run in order and the first failing one wins: the counter must
// be started (ErrNotSupported), a channel must be free (ErrNoMemory) and
// delta must exceed the minimum margin (ErrInvalidArgument). If the counter
// runs past the margin while the channel is programmed the alarm is dropped
// and ErrCanceled is returned. Failed calls leave no channel allocated.
func (d *Device) SetAlarm(cb Callback, delta uint32, userData any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var err error
	switch {
	case !d.enabled:
		err = ErrNotSupported
	case d.active() >= uint32(d.channels):
		err = ErrNoMemory
	case int32(delta) <= int32(d.minDelta):
		err = ErrInvalidArgument
	default:
		return d.setAlarm(cb, delta, userData)
	}
	d.record(EvtAlarmSet, NoChannel, 0, uint32(Errno(err)))
	return err
}

func (d *Device) setAlarm(cb Callback, delta uint32, userData any) error {
	ch, err := d.allocate()
	if err != nil {
		d.record(EvtAlarmSet, NoChannel, 0, uint32(Errno(err)))
		return err
	}

	s := &d.alarms[ch]
	a := &alarm{
		target:   d.Read() + delta,
		cb:       cb,
		userData: userData,
	}
	s.armed.Store(a)
	d.hw.CompareSet(ch, a.target&CounterMask, true)

	// Programming the compare register is not instantaneous. If we were
	// preempted long enough for the margin to be consumed the compare may
	// already be behind the counter and would only match after a wrap.
	if int32(a.target-d.Read()) < int32(d.minDelta) {
		if s.armed.CompareAndSwap(a, nil) {
			d.free(ch)
			d.record(EvtAlarmCancel, ch, a.target, uint32(Errno(ErrCanceled)))
			return ErrCanceled
		}
		// The compare handler claimed it first; the alarm has fired.
	}

	d.record(EvtAlarmSet, ch, a.target, delta)
	return nil
}

// PendingInterrupt reports whether the peripheral has raised an interrupt
// that has not been handled yet, including events still queued.
func (d *Device) PendingInterrupt() bool {
	return len(d.irq) > 0 || d.hw.Pending()
}

// Stats is a point-in-time view of the scheduler counters.
type Stats struct {
	Allocated uint32 // channels claimed since New
	Freed     uint32 // channels released since New
	Active    uint32 // channels currently busy
	Overflows uint32 // hardware wraps observed (the upper word)
	Rearms    uint32 // compare events that arrived before the target
	IRQDrops  uint32 // events lost to a full queue
}

// Stats returns the scheduler counters.
func (d *Device) Stats() Stats {
	freed := d.freeCount.Load()
	alloc := d.allocCount.Load()
	return Stats{
		Allocated: alloc,
		Freed:     freed,
		Active:    alloc - freed,
		Overflows: d.upper.Load(),
		Rearms:    d.rearms.Load(),
		IRQDrops:  d.drops.Load(),
	}
}

// Busy reports whether compare channel ch holds an alarm.
func (d *Device) Busy(ch int) bool {
	if ch < 0 || ch >= len(d.alarms) {
		return false
	}
	return d.alarms[ch].busy.Load()
}

// Target returns the logical target of the alarm armed on channel ch.
func (d *Device) Target(ch int) (uint32, bool) {
	if ch < 0 || ch >= len(d.alarms) {
		return 0, false
	}
	a := d.alarms[ch].armed.Load()
	if a == nil {
		return 0, false
	}
	return a.target, true
}

func (d *Device) record(typ uint8, ch uint8, v1, v2 uint32) {
	evt := TimingEvent{
		EventType: typ,
		Channel:   ch,
		Clock:     d.compose(),
		Value1:    v1,
		Value2:    v2,
	}
	d.ring.record(evt)
	if d.trace != nil {
		d.trace(evt)
	}
	if IsDebugEnabled() {
		DebugPrintln("[" + d.name + "] " + FormatTimingEvent(evt))
	}
}
