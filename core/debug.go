package core

import (
	"strconv"
	"sync/atomic"
)

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a scheduler event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Channel   uint8  // Compare channel, NoChannel if not applicable
	Clock     uint32 // Logical counter at event
	Value1    uint32 // Context-dependent value (alarm target, upper word)
	Value2    uint32 // Context-dependent value (errno, delta)
}

// Event type codes
const (
	EvtAlarmSet    = 1 // set_alarm returned (Value2 = errno)
	EvtAlarmFire   = 2 // Alarm target reached, callback invoked
	EvtAlarmRearm  = 3 // Compare fired before target, channel re-armed
	EvtAlarmCancel = 4 // Safety margin missed while arming
	EvtOverflow    = 5 // Hardware counter wrapped
	EvtStart       = 6
	EvtStop        = 7
	EvtIRQDrop     = 8 // Event queue full, interrupt lost
)

// NoChannel marks a TimingEvent that is not tied to a compare channel.
const NoChannel = 0xFF

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled atomic.Bool
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled.Load()
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled.Load() && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// timingRing is written from task and interrupt paths without locking.
// Each slot is two words so a concurrent dump may see a torn entry but never
// a data race.
type timingRing struct {
	head  atomic.Uint32
	slots [TimingRingSize][2]atomic.Uint64
}

func (r *timingRing) record(evt TimingEvent) {
	idx := (r.head.Add(1) - 1) % TimingRingSize
	slot := &r.slots[idx]
	slot[0].Store(uint64(evt.EventType)<<40 | uint64(evt.Channel)<<32 | uint64(evt.Clock))
	slot[1].Store(uint64(evt.Value1)<<32 | uint64(evt.Value2))
}

// snapshot returns the recorded events, oldest first.
func (r *timingRing) snapshot() []TimingEvent {
	head := r.head.Load()
	out := make([]TimingEvent, 0, TimingRingSize)
	for i := uint32(0); i < TimingRingSize; i++ {
		slot := &r.slots[(head+i)%TimingRingSize]
		w0, w1 := slot[0].Load(), slot[1].Load()
		evt := TimingEvent{
			EventType: uint8(w0 >> 40),
			Channel:   uint8(w0 >> 32),
			Clock:     uint32(w0),
			Value1:    uint32(w1 >> 32),
			Value2:    uint32(w1),
		}
		if evt.EventType == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

func (r *timingRing) clear() {
	for i := range r.slots {
		r.slots[i][0].Store(0)
		r.slots[i][1].Store(0)
	}
	r.head.Store(0)
}

// EventName returns the short mnemonic of a timing event code.
func EventName(eventType uint8) string {
	switch eventType {
	case EvtAlarmSet:
		return "ALARM_SET"
	case EvtAlarmFire:
		return "ALARM_FIRE"
	case EvtAlarmRearm:
		return "ALARM_REARM"
	case EvtAlarmCancel:
		return "ALARM_CANCEL!"
	case EvtOverflow:
		return "OVERFLOW"
	case EvtStart:
		return "START"
	case EvtStop:
		return "STOP"
	case EvtIRQDrop:
		return "IRQ_DROP!"
	}
	return "UNKNOWN"
}

// FormatTimingEvent renders an event the way DumpTimingRing prints it.
func FormatTimingEvent(evt TimingEvent) string {
	s := "[TIMING] " + EventName(evt.EventType)
	if evt.Channel != NoChannel {
		s += " ch=" + strconv.Itoa(int(evt.Channel))
	}
	return s +
		" clock=" + strconv.FormatUint(uint64(evt.Clock), 10) +
		" v1=" + strconv.FormatUint(uint64(evt.Value1), 10) +
		" v2=" + strconv.FormatInt(int64(int32(evt.Value2)), 10)
}

// TimingEvents returns the device's timing ring, oldest first.
func (d *Device) TimingEvents() []TimingEvent {
	return d.ring.snapshot()
}

// DumpTimingRing outputs the timing ring buffer through the debug writer.
// It ignores SetDebugEnabled so it can be called on failure paths.
func (d *Device) DumpTimingRing() {
	if debugPrintln == nil {
		return
	}
	debugPrintln("[TIMING] === " + d.name + " Timing Ring Dump ===")
	for _, evt := range d.ring.snapshot() {
		debugPrintln(FormatTimingEvent(evt))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func (d *Device) ClearTimingRing() {
	d.ring.clear()
}
