package core

import "runtime"

// compose combines the upper word with the raw hardware count. It may be
// torn when it races the overflow; Read is the consistent version.
func (d *Device) compose() uint32 {
	return d.upper.Load()<<CounterBits + d.hw.Raw()
}

// Read returns the 32-bit logical count. It is safe to call from any
// context, including concurrently with the overflow handler, and never
// takes a lock.
func (d *Device) Read() uint32 {
	for {
		s := d.seq.Load()
		if s&1 != 0 {
			// Overflow handler is mid-update.
			runtime.Gosched()
			continue
		}
		v, ok := d.read32()
		if ok && d.seq.Load() == s {
			return v
		}
	}
}

// read32 performs one attempt of the extension read. ok is false when the
// upper word and the raw count may not belong together.
func (d *Device) read32() (uint32, bool) {
	v := d.compose()
	if d.hw.OverflowPending() {
		// The wrap may have happened between compose and the pending check,
		// so sample again; the pending wrap is not in upper yet.
		return d.compose() + CounterPeriod, true
	}
	return v, v == d.compose()
}

// handleOverflow is the only writer of the upper word.
func (d *Device) handleOverflow() {
	d.seq.Add(1)
	d.upper.Add(1)
	d.hw.AckOverflow()
	d.seq.Add(1)
	d.record(EvtOverflow, NoChannel, d.upper.Load(), 0)
}
