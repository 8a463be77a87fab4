package core

import "context"

// post is the handler installed on the hardware adapter. It runs in the
// adapter's interrupt context and must never block.
func (d *Device) post(ev Event) {
	select {
	case d.irq <- ev:
	default:
		d.drops.Add(1) // protect the ISR path
		d.record(EvtIRQDrop, ev.Channel, uint32(ev.Kind), 0)
	}
}

// HandleEvent runs the interrupt handler for one event. Calls must be
// serialized: use either Run or Dispatch to drain the queue, or call
// HandleEvent directly from a single interrupt context.
func (d *Device) HandleEvent(ev Event) {
	switch ev.Kind {
	case EventOverflow:
		d.handleOverflow()
	case EventCompare:
		d.handleCompare(ev.Channel)
	}
}

// handleCompare fires the alarm on ch if its target has been reached, or
// re-arms the channel for the same target if the compare matched early
// (the low bits match once per hardware period).
func (d *Device) handleCompare(ch uint8) {
	if int(ch) >= len(d.alarms) {
		return
	}
	s := &d.alarms[ch]
	a := s.armed.Load()
	if a == nil {
		// Stale event for an alarm that was canceled or stopped.
		return
	}

	now := d.Read()
	if !Elapsed(a.target, now) {
		d.hw.CompareSet(ch, a.target&CounterMask, true)
		if s.armed.Load() != a {
			d.syncCompare(ch)
			return
		}
		d.rearms.Add(1)
		d.record(EvtAlarmRearm, ch, a.target, a.target-now)
		return
	}

	if !s.armed.CompareAndSwap(a, nil) {
		return
	}
	d.record(EvtAlarmFire, ch, a.target, now-a.target)
	if a.cb != nil {
		a.cb(d, a.userData)
	}
	d.free(ch)
}

// syncCompare reprograms ch from whatever alarm the slot holds now, after a
// re-arm raced with Stop or SetAlarm. Every writer of armed touches the
// compare register after it swaps the pointer, so once armed is stable
// across our write the register matches it.
func (d *Device) syncCompare(ch uint8) {
	s := &d.alarms[ch]
	for {
		cur := s.armed.Load()
		if cur == nil {
			d.hw.CompareDisable(ch)
		} else {
			d.hw.CompareSet(ch, cur.target&CounterMask, true)
		}
		if s.armed.Load() == cur {
			return
		}
	}
}

// Dispatch handles every queued event and returns how many were handled.
// It is the cooperative alternative to Run for main-loop style firmware.
func (d *Device) Dispatch() int {
	n := 0
	for {
		select {
		case ev := <-d.irq:
			d.HandleEvent(ev)
			n++
		default:
			return n
		}
	}
}

// Run drains the event queue until ctx is canceled. It is the device's
// interrupt context; only one Run (or Dispatch caller) may be active.
func (d *Device) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.irq:
			d.HandleEvent(ev)
		}
	}
}
