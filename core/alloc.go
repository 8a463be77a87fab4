package core

// active returns the number of channels currently holding an alarm.
func (d *Device) active() uint32 {
	return d.allocCount.Load() - d.freeCount.Load()
}

// allocate claims the first free compare channel. The capacity check and the
// scan are one step so they cannot drift apart. Must be called with d.mu held.
func (d *Device) allocate() (uint8, error) {
	if d.active() >= uint32(d.channels) {
		return 0, ErrNoMemory
	}
	for i := range d.alarms {
		if d.alarms[i].busy.CompareAndSwap(false, true) {
			d.allocCount.Add(1)
			return uint8(i), nil
		}
	}
	// Unreachable: free clears busy before bumping freeCount.
	return 0, ErrNoMemory
}

// free releases channel ch. It is called by the compare handler after the
// callback, or under d.mu when arming is canceled or the counter stopped.
// The caller must have taken the slot's alarm out of armed.
func (d *Device) free(ch uint8) {
	d.hw.CompareDisable(ch)
	d.alarms[ch].busy.Store(false)
	d.freeCount.Add(1)
}
