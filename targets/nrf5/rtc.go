//go:build tinygo && nrf

package main

import (
	"device/nrf"
	"runtime/interrupt"

	"rtccounter/core"
)

// rtcHardware drives one nRF RTC peripheral.
type rtcHardware struct {
	instance uint8
	regs     *nrf.RTC_Type
	intr     interrupt.Interrupt
	channels uint8
	handler  func(core.Event)
}

var _ core.CounterHardware = (*rtcHardware)(nil)

func compareMask(ch uint8) uint32 {
	return nrf.RTC_INTENSET_COMPARE0_Msk << ch
}

// Configure sets the prescaler. The counter must be stopped.
func (r *rtcHardware) Configure(prescaler uint16) {
	r.regs.TASKS_STOP.Set(1)
	r.regs.TASKS_CLEAR.Set(1)
	r.regs.PRESCALER.Set(uint32(prescaler))
}

func (r *rtcHardware) Enable()  { r.regs.TASKS_START.Set(1) }
func (r *rtcHardware) Disable() { r.regs.TASKS_STOP.Set(1) }

func (r *rtcHardware) Raw() uint32 {
	return r.regs.COUNTER.Get()
}

// CompareSet programs channel ch following the nrfx sequence: mask the
// interrupt, clear the event, write CC, then enable event routing and the
// interrupt. It runs with interrupts disabled.
func (r *rtcHardware) CompareSet(ch uint8, v uint32, irq bool) {
	mask := compareMask(ch)
	state := interrupt.Disable()
	r.regs.INTENCLR.Set(mask)
	r.regs.EVENTS_COMPARE[ch].Set(0)
	r.regs.CC[ch].Set(v & core.CounterMask)
	r.regs.EVTENSET.Set(mask)
	if irq {
		r.regs.INTENSET.Set(mask)
	}
	interrupt.Restore(state)
}

func (r *rtcHardware) CompareDisable(ch uint8) {
	mask := compareMask(ch)
	state := interrupt.Disable()
	r.regs.INTENCLR.Set(mask)
	r.regs.EVTENCLR.Set(mask)
	r.regs.EVENTS_COMPARE[ch].Set(0)
	interrupt.Restore(state)
}

func (r *rtcHardware) OverflowPending() bool {
	return r.regs.EVENTS_OVRFLW.Get() != 0
}

// AckOverflow clears the event and unmasks the interrupt the ISR masked.
func (r *rtcHardware) AckOverflow() {
	r.regs.EVENTS_OVRFLW.Set(0)
	r.regs.INTENSET.Set(nrf.RTC_INTENSET_OVRFLW_Msk)
}

func (r *rtcHardware) Pending() bool {
	if r.OverflowPending() {
		return true
	}
	inten := r.regs.INTENSET.Get()
	for ch := uint8(0); ch < r.channels; ch++ {
		if inten&compareMask(ch) != 0 && r.regs.EVENTS_COMPARE[ch].Get() != 0 {
			return true
		}
	}
	return false
}

func (r *rtcHardware) ChannelCount() uint8 { return r.channels }

// Attach installs the event handler and enables the overflow interrupt.
func (r *rtcHardware) Attach(handler func(core.Event)) {
	r.handler = handler
	r.regs.EVTENSET.Set(nrf.RTC_EVTEN_OVRFLW_Msk)
	r.regs.INTENSET.Set(nrf.RTC_INTENSET_OVRFLW_Msk)
	r.intr.SetPriority(0xC0)
	r.intr.Enable()
}

// isr turns latched events into core events. The overflow stays latched,
// with its interrupt masked, until the handler acknowledges it so that
// reads in between still see the pending wrap. Compare events are cleared
// here.
func (r *rtcHardware) isr() {
	if r.regs.EVENTS_OVRFLW.Get() != 0 && r.regs.INTENSET.Get()&nrf.RTC_INTENSET_OVRFLW_Msk != 0 {
		r.regs.INTENCLR.Set(nrf.RTC_INTENSET_OVRFLW_Msk)
		r.post(core.Event{Kind: core.EventOverflow})
	}
	inten := r.regs.INTENSET.Get()
	for ch := uint8(0); ch < r.channels; ch++ {
		if inten&compareMask(ch) == 0 || r.regs.EVENTS_COMPARE[ch].Get() == 0 {
			continue
		}
		r.regs.EVENTS_COMPARE[ch].Set(0)
		r.post(core.Event{Kind: core.EventCompare, Channel: ch})
	}
}

func (r *rtcHardware) post(ev core.Event) {
	if r.handler != nil {
		r.handler(ev)
	}
}
