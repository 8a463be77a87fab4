//go:build tinygo && nrf

package main

import (
	"device/nrf"
	"runtime/interrupt"
)

// RTC1 drives the TinyGo runtime clock and is not exposed.

var rtc0 = &rtcHardware{instance: 0, regs: nrf.RTC0, channels: 3}

// units lists the RTC instances this chip exposes, lowest first.
var units = []*rtcHardware{rtc0}

func init() {
	rtc0.intr = interrupt.New(nrf.IRQ_RTC0, func(interrupt.Interrupt) {
		rtc0.isr()
	})
}
