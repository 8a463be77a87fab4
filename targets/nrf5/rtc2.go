//go:build tinygo && nrf && !nrf51

package main

import (
	"device/nrf"
	"runtime/interrupt"
)

var rtc2 = &rtcHardware{instance: 2, regs: nrf.RTC2, channels: 4}

func init() {
	rtc2.intr = interrupt.New(nrf.IRQ_RTC2, func(interrupt.Interrupt) {
		rtc2.isr()
	})
	units = append(units, rtc2)
}
