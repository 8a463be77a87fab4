//go:build tinygo && nrf

package main

import (
	"time"

	"rtccounter/core"
)

// Demo firmware: two alarms on the highest RTC instance that re-arm
// themselves every second and every five seconds.

const (
	alarmShort = 32768     // 1s at 32.768kHz
	alarmLong  = 5 * 32768 // 5s
)

var dev *core.Device

type demoAlarm struct {
	name  string
	delta uint32
	count uint32
}

func alarmHandler(c core.Counter, userData any) {
	a := userData.(*demoAlarm)
	a.count++
	println(a.name, "fired", a.count, "at", c.Read())

	if err := c.SetAlarm(alarmHandler, a.delta, a); err != nil {
		println(a.name, "re-arm failed:", core.Errno(err))
	}
}

func main() {
	core.SetDebugWriter(func(s string) { println(s) })

	hw := units[len(units)-1]
	hw.Configure(0)

	// Callbacks run from the RTC interrupt, as on bare metal.
	dev = core.New(hw, core.Options{
		Name:   "rtc" + string(rune('0'+hw.instance)),
		Inline: true,
	})

	println("counter demo on", dev.Name(), "channels", dev.Channels())
	if err := dev.Start(); err != nil {
		println("start failed:", core.Errno(err))
		return
	}

	for _, a := range []*demoAlarm{
		{name: "short", delta: alarmShort},
		{name: "long", delta: alarmLong},
	} {
		if err := dev.SetAlarm(alarmHandler, a.delta, a); err != nil {
			println("set_alarm", a.name, "failed:", core.Errno(err))
		}
	}

	for {
		time.Sleep(10 * time.Second)
		st := dev.Stats()
		println("count", dev.Read(), "overflows", st.Overflows, "active", st.Active, "rearms", st.Rearms)
		dev.DumpTimingRing()
	}
}
