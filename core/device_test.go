package core_test

import (
	"errors"
	"testing"

	"rtccounter/core"
	"rtccounter/sim"
)

func newStarted(t *testing.T, channels uint8) (*core.Device, *sim.RTC) {
	t.Helper()
	hw := sim.New(channels)
	dev := core.New(hw, core.Options{Name: t.Name()})
	if err := dev.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return dev, hw
}

func activeChannels(dev *core.Device) int {
	n := 0
	for ch := 0; ch < dev.Channels(); ch++ {
		if dev.Busy(ch) {
			n++
		}
	}
	return n
}

func TestSetAlarmRequiresStart(t *testing.T) {
	hw := sim.New(4)
	dev := core.New(hw, core.Options{})

	err := dev.SetAlarm(nil, 1000, nil)
	if !errors.Is(err, core.ErrNotSupported) {
		t.Fatalf("Expected ErrNotSupported before Start, got %v", err)
	}
	if n := activeChannels(dev); n != 0 {
		t.Errorf("Expected no busy channels, got %d", n)
	}
}

func TestSetAlarmRejectsSmallDelta(t *testing.T) {
	dev, _ := newStarted(t, 4)

	for _, delta := range []uint32{0, 1, core.DefaultMinDelta, 0x80000000, 0xFFFFFFFF} {
		err := dev.SetAlarm(nil, delta, nil)
		if !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("delta=%d: expected ErrInvalidArgument, got %v", delta, err)
		}
	}

	if n := activeChannels(dev); n != 0 {
		t.Errorf("Expected no busy channels after rejected alarms, got %d", n)
	}
	if s := dev.Stats(); s.Allocated != 0 || s.Active != 0 {
		t.Errorf("Expected no allocations, got %+v", s)
	}

	if err := dev.SetAlarm(nil, core.DefaultMinDelta+1, nil); err != nil {
		t.Errorf("Smallest valid delta rejected: %v", err)
	}
}

func TestSetAlarmNoMemory(t *testing.T) {
	for _, channels := range []uint8{1, 3, 4} {
		dev, _ := newStarted(t, channels)

		for i := 0; i < int(channels); i++ {
			if err := dev.SetAlarm(nil, 1000, nil); err != nil {
				t.Fatalf("channels=%d alarm %d: unexpected error %v", channels, i, err)
			}
		}
		if err := dev.SetAlarm(nil, 1000, nil); !errors.Is(err, core.ErrNoMemory) {
			t.Errorf("channels=%d: expected ErrNoMemory, got %v", channels, err)
		}
		if got := dev.Stats().Active; got != uint32(channels) {
			t.Errorf("channels=%d: expected %d active, got %d", channels, channels, got)
		}
	}
}

func TestNoMemoryCheckedBeforeDelta(t *testing.T) {
	dev, _ := newStarted(t, 1)

	if err := dev.SetAlarm(nil, 1000, nil); err != nil {
		t.Fatalf("SetAlarm failed: %v", err)
	}
	if err := dev.SetAlarm(nil, 1, nil); !errors.Is(err, core.ErrNoMemory) {
		t.Errorf("Expected ErrNoMemory to win over ErrInvalidArgument, got %v", err)
	}
}

func TestFourChannelScenario(t *testing.T) {
	dev, hw := newStarted(t, 4)

	fired := make([]int, 0, 4)
	cb := func(_ core.Counter, userData any) {
		fired = append(fired, userData.(int))
	}

	for i := 0; i < 4; i++ {
		if err := dev.SetAlarm(cb, 1000, i); err != nil {
			t.Fatalf("Alarm %d failed: %v", i, err)
		}
		hw.Advance(1)
	}
	if err := dev.SetAlarm(cb, 1000, 4); !errors.Is(err, core.ErrNoMemory) {
		t.Fatalf("Fifth alarm: expected ErrNoMemory, got %v", err)
	}

	// Alarm 0 targets 1000; the counter is at 4.
	hw.Advance(996)
	if n := dev.Dispatch(); n != 1 {
		t.Fatalf("Expected 1 event, got %d", n)
	}
	if len(fired) != 1 || fired[0] != 0 {
		t.Fatalf("Expected only alarm 0 to fire, got %v", fired)
	}
	if dev.Busy(0) {
		t.Errorf("Channel 0 should be free after firing")
	}

	if err := dev.SetAlarm(cb, 1000, 5); err != nil {
		t.Fatalf("Sixth alarm after a fire: %v", err)
	}
	if !dev.Busy(0) {
		t.Errorf("Sixth alarm should reuse channel 0")
	}
	if target, ok := dev.Target(0); !ok || target != 2000 {
		t.Errorf("Expected channel 0 target 2000, got %d (armed=%v)", target, ok)
	}

	hw.Advance(1003)
	dev.Dispatch()
	if len(fired) != 5 {
		t.Fatalf("Expected 5 fires, got %v", fired)
	}
	for i, want := range []int{0, 1, 2, 3, 5} {
		if fired[i] != want {
			t.Errorf("Fire order: got %v", fired)
			break
		}
	}
	if s := dev.Stats(); s.Active != 0 || s.Allocated != s.Freed {
		t.Errorf("Expected all channels released, got %+v", s)
	}
}

func TestAlarmRoundTrip(t *testing.T) {
	dev, hw := newStarted(t, 4)
	hw.SetCounter(0x123456)

	type payload struct{ id string }
	want := &payload{id: "round-trip"}

	const delta = 5000
	start := dev.Read()
	calls := 0
	err := dev.SetAlarm(func(c core.Counter, userData any) {
		calls++
		if c != core.Counter(dev) {
			t.Errorf("Callback got a different counter")
		}
		if userData != want {
			t.Errorf("Expected original userData, got %#v", userData)
		}
		if now := c.Read(); !core.Elapsed(start+delta, now) {
			t.Errorf("Callback before target: target=%d now=%d", start+delta, now)
		}
	}, delta, want)
	if err != nil {
		t.Fatalf("SetAlarm failed: %v", err)
	}

	hw.Advance(delta - 1)
	dev.Dispatch()
	if calls != 0 {
		t.Fatalf("Alarm fired one tick early")
	}

	hw.Advance(1)
	dev.Dispatch()
	if calls != 1 {
		t.Fatalf("Expected exactly one callback, got %d", calls)
	}

	// Another full period must not fire it again.
	hw.Advance(core.CounterPeriod)
	dev.Dispatch()
	if calls != 1 {
		t.Errorf("Callback invoked %d times", calls)
	}
}

func TestNilCallbackFreesChannel(t *testing.T) {
	dev, hw := newStarted(t, 2)

	if err := dev.SetAlarm(nil, 10, nil); err != nil {
		t.Fatalf("SetAlarm failed: %v", err)
	}
	hw.Advance(10)
	dev.Dispatch()

	if dev.Busy(0) {
		t.Errorf("Channel 0 should be free after a nil-callback alarm fired")
	}
	if _, enabled := hw.Compare(0); enabled {
		t.Errorf("Compare channel 0 should be disabled after firing")
	}
}

func TestAlarmBeyondHardwarePeriodRearms(t *testing.T) {
	dev, hw := newStarted(t, 4)

	const delta = core.CounterPeriod + 100
	calls := 0
	if err := dev.SetAlarm(func(core.Counter, any) { calls++ }, delta, nil); err != nil {
		t.Fatalf("SetAlarm failed: %v", err)
	}

	// The low 24 bits match after 100 ticks; the target is a period away.
	hw.Advance(100)
	dev.Dispatch()
	if calls != 0 {
		t.Fatalf("Alarm fired a full period early")
	}
	if got := dev.Stats().Rearms; got != 1 {
		t.Errorf("Expected 1 rearm, got %d", got)
	}
	if !dev.Busy(0) {
		t.Fatalf("Channel should stay armed after an early compare")
	}

	hw.Advance(core.CounterPeriod)
	dev.Dispatch()
	if calls != 1 {
		t.Fatalf("Expected alarm to fire after wrap, got %d calls", calls)
	}
	if dev.Read() != delta {
		t.Errorf("Expected counter at %d, got %d", delta, dev.Read())
	}
}

func TestCanceledWhenMarginMissed(t *testing.T) {
	for _, preempt := range []uint32{9, 10, 11} {
		dev, hw := newStarted(t, 4)

		hw.OnCompareSet(func(ch uint8, v uint32) {
			hw.Advance(preempt)
		})
		calls := 0
		err := dev.SetAlarm(func(core.Counter, any) { calls++ }, 10, nil)
		hw.OnCompareSet(nil)

		if !errors.Is(err, core.ErrCanceled) {
			t.Errorf("preempt=%d: expected ErrCanceled, got %v", preempt, err)
		}
		if dev.Busy(0) {
			t.Errorf("preempt=%d: canceled alarm left channel busy", preempt)
		}
		if s := dev.Stats(); s.Active != 0 {
			t.Errorf("preempt=%d: expected no active channels, got %+v", preempt, s)
		}

		dev.Dispatch()
		hw.Advance(core.CounterPeriod)
		dev.Dispatch()
		if calls != 0 {
			t.Errorf("preempt=%d: canceled alarm fired %d times", preempt, calls)
		}
	}
}

func TestMarginKeptWithShortPreemption(t *testing.T) {
	dev, hw := newStarted(t, 4)

	hw.OnCompareSet(func(ch uint8, v uint32) { hw.Advance(8) })
	err := dev.SetAlarm(nil, 10, nil)
	hw.OnCompareSet(nil)

	if err != nil {
		t.Fatalf("Two ticks of margin should be enough, got %v", err)
	}
	if !dev.Busy(0) {
		t.Errorf("Alarm should be armed")
	}
}

func TestStopInvalidatesAlarms(t *testing.T) {
	dev, hw := newStarted(t, 4)

	calls := 0
	cb := func(core.Counter, any) { calls++ }
	for i := 0; i < 2; i++ {
		if err := dev.SetAlarm(cb, 100, nil); err != nil {
			t.Fatalf("SetAlarm failed: %v", err)
		}
	}

	if err := dev.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if dev.Enabled() {
		t.Errorf("Device should report stopped")
	}
	if s := dev.Stats(); s.Active != 0 {
		t.Errorf("Stop should free every channel, got %+v", s)
	}
	if err := dev.SetAlarm(cb, 100, nil); !errors.Is(err, core.ErrNotSupported) {
		t.Errorf("Expected ErrNotSupported while stopped, got %v", err)
	}

	before := dev.Read()
	hw.Advance(1000)
	if dev.Read() != before {
		t.Errorf("Counter moved while stopped")
	}

	if err := dev.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	hw.Advance(1000)
	dev.Dispatch()
	if calls != 0 {
		t.Errorf("Invalidated alarms fired %d times", calls)
	}
}

func TestCallbackCanRearm(t *testing.T) {
	dev, hw := newStarted(t, 2)

	const period = 32768
	count := 0
	var cb core.Callback
	cb = func(c core.Counter, userData any) {
		*userData.(*int)++
		if err := c.SetAlarm(cb, period, userData); err != nil {
			t.Errorf("Re-arm from callback failed: %v", err)
		}
	}
	if err := dev.SetAlarm(cb, period, &count); err != nil {
		t.Fatalf("SetAlarm failed: %v", err)
	}

	for i := 0; i < 600; i++ {
		hw.Advance(period)
		dev.Dispatch()
	}
	if count != 600 {
		t.Errorf("Expected 600 fires, got %d", count)
	}
	if got := dev.Stats().Overflows; got != 600*period/core.CounterPeriod {
		t.Errorf("Expected %d overflows, got %d", 600*period/core.CounterPeriod, got)
	}
	t.Logf("stats: %+v", dev.Stats())
}

func TestPendingInterrupt(t *testing.T) {
	dev, hw := newStarted(t, 4)

	if dev.PendingInterrupt() {
		t.Fatalf("Nothing should be pending on a fresh device")
	}
	if err := dev.SetAlarm(nil, 50, nil); err != nil {
		t.Fatalf("SetAlarm failed: %v", err)
	}
	hw.Advance(50)
	if !dev.PendingInterrupt() {
		t.Errorf("Compare event should be pending before dispatch")
	}
	dev.Dispatch()
	if dev.PendingInterrupt() {
		t.Errorf("Nothing should be pending after dispatch")
	}

	hw.Wrap()
	if !dev.PendingInterrupt() {
		t.Errorf("Overflow should be pending before dispatch")
	}
	dev.Dispatch()
	if dev.PendingInterrupt() {
		t.Errorf("Overflow should be acknowledged after dispatch")
	}
}

func TestEventQueueOverflowIsCounted(t *testing.T) {
	hw := sim.New(4)
	dev := core.New(hw, core.Options{QueueLen: 1})
	if err := dev.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := dev.SetAlarm(nil, 100, nil); err != nil {
			t.Fatalf("SetAlarm failed: %v", err)
		}
	}

	hw.Advance(100)
	if got := dev.Stats().IRQDrops; got != 1 {
		t.Errorf("Expected 1 dropped event, got %d", got)
	}
	if n := dev.Dispatch(); n != 1 {
		t.Errorf("Expected 1 queued event, got %d", n)
	}
}

func TestInlineHandlesEventsImmediately(t *testing.T) {
	hw := sim.New(2)
	dev := core.New(hw, core.Options{Inline: true})
	dev.Start()

	fired := 0
	if err := dev.SetAlarm(func(core.Counter, any) { fired++ }, 50, nil); err != nil {
		t.Fatalf("SetAlarm failed: %v", err)
	}
	hw.Advance(50)
	if fired != 1 {
		t.Errorf("Expected the alarm to fire during Advance, got %d fires", fired)
	}

	hw.Wrap()
	if got := dev.Read(); got != core.CounterPeriod {
		t.Errorf("Expected overflow handled inline, read %d", got)
	}
	if n := dev.Dispatch(); n != 0 {
		t.Errorf("Nothing should be queued in inline mode, dispatched %d", n)
	}
}

func TestStopDuringRearmLeavesCompareDisabled(t *testing.T) {
	dev, hw := newStarted(t, 4)

	if err := dev.SetAlarm(func(core.Counter, any) {}, core.CounterPeriod+100, nil); err != nil {
		t.Fatalf("SetAlarm failed: %v", err)
	}
	hw.Advance(100)

	// Stop lands while the handler is re-programming the early compare.
	stopped := false
	hw.OnCompareSet(func(ch uint8, v uint32) {
		if !stopped {
			stopped = true
			dev.Stop()
		}
	})
	dev.Dispatch()
	hw.OnCompareSet(nil)

	if !stopped {
		t.Fatalf("Expected the early compare to be re-armed")
	}
	if dev.Busy(0) {
		t.Errorf("Channel 0 should be free after Stop")
	}
	if _, enabled := hw.Compare(0); enabled {
		t.Errorf("Free channel 0 still has a compare programmed")
	}
	if got := dev.Stats().Rearms; got != 0 {
		t.Errorf("Re-arm that lost to Stop should not be counted, got %d", got)
	}
}

func TestSetAlarmReportsSuccessWhenFiredDuringArming(t *testing.T) {
	hw := sim.New(4)
	dev := core.New(hw, core.Options{Inline: true})
	dev.Start()

	// The counter reaches the target while the compare is being written,
	// and the inline handler fires the alarm before the margin re-check.
	hw.OnCompareSet(func(ch uint8, v uint32) { hw.Advance(10) })
	calls := 0
	err := dev.SetAlarm(func(core.Counter, any) { calls++ }, 10, nil)
	hw.OnCompareSet(nil)

	if err != nil {
		t.Errorf("Expected nil for an alarm that already fired, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected exactly one callback, got %d", calls)
	}
	if s := dev.Stats(); s.Active != 0 || s.Allocated != 1 || s.Freed != 1 {
		t.Errorf("Expected the channel allocated and freed once, got %+v", s)
	}
}

func TestNewClampsMinDelta(t *testing.T) {
	hw := sim.New(4)
	dev := core.New(hw, core.Options{MinDelta: 0x80000000})
	dev.Start()

	if got := dev.MinDelta(); got != core.CounterMask {
		t.Errorf("Expected MinDelta clamped to %d, got %d", core.CounterMask, got)
	}
	for _, delta := range []uint32{0, 1, core.CounterMask} {
		if err := dev.SetAlarm(nil, delta, nil); !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("delta=%d: expected ErrInvalidArgument, got %v", delta, err)
		}
	}
	if err := dev.SetAlarm(nil, core.CounterPeriod, nil); err != nil {
		t.Errorf("Delta above the clamped margin rejected: %v", err)
	}
}
