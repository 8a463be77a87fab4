package core

import "time"

// Low-frequency clock feeding the RTC peripherals.
const (
	DefaultBaseFreq = 32768 // 32.768kHz LFCLK
	MaxPrescaler    = 1<<12 - 1
)

// TickRate returns the counter frequency in Hz for a prescaler value.
// The peripheral divides the base clock by prescaler+1.
func TickRate(baseHz uint32, prescaler uint16) uint32 {
	return baseHz / (uint32(prescaler) + 1)
}

// TicksFromUS converts microseconds to counter ticks, truncating.
func TicksFromUS(us uint64, rate uint32) uint32 {
	return uint32(us * uint64(rate) / 1000000)
}

// TicksToUS converts counter ticks to microseconds, truncating.
func TicksToUS(ticks uint32, rate uint32) uint64 {
	if rate == 0 {
		return 0
	}
	return uint64(ticks) * 1000000 / uint64(rate)
}

// TicksFromDuration converts a duration to counter ticks, truncating.
func TicksFromDuration(d time.Duration, rate uint32) uint32 {
	if d <= 0 {
		return 0
	}
	return TicksFromUS(uint64(d/time.Microsecond), rate)
}

// WrapInterval returns how long the hardware counter takes to overflow.
// The overflow interrupt must be serviced within this interval or the
// logical counter loses a period.
func WrapInterval(rate uint32) time.Duration {
	if rate == 0 {
		return 0
	}
	return time.Duration(uint64(CounterPeriod) * uint64(time.Second) / uint64(rate))
}

// Elapsed reports whether target has been reached at now, treating the
// difference as signed so that it holds across 32-bit wraparound. Targets
// more than half the counter range ahead read as already elapsed.
func Elapsed(target, now uint32) bool {
	return int32(target-now) <= 0
}
