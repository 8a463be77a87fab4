package config

import (
	"errors"
	"fmt"

	"rtccounter/core"
)

// Validate checks configuration correctness. It never mutates cfg.
func Validate(cfg *Config) error {
	if cfg == nil || len(cfg.Units) == 0 {
		return errors.New("no units configured")
	}

	names := make(map[string]bool)
	instances := make(map[uint8]string)

	for _, u := range cfg.Units {
		if u.Name == "" {
			return fmt.Errorf("unit with instance %d has no name", u.Instance)
		}
		if names[u.Name] {
			return fmt.Errorf("unit %q: duplicate name", u.Name)
		}
		names[u.Name] = true

		if !Between(int(u.Instance), 0, MaxInstance) {
			return fmt.Errorf("unit %q: instance %d out of range 0..%d", u.Name, u.Instance, MaxInstance)
		}
		if prev, ok := instances[u.Instance]; ok {
			return fmt.Errorf("unit %q: RTC%d already used by unit %q", u.Name, u.Instance, prev)
		}
		instances[u.Instance] = u.Name

		if limit := instanceChannels[u.Instance]; !Between(u.Channels, 1, limit) {
			return fmt.Errorf("unit %q: channels %d out of range 1..%d for RTC%d", u.Name, u.Channels, limit, u.Instance)
		}
		if u.Prescaler > core.MaxPrescaler {
			return fmt.Errorf("unit %q: prescaler %d exceeds %d", u.Name, u.Prescaler, core.MaxPrescaler)
		}
		if u.BaseFreqHz == 0 {
			return fmt.Errorf("unit %q: base_freq_hz must be set", u.Name)
		}
		if u.MinDelta >= core.CounterPeriod {
			return fmt.Errorf("unit %q: min_delta %d must be below one counter period", u.Name, u.MinDelta)
		}
		if !Between(u.IRQQueue, int(u.Channels)+1, MaxIRQQueue) {
			return fmt.Errorf("unit %q: irq_queue %d out of range %d..%d", u.Name, u.IRQQueue, u.Channels+1, MaxIRQQueue)
		}
	}

	return nil
}
