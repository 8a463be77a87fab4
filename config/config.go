// Package config describes the counter units a host or firmware build
// brings up, and loads them from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rtccounter/core"
)

type Config struct {
	Units []UnitConfig `yaml:"units"`
}

// UnitConfig describes one RTC instance.
type UnitConfig struct {
	Name       string `yaml:"name"`
	Instance   uint8  `yaml:"instance"`
	Prescaler  uint16 `yaml:"prescaler"`
	BaseFreqHz uint32 `yaml:"base_freq_hz"`
	Channels   uint8  `yaml:"channels"`
	MinDelta   uint32 `yaml:"min_delta"`
	IRQQueue   int    `yaml:"irq_queue"`
}

// Compare channels implemented by each RTC instance.
var instanceChannels = [...]uint8{3, 4, 4}

// MaxInstance is the highest RTC instance number.
const MaxInstance = len(instanceChannels) - 1

// Load reads a YAML configuration file and applies defaults.
// Unknown keys are rejected. The result still needs Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in missing values.
func applyDefaults(cfg *Config) {
	for i := range cfg.Units {
		u := &cfg.Units[i]

		if u.Name == "" {
			u.Name = fmt.Sprintf("rtc%d", u.Instance)
		}
		if u.BaseFreqHz == 0 {
			u.BaseFreqHz = core.DefaultBaseFreq
		}
		if u.Channels == 0 && int(u.Instance) <= MaxInstance {
			u.Channels = instanceChannels[u.Instance]
		}
		if u.MinDelta == 0 {
			u.MinDelta = core.DefaultMinDelta
		}
		if u.IRQQueue == 0 {
			// One compare per channel plus the overflow, twice over.
			u.IRQQueue = 2*int(u.Channels) + 2
		}
		u.IRQQueue = Clamp(u.IRQQueue, int(u.Channels)+1, MaxIRQQueue)
	}
}

// MaxIRQQueue bounds the interrupt event queue.
const MaxIRQQueue = 256

// DefaultConfig returns the nRF52 layout. RTC1 is left to the runtime.
func DefaultConfig() *Config {
	cfg := &Config{
		Units: []UnitConfig{
			{Name: "rtc0", Instance: 0},
			{Name: "rtc2", Instance: 2},
		},
	}
	applyDefaults(cfg)
	return cfg
}

// Unit returns the unit with the given name.
func (c *Config) Unit(name string) (UnitConfig, bool) {
	for _, u := range c.Units {
		if u.Name == name {
			return u, true
		}
	}
	return UnitConfig{}, false
}

// TickRate returns the unit's counter frequency in Hz.
func (u UnitConfig) TickRate() uint32 {
	return core.TickRate(u.BaseFreqHz, u.Prescaler)
}

// Options converts the unit to device options.
func (u UnitConfig) Options() core.Options {
	return core.Options{
		Name:     u.Name,
		MinDelta: u.MinDelta,
		QueueLen: u.IRQQueue,
	}
}
