package audio

import (
	"fmt"
	"time"

	"github.com/ardnew/softpdm/hal"
	"github.com/ardnew/softpdm/pkg"
)

// PoolSize is the number of capture buffers rotated by a Driver.
const PoolSize = 3

// Channel selects which microphone slot the PDM line carries.
type Channel uint8

// Microphone channel options.
const (
	ChannelLeft  Channel = iota // Microphone L/R select tied for left
	ChannelRight                // Microphone L/R select tied for right
)

// String returns a human-readable channel name.
func (c Channel) String() string {
	switch c {
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	default:
		return "unknown"
	}
}

// Edge returns the sampling edge that captures this channel in mono mode.
func (c Channel) Edge() hal.Edge {
	if c == ChannelRight {
		return hal.EdgeLeftRising
	}
	return hal.EdgeLeftFalling
}

// PowerControl describes an optional microphone power-enable pin.
type PowerControl struct {
	Enabled   bool
	Pin       hal.Pin
	ActiveLow bool // Microphone is powered when the pin is driven low
}

// onLevel returns the pin level that powers the microphone.
func (p PowerControl) onLevel() bool {
	return !p.ActiveLow
}

// Config holds the capture configuration of a Driver.
type Config struct {
	CLK           hal.Pin
	DIN           hal.Pin
	Channel       Channel
	Gain          hal.Gain
	Frequency     hal.Frequency
	BufferSamples int           // Samples per capture buffer
	FrameSamples  int           // Samples per application frame
	SettleTime    time.Duration // Analog front-end settling time after enable
	Power         PowerControl
}

// Default capture parameters.
const (
	DefaultBufferSamples = 512
	DefaultFrameSamples  = 512
	DefaultSettleTime    = 60 * time.Millisecond
)

// DefaultConfig returns a configuration for a left-channel microphone on
// the given pins with no power control.
func DefaultConfig(clk, din hal.Pin) Config {
	return Config{
		CLK:           clk,
		DIN:           din,
		Channel:       ChannelLeft,
		Gain:          hal.GainDefault,
		Frequency:     hal.Freq1032K,
		BufferSamples: DefaultBufferSamples,
		FrameSamples:  DefaultFrameSamples,
		SettleTime:    DefaultSettleTime,
		Power:         PowerControl{Pin: hal.NoPin},
	}
}

// SampleRate returns the PCM sample rate produced by this configuration.
func (c *Config) SampleRate() uint32 {
	return c.Frequency.SampleRate()
}

// SkipCount returns the number of buffers discarded after enable.
func (c *Config) SkipCount() int {
	return SkipCount(c.SettleTime, c.SampleRate(), c.FrameSamples)
}

// Validate checks every field and returns an error wrapping
// pkg.ErrInvalidConfig for the first one out of range.
func (c *Config) Validate() error {
	if !c.CLK.IsValid() {
		return fmt.Errorf("clk pin %d: %w", c.CLK, pkg.ErrInvalidConfig)
	}
	if !c.DIN.IsValid() {
		return fmt.Errorf("din pin %d: %w", c.DIN, pkg.ErrInvalidConfig)
	}
	if c.CLK == c.DIN {
		return fmt.Errorf("clk and din share pin %v: %w", c.CLK, pkg.ErrInvalidConfig)
	}
	if c.Channel != ChannelLeft && c.Channel != ChannelRight {
		return fmt.Errorf("channel %d: %w", c.Channel, pkg.ErrInvalidConfig)
	}
	if !c.Gain.IsValid() {
		return fmt.Errorf("gain %#x: %w", uint8(c.Gain), pkg.ErrInvalidConfig)
	}
	if !c.Frequency.IsValid() {
		return fmt.Errorf("frequency %d: %w", uint32(c.Frequency), pkg.ErrInvalidConfig)
	}
	if c.BufferSamples <= 0 || c.BufferSamples > hal.MaxBufferSamples {
		return fmt.Errorf("buffer samples %d: %w", c.BufferSamples, pkg.ErrInvalidConfig)
	}
	if c.FrameSamples <= 0 {
		return fmt.Errorf("frame samples %d: %w", c.FrameSamples, pkg.ErrInvalidConfig)
	}
	if c.SettleTime < 0 {
		return fmt.Errorf("settle time %v: %w", c.SettleTime, pkg.ErrInvalidConfig)
	}
	if c.Power.Enabled {
		if !c.Power.Pin.IsValid() {
			return fmt.Errorf("power pin %d: %w", c.Power.Pin, pkg.ErrInvalidConfig)
		}
		if c.Power.Pin == c.CLK || c.Power.Pin == c.DIN {
			return fmt.Errorf("power pin %v shared with pdm: %w", c.Power.Pin, pkg.ErrInvalidConfig)
		}
	}
	return nil
}

// SkipCount returns how many frames cover the settling time, rounded to
// the nearest frame (halves round up), and never less than one:
//
//	max(1, round(settle_ms * sampleRate / (1000 * frameSamples)))
func SkipCount(settle time.Duration, sampleRate uint32, frameSamples int) int {
	if frameSamples <= 0 {
		return 1
	}
	num := uint64(max(settle.Milliseconds(), 0)) * uint64(sampleRate)
	den := uint64(1000) * uint64(frameSamples)
	n := int((num + den/2) / den)
	return max(1, n)
}
