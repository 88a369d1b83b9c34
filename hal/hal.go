package hal

import "fmt"

// Pin identifies a GPIO pin by its port-relative number (P0.x = x,
// P1.x = 32+x).
type Pin uint8

// NoPin marks an unassigned pin.
const NoPin Pin = 0xFF

// MaxPin is the highest pin number a PDM peripheral can route.
const MaxPin Pin = 47

// IsValid reports whether the pin is assigned and routable.
func (p Pin) IsValid() bool {
	return p <= MaxPin
}

// String returns the pin in port.pin notation.
func (p Pin) String() string {
	if !p.IsValid() {
		return "none"
	}
	return fmt.Sprintf("P%d.%02d", p/32, p%32)
}

// Edge selects on which PDM clock edge the left channel is sampled.
type Edge uint8

// Sampling edge options.
const (
	EdgeLeftFalling Edge = iota // Left (or mono) sampled on falling edge
	EdgeLeftRising              // Left (or mono) sampled on rising edge
)

// String returns a human-readable edge name.
func (e Edge) String() string {
	switch e {
	case EdgeLeftFalling:
		return "left-falling"
	case EdgeLeftRising:
		return "left-rising"
	default:
		return "unknown"
	}
}

// Mode selects mono or stereo operation.
type Mode uint8

// Operation modes.
const (
	ModeStereo Mode = iota // Samples from both channels interleaved
	ModeMono               // Samples from the left channel only
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeStereo:
		return "stereo"
	case ModeMono:
		return "mono"
	default:
		return "unknown"
	}
}

// Gain is the PDM decimation filter gain in 0.5 dB steps.
// GainMin is -20 dB, GainDefault is 0 dB, GainMax is +20 dB.
type Gain uint8

// Gain limits.
const (
	GainMin     Gain = 0x00
	GainDefault Gain = 0x28
	GainMax     Gain = 0x50
)

// IsValid reports whether the gain is within the supported range.
func (g Gain) IsValid() bool {
	return g <= GainMax
}

// HalfDB returns the gain relative to 0 dB in 0.5 dB steps.
func (g Gain) HalfDB() int {
	return int(g) - int(GainDefault)
}

// String returns the gain in decibels.
func (g Gain) String() string {
	hd := g.HalfDB()
	if hd%2 == 0 {
		return fmt.Sprintf("%+d dB", hd/2)
	}
	return fmt.Sprintf("%+.1f dB", float64(hd)/2)
}

// Frequency is the PDM clock frequency in Hz.
type Frequency uint32

// Supported PDM clock frequencies.
const (
	Freq1000K Frequency = 1000000
	Freq1032K Frequency = 1032000
	Freq1067K Frequency = 1067000
)

// DecimationRatio is the ratio between the PDM clock and the PCM sample rate.
const DecimationRatio = 64

// IsValid reports whether the frequency is one the peripheral supports.
func (f Frequency) IsValid() bool {
	switch f {
	case Freq1000K, Freq1032K, Freq1067K:
		return true
	default:
		return false
	}
}

// SampleRate returns the PCM sample rate in Hz produced at this clock.
func (f Frequency) SampleRate() uint32 {
	return uint32(f) / DecimationRatio
}

// String returns the frequency in kHz.
func (f Frequency) String() string {
	return fmt.Sprintf("%dkHz", uint32(f)/1000)
}

// MaxBufferSamples is the largest buffer, in samples, a single capture
// can target.
const MaxBufferSamples = 32767

// Config describes how the PDM peripheral is set up.
type Config struct {
	CLK       Pin       // PDM clock output
	DIN       Pin       // PDM data input
	Mode      Mode      // Mono or stereo
	Edge      Edge      // Sampling edge for the left channel
	Frequency Frequency // PDM clock frequency
	GainLeft  Gain      // Left channel gain
	GainRight Gain      // Right channel gain
	Priority  uint8     // Interrupt priority
}

// DefaultPriority is the interrupt priority used by DefaultConfig.
const DefaultPriority = 6

// DefaultConfig returns the default configuration for the given pins:
// mono, left-falling edge, 1.032 MHz clock and 0 dB gain.
func DefaultConfig(clk, din Pin) Config {
	return Config{
		CLK:       clk,
		DIN:       din,
		Mode:      ModeMono,
		Edge:      EdgeLeftFalling,
		Frequency: Freq1032K,
		GainLeft:  GainDefault,
		GainRight: GainDefault,
		Priority:  DefaultPriority,
	}
}

// Event is delivered by a Peripheral from its event context.
// Both fields are independent and may be set in the same event.
type Event struct {
	// BufferRequested is set when the peripheral needs the next capture
	// buffer queued with SetNextBuffer.
	BufferRequested bool

	// BufferReleased is the buffer the peripheral just finished filling,
	// or nil.
	BufferReleased []int16
}

// EventHandler receives peripheral events. It runs in the peripheral's
// event context and must not block.
type EventHandler func(evt *Event)

// Peripheral defines the PDM capture peripheral used by the audio driver.
//
// Implementations deliver events to the handler registered with Init.
// Init, Start and Stop are never called while an event is being handled;
// implementations must guarantee that no event is delivered after Stop
// returns.
type Peripheral interface {
	// Init configures the peripheral and registers the event handler.
	Init(cfg Config, handler EventHandler) error

	// Start begins capture. The first event requests a buffer.
	Start() error

	// Stop ends capture. The buffer in progress is released.
	Stop() error

	// SetNextBuffer queues buf as the next capture target. It is called
	// from the event handler in response to a buffer request.
	SetNextBuffer(buf []int16) error
}

// GPIO drives digital output pins.
type GPIO interface {
	// ConfigureOutput configures the pin as a push-pull output.
	ConfigureOutput(pin Pin) error

	// Set drives the pin high (true) or low (false).
	Set(pin Pin, high bool)
}
