package audio

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ardnew/softpdm/hal"
	"github.com/ardnew/softpdm/pkg"
)

// component identifies the driver for structured logging.
const component = pkg.ComponentAudio

// ErrBufferPost is the panic value (wrapped with the peripheral error) raised
// when the peripheral rejects the next capture buffer. Capture cannot be
// paused mid-event, so there is no recovery path.
var ErrBufferPost = errors.New("audio: set next buffer")

// Handler receives each accepted capture buffer. It runs in the
// peripheral's event context. The buffer is reused after PoolSize-1 further
// buffers have been requested, so the handler must finish reading it before
// then.
type Handler func(buf []int16)

// State is the lifecycle state of a Driver.
type State uint8

// Driver states.
const (
	StateUninitialized State = iota // Init not yet called
	StateIdle                       // Initialized, capture stopped
	StateCapturing                  // Capture running
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// Stats counts buffers exchanged with the peripheral since construction.
type Stats struct {
	Requested uint64 // Buffers handed to the peripheral
	Released  uint64 // Buffers returned by the peripheral
	Dropped   uint64 // Released buffers discarded while settling
	Forwarded uint64 // Released buffers passed to the handler
}

// Driver streams PDM microphone samples into a fixed pool of buffers and
// forwards filled buffers to a Handler.
//
// The pool, rotation cursor and skip counter are touched only from the
// peripheral event context and from Enable, which the peripheral never
// runs concurrently with an event. Stats may be read from any goroutine.
type Driver struct {
	config     Config
	peripheral hal.Peripheral
	gpio       hal.GPIO

	pool    [PoolSize][]int16
	cursor  int
	skip    int
	handler Handler
	state   State

	requested atomic.Uint64
	released  atomic.Uint64
	dropped   atomic.Uint64
	forwarded atomic.Uint64
}

// New creates a driver for the given peripheral. gpio may be nil when
// power control is disabled. The buffer pool is allocated here and never
// resized.
func New(cfg Config, peripheral hal.Peripheral, gpio hal.GPIO) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if peripheral == nil {
		return nil, fmt.Errorf("nil peripheral: %w", pkg.ErrInvalidParameter)
	}
	if cfg.Power.Enabled && gpio == nil {
		return nil, fmt.Errorf("power control requires gpio: %w", pkg.ErrInvalidParameter)
	}

	d := &Driver{
		config:     cfg,
		peripheral: peripheral,
		gpio:       gpio,
	}

	n := cfg.BufferSamples
	backing := make([]int16, PoolSize*n)
	for i := range d.pool {
		d.pool[i] = backing[i*n : (i+1)*n : (i+1)*n]
	}

	return d, nil
}

// Init registers handler and configures the peripheral and power-control
// pin. The microphone is left powered off. A nil handler returns
// pkg.ErrInvalidParameter without touching the hardware; otherwise the
// peripheral's Init result is returned unchanged.
func (d *Driver) Init(handler Handler) error {
	if handler == nil {
		return pkg.ErrInvalidParameter
	}

	cfg := hal.DefaultConfig(d.config.CLK, d.config.DIN)
	cfg.GainLeft = d.config.Gain
	cfg.GainRight = d.config.Gain
	cfg.Mode = hal.ModeMono
	cfg.Edge = d.config.Channel.Edge()
	cfg.Frequency = d.config.Frequency

	if d.config.Power.Enabled {
		d.powerOff()
		if err := d.gpio.ConfigureOutput(d.config.Power.Pin); err != nil {
			return err
		}
	}

	pkg.LogDebug(component, "initializing peripheral",
		"clk", cfg.CLK.String(),
		"din", cfg.DIN.String(),
		"edge", cfg.Edge.String(),
		"gain", cfg.GainLeft.String(),
		"frequency", cfg.Frequency.String())

	// A failed Init leaves any previously registered handler in place.
	err := d.peripheral.Init(cfg, d.handleEvent)
	if err == nil {
		d.handler = handler
		d.state = StateIdle
	}
	return err
}

// Enable powers the microphone, resets the skip counter and starts
// capture. The peripheral's Start result is returned unchanged.
func (d *Driver) Enable() error {
	if d.config.Power.Enabled {
		d.gpio.Set(d.config.Power.Pin, d.config.Power.onLevel())
	}

	d.skip = d.config.SkipCount()

	pkg.LogDebug(component, "enabling capture", "skip", d.skip)

	err := d.peripheral.Start()
	if err == nil {
		d.state = StateCapturing
	}
	return err
}

// Disable powers the microphone off and stops capture. The peripheral's
// Stop result is returned unchanged.
func (d *Driver) Disable() error {
	d.powerOff()

	pkg.LogDebug(component, "disabling capture")

	err := d.peripheral.Stop()
	if err == nil {
		d.state = StateIdle
	}
	return err
}

// Config returns the driver configuration.
func (d *Driver) Config() Config {
	return d.config
}

// State returns the lifecycle state.
func (d *Driver) State() State {
	return d.state
}

// Stats returns a snapshot of the buffer counters.
func (d *Driver) Stats() Stats {
	return Stats{
		Requested: d.requested.Load(),
		Released:  d.released.Load(),
		Dropped:   d.dropped.Load(),
		Forwarded: d.forwarded.Load(),
	}
}

// powerOff drives the power-control pin to its inactive level.
func (d *Driver) powerOff() {
	if d.config.Power.Enabled {
		d.gpio.Set(d.config.Power.Pin, !d.config.Power.onLevel())
	}
}

// nextBuffer returns the pool slot at the cursor, zero-filled, and
// advances the cursor.
func (d *Driver) nextBuffer() []int16 {
	buf := d.pool[d.cursor]
	d.cursor++
	if d.cursor == PoolSize {
		d.cursor = 0
	}
	clear(buf)
	return buf
}

// handleEvent is registered with the peripheral and runs in its event
// context.
func (d *Driver) handleEvent(evt *hal.Event) {
	if evt.BufferRequested {
		buf := d.nextBuffer()
		d.requested.Add(1)
		if err := d.peripheral.SetNextBuffer(buf); err != nil {
			pkg.LogError(component, "peripheral rejected capture buffer", "error", err)
			panic(fmt.Errorf("%w: %w", ErrBufferPost, err))
		}
	}

	if buf := evt.BufferReleased; buf != nil {
		d.released.Add(1)
		if d.skip > 0 {
			d.skip--
			d.dropped.Add(1)
			return
		}
		d.forwarded.Add(1)
		d.handler(buf)
	}
}
