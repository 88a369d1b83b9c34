package sim

import (
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/softpdm/hal"
	"github.com/ardnew/softpdm/pkg"
)

// component identifies the simulator for structured logging.
const component = pkg.ComponentSim

// Peripheral implements hal.Peripheral by filling queued buffers from a
// Source on a capture goroutine. Events are delivered from that goroutine
// only, one at a time, which stands in for the PDM interrupt.
type Peripheral struct {
	src      Source
	realtime bool

	mutex     sync.Mutex
	config    hal.Config
	handler   hal.EventHandler
	initDone  bool
	running   bool
	requested bool    // Request outstanding, SetNextBuffer accepted
	next      []int16 // Buffer queued for the next swap

	stopCh chan struct{}
	doneCh chan struct{}

	captured atomic.Uint64
	overruns atomic.Uint64
	srcDone  atomic.Bool
}

// Option configures a Peripheral.
type Option func(*Peripheral)

// WithRealtime paces capture at the configured sample rate instead of
// filling buffers as fast as the handler accepts them.
func WithRealtime() Option {
	return func(p *Peripheral) {
		p.realtime = true
	}
}

// New creates a simulated PDM peripheral reading from src.
func New(src Source, opts ...Option) *Peripheral {
	p := &Peripheral{src: src}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Init validates cfg and registers the event handler. The simulator
// captures mono only.
func (p *Peripheral) Init(cfg hal.Config, handler hal.EventHandler) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.initDone {
		return pkg.ErrInvalidState
	}
	if handler == nil {
		return pkg.ErrInvalidParameter
	}
	if !cfg.CLK.IsValid() || !cfg.DIN.IsValid() || cfg.CLK == cfg.DIN {
		return pkg.ErrInvalidPin
	}
	if !cfg.Frequency.IsValid() || !cfg.GainLeft.IsValid() || !cfg.GainRight.IsValid() {
		return pkg.ErrInvalidParameter
	}
	if cfg.Mode != hal.ModeMono {
		return pkg.ErrNotSupported
	}

	p.config = cfg
	p.handler = handler
	p.initDone = true

	pkg.LogInfo(component, "simulated pdm initialized",
		"clk", cfg.CLK.String(),
		"din", cfg.DIN.String(),
		"edge", cfg.Edge.String(),
		"rate", cfg.Frequency.SampleRate(),
		"realtime", p.realtime)

	return nil
}

// Start launches the capture goroutine. The first event requests a buffer.
func (p *Peripheral) Start() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.initDone {
		return pkg.ErrInvalidState
	}
	if p.running {
		return pkg.ErrAlreadyRunning
	}

	p.running = true
	p.requested = false
	p.next = nil
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.capture(p.stopCh, p.doneCh)

	pkg.LogDebug(component, "capture started")
	return nil
}

// Stop halts capture and waits for the capture goroutine to release the
// buffer in progress and exit. It must not be called from the event
// handler.
func (p *Peripheral) Stop() error {
	p.mutex.Lock()
	if !p.running {
		p.mutex.Unlock()
		return pkg.ErrNotRunning
	}
	p.running = false
	close(p.stopCh)
	done := p.doneCh
	p.mutex.Unlock()

	<-done

	p.mutex.Lock()
	p.requested = false
	p.next = nil
	p.mutex.Unlock()

	pkg.LogDebug(component, "capture stopped",
		"captured", p.captured.Load(),
		"overruns", p.overruns.Load())
	return nil
}

// SetNextBuffer queues buf for the next swap. It is accepted only while a
// request is outstanding.
func (p *Peripheral) SetNextBuffer(buf []int16) error {
	if len(buf) == 0 || len(buf) > hal.MaxBufferSamples {
		return pkg.ErrInvalidParameter
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if !p.requested {
		if p.next != nil {
			return pkg.ErrBusy
		}
		return pkg.ErrInvalidState
	}
	p.next = buf
	p.requested = false
	return nil
}

// Config returns the configuration passed to Init.
func (p *Peripheral) Config() hal.Config {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.config
}

// Captured returns the number of buffers filled since construction.
func (p *Peripheral) Captured() uint64 {
	return p.captured.Load()
}

// Overruns returns how many times a buffer swap was due with no buffer
// queued.
func (p *Peripheral) Overruns() uint64 {
	return p.overruns.Load()
}

// Exhausted reports whether the sample source has ended. Capture continues
// with silence afterwards.
func (p *Peripheral) Exhausted() bool {
	return p.srcDone.Load()
}

// capture runs the double-buffered capture loop.
func (p *Peripheral) capture(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// STARTED for the first buffer: its pointer must be latched before any
	// sample is written.
	p.emit(true, nil)
	active := p.take()
	for active == nil {
		p.overruns.Add(1)
		pkg.LogWarn(component, "no initial capture buffer queued")
		if !p.wait(stop, time.Millisecond) {
			return
		}
		p.emit(true, nil)
		active = p.take()
	}

	// STARTED latches active; request the one after it.
	p.emit(true, nil)

	p.mutex.Lock()
	gain := gainFactor(p.config.GainLeft)
	rate := p.config.Frequency.SampleRate()
	p.mutex.Unlock()

	starved := 0
	for {
		p.fill(active, gain)
		p.captured.Add(1)

		period := time.Duration(0)
		if p.realtime {
			period = time.Duration(len(active)) * time.Second / time.Duration(rate)
		}
		if !p.wait(stop, period) {
			p.emit(false, active)
			return
		}

		next := p.take()
		if next == nil {
			// Capture continues into the same buffer.
			total := p.overruns.Add(1)
			if starved++; starved == 1 {
				pkg.LogWarn(component, "capture buffer not supplied in time",
					"error", pkg.ErrOverrun,
					"overruns", total)
			}
			continue
		}
		starved = 0

		released := active
		active = next
		p.emit(true, released)
	}
}

// wait returns false if stop is closed before d elapses.
func (p *Peripheral) wait(stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

// emit delivers one event to the handler.
func (p *Peripheral) emit(request bool, released []int16) {
	p.mutex.Lock()
	if request {
		p.requested = true
	}
	handler := p.handler
	p.mutex.Unlock()

	handler(&hal.Event{BufferRequested: request, BufferReleased: released})
}

// take removes and returns the queued buffer, or nil.
func (p *Peripheral) take() []int16 {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	buf := p.next
	p.next = nil
	return buf
}

// fill writes source samples into buf, scaled by gain. Once the source is
// exhausted the remainder is silence.
func (p *Peripheral) fill(buf []int16, gain float64) {
	n := 0
	if !p.srcDone.Load() {
		var err error
		n, err = p.src.ReadSamples(buf)
		if err != nil {
			p.srcDone.Store(true)
			if errors.Is(err, io.EOF) {
				pkg.LogInfo(component, "sample source exhausted")
			} else {
				pkg.LogError(component, "sample source failed", "error", err)
			}
		}
	}
	clear(buf[n:])

	if gain != 1 {
		for i, s := range buf[:n] {
			buf[i] = saturate(float64(s) * gain)
		}
	}
}

// gainFactor converts a PDM gain to a linear amplitude factor.
func gainFactor(g hal.Gain) float64 {
	return math.Pow(10, float64(g.HalfDB())/40)
}

// saturate rounds v to the nearest int16, clamping at the limits.
func saturate(v float64) int16 {
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(math.Round(v))
	}
}
