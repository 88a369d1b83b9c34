package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/ardnew/softpdm/hal"
	"github.com/ardnew/softpdm/pkg"
)

// mockPeripheral implements hal.Peripheral for testing.
type mockPeripheral struct {
	initCalled  bool
	startCalled int
	stopCalled  int
	config      hal.Config
	handler     hal.EventHandler
	queued      [][]int16

	initErr  error
	startErr error
	stopErr  error
	setErr   error
}

func (m *mockPeripheral) Init(cfg hal.Config, handler hal.EventHandler) error {
	m.initCalled = true
	m.config = cfg
	m.handler = handler
	return m.initErr
}

func (m *mockPeripheral) Start() error {
	m.startCalled++
	return m.startErr
}

func (m *mockPeripheral) Stop() error {
	m.stopCalled++
	return m.stopErr
}

func (m *mockPeripheral) SetNextBuffer(buf []int16) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.queued = append(m.queued, buf)
	return nil
}

// request delivers a buffer request and returns the queued buffer.
func (m *mockPeripheral) request(t *testing.T) []int16 {
	t.Helper()
	n := len(m.queued)
	m.handler(&hal.Event{BufferRequested: true})
	if len(m.queued) != n+1 {
		t.Fatalf("buffer request queued %d buffers, want 1", len(m.queued)-n)
	}
	return m.queued[n]
}

// release delivers a released buffer.
func (m *mockPeripheral) release(buf []int16) {
	m.handler(&hal.Event{BufferReleased: buf})
}

// gpioOp records one mockGPIO call.
type gpioOp struct {
	configure bool
	pin       hal.Pin
	high      bool
}

// mockGPIO implements hal.GPIO for testing.
type mockGPIO struct {
	ops          []gpioOp
	configureErr error
}

func (g *mockGPIO) ConfigureOutput(pin hal.Pin) error {
	g.ops = append(g.ops, gpioOp{configure: true, pin: pin})
	return g.configureErr
}

func (g *mockGPIO) Set(pin hal.Pin, high bool) {
	g.ops = append(g.ops, gpioOp{pin: pin, high: high})
}

// level returns the last level written to pin.
func (g *mockGPIO) level(t *testing.T, pin hal.Pin) bool {
	t.Helper()
	for i := len(g.ops) - 1; i >= 0; i-- {
		if !g.ops[i].configure && g.ops[i].pin == pin {
			return g.ops[i].high
		}
	}
	t.Fatalf("pin %v never driven", pin)
	return false
}

const (
	testCLK   hal.Pin = 26
	testDIN   hal.Pin = 25
	testPower hal.Pin = 30
)

func testConfig() Config {
	cfg := DefaultConfig(testCLK, testDIN)
	cfg.BufferSamples = 64
	return cfg
}

// handlerRecorder collects forwarded buffers.
type handlerRecorder struct {
	bufs [][]int16
}

func (r *handlerRecorder) handle(buf []int16) {
	r.bufs = append(r.bufs, buf)
}

func newTestDriver(t *testing.T, cfg Config) (*Driver, *mockPeripheral, *mockGPIO, *handlerRecorder) {
	t.Helper()
	p := &mockPeripheral{}
	g := &mockGPIO{}
	d, err := New(cfg, p, g)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rec := &handlerRecorder{}
	if err := d.Init(rec.handle); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return d, p, g, rec
}

func sameBuffer(a, b []int16) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}

func TestNew(t *testing.T) {
	d, err := New(testConfig(), &mockPeripheral{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.State() != StateUninitialized {
		t.Errorf("State() = %v, want %v", d.State(), StateUninitialized)
	}
	for i, buf := range d.pool {
		if len(buf) != 64 || cap(buf) != 64 {
			t.Errorf("pool[%d] len/cap = %d/%d, want 64/64", i, len(buf), cap(buf))
		}
	}
	if sameBuffer(d.pool[0], d.pool[1]) || sameBuffer(d.pool[1], d.pool[2]) {
		t.Error("pool slots share storage")
	}
}

func TestNew_Errors(t *testing.T) {
	bad := testConfig()
	bad.BufferSamples = 0
	if _, err := New(bad, &mockPeripheral{}, nil); !errors.Is(err, pkg.ErrInvalidConfig) {
		t.Errorf("New(bad config) error = %v, want %v", err, pkg.ErrInvalidConfig)
	}

	if _, err := New(testConfig(), nil, nil); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("New(nil peripheral) error = %v, want %v", err, pkg.ErrInvalidParameter)
	}

	cfg := testConfig()
	cfg.Power = PowerControl{Enabled: true, Pin: testPower}
	if _, err := New(cfg, &mockPeripheral{}, nil); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("New(power without gpio) error = %v, want %v", err, pkg.ErrInvalidParameter)
	}
}

func TestInit_NilHandler(t *testing.T) {
	cfg := testConfig()
	cfg.Power = PowerControl{Enabled: true, Pin: testPower}
	p := &mockPeripheral{}
	g := &mockGPIO{}
	d, err := New(cfg, p, g)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := d.Init(nil); err != pkg.ErrInvalidParameter {
		t.Errorf("Init(nil) error = %v, want %v", err, pkg.ErrInvalidParameter)
	}
	if p.initCalled {
		t.Error("peripheral initialized despite nil handler")
	}
	if len(g.ops) != 0 {
		t.Errorf("gpio touched despite nil handler: %v", g.ops)
	}
	if d.State() != StateUninitialized {
		t.Errorf("State() = %v, want %v", d.State(), StateUninitialized)
	}
}

func TestInit_PeripheralConfig(t *testing.T) {
	tests := []struct {
		channel Channel
		edge    hal.Edge
	}{
		{ChannelLeft, hal.EdgeLeftFalling},
		{ChannelRight, hal.EdgeLeftRising},
	}

	for _, tt := range tests {
		t.Run(tt.channel.String(), func(t *testing.T) {
			cfg := testConfig()
			cfg.Channel = tt.channel
			cfg.Gain = hal.GainDefault + 6
			cfg.Frequency = hal.Freq1000K
			_, p, _, _ := newTestDriver(t, cfg)

			if !p.initCalled {
				t.Fatal("peripheral Init not called")
			}
			if p.handler == nil {
				t.Error("event handler not registered")
			}
			got := p.config
			if got.CLK != testCLK || got.DIN != testDIN {
				t.Errorf("pins = %v/%v, want %v/%v", got.CLK, got.DIN, testCLK, testDIN)
			}
			if got.Edge != tt.edge {
				t.Errorf("Edge = %v, want %v", got.Edge, tt.edge)
			}
			if got.Mode != hal.ModeMono {
				t.Errorf("Mode = %v, want %v", got.Mode, hal.ModeMono)
			}
			if got.GainLeft != cfg.Gain || got.GainRight != cfg.Gain {
				t.Errorf("gain = %v/%v, want %v", got.GainLeft, got.GainRight, cfg.Gain)
			}
			if got.Frequency != hal.Freq1000K {
				t.Errorf("Frequency = %v, want %v", got.Frequency, hal.Freq1000K)
			}
		})
	}
}

func TestInit_PropagatesPeripheralError(t *testing.T) {
	initErr := errors.New("vendor init failure")
	p := &mockPeripheral{initErr: initErr}
	d, err := New(testConfig(), p, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := d.Init(func([]int16) {}); err != initErr {
		t.Errorf("Init() error = %v, want %v", err, initErr)
	}
	if d.State() != StateUninitialized {
		t.Errorf("State() = %v, want %v", d.State(), StateUninitialized)
	}
}

func TestInit_FailureKeepsHandler(t *testing.T) {
	d, p, _, rec := newTestDriver(t, testConfig())

	initErr := errors.New("vendor init failure")
	p.initErr = initErr
	var replaced int
	if err := d.Init(func([]int16) { replaced++ }); err != initErr {
		t.Fatalf("Init() error = %v, want %v", err, initErr)
	}
	if d.State() != StateIdle {
		t.Errorf("State() = %v, want %v", d.State(), StateIdle)
	}

	buf := make([]int16, 64)
	p.release(buf)
	if replaced != 0 {
		t.Errorf("handler from failed Init called %d times", replaced)
	}
	if len(rec.bufs) != 1 || !sameBuffer(rec.bufs[0], buf) {
		t.Errorf("original handler got %d buffers, want the released buffer", len(rec.bufs))
	}
}

func TestPowerControl(t *testing.T) {
	tests := []struct {
		name      string
		activeLow bool
	}{
		{"active-high", false},
		{"active-low", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Power = PowerControl{Enabled: true, Pin: testPower, ActiveLow: tt.activeLow}
			d, _, g, _ := newTestDriver(t, cfg)

			on := !tt.activeLow

			// Level is set before the pin becomes an output.
			if len(g.ops) != 2 {
				t.Fatalf("Init gpio ops = %v, want set then configure", g.ops)
			}
			if g.ops[0] != (gpioOp{pin: testPower, high: !on}) {
				t.Errorf("first op = %+v, want off level", g.ops[0])
			}
			if g.ops[1] != (gpioOp{configure: true, pin: testPower}) {
				t.Errorf("second op = %+v, want configure output", g.ops[1])
			}

			if err := d.Enable(); err != nil {
				t.Fatalf("Enable() error = %v", err)
			}
			if got := g.level(t, testPower); got != on {
				t.Errorf("level after Enable = %v, want %v", got, on)
			}

			if err := d.Disable(); err != nil {
				t.Fatalf("Disable() error = %v", err)
			}
			if got := g.level(t, testPower); got != !on {
				t.Errorf("level after Disable = %v, want %v", got, !on)
			}
		})
	}
}

func TestInit_ConfigureOutputError(t *testing.T) {
	cfg := testConfig()
	cfg.Power = PowerControl{Enabled: true, Pin: testPower}
	p := &mockPeripheral{}
	gpioErr := errors.New("pin reserved")
	d, err := New(cfg, p, &mockGPIO{configureErr: gpioErr})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := d.Init(func([]int16) {}); err != gpioErr {
		t.Errorf("Init() error = %v, want %v", err, gpioErr)
	}
	if p.initCalled {
		t.Error("peripheral initialized after gpio failure")
	}
}

func TestEnableDisable(t *testing.T) {
	d, p, g, _ := newTestDriver(t, testConfig())

	if d.State() != StateIdle {
		t.Errorf("State() after Init = %v, want %v", d.State(), StateIdle)
	}
	if err := d.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if p.startCalled != 1 {
		t.Errorf("Start called %d times, want 1", p.startCalled)
	}
	if d.State() != StateCapturing {
		t.Errorf("State() after Enable = %v, want %v", d.State(), StateCapturing)
	}
	if err := d.Disable(); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if p.stopCalled != 1 {
		t.Errorf("Stop called %d times, want 1", p.stopCalled)
	}
	if d.State() != StateIdle {
		t.Errorf("State() after Disable = %v, want %v", d.State(), StateIdle)
	}
	if len(g.ops) != 0 {
		t.Errorf("gpio touched without power control: %v", g.ops)
	}
}

func TestEnableDisable_PropagatesPeripheralError(t *testing.T) {
	d, p, _, _ := newTestDriver(t, testConfig())

	p.startErr = pkg.ErrInvalidState
	if err := d.Enable(); err != pkg.ErrInvalidState {
		t.Errorf("Enable() error = %v, want %v", err, pkg.ErrInvalidState)
	}
	if d.State() != StateIdle {
		t.Errorf("State() = %v, want %v", d.State(), StateIdle)
	}

	p.stopErr = pkg.ErrNotRunning
	if err := d.Disable(); err != pkg.ErrNotRunning {
		t.Errorf("Disable() error = %v, want %v", err, pkg.ErrNotRunning)
	}
}

func TestBufferRotation(t *testing.T) {
	d, p, _, _ := newTestDriver(t, testConfig())

	for cycle := 0; cycle < 3; cycle++ {
		for slot := 0; slot < PoolSize; slot++ {
			buf := p.request(t)
			if !sameBuffer(buf, d.pool[slot]) {
				t.Fatalf("cycle %d request %d: got a different slot than pool[%d]", cycle, slot, slot)
			}
			for i, s := range buf {
				if s != 0 {
					t.Fatalf("cycle %d slot %d: sample %d = %d, want 0", cycle, slot, i, s)
				}
			}
			if d.cursor < 0 || d.cursor >= PoolSize {
				t.Fatalf("cursor = %d, out of range", d.cursor)
			}
			// Simulate the peripheral filling the buffer.
			for i := range buf {
				buf[i] = int16(i + 1)
			}
		}
	}
}

func TestSkipCountAfterEnable(t *testing.T) {
	cfg := testConfig()
	cfg.Frequency = hal.Freq1032K
	cfg.FrameSamples = 512
	cfg.SettleTime = 60 * time.Millisecond
	d, p, _, rec := newTestDriver(t, cfg)

	if err := d.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	var bufs [][]int16
	for i := 0; i < PoolSize; i++ {
		bufs = append(bufs, p.request(t))
	}

	p.release(bufs[0])
	p.release(bufs[1])
	if len(rec.bufs) != 0 {
		t.Fatalf("handler called %d times while settling, want 0", len(rec.bufs))
	}

	p.release(bufs[2])
	if len(rec.bufs) != 1 {
		t.Fatalf("handler called %d times, want 1", len(rec.bufs))
	}
	if !sameBuffer(rec.bufs[0], bufs[2]) {
		t.Error("forwarded buffer differs from released buffer")
	}

	stats := d.Stats()
	want := Stats{Requested: 3, Released: 3, Dropped: 2, Forwarded: 1}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}
}

func TestReEnableResetsSkip(t *testing.T) {
	cfg := testConfig()
	cfg.SettleTime = 0 // skip exactly one
	d, p, _, rec := newTestDriver(t, cfg)

	if err := d.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	buf := p.request(t)
	p.release(buf) // dropped
	p.release(buf) // forwarded
	if len(rec.bufs) != 1 {
		t.Fatalf("handler called %d times, want 1", len(rec.bufs))
	}

	if err := d.Disable(); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if err := d.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	p.release(buf) // dropped again
	if len(rec.bufs) != 1 {
		t.Fatalf("handler called %d times after re-enable, want 1", len(rec.bufs))
	}
	p.release(buf)
	if len(rec.bufs) != 2 {
		t.Fatalf("handler called %d times, want 2", len(rec.bufs))
	}

	// Enable without an intervening Disable also resets.
	if err := d.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	p.release(buf)
	if len(rec.bufs) != 2 {
		t.Errorf("handler called %d times, want 2", len(rec.bufs))
	}
}

func TestEventWithRequestAndRelease(t *testing.T) {
	cfg := testConfig()
	cfg.SettleTime = 0
	d, p, _, rec := newTestDriver(t, cfg)
	if err := d.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	first := p.request(t)
	second := p.request(t)
	p.handler(&hal.Event{BufferRequested: true, BufferReleased: first}) // dropped
	p.handler(&hal.Event{BufferRequested: true, BufferReleased: second})

	if len(p.queued) != 4 {
		t.Errorf("queued %d buffers, want 4", len(p.queued))
	}
	if !sameBuffer(p.queued[3], d.pool[0]) {
		t.Error("fourth request did not wrap to pool[0]")
	}
	if len(rec.bufs) != 1 || !sameBuffer(rec.bufs[0], second) {
		t.Errorf("forwarded %d buffers, want only the second", len(rec.bufs))
	}
}

func TestForwardedBufferUnmodified(t *testing.T) {
	cfg := testConfig()
	cfg.SettleTime = 0
	d, p, _, rec := newTestDriver(t, cfg)
	if err := d.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	p.release(p.request(t))
	buf := p.request(t)
	for i := range buf {
		buf[i] = int16(-i)
	}
	p.release(buf)

	if len(rec.bufs) != 1 {
		t.Fatalf("handler called %d times, want 1", len(rec.bufs))
	}
	got := rec.bufs[0]
	if !sameBuffer(got, buf) || len(got) != cfg.BufferSamples {
		t.Fatalf("forwarded buffer is not the released slice")
	}
	for i, s := range got {
		if s != int16(-i) {
			t.Fatalf("sample %d = %d, want %d", i, s, -i)
		}
	}
	if d.Stats().Forwarded != 1 {
		t.Errorf("Forwarded = %d, want 1", d.Stats().Forwarded)
	}
}

func TestEventWithoutPayload(t *testing.T) {
	d, p, _, rec := newTestDriver(t, testConfig())
	p.handler(&hal.Event{})
	if len(p.queued) != 0 || len(rec.bufs) != 0 {
		t.Error("empty event had side effects")
	}
	if d.Stats() != (Stats{}) {
		t.Errorf("Stats() = %+v, want zero", d.Stats())
	}
}

func TestBufferPostFailureIsFatal(t *testing.T) {
	_, p, _, _ := newTestDriver(t, testConfig())
	p.setErr = pkg.ErrBusy

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("rejected buffer did not panic")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %T is not an error", r)
		}
		if !errors.Is(err, ErrBufferPost) {
			t.Errorf("panic %v does not wrap ErrBufferPost", err)
		}
		if !errors.Is(err, pkg.ErrBusy) {
			t.Errorf("panic %v does not wrap peripheral error", err)
		}
	}()

	p.handler(&hal.Event{BufferRequested: true})
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUninitialized, "uninitialized"},
		{StateIdle, "idle"},
		{StateCapturing, "capturing"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
