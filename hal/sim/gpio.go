package sim

import (
	"sync"

	"github.com/ardnew/softpdm/hal"
	"github.com/ardnew/softpdm/pkg"
)

// Transition records one level written to a pin.
type Transition struct {
	Pin  hal.Pin
	High bool
}

// GPIO implements hal.GPIO by recording pin directions and levels.
type GPIO struct {
	mutex   sync.Mutex
	outputs map[hal.Pin]bool
	levels  map[hal.Pin]bool
	history []Transition
}

// NewGPIO creates a GPIO with every pin an input at low level.
func NewGPIO() *GPIO {
	return &GPIO{
		outputs: make(map[hal.Pin]bool),
		levels:  make(map[hal.Pin]bool),
	}
}

// ConfigureOutput marks pin as an output.
func (g *GPIO) ConfigureOutput(pin hal.Pin) error {
	if !pin.IsValid() {
		return pkg.ErrInvalidPin
	}
	g.mutex.Lock()
	g.outputs[pin] = true
	g.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentGPIO, "pin configured as output", "pin", pin.String())
	return nil
}

// Set latches the output level of pin. Like hardware, the level is kept
// even if the pin is not (yet) an output.
func (g *GPIO) Set(pin hal.Pin, high bool) {
	g.mutex.Lock()
	g.levels[pin] = high
	g.history = append(g.history, Transition{Pin: pin, High: high})
	g.mutex.Unlock()

	pkg.LogDebug(pkg.ComponentGPIO, "pin set", "pin", pin.String(), "high", high)
}

// IsOutput reports whether pin was configured as an output.
func (g *GPIO) IsOutput(pin hal.Pin) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.outputs[pin]
}

// Level returns the last level latched on pin and whether it was ever set.
func (g *GPIO) Level(pin hal.Pin) (high, ok bool) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	high, ok = g.levels[pin]
	return high, ok
}

// History returns every level written, in order.
func (g *GPIO) History() []Transition {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return append([]Transition(nil), g.history...)
}
