// Package hal defines the Hardware Abstraction Layer for PDM microphone
// capture.
//
// The HAL provides a platform-agnostic interface between the audio driver
// and the underlying PDM peripheral. Platform vendors implement
// [Peripheral] (and [GPIO] when the microphone has a power-control pin) to
// run the driver on their hardware.
//
// # Capture Model
//
// The peripheral writes decimated 16-bit PCM samples directly into
// caller-supplied buffers. Capture is double-buffered: while one buffer is
// being filled, the next one must already be queued. The peripheral
// drives the exchange through [Event] values:
//
//   - BufferRequested: queue the next buffer with [Peripheral.SetNextBuffer]
//   - BufferReleased: a previously queued buffer is full and handed back
//
// A single event may carry both.
//
// # Implementing a HAL
//
//  1. Create a type that implements all [Peripheral] methods
//  2. Apply the [Config] (pins, clock, edge, gain, mode) in Init
//  3. Deliver events from the peripheral interrupt (or equivalent)
//  4. Release the in-progress buffer when Stop is called
//
// # Example
//
//	type MyPDM struct {
//	    handler hal.EventHandler
//	}
//
//	func (p *MyPDM) Init(cfg hal.Config, handler hal.EventHandler) error {
//	    p.handler = handler
//	    // Route pins, program clock and gain
//	    return nil
//	}
//
//	// ... implement Start, Stop and SetNextBuffer
//
// A simulated peripheral for host-side testing is available in
// [github.com/ardnew/softpdm/hal/sim].
package hal
