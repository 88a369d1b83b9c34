// Package sim implements a simulated PDM peripheral and GPIO for host-side
// testing of the audio driver.
//
// The simulated peripheral models the double-buffered capture of a PDM
// interface with EasyDMA: it asks for a buffer before capture begins,
// asks for the following one as soon as the first is latched, and from
// then on releases each full buffer in the same event that requests the
// next. If no buffer is queued when a swap is due, capture continues into
// the active buffer and an overrun is counted.
//
// # Sample Sources
//
// Samples come from a [Source]:
//
//   - [ToneSource]: a continuous sine wave
//   - [ReaderSource]: raw little-endian int16 samples from any stream,
//     including a named pipe written by another process
//   - [WAVSource]: the first channel of a WAV file
//   - [Silence]: zeros forever
//
// [Resample] wraps any of them when its rate differs from the capture rate.
// The configured gain is applied to source samples in 0.5 dB steps.
//
// # Usage
//
//	src, _ := sim.NewToneSource(1000, 0.5, hal.Freq1032K.SampleRate())
//	pdm := sim.New(src, sim.WithRealtime())
//	gpio := sim.NewGPIO()
//
//	drv, _ := audio.New(audio.DefaultConfig(26, 25), pdm, gpio)
//	drv.Init(func(buf []int16) {
//	    // Process samples
//	})
//	drv.Enable()
//	defer drv.Disable()
//
// Events are delivered on a capture goroutine. Stop waits for that
// goroutine to exit, so it must not be called from the event handler.
package sim
