// Package audio streams PDM microphone samples into fixed-size buffers and
// hands completed buffers to an application callback.
//
// A [Driver] owns a pool of [PoolSize] sample buffers. When the peripheral
// asks for a buffer, the driver zero-fills the next pool slot in
// round-robin order and queues it. When the peripheral releases a filled
// buffer, the driver either drops it (while the analog front-end is still
// settling after [Driver.Enable]) or passes it, unchanged and uncopied, to
// the [Handler] registered with [Driver.Init].
//
// # Settling
//
// After every Enable the first [SkipCount] released buffers are discarded:
//
//	max(1, round(settle_ms * sample_rate / (1000 * frame_samples)))
//
// Rounding is half-up integer division. With the default configuration
// (16125 Hz, 512-sample frames, 60 ms) two buffers are dropped.
//
// # Event Context
//
// The handler runs synchronously in the peripheral's event context (an
// interrupt on hardware, the capture goroutine in [hal/sim]). It must not
// block, and must finish with a buffer before the pool cycles back to it.
// If the peripheral rejects a buffer while handling a request, the driver
// panics with an error wrapping [ErrBufferPost]: real-time capture has no
// way to stall and retry.
//
// # Usage
//
//	drv, err := audio.New(audio.DefaultConfig(clk, din), pdm, gpio)
//	if err != nil {
//	    return err
//	}
//	if err := drv.Init(func(buf []int16) {
//	    // Consume samples
//	}); err != nil {
//	    return err
//	}
//	if err := drv.Enable(); err != nil {
//	    return err
//	}
//
// [hal/sim]: https://pkg.go.dev/github.com/ardnew/softpdm/hal/sim
package audio
