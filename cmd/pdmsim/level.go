package main

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// floorDBFS is reported for digital silence.
const floorDBFS = -120.0

// Level summarizes one forwarded frame.
type Level struct {
	RMS      float64 // dBFS
	Peak     float64 // dBFS
	Dominant float64 // Strongest frequency in Hz, 0 for silence
}

// measure computes the level and dominant frequency of samples captured
// at sampleRate.
func measure(samples []int16, sampleRate uint32) Level {
	if len(samples) == 0 {
		return Level{RMS: floorDBFS, Peak: floorDBFS}
	}

	x := make([]float64, len(samples))
	var sum, peak float64
	for i, s := range samples {
		v := float64(s) / 32768.0
		x[i] = v
		sum += v * v
		peak = max(peak, math.Abs(v))
	}

	return Level{
		RMS:      dBFS(math.Sqrt(sum / float64(len(x)))),
		Peak:     dBFS(peak),
		Dominant: dominant(x, sampleRate),
	}
}

// dominant returns the center frequency of the largest bin of the
// Hann-windowed spectrum of x, skipping DC. x is modified.
func dominant(x []float64, sampleRate uint32) float64 {
	if len(x) < 4 {
		return 0
	}
	window.Apply(x, window.Hann)
	spectrum := fft.FFTReal(x)

	bin, best := 0, 0.0
	for i := 1; i <= len(x)/2; i++ {
		if m := cmplx.Abs(spectrum[i]); m > best {
			bin, best = i, m
		}
	}
	return float64(bin) * float64(sampleRate) / float64(len(x))
}

func dBFS(v float64) float64 {
	if v <= 0 {
		return floorDBFS
	}
	return max(20*math.Log10(v), floorDBFS)
}
