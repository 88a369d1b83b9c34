package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/mjibson/go-dsp/wav"

	"github.com/ardnew/softpdm/pkg"
)

// Source supplies decimated PCM samples to a simulated peripheral.
type Source interface {
	// ReadSamples fills dst and returns the number of samples written.
	// It returns io.EOF once no further samples are available.
	ReadSamples(dst []int16) (int, error)
}

// Silence is a Source of zero samples that never ends.
type Silence struct{}

// ReadSamples zero-fills dst.
func (Silence) ReadSamples(dst []int16) (int, error) {
	clear(dst)
	return len(dst), nil
}

// ToneSource generates a continuous sine wave.
type ToneSource struct {
	step      float64 // Phase increment per sample (radians)
	amplitude float64 // Peak amplitude in sample units
	phase     float64
}

// NewToneSource returns a sine generator at freq Hz with the given peak
// level relative to full scale (0 to 1) at sampleRate.
func NewToneSource(freq, level float64, sampleRate uint32) (*ToneSource, error) {
	if sampleRate == 0 || freq < 0 || freq > float64(sampleRate)/2 {
		return nil, fmt.Errorf("tone %gHz at %dHz: %w", freq, sampleRate, pkg.ErrInvalidParameter)
	}
	if level < 0 || level > 1 {
		return nil, fmt.Errorf("tone level %g: %w", level, pkg.ErrInvalidParameter)
	}
	return &ToneSource{
		step:      2 * math.Pi * freq / float64(sampleRate),
		amplitude: level * math.MaxInt16,
	}, nil
}

// ReadSamples fills dst with the next samples of the tone.
func (t *ToneSource) ReadSamples(dst []int16) (int, error) {
	for i := range dst {
		dst[i] = saturate(t.amplitude * math.Sin(t.phase))
		t.phase += t.step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return len(dst), nil
}

// ReaderSource reads raw little-endian int16 samples from a stream, such
// as a file or a named pipe fed by another process.
type ReaderSource struct {
	r   io.Reader
	buf []byte
}

// NewReaderSource returns a Source reading raw samples from r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

// ReadSamples reads up to len(dst) samples. A trailing odd byte is dropped.
func (s *ReaderSource) ReadSamples(dst []int16) (int, error) {
	need := 2 * len(dst)
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	b := s.buf[:need]

	n, err := io.ReadFull(s.r, b)
	samples := n / 2
	for i := 0; i < samples; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return samples, err
}

// WAVSource reads PCM samples from a WAV stream. Only the first channel
// of multi-channel files is used; no resampling is performed.
type WAVSource struct {
	w         *wav.Wav
	channels  int
	remaining int // Interleaved samples left in the data chunk
}

// NewWAVSource parses the WAV header from r.
func NewWAVSource(r io.Reader) (*WAVSource, error) {
	w, err := wav.New(r)
	if err != nil {
		return nil, fmt.Errorf("parse wav: %w", err)
	}
	if w.NumChannels == 0 {
		return nil, fmt.Errorf("wav has no channels: %w", pkg.ErrInvalidParameter)
	}
	return &WAVSource{
		w:         w,
		channels:  int(w.NumChannels),
		remaining: w.Samples,
	}, nil
}

// SampleRate returns the sample rate declared in the WAV header.
func (s *WAVSource) SampleRate() uint32 {
	return s.w.SampleRate
}

// Channels returns the channel count declared in the WAV header.
func (s *WAVSource) Channels() int {
	return s.channels
}

// ReadSamples fills dst with the first channel of the next frames.
func (s *WAVSource) ReadSamples(dst []int16) (int, error) {
	want := min(len(dst)*s.channels, s.remaining)
	want -= want % s.channels
	if want == 0 {
		return 0, io.EOF
	}
	f, err := s.w.ReadFloats(want)
	s.remaining -= want
	n := 0
	for i := 0; i+s.channels <= len(f) && n < len(dst); i += s.channels {
		dst[n] = saturate(float64(f[i]) * math.MaxInt16)
		n++
	}
	if err != nil {
		if n > 0 && errors.Is(err, io.EOF) {
			return n, nil
		}
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}
