package sim

import (
	"errors"
	"fmt"
	"io"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/ardnew/softpdm/pkg"
)

// resampleChunk is how many source samples are converted at a time.
const resampleChunk = 256

// ResampleSource converts a mono Source from one sample rate to another.
type ResampleSource struct {
	src     Source
	rs      resampling.Resampler
	in      []int16
	fin     []float64
	pending []int16
	err     error // Terminal source error, returned once pending drains
}

// Resample returns src converted from rate from to rate to. src is returned
// unchanged when the rates match.
func Resample(src Source, from, to uint32) (Source, error) {
	if from == 0 || to == 0 {
		return nil, fmt.Errorf("resample %d to %d Hz: %w", from, to, pkg.ErrInvalidParameter)
	}
	if from == to {
		return src, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	pkg.LogDebug(component, "resampling source", "from", from, "to", to)

	return &ResampleSource{
		src: src,
		rs:  rs,
		in:  make([]int16, resampleChunk),
		fin: make([]float64, resampleChunk),
	}, nil
}

// ReadSamples fills dst with resampled audio. The resampler's filter delay
// means the first call may consume several source chunks.
func (s *ResampleSource) ReadSamples(dst []int16) (int, error) {
	for len(s.pending) < len(dst) && s.err == nil {
		n, err := s.src.ReadSamples(s.in)
		if n > 0 {
			for i, v := range s.in[:n] {
				s.fin[i] = float64(v) / 32768.0
			}
			out, perr := s.rs.Process(s.fin[:n])
			if perr != nil {
				s.err = fmt.Errorf("resample: %w", perr)
				break
			}
			for _, v := range out {
				s.pending = append(s.pending, saturate(v*math.MaxInt16))
			}
		}
		if err != nil {
			s.err = err
		} else if n == 0 {
			s.err = io.ErrNoProgress
		}
	}

	n := copy(dst, s.pending)
	s.pending = s.pending[n:]
	if n == 0 && s.err != nil {
		return 0, s.err
	}
	if n < len(dst) && errors.Is(s.err, io.EOF) && len(s.pending) == 0 {
		return n, io.EOF
	}
	return n, nil
}
