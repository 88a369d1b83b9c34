package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ardnew/softpdm/audio"
	"github.com/ardnew/softpdm/hal/sim"
	"github.com/ardnew/softpdm/pkg"
)

// frameQueue is how many forwarded frames may wait for metering before
// new ones are discarded.
const frameQueue = 32

// pollInterval bounds how long an exhausted source goes unnoticed.
const pollInterval = 20 * time.Millisecond

// limits stop a capture run. Zero values mean no limit.
type limits struct {
	frames   int
	duration time.Duration
}

// runResult reports what a capture run observed.
type runResult struct {
	ID       string      // Tags this run's log records
	Metered  int         // Frames printed
	Lagged   uint64      // Frames forwarded while the meter queue was full
	Stats    audio.Stats // Driver counters
	Overruns uint64      // Buffer swaps the peripheral missed
}

func newRunCmd(a *app) *cobra.Command {
	var (
		lim      limits
		source   string
		input    string
		toneHz   float64
		realtime bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture frames from the simulated microphone",
		Long: `Capture frames from the simulated microphone.

The driver is enabled, each forwarded frame is printed with its RMS and
peak level in dBFS and its dominant frequency, and the driver is disabled
once --frames or --duration is reached, the source ends or the command is
interrupted. Driver statistics are printed last.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("source") {
				cfg.Source.Kind = source
			}
			if flags.Changed("input") {
				cfg.Source.Input = input
			}
			if flags.Changed("tone") {
				cfg.Source.ToneHz = toneHz
			}
			if flags.Changed("realtime") {
				cfg.Source.Realtime = realtime
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			res, err := capture(ctx, cfg, lim, a.out)
			if err != nil {
				return err
			}
			printResult(a.out, res)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&lim.frames, "frames", "n", 0, "stop after this many frames (0 = no limit)")
	flags.DurationVarP(&lim.duration, "duration", "d", 0, "stop after this long (0 = no limit)")
	flags.StringVarP(&source, "source", "s", "", "sample source: tone, raw, wav or silence")
	flags.StringVarP(&input, "input", "i", "", "input file for raw and wav sources (- for stdin)")
	flags.Float64Var(&toneHz, "tone", 0, "tone frequency in Hz")
	flags.BoolVar(&realtime, "realtime", false, "pace capture at the PDM sample rate")
	return cmd
}

// capture runs the driver against a simulated peripheral until a limit is
// reached or ctx is done, printing a line per forwarded frame to out.
func capture(ctx context.Context, cfg Config, lim limits, out io.Writer) (runResult, error) {
	res := runResult{ID: uuid.NewString()}

	acfg, err := cfg.Audio()
	if err != nil {
		return res, err
	}

	src, closeSrc, err := openSource(cfg.Source, acfg.SampleRate())
	if err != nil {
		return res, err
	}
	defer closeSrc()

	var opts []sim.Option
	if cfg.Source.Realtime {
		opts = append(opts, sim.WithRealtime())
	}
	pdm := sim.New(src, opts...)

	drv, err := audio.New(acfg, pdm, sim.NewGPIO())
	if err != nil {
		return res, err
	}

	// The handler runs in the capture goroutine and must not block, so
	// frames are copied out and metered here.
	frames := make(chan []int16, frameQueue)
	lagged := make(chan struct{}, 1)
	var dropped uint64
	if err := drv.Init(func(buf []int16) {
		select {
		case frames <- append([]int16(nil), buf...):
		default:
			dropped++
			select {
			case lagged <- struct{}{}:
			default:
			}
		}
	}); err != nil {
		return res, fmt.Errorf("init driver: %w", err)
	}

	if lim.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, lim.duration)
		defer cancel()
	}

	pkg.LogInfo(pkg.ComponentCLI, "capture started",
		"run", res.ID,
		"source", cfg.Source.Kind,
		"rate", acfg.SampleRate(),
		"buffer", acfg.BufferSamples,
		"skip", acfg.SkipCount())

	if err := drv.Enable(); err != nil {
		return res, fmt.Errorf("enable driver: %w", err)
	}

	meter := func(buf []int16) {
		lv := measure(buf, acfg.SampleRate())
		fmt.Fprintf(out, "frame %4d  rms %7.2f dBFS  peak %7.2f dBFS  %7.1f Hz\n",
			res.Metered, lv.RMS, lv.Peak, lv.Dominant)
		res.Metered++
	}
	more := func() bool { return lim.frames == 0 || res.Metered < lim.frames }

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	ended := false
loop:
	for more() {
		select {
		case buf := <-frames:
			meter(buf)
		case <-lagged:
			pkg.LogDebug(pkg.ComponentCLI, "meter lagging, frame discarded", "run", res.ID)
		case <-poll.C:
			if pdm.Exhausted() {
				pkg.LogInfo(pkg.ComponentCLI, "source ended", "run", res.ID)
				ended = true
				break loop
			}
		case <-ctx.Done():
			break loop
		}
	}

	if err := drv.Disable(); err != nil {
		return res, fmt.Errorf("disable driver: %w", err)
	}

	// Frames captured before the source ended are still queued.
	for ended && more() && len(frames) > 0 {
		meter(<-frames)
	}

	// The capture goroutine has exited, so the handler's count is stable.
	res.Lagged = dropped
	res.Stats = drv.Stats()
	res.Overruns = pdm.Overruns()

	pkg.LogInfo(pkg.ComponentCLI, "capture finished",
		"run", res.ID,
		"forwarded", res.Stats.Forwarded,
		"metered", res.Metered,
		"overruns", res.Overruns)
	return res, nil
}

// openSource builds the configured sample source. The returned func
// releases any file it opened.
func openSource(sc SourceConfig, sampleRate uint32) (sim.Source, func() error, error) {
	nop := func() error { return nil }

	kind := strings.ToLower(sc.Kind)
	switch kind {
	case "", sourceTone:
		src, err := sim.NewToneSource(sc.ToneHz, sc.ToneLevel, sampleRate)
		return src, nop, err

	case sourceSilence:
		return sim.Silence{}, nop, nil

	case sourceRaw, sourceWAV:
		r, closeFn, err := openInput(sc.Input)
		if err != nil {
			return nil, nil, err
		}
		if kind == sourceRaw {
			return sim.NewReaderSource(r), closeFn, nil
		}
		src, err := sim.NewWAVSource(r)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		if src.SampleRate() != sampleRate {
			pkg.LogInfo(pkg.ComponentCLI, "resampling wav to capture rate",
				"wav", src.SampleRate(), "capture", sampleRate)
		}
		rs, err := sim.Resample(src, src.SampleRate(), sampleRate)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		return rs, closeFn, nil

	default:
		return nil, nil, fmt.Errorf("source %q: %w", sc.Kind, pkg.ErrInvalidConfig)
	}
}

func openInput(path string) (io.Reader, func() error, error) {
	switch path {
	case "":
		return nil, nil, fmt.Errorf("input file required: %w", pkg.ErrInvalidConfig)
	case "-":
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func printResult(w io.Writer, res runResult) {
	s := res.Stats
	fmt.Fprintf(w, "run %s\n", res.ID)
	fmt.Fprintf(w, "requested %d  released %d  dropped %d  forwarded %d  metered %d  lagged %d  overruns %d\n",
		s.Requested, s.Released, s.Dropped, s.Forwarded, res.Metered, res.Lagged, res.Overruns)
}
