package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ardnew/softpdm/pkg"
	"github.com/ardnew/softpdm/pkg/prof"
)

// app holds global flags and the resources opened for one invocation.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath string
	verbose    bool
	json       bool
	logFile    string
	cpuProfile string
	memProfile string
	blkProfile string

	cfg     Config
	logSink *lumberjack.Logger
	profile *prof.Session
}

// execute runs the command line args. Profiles and log files opened for
// the command are closed even when it fails.
func execute(args []string, out, errOut io.Writer) error {
	a := &app{out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.Execute()
	if terr := a.teardown(); err == nil {
		err = terr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "pdmsim",
		Short: "PDM microphone driver simulator",
		Long: `pdmsim - run the PDM microphone driver without hardware.

The driver is wired to a simulated PDM peripheral that decimates a tone,
a raw int16 stream or a WAV file into the driver's rotating buffers.
Forwarded frames are metered; settling buffers are dropped exactly as on
a device.

Examples:
  # Capture ten frames of the default 1 kHz tone
  pdmsim run --frames 10

  # Replay a recording at the real sample rate
  pdmsim run --source wav --input mic.wav --realtime

  # How many buffers are dropped while the microphone settles
  pdmsim skip --settle 100ms --frame 256`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&a.json, "json", false, "log in JSON format")
	flags.StringVar(&a.logFile, "log-file", "", "also log to this file (rotated)")
	flags.StringVar(&a.cpuProfile, "cpuprofile", "", "write a CPU profile (needs -tags profile)")
	flags.StringVar(&a.memProfile, "memprofile", "", "write a heap profile (needs -tags profile)")
	flags.StringVar(&a.blkProfile, "blockprofile", "", "write a goroutine blocking profile (needs -tags profile)")

	root.AddCommand(
		newRunCmd(a),
		newSkipCmd(a),
		newConfigCmd(a),
	)
	return root
}

// setup loads the configuration, then configures logging and profiling.
// Flags override the configuration file.
func (a *app) setup() error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := pkg.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	if a.verbose {
		level = slog.LevelDebug
	}

	format, err := pkg.ParseLogFormat(cfg.Log.Format)
	if err != nil {
		return err
	}
	if a.json {
		format = pkg.LogFormatJSON
	}

	w := a.errOut
	if a.logFile != "" {
		cfg.Log.File = a.logFile
	}
	if cfg.Log.File != "" {
		a.logSink = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}
		w = io.MultiWriter(a.errOut, a.logSink)
	}
	pkg.SetLogLevel(level)
	pkg.SetLogOutput(w, format)

	opts := prof.Options{CPU: a.cpuProfile, Heap: a.memProfile, Block: a.blkProfile}
	if !opts.Empty() {
		if !prof.Enabled() {
			pkg.LogWarn(pkg.ComponentCLI, "profiling not compiled in, rebuild with -tags profile")
		}
		if a.profile, err = prof.Start(opts); err != nil {
			return fmt.Errorf("start profiling: %w", err)
		}
	}
	return nil
}

// teardown stops profiling and closes the log file.
func (a *app) teardown() error {
	var err error
	if a.profile != nil {
		err = a.profile.Stop()
		a.profile = nil
	}
	if a.logSink != nil {
		pkg.SetLogOutput(a.errOut, pkg.LogFormatText)
		if cerr := a.logSink.Close(); err == nil {
			err = cerr
		}
		a.logSink = nil
	}
	return err
}
