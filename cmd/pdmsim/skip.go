package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ardnew/softpdm/audio"
	"github.com/ardnew/softpdm/pkg"
)

func newSkipCmd(a *app) *cobra.Command {
	var (
		settle time.Duration
		frame  int
		freq   string
	)

	cmd := &cobra.Command{
		Use:   "skip",
		Short: "Print how many buffers are dropped after enable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pdm := a.cfg.PDM
			flags := cmd.Flags()
			if flags.Changed("settle") {
				pdm.SettleTime = settle
			}
			if flags.Changed("frame") {
				pdm.FrameSamples = frame
			}
			if flags.Changed("freq") {
				pdm.Frequency = freq
			}

			if pdm.FrameSamples <= 0 {
				return fmt.Errorf("frame %d samples: %w", pdm.FrameSamples, pkg.ErrInvalidConfig)
			}
			if pdm.SettleTime < 0 {
				return fmt.Errorf("settle time %v: %w", pdm.SettleTime, pkg.ErrInvalidConfig)
			}

			f, err := parseFrequency(pdm.Frequency)
			if err != nil {
				return err
			}
			rate := f.SampleRate()
			n := audio.SkipCount(pdm.SettleTime, rate, pdm.FrameSamples)
			fmt.Fprintf(a.out, "%d buffers (%v settle at %d Hz, %d-sample frames)\n",
				n, pdm.SettleTime, rate, pdm.FrameSamples)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&settle, "settle", audio.DefaultSettleTime, "microphone settling time")
	flags.IntVar(&frame, "frame", audio.DefaultFrameSamples, "samples per frame")
	flags.StringVar(&freq, "freq", "1032k", "PDM clock frequency")
	return cmd
}
