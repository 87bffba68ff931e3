package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-voicebake/internal/config"
	"github.com/example/go-voicebake/internal/doctor"
	"github.com/example/go-voicebake/internal/export/shine"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the output device, MP3 encoder and configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(stdout, "device: %s\n", cfg.Playback.Device)

			dev := newDevice(cfg)
			defer func() { _ = dev.Close() }()

			dcfg := doctor.Config{
				OutputDevice:     doctor.DeviceProbe(cfg.Playback.Device, dev, cfg.Audio.SampleRate, cfg.Audio.Channels),
				SkipOutputDevice: cfg.Playback.Device == config.DeviceDiscard,
				MP3Encoder:       doctor.MP3Probe(shine.New(), cfg.Audio.SampleRate, cfg.Audio.Channels),
				SkipMP3:          !cfg.Export.MP3,
				SampleRate:       cfg.Audio.SampleRate,
				MP3SampleRate:    shine.SupportedSampleRate,
				OutDir:           cfg.Export.OutDir,
			}

			result := doctor.Run(dcfg, stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}
