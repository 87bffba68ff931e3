package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

type infoOutput struct {
	SampleRate int      `json:"sample_rate"`
	Channels   int      `json:"channels"`
	MP3        bool     `json:"mp3"`
	Formats    []string `json:"formats"`
	Device     string   `json:"device"`
	Default    string   `json:"default_format"`
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the effective audio and export settings as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			exp := newExporter(cfg)
			out := infoOutput{
				SampleRate: cfg.Audio.SampleRate,
				Channels:   cfg.Audio.Channels,
				MP3:        exp.MP3Available(),
				Device:     cfg.Playback.Device,
				Default:    cfg.Export.Format,
			}
			for _, f := range exp.Formats() {
				out.Formats = append(out.Formats, string(f))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(out)
		},
	}
}
