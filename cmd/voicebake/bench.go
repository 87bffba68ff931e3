package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-voicebake/internal/bench"
	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/render"
)

func newBenchCmd() *cobra.Command {
	var (
		in           string
		isWAV        bool
		speed        float64
		pitch        float64
		format       string
		runs         int
		report       string
		rtfThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark offline render and encode time",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if report != "table" && report != "json" {
				return fmt.Errorf("--report must be 'table' or 'json'")
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			buf, err := readInput(in, isWAV, cmd.InOrStdin(), cfg)
			if err != nil {
				return err
			}

			exp := newExporter(cfg)
			req := export.Request{
				Request: render.Request{Source: buf, Speed: speed, PitchCents: pitch},
				Format:  f,
			}

			results, err := bench.Measure(cmd.Context(), runs, func(context.Context) (bench.Output, error) {
				file, err := exp.Export(req)
				if err != nil {
					return bench.Output{}, err
				}

				return bench.Output{
					Audio: bench.FramesDuration(file.Frames, buf.SampleRate()),
					Bytes: len(file.Data),
				}, nil
			})
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(results)

			out := cmd.OutOrStdout()
			if report == "json" {
				if err := bench.FormatJSON(results, stats, out); err != nil {
					return err
				}
			} else {
				bench.FormatTable(results, stats, out)
			}

			return bench.CheckRTFThreshold(stats.MeanRTF, rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&in, "in", "-", "Input file ('-' for stdin): base64 PCM, or WAV with --wav")
	cmd.Flags().BoolVar(&isWAV, "wav", false, "Input is a 16-bit PCM WAV file")
	cmd.Flags().Float64Var(&speed, "speed", 1.0, "Playback rate multiplier")
	cmd.Flags().Float64Var(&pitch, "pitch", 0, "Pitch shift in cents")
	cmd.Flags().StringVar(&format, "format", "wav", "Output format (wav|mp3)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of export runs")
	cmd.Flags().StringVar(&report, "report", "table", "Report format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Exit non-zero if mean RTF exceeds this value (0 = disabled)")

	return cmd
}
