package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-voicebake/internal/export"
	"github.com/example/go-voicebake/internal/render"
)

func newRenderCmd() *cobra.Command {
	var (
		in     string
		isWAV  bool
		text   string
		speed  float64
		pitch  float64
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Bake speed and pitch into a WAV or MP3 file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("format") {
				format = cfg.Export.Format
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			buf, err := readInput(in, isWAV, cmd.InOrStdin(), cfg)
			if err != nil {
				return err
			}

			file, err := newExporter(cfg).Export(export.Request{
				Request: render.Request{Source: buf, Speed: speed, PitchCents: pitch},
				Format:  f,
				Text:    text,
			})
			if err != nil {
				return err
			}

			if out == "" {
				out = cfg.Export.OutDir
			}

			path, err := writeExport(out, file, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			slog.Info("exported",
				slog.String("path", path),
				slog.String("mime", file.MIMEType),
				slog.Int("frames", file.Frames),
				slog.Int("bytes", len(file.Data)),
			)

			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "-", "Input file ('-' for stdin): base64 PCM, or WAV with --wav")
	cmd.Flags().BoolVar(&isWAV, "wav", false, "Input is a 16-bit PCM WAV file")
	cmd.Flags().StringVar(&text, "text", "", "Text the speech was generated from (names the output file)")
	cmd.Flags().Float64Var(&speed, "speed", 1.0, "Playback rate multiplier")
	cmd.Flags().Float64Var(&pitch, "pitch", 0, "Pitch shift in cents")
	cmd.Flags().StringVar(&format, "format", "wav", "Output format (wav|mp3)")
	cmd.Flags().StringVar(&out, "out", "", "Output file, directory, or '-' for stdout (default: export.out_dir)")

	return cmd
}

// writeExport stores file at out. A directory target receives the file under
// its generated name. It returns where the data went.
func writeExport(out string, file export.File, stdout io.Writer) (string, error) {
	if out == "-" {
		if _, err := stdout.Write(file.Data); err != nil {
			return "", err
		}

		return "-", nil
	}

	path := out
	if strings.HasSuffix(out, string(os.PathSeparator)) || isDir(out) {
		path = filepath.Join(out, file.FileName)
	}

	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}

	return path, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
