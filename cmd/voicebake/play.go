package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// liveControl is the part of the playback controller driven from stdin.
type liveControl interface {
	SetSpeed(id uuid.UUID, speed float64) bool
	SetPitch(id uuid.UUID, cents float64) bool
	Stop(id uuid.UUID)
}

func newPlayCmd() *cobra.Command {
	var (
		in       string
		isWAV    bool
		speed    float64
		pitch    float64
		controls bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Preview speech on the output device with live speed and pitch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("speed") {
				speed = cfg.Playback.Speed
			}
			if !cmd.Flags().Changed("pitch") {
				pitch = cfg.Playback.Pitch
			}
			if controls && in == "-" {
				return fmt.Errorf("--controls reads stdin, so --in must name a file")
			}

			buf, err := readInput(in, isWAV, cmd.InOrStdin(), cfg)
			if err != nil {
				return err
			}

			ctrl := newController(cfg)
			defer func() { _ = ctrl.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session, err := ctrl.Start(buf, speed, pitch)
			if err != nil {
				return err
			}

			if controls {
				go func() {
					_ = controlLoop(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), ctrl, session.ID())
				}()
			}

			select {
			case <-session.Done():
			case <-ctx.Done():
				ctrl.Stop(session.ID())
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "playback %s\n", session.EndReason())

			return session.Err()
		},
	}

	cmd.Flags().StringVar(&in, "in", "-", "Input file ('-' for stdin): base64 PCM, or WAV with --wav")
	cmd.Flags().BoolVar(&isWAV, "wav", false, "Input is a 16-bit PCM WAV file")
	cmd.Flags().Float64Var(&speed, "speed", 1.0, "Initial playback rate (0.5-2.0)")
	cmd.Flags().Float64Var(&pitch, "pitch", 0, "Initial pitch shift in cents (-1200..1200)")
	cmd.Flags().BoolVar(&controls, "controls", false, "Read 'speed N', 'pitch N' and 'stop' commands from stdin")

	return cmd
}

// controlLoop applies line commands from r to the session until stop, EOF,
// or ctx ends. Feedback goes to w.
func controlLoop(ctx context.Context, r io.Reader, w io.Writer, ctrl liveControl, id uuid.UUID) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return err
		case line := <-lines:
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}

			switch cmd := strings.ToLower(fields[0]); cmd {
			case "stop", "q", "quit":
				ctrl.Stop(id)
				return nil
			case "speed", "pitch":
				if len(fields) != 2 {
					_, _ = fmt.Fprintf(w, "usage: %s <value>\n", cmd)
					continue
				}
				v, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					_, _ = fmt.Fprintf(w, "invalid %s %q\n", cmd, fields[1])
					continue
				}

				var ok bool
				if cmd == "speed" {
					ok = ctrl.SetSpeed(id, v)
				} else {
					ok = ctrl.SetPitch(id, v)
				}
				if !ok {
					_, _ = fmt.Fprintln(w, "playback finished")
					return nil
				}
			default:
				_, _ = fmt.Fprintf(w, "unknown command %q (speed N | pitch N | stop)\n", fields[0])
			}
		}
	}
}
