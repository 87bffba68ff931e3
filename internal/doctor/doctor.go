// Package doctor provides environment preflight checks for voicebake.
package doctor

import (
	"fmt"
	"io"
	"os"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// ProbeFunc exercises a component and returns a short description of what
// it found, or an error if the component is unusable.
type ProbeFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// OutputDevice opens and closes the playback device.
	OutputDevice ProbeFunc
	// SkipOutputDevice skips the device check (discard device configured).
	SkipOutputDevice bool
	// MP3Encoder round-trips a short tone through the MP3 backend at the
	// configured format.
	MP3Encoder ProbeFunc
	// SkipMP3 skips the MP3 check (MP3 export disabled).
	SkipMP3 bool
	// SampleRate is the configured PCM sample rate.
	SampleRate int
	// MP3SampleRate reports whether the MP3 backend accepts a rate. An
	// unsupported rate fails without running MP3Encoder. Nil skips the check.
	MP3SampleRate func(int) bool
	// OutDir is the export directory that must exist.
	OutDir string
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- sample rate ------------------------------------------------------
	if cfg.SampleRate <= 0 {
		res.fail(fmt.Sprintf("sample rate: %d is not positive", cfg.SampleRate))
		fmt.Fprintf(w, "%s sample rate: %d Hz is invalid\n", FailMark, cfg.SampleRate)
	} else {
		fmt.Fprintf(w, "%s sample rate: %d Hz\n", PassMark, cfg.SampleRate)
	}

	// ---- output device ----------------------------------------------------
	switch {
	case cfg.SkipOutputDevice:
		fmt.Fprintf(w, "%s output device: skipped\n", PassMark)
	case cfg.OutputDevice == nil:
		res.fail("output device: no probe configured")
		fmt.Fprintf(w, "%s output device: no probe configured\n", FailMark)
	default:
		desc, err := cfg.OutputDevice()
		if err != nil {
			res.fail(fmt.Sprintf("output device: %v", err))
			fmt.Fprintf(w, "%s output device: unavailable (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s output device: %s\n", PassMark, desc)
		}
	}

	// ---- MP3 encoder ------------------------------------------------------
	switch {
	case cfg.SkipMP3:
		fmt.Fprintf(w, "%s mp3 encoder: disabled, exports fall back to wav\n", PassMark)
	case cfg.MP3Encoder == nil:
		res.fail("mp3 encoder: no probe configured")
		fmt.Fprintf(w, "%s mp3 encoder: no probe configured\n", FailMark)
	case cfg.MP3SampleRate != nil && cfg.SampleRate > 0 && !cfg.MP3SampleRate(cfg.SampleRate):
		res.fail(fmt.Sprintf("mp3 encoder: %d Hz is not an MP3 sample rate", cfg.SampleRate))
		fmt.Fprintf(w, "%s mp3 encoder: %d Hz unsupported\n", FailMark, cfg.SampleRate)
	default:
		desc, err := cfg.MP3Encoder()
		if err != nil {
			res.fail(fmt.Sprintf("mp3 encoder: %v", err))
			fmt.Fprintf(w, "%s mp3 encoder: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s mp3 encoder: %s\n", PassMark, desc)
		}
	}

	// ---- export directory -------------------------------------------------
	if cfg.OutDir != "" {
		if err := checkDir(cfg.OutDir); err != nil {
			res.fail(fmt.Sprintf("export directory %q: %v", cfg.OutDir, err))
			fmt.Fprintf(w, "%s export directory %s: %v\n", FailMark, cfg.OutDir, err)
		} else {
			fmt.Fprintf(w, "%s export directory: %s\n", PassMark, cfg.OutDir)
		}
	}

	return res
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory")
	}

	return nil
}
