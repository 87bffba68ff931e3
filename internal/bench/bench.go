// Package bench times repeated offline exports and reports their realtime
// factor.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// RunResult holds the timing of a single export run.
type RunResult struct {
	Index    int
	Cold     bool // first run
	Duration time.Duration
	Audio    time.Duration
	Bytes    int
	RTF      float64
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min     time.Duration
	Max     time.Duration
	Mean    time.Duration
	MeanRTF float64
}

// Output describes what one run produced.
type Output struct {
	Audio time.Duration
	Bytes int
}

// RunFunc performs one export.
type RunFunc func(ctx context.Context) (Output, error)

// Measure calls fn runs times and records how long each call took relative
// to the audio it produced. It stops at the first error or when ctx ends.
func Measure(ctx context.Context, runs int, fn RunFunc) ([]RunResult, error) {
	if runs < 1 {
		return nil, fmt.Errorf("runs must be at least 1, got %d", runs)
	}

	results := make([]RunResult, 0, runs)
	for i := range runs {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		start := time.Now()
		out, err := fn(ctx)
		elapsed := time.Since(start)
		if err != nil {
			return results, fmt.Errorf("run %d: %w", i+1, err)
		}

		results = append(results, RunResult{
			Index:    i,
			Cold:     i == 0,
			Duration: elapsed,
			Audio:    out.Audio,
			Bytes:    out.Bytes,
			RTF:      CalcRTF(elapsed, out.Audio),
		})
	}

	return results, nil
}

// ComputeStats calculates min, max and mean duration plus the mean RTF.
func ComputeStats(runs []RunResult) Stats {
	if len(runs) == 0 {
		return Stats{}
	}

	mn, mx := runs[0].Duration, runs[0].Duration
	var (
		sum    time.Duration
		rtfSum float64
	)
	for _, r := range runs {
		mn = min(mn, r.Duration)
		mx = max(mx, r.Duration)
		sum += r.Duration
		rtfSum += r.RTF
	}

	return Stats{
		Min:     mn,
		Max:     mx,
		Mean:    sum / time.Duration(len(runs)),
		MeanRTF: rtfSum / float64(len(runs)),
	}
}

// CalcRTF returns work / audio, or 0 when audio is empty.
func CalcRTF(work, audio time.Duration) float64 {
	if audio <= 0 {
		return 0
	}

	return float64(work) / float64(audio)
}

// FramesDuration converts a frame count at sampleRate to a duration.
func FramesDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}

	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

// CheckRTFThreshold returns an error if meanRTF > threshold.
// A threshold of 0 disables the gate.
func CheckRTFThreshold(meanRTF, threshold float64) error {
	if threshold <= 0 {
		return nil
	}
	if meanRTF > threshold {
		return fmt.Errorf("mean RTF %.3f exceeds threshold %.3f", meanRTF, threshold)
	}

	return nil
}

// FormatTable writes a human-readable table of runs to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %12s  %10s  %8s\n", "Run", "Cold", "MS", "Audio(ms)", "Bytes", "RTF")
	fmt.Fprintln(sb, strings.Repeat("-", 60))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.1f  %12.1f  %10d  %8.4f\n",
			r.Index+1,
			cold,
			ms(r.Duration),
			ms(r.Audio),
			r.Bytes,
			r.RTF,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 60))
	fmt.Fprintf(sb, "min %.1f ms  mean %.1f ms  max %.1f ms  mean RTF %.4f\n",
		ms(stats.Min), ms(stats.Mean), ms(stats.Max), stats.MeanRTF)

	fmt.Fprint(w, sb.String())
}

type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index      int     `json:"index"`
	Cold       bool    `json:"cold"`
	DurationMS float64 `json:"duration_ms"`
	AudioMS    float64 `json:"audio_ms"`
	Bytes      int     `json:"bytes"`
	RTF        float64 `json:"rtf"`
}

type jsonStats struct {
	MinMS   float64 `json:"min_ms"`
	MeanMS  float64 `json:"mean_ms"`
	MaxMS   float64 `json:"max_ms"`
	MeanRTF float64 `json:"mean_rtf"`
}

// FormatJSON writes a JSON report of runs to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) error {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:   ms(stats.Min),
			MeanMS:  ms(stats.Mean),
			MaxMS:   ms(stats.Max),
			MeanRTF: stats.MeanRTF,
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:      r.Index,
			Cold:       r.Cold,
			DurationMS: ms(r.Duration),
			AudioMS:    ms(r.Audio),
			Bytes:      r.Bytes,
			RTF:        r.RTF,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jr)
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
