package testutil_test

import (
	"math"
	"testing"

	"github.com/example/go-voicebake/internal/testutil"
)

func TestDataChunk_SkipsUnknownChunks(t *testing.T) {
	// RIFF header, an odd-sized LIST chunk (padded), then data.
	data := []byte("RIFF\x00\x00\x00\x00WAVE")
	data = append(data, []byte("LIST\x03\x00\x00\x00abc\x00")...)
	data = append(data, []byte("data\x02\x00\x00\x00\x01\x02")...)

	got, err := testutil.DataChunk(data)
	if err != nil {
		t.Fatalf("DataChunk: %v", err)
	}

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("DataChunk = %v; want [1 2]", got)
	}
}

func TestDataChunk_Missing(t *testing.T) {
	if _, err := testutil.DataChunk([]byte("RIFF\x00\x00\x00\x00WAVE")); err == nil {
		t.Fatal("expected error for missing data chunk")
	}
}

func TestPCM16LE_RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}

	got := testutil.Int16s(testutil.PCM16LE(in))
	for i := range in {
		if got[i] != in[i] {
			t.Errorf("sample %d = %d; want %d", i, got[i], in[i])
		}
	}
}

func TestSine_PeakAndRMS(t *testing.T) {
	s := testutil.Sine(440, 24000, 24000, 0.5)

	rms := testutil.RMS(s)
	want := 0.5 / math.Sqrt2
	if math.Abs(rms-want) > 1e-3 {
		t.Errorf("RMS = %f; want %f", rms, want)
	}
}
