package testutil

import (
	"encoding/binary"
	"math"
)

// Sine returns n samples of a sine wave at freq Hz with the given amplitude.
func Sine(freq float64, sampleRate, n int, amplitude float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}

	return out
}

// Ramp returns n samples rising linearly from -1 towards 1.
func Ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = -1 + 2*float32(i)/float32(n)
	}

	return out
}

// PCM16LE packs samples as little-endian signed 16-bit integers.
func PCM16LE(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	return out
}

// Int16s unpacks little-endian signed 16-bit samples.
func Int16s(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}

	return out
}

// RMS returns the root-mean-square level of s.
func RMS(s []float32) float64 {
	if len(s) == 0 {
		return 0
	}

	var sum float64
	for _, v := range s {
		sum += float64(v) * float64(v)
	}

	return math.Sqrt(sum / float64(len(s)))
}
