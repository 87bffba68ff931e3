package audio

import (
	"bytes"
	"encoding/binary"
	"io"
)

// WAVHeaderSize is the size of the canonical PCM RIFF/WAVE header.
const WAVHeaderSize = 44

// EncodeWAV serializes buf as a 16-bit PCM WAV file.
func EncodeWAV(buf *Buffer) []byte {
	out := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+buf.FrameCount()*buf.ChannelCount()*2))
	_, _ = WriteWAV(out, buf)

	return out.Bytes()
}

// WriteWAV writes buf to w as a 16-bit PCM WAV file and returns the number of
// bytes written.
func WriteWAV(w io.Writer, buf *Buffer) (int, error) {
	channels := buf.ChannelCount()
	dataSize := buf.FrameCount() * channels * 2

	n, err := WriteWAVHeader(w, buf.SampleRate(), channels, uint32(dataSize))
	if err != nil {
		return n, err
	}

	m, err := w.Write(InterleavePCM16(buf, 0, buf.FrameCount()))

	return n + m, err
}

// WriteWAVHeader writes a 44-byte header for dataSize bytes of 16-bit PCM.
func WriteWAVHeader(w io.Writer, sampleRate, channels int, dataSize uint32) (int, error) {
	blockAlign := channels * BitDepth / 8
	byteRate := sampleRate * blockAlign

	var hdr [WAVHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], WAVHeaderSize-8+dataSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], BitDepth)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)

	return w.Write(hdr[:])
}

// InterleavePCM16 returns frames [from, to) of buf as interleaved
// little-endian 16-bit samples.
func InterleavePCM16(buf *Buffer, from, to int) []byte {
	channels := buf.ChannelCount()
	out := make([]byte, (to-from)*channels*2)
	for c := range channels {
		ch := buf.Channel(c)
		for i := from; i < to; i++ {
			off := ((i-from)*channels + c) * 2
			binary.LittleEndian.PutUint16(out[off:], uint16(FloatToPCM16(ch[i])))
		}
	}

	return out
}
