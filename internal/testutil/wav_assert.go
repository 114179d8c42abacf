package testutil

import (
	"encoding/binary"
	"errors"
	"testing"
)

// AssertValidWAV checks that data is a 16-bit PCM WAV with the given
// sample rate and channel count and a non-empty data chunk.
func AssertValidWAV(tb testing.TB, data []byte, sampleRate, channels int) {
	tb.Helper()

	if len(data) < 44 {
		tb.Fatalf("WAV data too short: %d bytes", len(data))
	}

	if string(data[0:4]) != "RIFF" {
		tb.Fatalf("WAV: missing RIFF header (got %q)", string(data[0:4]))
	}

	if string(data[8:12]) != "WAVE" {
		tb.Fatalf("WAV: missing WAVE marker (got %q)", string(data[8:12]))
	}

	if string(data[12:16]) != "fmt " {
		tb.Fatalf("WAV: missing fmt chunk (got %q)", string(data[12:16]))
	}

	audioFmt := binary.LittleEndian.Uint16(data[20:22])
	if audioFmt != 1 {
		tb.Fatalf("WAV: expected PCM format (1), got %d", audioFmt)
	}

	gotChannels := binary.LittleEndian.Uint16(data[22:24])
	if int(gotChannels) != channels {
		tb.Fatalf("WAV: expected %d channel(s), got %d", channels, gotChannels)
	}

	gotRate := binary.LittleEndian.Uint32(data[24:28])
	if int(gotRate) != sampleRate {
		tb.Fatalf("WAV: expected sample rate %d, got %d", sampleRate, gotRate)
	}

	bitDepth := binary.LittleEndian.Uint16(data[34:36])
	if bitDepth != 16 {
		tb.Fatalf("WAV: expected 16-bit depth, got %d", bitDepth)
	}

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV: %v", err)
	}
	if dataSize == 0 {
		tb.Fatal("WAV: data chunk contains zero samples")
	}
}

// AssertWAVSampleCount asserts the number of 16-bit frames per channel.
func AssertWAVSampleCount(tb testing.TB, data []byte, channels, want int) {
	tb.Helper()

	dataSize, err := findDataChunkSize(data)
	if err != nil {
		tb.Fatalf("WAV sample count: %v", err)
	}

	got := int(dataSize) / 2 / channels
	if got != want {
		tb.Fatalf("WAV: %d frames, want %d", got, want)
	}
}

// PCM16Samples returns the little-endian samples of the data chunk.
func PCM16Samples(tb testing.TB, data []byte) []int16 {
	tb.Helper()

	off, size, err := findDataChunk(data)
	if err != nil {
		tb.Fatalf("WAV samples: %v", err)
	}
	if off+int(size) > len(data) {
		tb.Fatalf("WAV: data chunk of %d bytes overruns file", size)
	}

	out := make([]int16, size/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[off+2*i:]))
	}
	return out
}

func findDataChunkSize(data []byte) (uint32, error) {
	_, size, err := findDataChunk(data)
	return size, err
}

// findDataChunk walks the chunk list after the 12-byte RIFF/WAVE header
// and returns the payload offset and size of the "data" sub-chunk.
func findDataChunk(data []byte) (int, uint32, error) {
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])

		size := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		if id == "data" {
			return offset + 8, size, nil
		}

		offset += 8 + int(size)
		// Pad to even boundary.
		if size%2 != 0 {
			offset++
		}
	}

	return 0, 0, errors.New("data chunk not found in WAV")
}
