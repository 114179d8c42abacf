package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// PCM container constants shared by every WAV this module writes.
const (
	PCMBitDepth = 16
	formatPCM   = 1
	headerSize  = 44
)

// ErrInvalidFormat is returned for container parameters that cannot be
// written as 16-bit linear PCM.
var ErrInvalidFormat = errors.New("invalid PCM format")

// Format describes a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Mono16 returns the 16-bit mono format at sampleRate.
func Mono16(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 1, BitDepth: PCMBitDepth}
}

// Stereo16 returns the 16-bit stereo format at sampleRate.
func Stereo16(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 2, BitDepth: PCMBitDepth}
}

// EncodePCM16 writes already-quantized interleaved samples as a canonical
// 44-byte-header RIFF/WAVE file. No rescaling happens, so the data chunk
// holds exactly the given values in little-endian order.
func EncodePCM16(samples []int16, sampleRate, channels int) ([]byte, error) {
	if sampleRate < 1 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, sampleRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: channels %d", ErrInvalidFormat, channels)
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not split into %d channels", ErrInvalidFormat, len(samples), channels)
	}

	byteRate := sampleRate * channels * PCMBitDepth / 8
	blockAlign := channels * PCMBitDepth / 8
	dataSize := len(samples) * 2
	riffSize := 4 + (8 + 16) + (8 + dataSize)

	buf := bytes.NewBuffer(make([]byte, 0, headerSize+dataSize))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(riffSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(PCMBitDepth))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	_ = binary.Write(buf, binary.LittleEndian, samples)

	return buf.Bytes(), nil
}
