package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cwbudde/wav"
)

// ErrFormatMismatch is returned when a decoded WAV does not match the expected format.
var ErrFormatMismatch = errors.New("WAV format mismatch")

// DecodeWAV decodes WAV bytes into interleaved float32 PCM samples and
// checks the container against want. Zero fields in want are not checked.
func DecodeWAV(data []byte, want Format) ([]float32, Format, error) {
	if len(data) == 0 {
		return nil, Format{}, errors.New("empty WAV input")
	}

	r := bytes.NewReader(data)
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, Format{}, errors.New("invalid WAV file")
	}

	got := Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}

	if want.SampleRate != 0 && got.SampleRate != want.SampleRate {
		return nil, got, fmt.Errorf("%w: sample rate %d, want %d", ErrFormatMismatch, got.SampleRate, want.SampleRate)
	}
	if want.Channels != 0 && got.Channels != want.Channels {
		return nil, got, fmt.Errorf("%w: channels %d, want %d", ErrFormatMismatch, got.Channels, want.Channels)
	}
	if want.BitDepth != 0 && got.BitDepth != want.BitDepth {
		return nil, got, fmt.Errorf("%w: bit depth %d, want %d", ErrFormatMismatch, got.BitDepth, want.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, got, fmt.Errorf("reading PCM data: %w", err)
	}

	return buf.Data, got, nil
}
