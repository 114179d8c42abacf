// Package probe synthesizes the deterministic test signal used to audition
// spatialization: a low-level hiss, an amplitude-modulated tone burst and a
// periodic click train.
package probe

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/go-hrtf-lab/internal/audio"
)

// ErrInvalidParams is returned for durations or sample rates that cannot
// produce a signal.
var ErrInvalidParams = errors.New("invalid probe parameters")

// Params configures the probe waveform. The hiss is two fixed sinusoids,
// not random noise, so output is reproducible bit for bit.
type Params struct {
	SampleRate int
	Duration   float64 // seconds

	HissFreq1, HissAmp1 float64 // radians per sample
	HissFreq2, HissAmp2 float64

	ToneFreq     float64 // Hz
	ToneAmp      float64
	EnvelopeFreq float64 // Hz

	ClickAmp    float64
	ClickDecay  float64 // per sample
	ClickWindow int     // samples carrying the click in each half-second period

	Limit float64 // hard clamp applied before quantization
}

// DefaultParams returns the reference 5 s probe at 44.1 kHz.
func DefaultParams() Params {
	return Params{
		SampleRate:   44100,
		Duration:     5,
		HissFreq1:    0.1,
		HissAmp1:     0.1,
		HissFreq2:    0.37,
		HissAmp2:     0.05,
		ToneFreq:     440,
		ToneAmp:      0.3,
		EnvelopeFreq: 0.5,
		ClickAmp:     0.4,
		ClickDecay:   0.3,
		ClickWindow:  20,
		Limit:        0.95,
	}
}

// Signal is a quantized mono probe.
type Signal struct {
	SampleRate int
	Samples    []int16
}

// NumSamples returns round(duration * sampleRate).
func (p Params) NumSamples() int {
	return int(math.Round(p.Duration * float64(p.SampleRate)))
}

// Validate reports unusable parameters.
func (p Params) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be > 0, got %d", ErrInvalidParams, p.SampleRate)
	}
	if math.IsNaN(p.Duration) || math.IsInf(p.Duration, 0) || p.Duration <= 0 {
		return fmt.Errorf("%w: duration must be > 0 and finite, got %v", ErrInvalidParams, p.Duration)
	}
	if p.NumSamples() < 1 {
		return fmt.Errorf("%w: %v s at %d Hz rounds to zero samples", ErrInvalidParams, p.Duration, p.SampleRate)
	}
	if p.ClickWindow < 0 {
		return fmt.Errorf("%w: click window must be >= 0, got %d", ErrInvalidParams, p.ClickWindow)
	}
	if math.IsNaN(p.Limit) || p.Limit <= 0 || p.Limit > 1 {
		return fmt.Errorf("%w: limit must lie in (0, 1], got %v", ErrInvalidParams, p.Limit)
	}
	return nil
}

// Sample returns the unquantized, clamped value of sample i.
func (p Params) Sample(i int) float64 {
	fi := float64(i)
	hiss := math.Sin(fi*p.HissFreq1)*p.HissAmp1 + math.Sin(fi*p.HissFreq2)*p.HissAmp2

	t := fi / float64(p.SampleRate)
	envelope := 0.5 * (1 + math.Sin(2*math.Pi*p.EnvelopeFreq*t))
	tone := p.ToneAmp * math.Sin(2*math.Pi*p.ToneFreq*t) * envelope

	click := 0.0
	if k := i % p.clickPeriod(); k < p.ClickWindow {
		click = p.ClickAmp * math.Exp(-p.ClickDecay*float64(k))
	}

	return math.Max(-p.Limit, math.Min(p.Limit, tone+hiss+click))
}

func (p Params) clickPeriod() int {
	if period := p.SampleRate / 2; period > 0 {
		return period
	}
	return 1
}

// Generate synthesizes the probe signal.
func Generate(p Params) (Signal, error) {
	if err := p.Validate(); err != nil {
		return Signal{}, err
	}

	n := p.NumSamples()
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = Quantize(p.Sample(i))
	}

	return Signal{SampleRate: p.SampleRate, Samples: samples}, nil
}

// Quantize maps [-1, 1] onto int16, truncating toward zero.
func Quantize(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(v * 32767)
}

// WAV serializes the signal as a mono 16-bit PCM WAVE file.
func (s Signal) WAV() ([]byte, error) {
	return audio.EncodePCM16(s.Samples, s.SampleRate, 1)
}

// Duration returns the signal length in seconds.
func (s Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}
