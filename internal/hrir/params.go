// Package hrir synthesizes deterministic head-related impulse responses
// from a closed-form head model and assembles them into datasets.
package hrir

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams is returned when synthesis parameters cannot produce a
// well-formed impulse response.
var ErrInvalidParams = errors.New("invalid synthesis parameters")

// Tap is one early-reflection / pinna tap relative to the main onset.
type Tap struct {
	Offset int
	Gain   float64
}

// Params holds the physical and empirical constants of the head model.
// A Params value is copied into a Synthesizer; later edits to the caller's
// copy do not affect it.
type Params struct {
	SampleRate int
	IRLength   int

	HeadRadius   float64 // meters
	SpeedOfSound float64 // m/s

	BaseOnset         float64 // samples
	IpsilateralFactor float64

	FloorGain     float64
	AttenCoeff    float64
	AttenExponent float64

	MainAmplitude float64
	Taps          []Tap
	ModDepth      float64

	TailFreq1 float64 // radians per sample index
	TailFreq2 float64 // radians per azimuth degree
	TailAmp   float64
	TailDecay float64
}

// DefaultParams returns the constants used for the reference dataset.
func DefaultParams() Params {
	return Params{
		SampleRate:        44100,
		IRLength:          200,
		HeadRadius:        0.0875,
		SpeedOfSound:      343.0,
		BaseOnset:         2,
		IpsilateralFactor: 0.3,
		FloorGain:         0.3,
		AttenCoeff:        0.7,
		AttenExponent:     1.5,
		MainAmplitude:     0.8,
		Taps: []Tap{
			{Offset: 3, Gain: -0.15},
			{Offset: 7, Gain: 0.08},
			{Offset: 12, Gain: -0.05},
		},
		ModDepth:  0.3,
		TailFreq1: 0.7,
		TailFreq2: 0.1,
		TailAmp:   0.02,
		TailDecay: 0.03,
	}
}

// Validate reports the first parameter that would lead to degenerate output.
func (p Params) Validate() error {
	if p.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be > 0, got %d", ErrInvalidParams, p.SampleRate)
	}
	if p.IRLength <= 0 {
		return fmt.Errorf("%w: ir length must be > 0, got %d", ErrInvalidParams, p.IRLength)
	}
	if !finite(p.HeadRadius) || p.HeadRadius <= 0 {
		return fmt.Errorf("%w: head radius must be > 0 and finite, got %v", ErrInvalidParams, p.HeadRadius)
	}
	if !finite(p.SpeedOfSound) || p.SpeedOfSound <= 0 {
		return fmt.Errorf("%w: speed of sound must be > 0 and finite, got %v", ErrInvalidParams, p.SpeedOfSound)
	}
	if !finite(p.FloorGain) || p.FloorGain <= 0 || p.FloorGain >= 1 {
		return fmt.Errorf("%w: floor gain must lie in (0, 1), got %v", ErrInvalidParams, p.FloorGain)
	}
	if !finite(p.AttenCoeff) || p.AttenCoeff <= 0 {
		return fmt.Errorf("%w: attenuation coefficient must be > 0, got %v", ErrInvalidParams, p.AttenCoeff)
	}
	if !finite(p.AttenExponent) || p.AttenExponent <= 0 {
		return fmt.Errorf("%w: attenuation exponent must be > 0, got %v", ErrInvalidParams, p.AttenExponent)
	}
	if !finite(p.TailDecay) || p.TailDecay < 0 {
		return fmt.Errorf("%w: tail decay must be >= 0, got %v", ErrInvalidParams, p.TailDecay)
	}

	named := []struct {
		name string
		v    float64
	}{
		{"base onset", p.BaseOnset},
		{"ipsilateral factor", p.IpsilateralFactor},
		{"main amplitude", p.MainAmplitude},
		{"modulation depth", p.ModDepth},
		{"tail freq1", p.TailFreq1},
		{"tail freq2", p.TailFreq2},
		{"tail amplitude", p.TailAmp},
	}
	for _, n := range named {
		if !finite(n.v) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidParams, n.name, n.v)
		}
	}

	for i, tap := range p.Taps {
		if tap.Offset <= 0 {
			return fmt.Errorf("%w: tap %d offset must be > 0, got %d", ErrInvalidParams, i, tap.Offset)
		}
		if !finite(tap.Gain) {
			return fmt.Errorf("%w: tap %d gain must be finite, got %v", ErrInvalidParams, i, tap.Gain)
		}
	}

	return nil
}

func (p Params) clone() Params {
	out := p
	out.Taps = append([]Tap(nil), p.Taps...)
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
