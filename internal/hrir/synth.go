package hrir

import (
	"fmt"
	"math"
)

// Ear identifies the receiving ear.
type Ear int

const (
	Left Ear = iota
	Right
)

func (e Ear) String() string {
	switch e {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Ear(%d)", int(e))
	}
}

// ImpulseResponse is a fixed-length sequence of samples; index 0 is the
// time origin.
type ImpulseResponse []float64

// Onset is the resolved arrival of the direct sound at one ear.
type Onset struct {
	Index       int
	Gain        float64
	Ipsilateral bool
	// EffectiveAzimuth is the azimuth mirrored into the ear's frame:
	// positive values face the ear.
	EffectiveAzimuth float64
}

// Synthesizer turns (azimuth, ear) pairs into impulse responses. It holds
// only a private copy of Params and is safe for concurrent use.
type Synthesizer struct {
	p Params
}

// NewSynthesizer validates p and returns a Synthesizer bound to a copy of it.
func NewSynthesizer(p Params) (*Synthesizer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Synthesizer{p: p.clone()}, nil
}

// Params returns a copy of the synthesizer's parameters.
func (s *Synthesizer) Params() Params { return s.p.clone() }

// SampleRate returns the sample rate in Hz.
func (s *Synthesizer) SampleRate() int { return s.p.SampleRate }

// IRLength returns the impulse response length N.
func (s *Synthesizer) IRLength() int { return s.p.IRLength }

// ITDSamples returns the interaural delay in samples for the magnitude of
// azimuthDeg (Woodworth's spherical-head approximation).
func (s *Synthesizer) ITDSamples(azimuthDeg float64) float64 {
	return ITDSamples(s.p, azimuthDeg)
}

// ITDSamples evaluates sampleRate * (r/c) * (sin(az) + az) for |azimuthDeg|.
func ITDSamples(p Params, azimuthDeg float64) float64 {
	azRad := radians(math.Abs(azimuthDeg))
	itdSec := (p.HeadRadius / p.SpeedOfSound) * (math.Sin(azRad) + azRad)
	return itdSec * float64(p.SampleRate)
}

// Resolve computes the onset index and gain for one ear.
func (s *Synthesizer) Resolve(azimuthDeg float64, ear Ear) (Onset, error) {
	if err := checkAzimuth(azimuthDeg); err != nil {
		return Onset{}, err
	}
	if ear != Left && ear != Right {
		return Onset{}, fmt.Errorf("unknown ear %v", ear)
	}
	return s.resolve(azimuthDeg, ear), nil
}

func (s *Synthesizer) resolve(azimuthDeg float64, ear Ear) Onset {
	p := s.p

	// Positive azimuth places the source on the right.
	eff := azimuthDeg
	if ear == Left {
		eff = -azimuthDeg
	}
	ipsi := eff >= 0

	delay := ITDSamples(p, azimuthDeg)

	var onset float64
	gain := 1.0
	if ipsi {
		onset = math.Max(0, p.BaseOnset-delay*p.IpsilateralFactor)
	} else {
		onset = p.BaseOnset + delay
		shadow := math.Pow(math.Sin(math.Abs(radians(eff))), p.AttenExponent)
		gain = math.Max(p.FloorGain, 1.0-p.AttenCoeff*shadow)
	}

	// Clamp before converting; an out-of-range float has no defined int value.
	onset = math.Min(math.Max(math.RoundToEven(onset), 0), float64(p.IRLength-1))
	idx := int(onset)

	return Onset{
		Index:            idx,
		Gain:             gain,
		Ipsilateral:      ipsi,
		EffectiveAzimuth: eff,
	}
}

// ImpulseResponse synthesizes the response of one ear to a source at
// azimuthDeg. Equal inputs always yield bit-identical output.
func (s *Synthesizer) ImpulseResponse(azimuthDeg float64, ear Ear) (ImpulseResponse, error) {
	on, err := s.Resolve(azimuthDeg, ear)
	if err != nil {
		return nil, err
	}
	return s.render(azimuthDeg, on), nil
}

func (s *Synthesizer) render(azimuthDeg float64, on Onset) ImpulseResponse {
	p := s.p
	n := p.IRLength
	ir := make(ImpulseResponse, n)
	effRad := radians(on.EffectiveAzimuth)

	ir[on.Index] += on.Gain * p.MainAmplitude

	for _, tap := range p.Taps {
		idx := on.Index + tap.Offset
		if idx >= n {
			continue
		}
		angleMod := 1.0 + p.ModDepth*math.Sin(effRad*2+float64(tap.Offset))
		ir[idx] += on.Gain * tap.Gain * angleMod
	}

	// Diffuse tail with per-azimuth coloration.
	for i := on.Index + 1; i < n; i++ {
		decay := math.Exp(-p.TailDecay * float64(i-on.Index))
		noise := math.Sin(float64(i)*p.TailFreq1+azimuthDeg*p.TailFreq2) * p.TailAmp
		ir[i] += on.Gain * noise * decay
	}

	return ir
}

func radians(deg float64) float64 {
	return deg * (math.Pi / 180)
}
