package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/core"
	algofft "github.com/cwbudde/algo-fft"

	"github.com/example/go-hrtf-lab/internal/hrir"
)

// MinMagnitude floors linear bin magnitudes before conversion to dB.
const MinMagnitude = 1e-12

// EntrySpectrum holds both ears' magnitude spectra for one azimuth.
type EntrySpectrum struct {
	Azimuth float64   `json:"azimuth"`
	LeftDB  []float64 `json:"leftDb"`
	RightDB []float64 `json:"rightDb"`
}

// Spectra is the one-sided magnitude spectrum of every entry. Responses
// are zero-padded to FFTSize and magnitudes are normalised by it.
type Spectra struct {
	FFTSize int             `json:"fftSize"`
	FreqHz  []float64       `json:"freqHz"`
	Entries []EntrySpectrum `json:"entries"`
}

// ComputeSpectra transforms both ears of every entry of d, in entry order.
func ComputeSpectra(d hrir.Dataset) (Spectra, error) {
	if err := d.Validate(); err != nil {
		return Spectra{}, err
	}

	n := nextPowerOf2(max(d.IRLength(), 2))
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return Spectra{}, fmt.Errorf("fft plan (%d points): %w", n, err)
	}
	in := make([]complex128, n)
	out := make([]complex128, n)

	magnitudeDB := func(resp hrir.ImpulseResponse) ([]float64, error) {
		clear(in)
		for i, v := range resp {
			in[i] = complex(v, 0)
		}
		if err := plan.Forward(out, in); err != nil {
			return nil, err
		}
		db := make([]float64, n/2)
		for k := range db {
			db[k] = core.LinearToDB(math.Max(cmplx.Abs(out[k])/float64(n), MinMagnitude))
		}
		return db, nil
	}

	s := Spectra{
		FFTSize: n,
		FreqHz:  make([]float64, n/2),
		Entries: make([]EntrySpectrum, len(d.Entries)),
	}
	binWidth := float64(d.SampleRate) / float64(n)
	for k := range s.FreqHz {
		s.FreqHz[k] = float64(k) * binWidth
	}

	for i, e := range d.Entries {
		left, err := magnitudeDB(e.Left)
		if err != nil {
			return Spectra{}, fmt.Errorf("azimuth %v left: %w", e.Azimuth, err)
		}
		right, err := magnitudeDB(e.Right)
		if err != nil {
			return Spectra{}, fmt.Errorf("azimuth %v right: %w", e.Azimuth, err)
		}
		s.Entries[i] = EntrySpectrum{Azimuth: e.Azimuth, LeftDB: left, RightDB: right}
	}
	return s, nil
}

// DeepestNotch returns the bin with the lowest level in [loHz, hiHz].
// ok is false when no bin falls inside the band.
func (s Spectra) DeepestNotch(db []float64, loHz, hiHz float64) (freqHz, levelDB float64, ok bool) {
	for k, f := range s.FreqHz {
		if f < loHz || f > hiHz || k >= len(db) {
			continue
		}
		if !ok || db[k] < levelDB {
			freqHz, levelDB, ok = f, db[k], true
		}
	}
	return freqHz, levelDB, ok
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
