// Package analysis measures binaural cues in an HRIR dataset: onset and
// peak per ear, the interaural time difference implied by the onsets and
// the interaural level difference from the RMS of each ear.
package analysis

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/measure/ir"
	dsptime "github.com/cwbudde/algo-dsp/stats/time"

	"github.com/example/go-hrtf-lab/internal/hrir"
)

// FloorDB bounds level readings so silent responses stay JSON-encodable.
const FloorDB = -120.0

// Ear holds the single-ear measurements.
type Ear struct {
	Onset  int     `json:"onset"`
	Peak   int     `json:"peak"`
	PeakDB float64 `json:"peakDb"`
	RMSDB  float64 `json:"rmsDb"`
}

// EntryReport describes one azimuth. ITD and ILD are positive when the
// right ear leads or is louder.
type EntryReport struct {
	Azimuth    float64 `json:"azimuth"`
	Left       Ear     `json:"left"`
	Right      Ear     `json:"right"`
	ITDSamples int     `json:"itdSamples"`
	ITDMicros  float64 `json:"itdMicros"`
	ILDDB      float64 `json:"ildDb"`
}

// Report covers a whole dataset in entry order.
type Report struct {
	SubjectID  string        `json:"subjectId,omitempty"`
	SampleRate int           `json:"sampleRate"`
	IRLength   int           `json:"irLength"`
	Entries    []EntryReport `json:"entries"`
	// Spectra is filled only when spectra were requested.
	Spectra *Spectra `json:"spectra,omitempty"`
}

// Analyze measures every entry of d.
func Analyze(d hrir.Dataset) (Report, error) {
	if err := d.Validate(); err != nil {
		return Report{}, err
	}

	a := ir.NewAnalyzer(float64(d.SampleRate))
	rep := Report{
		SubjectID:  d.SubjectID,
		SampleRate: d.SampleRate,
		IRLength:   d.IRLength(),
		Entries:    make([]EntryReport, len(d.Entries)),
	}
	for i, e := range d.Entries {
		left, err := measureEar(a, e.Left)
		if err != nil {
			return Report{}, fmt.Errorf("azimuth %v left: %w", e.Azimuth, err)
		}
		right, err := measureEar(a, e.Right)
		if err != nil {
			return Report{}, fmt.Errorf("azimuth %v right: %w", e.Azimuth, err)
		}

		itd := left.Onset - right.Onset
		rep.Entries[i] = EntryReport{
			Azimuth:    e.Azimuth,
			Left:       left,
			Right:      right,
			ITDSamples: itd,
			ITDMicros:  float64(itd) / float64(d.SampleRate) * 1e6,
			ILDDB:      right.RMSDB - left.RMSDB,
		}
	}
	return rep, nil
}

func measureEar(a *ir.Analyzer, resp hrir.ImpulseResponse) (Ear, error) {
	onset, err := a.FindImpulseStart(resp)
	if err != nil {
		return Ear{}, err
	}
	m, err := a.Analyze(resp)
	if err != nil {
		return Ear{}, err
	}
	return Ear{
		Onset:  onset,
		Peak:   m.PeakIndex,
		PeakDB: level(dsptime.Peak(resp)),
		RMSDB:  level(dsptime.RMS(resp)),
	}, nil
}

func level(linear float64) float64 {
	return core.Clamp(core.LinearToDB(linear), FloorDB, math.Inf(1))
}
