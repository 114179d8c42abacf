// Package measured adapts externally measured HRIR data into the dataset
// shape produced by the synthesizer.
//
// Decoding the scientific containers themselves (SOFA/netCDF, MATLAB .mat)
// is left to external readers; this package defines what those readers must
// deliver and ships JSON renditions of both contracts.
package measured

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/example/go-hrtf-lab/internal/hrir"
)

const (
	// AngleDecimals is the rounding applied to azimuth and elevation.
	AngleDecimals = 2
	// SampleDecimals is the rounding applied to impulse response samples.
	SampleDecimals = 6

	// CIPICHorizontalElevationIndex selects the 0° elevation slice of
	// CIPIC's 50-step elevation axis.
	CIPICHorizontalElevationIndex = 8
)

var (
	// ErrShape is returned when supplied arrays disagree in size.
	ErrShape = errors.New("measured data has inconsistent shape")
	// ErrUnsupportedFormat is returned for containers no reader is registered for.
	ErrUnsupportedFormat = errors.New("unsupported measurement format")
)

// Measurement is one source position as delivered by a reader.
type Measurement struct {
	Azimuth   float64   `json:"azimuth"`
	Elevation float64   `json:"elevation"`
	Left      []float64 `json:"left"`
	Right     []float64 `json:"right"`
}

// SubjectData is the full measurement set of one subject.
type SubjectData struct {
	SampleRate   float64       `json:"sampleRate"`
	Measurements []Measurement `json:"measurements"`
}

// Options controls FromMeasurements.
type Options struct {
	// HorizontalOnly keeps only measurements at 0° elevation (after rounding).
	HorizontalOnly bool
}

// FromMeasurements repackages a subject's measurements as a dataset,
// rounding angles to AngleDecimals and samples to SampleDecimals. Order is
// preserved; nothing else is reinterpreted.
func FromMeasurements(subjectID string, data SubjectData, opts Options) (hrir.Dataset, error) {
	if math.IsNaN(data.SampleRate) || data.SampleRate < 1 {
		return hrir.Dataset{}, fmt.Errorf("%w: sample rate %v", ErrShape, data.SampleRate)
	}
	if len(data.Measurements) == 0 {
		return hrir.Dataset{}, fmt.Errorf("%w: no measurements", ErrShape)
	}

	n := len(data.Measurements[0].Left)
	entries := make([]hrir.Entry, 0, len(data.Measurements))
	for i, m := range data.Measurements {
		if len(m.Left) != n || len(m.Right) != n {
			return hrir.Dataset{}, fmt.Errorf("%w: measurement %d has %d/%d samples, want %d",
				ErrShape, i, len(m.Left), len(m.Right), n)
		}

		el := Round(m.Elevation, AngleDecimals)
		if opts.HorizontalOnly && el != 0 {
			continue
		}
		entries = append(entries, hrir.Entry{
			Azimuth:   Round(m.Azimuth, AngleDecimals),
			Elevation: &el,
			Left:      roundAll(m.Left),
			Right:     roundAll(m.Right),
		})
	}

	d := hrir.Dataset{
		SampleRate: int(data.SampleRate),
		Entries:    entries,
		SubjectID:  subjectID,
	}
	if err := d.Validate(); err != nil {
		return hrir.Dataset{}, fmt.Errorf("subject %s: %w", subjectID, err)
	}
	return d, nil
}

// Matrix holds per-ear responses indexed [azimuth][elevation][sample].
type Matrix struct {
	Left  [][][]float64 `json:"hrir_l"`
	Right [][][]float64 `json:"hrir_r"`
}

// FromMatrix selects one elevation slice of m and labels its rows with
// the grid azimuths. The grid length must match the azimuth axis.
func FromMatrix(m Matrix, grid hrir.Grid, elevationIndex, sampleRate int) (hrir.Dataset, error) {
	if len(m.Left) != grid.Len() || len(m.Right) != grid.Len() {
		return hrir.Dataset{}, fmt.Errorf("%w: azimuth axis has %d/%d rows, grid has %d",
			ErrShape, len(m.Left), len(m.Right), grid.Len())
	}

	entries := make([]hrir.Entry, grid.Len())
	for i := range grid.Len() {
		l, r := m.Left[i], m.Right[i]
		if elevationIndex < 0 || elevationIndex >= len(l) || elevationIndex >= len(r) {
			return hrir.Dataset{}, fmt.Errorf("%w: elevation index %d out of range for azimuth row %d (%d/%d elevations)",
				ErrShape, elevationIndex, i, len(l), len(r))
		}
		entries[i] = hrir.Entry{
			Azimuth: grid.At(i),
			Left:    append(hrir.ImpulseResponse(nil), l[elevationIndex]...),
			Right:   append(hrir.ImpulseResponse(nil), r[elevationIndex]...),
		}
	}

	d := hrir.Dataset{SampleRate: sampleRate, Entries: entries}
	if err := d.Validate(); err != nil {
		return hrir.Dataset{}, err
	}
	return d, nil
}

// Round rounds v to the given number of decimal places. Ties on the exact
// binary value go to the even digit, so 5.625 becomes 5.62.
func Round(v float64, decimals int) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil || r == 0 {
		return 0 // also drops the sign of -0
	}
	return r
}

func roundAll(xs []float64) hrir.ImpulseResponse {
	out := make(hrir.ImpulseResponse, len(xs))
	for i, v := range xs {
		out[i] = Round(v, SampleDecimals)
	}
	return out
}
