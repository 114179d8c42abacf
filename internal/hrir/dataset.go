package hrir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// ErrInvalidDataset is returned when a dataset violates its shape invariants.
var ErrInvalidDataset = errors.New("invalid HRIR dataset")

// Entry pairs the left and right responses for one direction.
// Elevation is set only for measured data.
type Entry struct {
	Azimuth   float64         `json:"azimuth"`
	Elevation *float64        `json:"elevation,omitempty"`
	Left      ImpulseResponse `json:"left"`
	Right     ImpulseResponse `json:"right"`
}

// Dataset is the serialized form consumed by the playback front end.
type Dataset struct {
	SampleRate int     `json:"sampleRate"`
	Entries    []Entry `json:"entries"`
	SubjectID  string  `json:"subjectId,omitempty"`
}

// IRLength returns the common response length, or 0 for an empty dataset.
func (d Dataset) IRLength() int {
	if len(d.Entries) == 0 {
		return 0
	}
	return len(d.Entries[0].Left)
}

// Validate checks the sample rate, equal response lengths and finite samples.
func (d Dataset) Validate() error {
	if d.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be > 0, got %d", ErrInvalidDataset, d.SampleRate)
	}
	if len(d.Entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidDataset)
	}

	n := d.IRLength()
	if n == 0 {
		return fmt.Errorf("%w: entry 0 has empty responses", ErrInvalidDataset)
	}
	for i, e := range d.Entries {
		if math.IsNaN(e.Azimuth) || math.IsInf(e.Azimuth, 0) {
			return fmt.Errorf("%w: entry %d azimuth is not finite", ErrInvalidDataset, i)
		}
		if len(e.Left) != n || len(e.Right) != n {
			return fmt.Errorf("%w: entry %d (az %v) lengths left=%d right=%d, want %d",
				ErrInvalidDataset, i, e.Azimuth, len(e.Left), len(e.Right), n)
		}
		if j := firstNonFinite(e.Left); j >= 0 {
			return fmt.Errorf("%w: entry %d (az %v) left[%d] is not finite", ErrInvalidDataset, i, e.Azimuth, j)
		}
		if j := firstNonFinite(e.Right); j >= 0 {
			return fmt.Errorf("%w: entry %d (az %v) right[%d] is not finite", ErrInvalidDataset, i, e.Azimuth, j)
		}
	}
	return nil
}

// Azimuths returns entry azimuths in dataset order.
func (d Dataset) Azimuths() []float64 {
	out := make([]float64, len(d.Entries))
	for i, e := range d.Entries {
		out[i] = e.Azimuth
	}
	return out
}

// Closest returns the entry whose azimuth is nearest to az. Ties keep the
// earlier entry.
func (d Dataset) Closest(az float64) (Entry, bool) {
	if len(d.Entries) == 0 {
		return Entry{}, false
	}
	best := d.Entries[0]
	minDiff := math.Abs(best.Azimuth - az)
	for _, e := range d.Entries[1:] {
		if diff := math.Abs(e.Azimuth - az); diff < minDiff {
			minDiff = diff
			best = e
		}
	}
	return best, true
}

// Encode writes d as compact JSON after validating it.
func Encode(w io.Writer, d Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	return nil
}

// Marshal returns the compact JSON form of d.
func Marshal(d Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads and validates a dataset.
func Decode(r io.Reader) (Dataset, error) {
	var d Dataset
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Dataset{}, err
	}
	return d, nil
}

// ReadFile loads a dataset from path.
func ReadFile(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// WriteFile writes d to path through a temp file so readers never observe
// a partial dataset.
func WriteFile(path string, d Dataset) error {
	b, err := Marshal(d)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write dataset: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move dataset into place: %w", err)
	}
	return nil
}

func firstNonFinite(xs []float64) int {
	for i, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}
