package hrir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func smallDataset() Dataset {
	return Dataset{
		SampleRate: 44100,
		Entries: []Entry{
			{Azimuth: -30, Left: ImpulseResponse{1, 0}, Right: ImpulseResponse{0.5, 0}},
			{Azimuth: 0, Left: ImpulseResponse{1, 0}, Right: ImpulseResponse{1, 0}},
			{Azimuth: 30, Left: ImpulseResponse{0.5, 0}, Right: ImpulseResponse{1, 0}},
		},
	}
}

func TestDatasetValidate(t *testing.T) {
	if err := smallDataset().Validate(); err != nil {
		t.Fatalf("valid dataset rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Dataset)
	}{
		{"zero sample rate", func(d *Dataset) { d.SampleRate = 0 }},
		{"no entries", func(d *Dataset) { d.Entries = nil }},
		{"empty responses", func(d *Dataset) { d.Entries[0].Left, d.Entries[0].Right = nil, nil }},
		{"length mismatch", func(d *Dataset) { d.Entries[1].Right = ImpulseResponse{1} }},
		{"nan sample", func(d *Dataset) { d.Entries[2].Left[1] = math.NaN() }},
		{"inf sample", func(d *Dataset) { d.Entries[2].Right[0] = math.Inf(1) }},
		{"nan azimuth", func(d *Dataset) { d.Entries[0].Azimuth = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := smallDataset()
			tt.mutate(&d)
			if err := d.Validate(); !errors.Is(err, ErrInvalidDataset) {
				t.Fatalf("err = %v, want ErrInvalidDataset", err)
			}
		})
	}
}

func TestDatasetClosest(t *testing.T) {
	d := smallDataset()

	tests := []struct {
		az   float64
		want float64
	}{
		{-90, -30},
		{-16, -30},
		{-14, 0},
		{-15, -30}, // tie keeps the earlier entry
		{12, 0},
		{29, 30},
		{180, 30},
	}
	for _, tt := range tests {
		e, ok := d.Closest(tt.az)
		if !ok {
			t.Fatal("Closest returned !ok")
		}
		if e.Azimuth != tt.want {
			t.Errorf("Closest(%v) = %v, want %v", tt.az, e.Azimuth, tt.want)
		}
	}

	if _, ok := (Dataset{}).Closest(0); ok {
		t.Fatal("empty dataset should report !ok")
	}
}

func TestEncode_JSONShape(t *testing.T) {
	d := smallDataset()
	b, err := Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.HasPrefix(s, `{"sampleRate":44100,"entries":[{"azimuth":-30,"left":[1,0],"right":[0.5,0]}`) {
		t.Fatalf("unexpected JSON prefix: %s", s)
	}
	if strings.Contains(s, "subjectId") || strings.Contains(s, "elevation") {
		t.Fatalf("optional fields should be omitted: %s", s)
	}

	el := 0.0
	d.SubjectID = "021"
	d.Entries[0].Elevation = &el
	b, err = Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["subjectId"] != "021" {
		t.Fatalf("subjectId = %v", raw["subjectId"])
	}
	first := raw["entries"].([]any)[0].(map[string]any)
	if v, ok := first["elevation"]; !ok || v.(float64) != 0 {
		t.Fatalf("elevation 0 must be serialized when set, got %v", first)
	}
}

func TestEncode_RejectsInvalid(t *testing.T) {
	d := smallDataset()
	d.Entries[0].Left[0] = math.NaN()
	var buf bytes.Buffer
	if err := Encode(&buf, d); !errors.Is(err, ErrInvalidDataset) {
		t.Fatalf("err = %v, want ErrInvalidDataset", err)
	}
	if buf.Len() != 0 {
		t.Fatal("nothing should be written for an invalid dataset")
	}
}

func TestWriteReadFile(t *testing.T) {
	s := mustSynth(t, DefaultParams())
	d, err := Assemble(context.Background(), s, CIPICGrid())
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "nested", "hrir-data.json")
	if err := WriteFile(path, d); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.SampleRate != d.SampleRate || len(got.Entries) != len(d.Entries) {
		t.Fatalf("round trip mismatch: %d/%d entries", len(got.Entries), len(d.Entries))
	}
	for i := range d.Entries {
		if got.Entries[i].Azimuth != d.Entries[i].Azimuth {
			t.Fatalf("entry %d azimuth %v != %v", i, got.Entries[i].Azimuth, d.Entries[i].Azimuth)
		}
		for j := range d.Entries[i].Left {
			if got.Entries[i].Left[j] != d.Entries[i].Left[j] {
				t.Fatalf("entry %d left[%d] %v != %v", i, j, got.Entries[i].Left[j], d.Entries[i].Left[j])
			}
		}
	}
}

func TestDecode_RejectsMismatchedLengths(t *testing.T) {
	in := `{"sampleRate":44100,"entries":[{"azimuth":0,"left":[1,2],"right":[1]}]}`
	if _, err := Decode(strings.NewReader(in)); !errors.Is(err, ErrInvalidDataset) {
		t.Fatalf("err = %v, want ErrInvalidDataset", err)
	}
}
