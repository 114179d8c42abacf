package measured

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/example/go-hrtf-lab/internal/hrir"
)

func sampleSubject() SubjectData {
	return SubjectData{
		SampleRate: 44100,
		Measurements: []Measurement{
			{Azimuth: -80.004, Elevation: -45, Left: []float64{0.1234564, -0.0000004}, Right: []float64{1, 0}},
			{Azimuth: 0.0049, Elevation: 0.001, Left: []float64{0.5, 0.25}, Right: []float64{0.5, 0.25}},
			{Azimuth: 65.125, Elevation: 0, Left: []float64{0.0000016, 0}, Right: []float64{0.9999996, 0}},
		},
	}
}

func TestFromMeasurements_RoundsAndKeepsOrder(t *testing.T) {
	d, err := FromMeasurements("021", sampleSubject(), Options{})
	if err != nil {
		t.Fatalf("FromMeasurements: %v", err)
	}
	if d.SubjectID != "021" || d.SampleRate != 44100 {
		t.Fatalf("header = (%q, %d)", d.SubjectID, d.SampleRate)
	}
	if len(d.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(d.Entries))
	}

	wantAz := []float64{-80, 0, 65.12}
	for i, e := range d.Entries {
		if e.Azimuth != wantAz[i] {
			t.Errorf("entry %d azimuth = %v, want %v", i, e.Azimuth, wantAz[i])
		}
		if e.Elevation == nil {
			t.Fatalf("entry %d has no elevation", i)
		}
	}
	if *d.Entries[1].Elevation != 0 {
		t.Errorf("elevation = %v, want 0", *d.Entries[1].Elevation)
	}

	if got := d.Entries[0].Left[0]; got != 0.123456 {
		t.Errorf("left[0] = %v, want 0.123456", got)
	}
	if got := d.Entries[0].Left[1]; got != 0 {
		t.Errorf("left[1] = %v, want 0", got)
	}
	if got := d.Entries[2].Left[0]; got != 0.000002 {
		t.Errorf("left[0] = %v, want 0.000002", got)
	}
	if got := d.Entries[2].Right[0]; got != 1 {
		t.Errorf("right[0] = %v, want 1", got)
	}
}

func TestFromMeasurements_HorizontalOnly(t *testing.T) {
	d, err := FromMeasurements("003", sampleSubject(), Options{HorizontalOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(d.Entries))
	}
	if d.Entries[0].Azimuth != 0 || d.Entries[1].Azimuth != 65.12 {
		t.Fatalf("azimuths = %v", d.Azimuths())
	}
}

func TestFromMeasurements_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubjectData)
	}{
		{"zero rate", func(s *SubjectData) { s.SampleRate = 0 }},
		{"no measurements", func(s *SubjectData) { s.Measurements = nil }},
		{"ragged", func(s *SubjectData) { s.Measurements[1].Right = []float64{1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sampleSubject()
			tt.mutate(&s)
			if _, err := FromMeasurements("x", s, Options{}); !errors.Is(err, ErrShape) {
				t.Fatalf("err = %v, want ErrShape", err)
			}
		})
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v        float64
		decimals int
		want     float64
	}{
		{1.005, 2, 1.0}, // 1.005 is stored below the midpoint
		{-80.004, 2, -80},
		{-0.001, 2, 0},
		{0.1234566, 6, 0.123457},
		{12.5, 0, 12},
		{13.5, 0, 14},
		// CIPIC elevations step by 5.625 and land on exact ties.
		{5.625, 2, 5.62},
		{-5.625, 2, -5.62},
		{28.125, 2, 28.12},
		{-28.125, 2, -28.12},
		{0.125, 2, 0.12},
		{0.375, 2, 0.38},
	}
	for _, tt := range tests {
		got := Round(tt.v, tt.decimals)
		if got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.v, tt.decimals, got, tt.want)
		}
		if got == 0 && math.Signbit(got) {
			t.Errorf("Round(%v, %d) = -0, want +0", tt.v, tt.decimals)
		}
	}
}

func makeMatrix(azimuths, elevations, samples int) Matrix {
	build := func(sign float64) [][][]float64 {
		out := make([][][]float64, azimuths)
		for a := range out {
			out[a] = make([][]float64, elevations)
			for e := range out[a] {
				out[a][e] = make([]float64, samples)
				for s := range out[a][e] {
					out[a][e][s] = sign * float64(a*1000+e*10+s)
				}
			}
		}
		return out
	}
	return Matrix{Left: build(1), Right: build(-1)}
}

func TestFromMatrix_SelectsElevationSlice(t *testing.T) {
	grid := hrir.CIPICGrid()
	m := makeMatrix(grid.Len(), 50, 4)

	d, err := FromMatrix(m, grid, CIPICHorizontalElevationIndex, 44100)
	if err != nil {
		t.Fatalf("FromMatrix: %v", err)
	}
	if len(d.Entries) != 25 {
		t.Fatalf("entries = %d, want 25", len(d.Entries))
	}
	for i, e := range d.Entries {
		if e.Azimuth != grid.At(i) {
			t.Fatalf("entry %d azimuth = %v, want %v", i, e.Azimuth, grid.At(i))
		}
		if e.Left[2] != float64(i*1000+80+2) {
			t.Fatalf("entry %d left[2] = %v, want %v", i, e.Left[2], i*1000+82)
		}
		if e.Right[0] != -float64(i*1000+80) {
			t.Fatalf("entry %d right[0] = %v", i, e.Right[0])
		}
	}

	// The dataset must not alias the matrix.
	m.Left[0][CIPICHorizontalElevationIndex][0] = 42
	if d.Entries[0].Left[0] == 42 {
		t.Fatal("dataset aliases matrix storage")
	}
}

func TestFromMatrix_Errors(t *testing.T) {
	grid := hrir.CIPICGrid()

	if _, err := FromMatrix(makeMatrix(24, 50, 4), grid, 8, 44100); !errors.Is(err, ErrShape) {
		t.Fatalf("short azimuth axis err = %v", err)
	}
	if _, err := FromMatrix(makeMatrix(25, 5, 4), grid, 8, 44100); !errors.Is(err, ErrShape) {
		t.Fatalf("elevation out of range err = %v", err)
	}
	if _, err := FromMatrix(makeMatrix(25, 50, 4), grid, -1, 44100); !errors.Is(err, ErrShape) {
		t.Fatalf("negative elevation err = %v", err)
	}
	if _, err := FromMatrix(makeMatrix(25, 50, 4), grid, 8, 0); !errors.Is(err, hrir.ErrInvalidDataset) {
		t.Fatalf("zero sample rate err = %v", err)
	}
}

func TestReaders(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "subject_021.json")
	doc := `{"sampleRate":44100,"measurements":[{"azimuth":0,"elevation":0,"left":[1,0],"right":[1,0]}]}`
	if err := os.WriteFile(jsonPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	rs := DefaultReaders()
	data, err := rs.Read(context.Background(), jsonPath)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if data.SampleRate != 44100 || len(data.Measurements) != 1 {
		t.Fatalf("unexpected data: %+v", data)
	}

	if _, err := rs.Read(context.Background(), filepath.Join(dir, "subject_021.sofa")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("sofa err = %v, want ErrUnsupportedFormat", err)
	}

	bad := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := rs.Read(context.Background(), bad); err == nil {
		t.Fatal("expected decode error")
	}

	called := false
	rs[".sofa"] = ReaderFunc(func(context.Context, string) (SubjectData, error) {
		called = true
		return data, nil
	})
	if _, err := rs.Read(context.Background(), "x.SOFA"); err != nil || !called {
		t.Fatalf("custom reader not used: err=%v called=%v", err, called)
	}
}

func TestReadMatrixJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hrir_final.json")
	doc := `{"hrir_l":[[[1,2],[3,4]]],"hrir_r":[[[5,6],[7,8]]]}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := ReadMatrixJSON(path)
	if err != nil {
		t.Fatalf("ReadMatrixJSON: %v", err)
	}
	grid, _ := hrir.NewGrid([]float64{0})
	d, err := FromMatrix(m, grid, 1, 44100)
	if err != nil {
		t.Fatal(err)
	}
	if d.Entries[0].Left[1] != 4 || d.Entries[0].Right[0] != 7 {
		t.Fatalf("unexpected entry %+v", d.Entries[0])
	}
}

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		name    string
		reader  Reader
		file    string
		wantErr bool
	}{
		{"json registered", DefaultReaders(), "subject_021.json", false},
		{"extension case ignored", DefaultReaders(), "SUBJECT_021.JSON", false},
		{"sofa not registered", DefaultReaders(), "subject_021.sofa", true},
		{"no extension", DefaultReaders(), "subject_021", true},
		{"plain reader accepts anything", JSONReader{}, "subject_021.sofa", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFormat(tt.reader, tt.file)
			if tt.wantErr != (err != nil) {
				t.Fatalf("CheckFormat(%q) = %v, wantErr %v", tt.file, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnsupportedFormat) {
				t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
			}
		})
	}
}
