package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/example/go-hrtf-lab/internal/hrir"
)

func syntheticDataset(t *testing.T, azimuths ...float64) hrir.Dataset {
	t.Helper()
	s, err := hrir.NewSynthesizer(hrir.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	grid, err := hrir.NewGrid(azimuths)
	if err != nil {
		t.Fatal(err)
	}
	d, err := hrir.Assemble(context.Background(), s, grid, hrir.WithWorkers(1))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestAnalyze_SyntheticCues(t *testing.T) {
	rep, err := Analyze(syntheticDataset(t, -80, 0, 80))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if rep.SampleRate != 44100 || rep.IRLength != 200 || len(rep.Entries) != 3 {
		t.Fatalf("report header = %+v", rep)
	}

	left80, front, right80 := rep.Entries[0], rep.Entries[1], rep.Entries[2]

	if front.ITDSamples != 0 || front.ILDDB != 0 {
		t.Errorf("frontal cues = itd %d, ild %v; want 0, 0", front.ITDSamples, front.ILDDB)
	}
	if front.Left.Onset != 2 || front.Right.Onset != 2 {
		t.Errorf("frontal onsets = %d/%d, want 2/2", front.Left.Onset, front.Right.Onset)
	}

	if right80.Right.Onset != 0 || right80.Left.Onset != 29 {
		t.Errorf("80° onsets = L%d R%d, want L29 R0", right80.Left.Onset, right80.Right.Onset)
	}
	if right80.Left.Peak != 29 || right80.Right.Peak != 0 {
		t.Errorf("80° peaks = L%d R%d", right80.Left.Peak, right80.Right.Peak)
	}
	if right80.ITDSamples != 29 {
		t.Errorf("80° ITD = %d, want 29", right80.ITDSamples)
	}
	if want := 29.0 / 44100 * 1e6; math.Abs(right80.ITDMicros-want) > 1e-9 {
		t.Errorf("80° ITD = %v µs, want %v", right80.ITDMicros, want)
	}
	if right80.ILDDB <= 0 {
		t.Errorf("80° ILD = %v dB, want > 0", right80.ILDDB)
	}
	if right80.Right.PeakDB <= right80.Left.PeakDB {
		t.Errorf("80° peak dB L%v R%v, want right louder", right80.Left.PeakDB, right80.Right.PeakDB)
	}

	if left80.ITDSamples != -29 {
		t.Errorf("-80° ITD = %d, want -29", left80.ITDSamples)
	}
	// The tail coloration depends on the signed azimuth, so mirrored
	// positions only match approximately.
	if left80.ILDDB >= 0 || math.Abs(left80.ILDDB+right80.ILDDB) > 0.5 {
		t.Errorf("mirrored ILD = %v vs %v", left80.ILDDB, right80.ILDDB)
	}
}

func TestAnalyze_SilentResponse(t *testing.T) {
	d := hrir.Dataset{
		SampleRate: 48000,
		Entries: []hrir.Entry{
			{Azimuth: 0, Left: hrir.ImpulseResponse{0, 0, 0}, Right: hrir.ImpulseResponse{0, 0.5, 0}},
		},
	}
	rep, err := Analyze(d)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	e := rep.Entries[0]
	if e.Left.PeakDB != FloorDB || e.Left.RMSDB != FloorDB {
		t.Fatalf("silent ear levels = %v/%v, want %v", e.Left.PeakDB, e.Left.RMSDB, FloorDB)
	}
	if e.Right.Onset != 1 || e.Right.Peak != 1 {
		t.Fatalf("right ear = %+v", e.Right)
	}
	if _, err := json.Marshal(rep); err != nil {
		t.Fatalf("report must be JSON-encodable: %v", err)
	}
}

func TestAnalyze_RejectsInvalidDataset(t *testing.T) {
	d := hrir.Dataset{SampleRate: 44100, Entries: []hrir.Entry{{Left: hrir.ImpulseResponse{1}, Right: hrir.ImpulseResponse{1, 0}}}}
	if _, err := Analyze(d); !errors.Is(err, hrir.ErrInvalidDataset) {
		t.Fatalf("err = %v, want ErrInvalidDataset", err)
	}
}
