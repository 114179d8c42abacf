package bench_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/go-hrtf-lab/internal/bench"
)

var errRender = errors.New("render failed")

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_RecordsEveryRun(t *testing.T) {
	calls := 0
	target := func(context.Context) (time.Duration, error) {
		calls++
		return time.Second, nil
	}

	runs, err := bench.Run(context.Background(), target, 3)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 3 || len(runs) != 3 {
		t.Fatalf("calls=%d runs=%d, want 3", calls, len(runs))
	}
	for i, r := range runs {
		if r.Index != i || r.Cold != (i == 0) || r.AudioDuration != time.Second {
			t.Errorf("run %d = %+v", i, r)
		}
		if r.RTF != bench.CalcRTF(r.Duration, time.Second) {
			t.Errorf("run %d RTF = %v", i, r.RTF)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	ok := func(context.Context) (time.Duration, error) { return 0, nil }

	if _, err := bench.Run(context.Background(), ok, 0); err == nil {
		t.Error("want error for zero runs")
	}

	failing := func(context.Context) (time.Duration, error) { return 0, errRender }
	if _, err := bench.Run(context.Background(), failing, 2); !errors.Is(err, errRender) {
		t.Errorf("err = %v, want errRender", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := bench.Run(ctx, ok, 2); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

func TestStats_MinMaxMean(t *testing.T) {
	durations := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}
	s := bench.ComputeStats(durations)

	if s.Min != 100*time.Millisecond {
		t.Errorf("want min=100ms, got %v", s.Min)
	}

	if s.Max != 300*time.Millisecond {
		t.Errorf("want max=300ms, got %v", s.Max)
	}

	if s.Mean != 200*time.Millisecond {
		t.Errorf("want mean=200ms, got %v", s.Mean)
	}
}

func TestStats_Empty(t *testing.T) {
	if s := bench.ComputeStats(nil); s != (bench.Stats{}) {
		t.Errorf("want zero stats, got %+v", s)
	}
}

func TestMeanRTFAndDurations(t *testing.T) {
	runs := []bench.RunResult{
		{Duration: 10 * time.Millisecond, RTF: 0.2},
		{Duration: 30 * time.Millisecond, RTF: 0.4},
	}
	if got := bench.MeanRTF(runs); got < 0.2999 || got > 0.3001 {
		t.Errorf("MeanRTF = %v, want 0.3", got)
	}
	if got := bench.MeanRTF(nil); got != 0 {
		t.Errorf("MeanRTF(nil) = %v", got)
	}
	d := bench.Durations(runs)
	if len(d) != 2 || d[1] != 30*time.Millisecond {
		t.Errorf("Durations = %v", d)
	}
}

// ---------------------------------------------------------------------------
// RTF
// ---------------------------------------------------------------------------

func TestRTF_Calculation(t *testing.T) {
	rtf := bench.CalcRTF(500*time.Millisecond, time.Second)
	if rtf < 0.499 || rtf > 0.501 {
		t.Errorf("want RTF≈0.5, got %.4f", rtf)
	}
	if rtf := bench.CalcRTF(500*time.Millisecond, 0); rtf != 0 {
		t.Errorf("want RTF=0 for zero audio duration, got %.4f", rtf)
	}
}

func TestRTFThreshold(t *testing.T) {
	tests := []struct {
		name      string
		mean, max float64
		wantErr   bool
	}{
		{"exceeds", 1.5, 1.0, true},
		{"below", 0.8, 1.0, false},
		{"exactly at", 1.0, 1.0, false},
		{"disabled", 9999, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := bench.CheckRTFThreshold(tt.mean, tt.max)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckRTFThreshold(%v, %v) = %v, wantErr %v", tt.mean, tt.max, err, tt.wantErr)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func TestFormatTable_ContainsHeaders(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, RTF: 0.8, AudioDuration: time.Second},
		{Index: 1, Cold: false, Duration: 500 * time.Millisecond, RTF: 0.5, AudioDuration: time.Second},
	}
	stats := bench.ComputeStats(bench.Durations(runs))

	var buf strings.Builder
	bench.FormatTable(runs, stats, &buf)
	out := buf.String()

	for _, want := range []string{"run", "cold", "ms", "rtf", "(mean)"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON_IsValidJSON(t *testing.T) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 800 * time.Millisecond, RTF: 0.8, AudioDuration: time.Second},
	}
	stats := bench.ComputeStats(bench.Durations(runs))

	var buf bytes.Buffer
	if err := bench.FormatJSON("probe", runs, stats, &buf); err != nil {
		t.Fatal(err)
	}

	var out struct {
		Target string `json:"target"`
		Runs   []struct {
			DurationMS float64 `json:"duration_ms"`
			AudioMS    float64 `json:"audio_ms"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v\n%s", err, buf.String())
	}
	if out.Target != "probe" || len(out.Runs) != 1 || out.Runs[0].DurationMS != 800 || out.Runs[0].AudioMS != 1000 {
		t.Errorf("report = %+v", out)
	}
}
