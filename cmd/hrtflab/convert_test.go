package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-hrtf-lab/internal/catalog"
	"github.com/example/go-hrtf-lab/internal/hrir"
	"github.com/example/go-hrtf-lab/internal/measured"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestConvert_DownloadsAndWritesManifest(t *testing.T) {
	data := measured.SubjectData{
		SampleRate: 44100,
		Measurements: []measured.Measurement{
			{Azimuth: -80, Elevation: 0, Left: []float64{0.1234567, 0}, Right: []float64{0, 0.5}},
			{Azimuth: 80, Elevation: 0, Left: []float64{0, 0.5}, Right: []float64{0.25, 0}},
			{Azimuth: 0, Elevation: 45, Left: []float64{1, 0}, Right: []float64{1, 0}},
		},
	}
	body, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subject_021.json":
			_, _ = w.Write(body)
		case "/subject_040.json":
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	t.Chdir(t.TempDir())

	out, err := runRoot(t, "convert",
		"--measured-base-url", ts.URL,
		"--measured-file-pattern", "subject_%s.json",
		"--measured-subjects", "021=KEMAR Large Pinna (021)",
		"--measured-subjects", "040",
		"--measured-subjects", "999",
		"--measured-horizontal-only",
	)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	m, err := catalog.ReadManifest(filepath.Join("public", "hrir", catalog.ManifestFileName))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if len(m) != 1 || m[0] != (catalog.Record{ID: "021", Label: "KEMAR Large Pinna (021)", File: "021.json"}) {
		t.Fatalf("manifest = %+v", m)
	}

	d, err := hrir.ReadFile(filepath.Join("public", "hrir", "021.json"))
	if err != nil {
		t.Fatalf("read subject: %v", err)
	}
	if len(d.Entries) != 2 || d.Entries[0].Left[0] != 0.123457 || d.SubjectID != "021" {
		t.Fatalf("dataset = %+v", d)
	}

	if _, err := os.Stat(filepath.Join(".sofa-cache", "subject_021.json")); err != nil {
		t.Errorf("download not cached: %v", err)
	}

	for _, want := range []string{"040  skipped: access denied (HTTP 403)", "999  skipped:", "(1 subjects)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConvert_InvalidSubjectListFails(t *testing.T) {
	t.Chdir(t.TempDir())

	if _, err := runRoot(t, "convert", "--measured-subjects", "021", "--measured-subjects", "021"); err == nil {
		t.Fatal("expected error for duplicate subject")
	}
}

func TestImportMatrix(t *testing.T) {
	t.Chdir(t.TempDir())

	// Two azimuths, two elevations, three samples.
	m := measured.Matrix{
		Left: [][][]float64{
			{{9, 9, 9}, {1, 0, 0}},
			{{9, 9, 9}, {0.5, 0, 0}},
		},
		Right: [][][]float64{
			{{9, 9, 9}, {0.5, 0, 0}},
			{{9, 9, 9}, {1, 0, 0}},
		},
	}
	writeJSON(t, "matrix.json", m)

	out, err := runRoot(t, "import-matrix", "matrix.json", "kemar.json",
		"--hrir-azimuths=-45,45", "--measured-elevation-index", "1", "--subject-id", "165")
	if err != nil {
		t.Fatalf("import-matrix: %v", err)
	}

	d, err := hrir.ReadFile("kemar.json")
	if err != nil {
		t.Fatal(err)
	}
	if d.SubjectID != "165" || len(d.Entries) != 2 || d.Entries[0].Azimuth != -45 || d.Entries[1].Left[0] != 0.5 {
		t.Fatalf("dataset = %+v", d)
	}
	if !strings.Contains(out, "Wrote 2 entries to kemar.json") {
		t.Errorf("output:\n%s", out)
	}
}

func TestImportMatrix_ShapeMismatch(t *testing.T) {
	t.Chdir(t.TempDir())

	writeJSON(t, "matrix.json", measured.Matrix{
		Left:  [][][]float64{{{1}}},
		Right: [][][]float64{{{1}}},
	})

	// The default CIPIC grid has 25 azimuths.
	if _, err := runRoot(t, "import-matrix", "matrix.json"); err == nil {
		t.Fatal("expected shape error")
	}
}

func TestConvert_DefaultPatternFailsWithoutDownloading(t *testing.T) {
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		_, _ = w.Write([]byte("SOFA"))
	}))
	defer ts.Close()

	t.Chdir(t.TempDir())

	out, err := runRoot(t, "convert", "--measured-base-url", ts.URL)
	if !errors.Is(err, measured.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat; output:\n%s", err, out)
	}
	if requests != 0 {
		t.Fatalf("made %d requests, want none", requests)
	}
	if _, err := os.Stat(filepath.Join("public", "hrir", catalog.ManifestFileName)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("manifest written: %v", err)
	}
}
