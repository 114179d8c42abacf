// Package doctor provides environment preflight checks for hrtflab.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/example/go-hrtf-lab/internal/audio"
	"github.com/example/go-hrtf-lab/internal/catalog"
	"github.com/example/go-hrtf-lab/internal/hrir"
	"github.com/example/go-hrtf-lab/internal/measured"
	"github.com/example/go-hrtf-lab/internal/probe"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// CheckFunc probes an external dependency and returns a short status.
type CheckFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// Dirs must exist or be creatable, and accept new files.
	Dirs []string
	// Synthesis and Azimuths are the configured HRIR model.
	Synthesis hrir.Params
	Azimuths  []float64
	// Probe is the configured probe signal.
	Probe probe.Params
	// ProbeFile, when it exists, must decode as the configured probe.
	ProbeFile string
	// ManifestPath, when the file exists, has every listed dataset verified.
	ManifestPath string
	// MeasuredFile is a subject file name as the fetcher produces it; it
	// must be decodable by MeasuredReader. Empty or nil skips the check.
	MeasuredFile   string
	MeasuredReader measured.Reader
	// Remote checks the measured-data server; nil skips the check.
	Remote CheckFunc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- directories --------------------------------------------------------
	for _, dir := range cfg.Dirs {
		if err := checkWritable(dir); err != nil {
			res.fail(fmt.Sprintf("directory %q: %v", dir, err))
			fmt.Fprintf(w, "%s directory %s: %v\n", FailMark, dir, err)
		} else {
			fmt.Fprintf(w, "%s directory writable: %s\n", PassMark, dir)
		}
	}

	// ---- synthesis model ----------------------------------------------------
	if err := cfg.Synthesis.Validate(); err != nil {
		res.fail(fmt.Sprintf("synthesis params: %v", err))
		fmt.Fprintf(w, "%s synthesis params: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s synthesis params: %d Hz, %d samples\n", PassMark, cfg.Synthesis.SampleRate, cfg.Synthesis.IRLength)
	}

	if grid, err := hrir.NewGrid(cfg.Azimuths); err != nil {
		res.fail(fmt.Sprintf("azimuth grid: %v", err))
		fmt.Fprintf(w, "%s azimuth grid: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s azimuth grid: %d positions\n", PassMark, grid.Len())
	}

	// ---- probe --------------------------------------------------------------
	if err := cfg.Probe.Validate(); err != nil {
		res.fail(fmt.Sprintf("probe params: %v", err))
		fmt.Fprintf(w, "%s probe params: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s probe params: %d samples at %d Hz\n", PassMark, cfg.Probe.NumSamples(), cfg.Probe.SampleRate)
	}

	if cfg.ProbeFile != "" {
		checkProbeFile(&res, cfg.ProbeFile, cfg.Probe, w)
	}

	// ---- manifest -----------------------------------------------------------
	if cfg.ManifestPath != "" {
		checkManifest(&res, cfg.ManifestPath, w)
	}

	// ---- measured data ------------------------------------------------------
	if cfg.MeasuredFile != "" && cfg.MeasuredReader != nil {
		if err := measured.CheckFormat(cfg.MeasuredReader, cfg.MeasuredFile); err != nil {
			res.fail(fmt.Sprintf("measured format: %v", err))
			fmt.Fprintf(w, "%s measured format: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s measured format: %s is readable\n", PassMark, cfg.MeasuredFile)
		}
	}

	// ---- remote -------------------------------------------------------------
	if cfg.Remote == nil {
		fmt.Fprintf(w, "%s measured-data server: skipped\n", PassMark)
	} else if status, err := cfg.Remote(); err != nil {
		res.fail(fmt.Sprintf("measured-data server: %v", err))
		fmt.Fprintf(w, "%s measured-data server: unreachable (%v)\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s measured-data server: %s\n", PassMark, status)
	}

	return res
}

func checkManifest(res *Result, path string, w io.Writer) {
	m, err := catalog.ReadManifest(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(w, "%s subject manifest: none yet (%s)\n", PassMark, path)
			return
		}
		res.fail(fmt.Sprintf("subject manifest: %v", err))
		fmt.Fprintf(w, "%s subject manifest: %v\n", FailMark, err)
		return
	}
	fmt.Fprintf(w, "%s subject manifest: %d subjects\n", PassMark, len(m))

	dir := filepath.Dir(path)
	for _, rec := range m {
		file := filepath.Join(dir, filepath.Base(rec.File))
		if _, err := os.Stat(file); err != nil {
			res.fail(fmt.Sprintf("subject %s dataset %q: %v", rec.ID, file, err))
			fmt.Fprintf(w, "%s subject %s dataset %s: not found\n", FailMark, rec.ID, file)
		} else {
			fmt.Fprintf(w, "%s subject %s dataset: %s\n", PassMark, rec.ID, file)
		}
	}
}

func checkProbeFile(res *Result, path string, p probe.Params, w io.Writer) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(w, "%s probe file: none yet (%s)\n", PassMark, path)
		return
	}
	if err == nil {
		var samples []float32
		samples, _, err = audio.DecodeWAV(b, audio.Mono16(p.SampleRate))
		if err == nil && len(samples) != p.NumSamples() {
			err = fmt.Errorf("%d samples, want %d", len(samples), p.NumSamples())
		}
	}
	if err != nil {
		res.fail(fmt.Sprintf("probe file %s: %v", path, err))
		fmt.Fprintf(w, "%s probe file %s: %v\n", FailMark, path, err)
		return
	}
	fmt.Fprintf(w, "%s probe file: %s\n", PassMark, path)
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
