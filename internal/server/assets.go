package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/example/go-hrtf-lab/internal/hrir"
	"github.com/example/go-hrtf-lab/internal/probe"
)

// Assets supplies the generated content the server publishes.
type Assets interface {
	SyntheticDataset(ctx context.Context) (hrir.Dataset, []byte, error)
	ProbeWAV(ctx context.Context) ([]byte, error)
}

// GeneratedAssets synthesizes the dataset and the probe on first use and
// serves the cached result afterwards. Failed attempts are not cached.
type GeneratedAssets struct {
	synth   *hrir.Synthesizer
	grid    hrir.Grid
	probe   probe.Params
	workers int
	log     *slog.Logger

	mu      sync.Mutex
	dataset *hrir.Dataset
	json    []byte
	wav     []byte
}

// NewGeneratedAssets validates its inputs up front so a misconfigured
// server fails at start rather than on the first request.
func NewGeneratedAssets(p hrir.Params, grid hrir.Grid, pp probe.Params, workers int, log *slog.Logger) (*GeneratedAssets, error) {
	s, err := hrir.NewSynthesizer(p)
	if err != nil {
		return nil, err
	}
	if grid.Len() == 0 {
		return nil, fmt.Errorf("%w: no azimuths", hrir.ErrInvalidGrid)
	}
	if err := pp.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &GeneratedAssets{synth: s, grid: grid, probe: pp, workers: workers, log: log}, nil
}

func (a *GeneratedAssets) SyntheticDataset(ctx context.Context) (hrir.Dataset, []byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dataset != nil {
		return *a.dataset, a.json, nil
	}

	d, err := hrir.Assemble(ctx, a.synth, a.grid, hrir.WithWorkers(a.workers), hrir.WithLogger(a.log))
	if err != nil {
		return hrir.Dataset{}, nil, err
	}
	b, err := hrir.Marshal(d)
	if err != nil {
		return hrir.Dataset{}, nil, err
	}
	a.dataset, a.json = &d, b
	a.log.InfoContext(ctx, "generated synthetic dataset",
		slog.Int("entries", len(d.Entries)),
		slog.Int("bytes", len(b)))
	return d, b, nil
}

func (a *GeneratedAssets) ProbeWAV(ctx context.Context) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.wav != nil {
		return a.wav, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := probe.Generate(a.probe)
	if err != nil {
		return nil, err
	}
	b, err := sig.WAV()
	if err != nil {
		return nil, err
	}
	a.wav = b
	a.log.InfoContext(ctx, "generated probe signal",
		slog.Int("samples", len(sig.Samples)),
		slog.Int("bytes", len(b)))
	return b, nil
}
