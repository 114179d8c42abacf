package hrir

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"
)

type assembleOptions struct {
	workers   int
	subjectID string
	logger    *slog.Logger
}

func defaultAssembleOptions() assembleOptions {
	return assembleOptions{
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
}

// AssembleOption configures Assemble.
type AssembleOption func(*assembleOptions)

// WithWorkers bounds the number of grid points computed concurrently.
// Values below 1 mean sequential evaluation.
func WithWorkers(n int) AssembleOption {
	return func(o *assembleOptions) { o.workers = n }
}

// WithSubjectID tags the resulting dataset.
func WithSubjectID(id string) AssembleOption {
	return func(o *assembleOptions) { o.subjectID = id }
}

// WithLogger sets the logger used for progress reporting.
func WithLogger(l *slog.Logger) AssembleOption {
	return func(o *assembleOptions) { o.logger = l }
}

// Assemble synthesizes both ears for every azimuth of grid. Entries are
// stored at their grid index, so the result is in grid order whatever the
// completion order of the workers.
func Assemble(ctx context.Context, s *Synthesizer, grid Grid, opts ...AssembleOption) (Dataset, error) {
	if s == nil {
		return Dataset{}, fmt.Errorf("%w: nil synthesizer", ErrInvalidParams)
	}
	if grid.Len() == 0 {
		return Dataset{}, fmt.Errorf("%w: no azimuths", ErrInvalidGrid)
	}

	o := defaultAssembleOptions()
	for _, fn := range opts {
		fn(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}

	entries := make([]Entry, grid.Len())

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range grid.Len() {
		az := grid.At(i)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			left, err := s.ImpulseResponse(az, Left)
			if err != nil {
				return fmt.Errorf("azimuth %v left: %w", az, err)
			}
			right, err := s.ImpulseResponse(az, Right)
			if err != nil {
				return fmt.Errorf("azimuth %v right: %w", az, err)
			}
			entries[i] = Entry{Azimuth: az, Left: left, Right: right}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}

	d := Dataset{
		SampleRate: s.SampleRate(),
		Entries:    entries,
		SubjectID:  o.subjectID,
	}
	if err := d.Validate(); err != nil {
		return Dataset{}, err
	}

	o.logger.Debug("assembled hrir dataset",
		slog.Int("entries", len(entries)),
		slog.Int("ir_length", s.IRLength()),
		slog.Int("sample_rate", s.SampleRate()),
		slog.Int("workers", o.workers),
	)

	return d, nil
}
