package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-hrtf-lab/internal/hrir"
	"github.com/example/go-hrtf-lab/internal/measured"
)

// Resolver maps a subject id to a local measurement file. *fetch.Fetcher
// implements it.
type Resolver interface {
	// FileName is the name Resolve will produce, known without I/O.
	FileName(subjectID string) string
	Resolve(ctx context.Context, subjectID string) (string, error)
}

// Options configures Convert.
type Options struct {
	Subjects       []Subject
	OutputDir      string
	Resolver       Resolver
	Reader         measured.Reader
	HorizontalOnly bool
	Workers        int
	Logger         *slog.Logger
}

// Failure records a subject that could not be converted.
type Failure struct {
	Subject Subject
	Err     error
}

// Result is the outcome of a conversion run.
type Result struct {
	Manifest Manifest
	Failures []Failure
	Path     string // manifest location
}

// Convert fetches, reads and converts every subject, writing <id>.json for
// each success and then the manifest. A failing subject is logged and
// skipped; only setup problems and cancellation abort the run. A subject
// whose file the reader cannot decode is a setup problem: the run fails
// before anything is downloaded or written.
func Convert(ctx context.Context, opts Options) (Result, error) {
	if opts.OutputDir == "" {
		return Result{}, errors.New("output dir is required")
	}
	if opts.Resolver == nil || opts.Reader == nil {
		return Result{}, errors.New("resolver and reader are required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	for _, sub := range opts.Subjects {
		if err := measured.CheckFormat(opts.Reader, opts.Resolver.FileName(sub.ID)); err != nil {
			return Result{}, fmt.Errorf("subject %s: %w", sub.ID, err)
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}

	records := make([]*Record, len(opts.Subjects))
	errs := make([]error, len(opts.Subjects))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, sub := range opts.Subjects {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l := log.With(slog.String("subject", sub.ID))
			l.Info("processing subject", slog.String("label", sub.Label))

			rec, err := convertOne(ctx, opts, sub)
			if err != nil {
				errs[i] = err
				l.Error("subject conversion failed", slog.Any("error", err))
				return nil
			}
			records[i] = &rec
			l.Info("wrote subject dataset", slog.String("file", rec.File))
			return nil
		})
	}
	// Workers only return cancellation; per-subject failures land in errs.
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	res := Result{Manifest: Manifest{}}
	for i, rec := range records {
		if rec != nil {
			res.Manifest = append(res.Manifest, *rec)
			continue
		}
		res.Failures = append(res.Failures, Failure{Subject: opts.Subjects[i], Err: errs[i]})
	}

	res.Path = filepath.Join(opts.OutputDir, ManifestFileName)
	if err := WriteManifest(res.Path, res.Manifest); err != nil {
		return Result{}, err
	}
	log.Info("wrote manifest",
		slog.String("path", res.Path),
		slog.Int("subjects", len(res.Manifest)),
		slog.Int("failed", len(res.Failures)))
	return res, nil
}

func convertOne(ctx context.Context, opts Options, sub Subject) (Record, error) {
	path, err := opts.Resolver.Resolve(ctx, sub.ID)
	if err != nil {
		return Record{}, err
	}
	data, err := opts.Reader.Read(ctx, path)
	if err != nil {
		return Record{}, fmt.Errorf("subject %s: %w", sub.ID, err)
	}
	d, err := measured.FromMeasurements(sub.ID, data, measured.Options{HorizontalOnly: opts.HorizontalOnly})
	if err != nil {
		return Record{}, err
	}

	file := sub.FileName()
	if err := hrir.WriteFile(filepath.Join(opts.OutputDir, file), d); err != nil {
		return Record{}, fmt.Errorf("subject %s: %w", sub.ID, err)
	}
	return Record{ID: sub.ID, Label: sub.Label, File: file}, nil
}
