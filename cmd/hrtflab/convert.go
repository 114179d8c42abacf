package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/go-hrtf-lab/internal/catalog"
	"github.com/example/go-hrtf-lab/internal/fetch"
	"github.com/example/go-hrtf-lab/internal/hrir"
	"github.com/example/go-hrtf-lab/internal/measured"
)

func newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Download measured subjects and convert them to HRIR datasets",
		Long: "Resolves each configured subject through the download cache, reads its\n" +
			"measurements, writes <id>.json into the output dir and finally the\n" +
			"subjects.json manifest. Failing subjects are reported and skipped.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			subjects, err := cfg.Measured.ParsedSubjects()
			if err != nil {
				return err
			}

			fetcher := &fetch.Fetcher{
				BaseURL:     cfg.Measured.BaseURL,
				CacheDir:    cfg.Paths.CacheDir,
				FilePattern: cfg.Measured.FilePattern,
				Client:      &http.Client{Timeout: cfg.Measured.TimeoutDuration()},
				Logger:      slog.Default(),
			}

			res, err := catalog.Convert(cmd.Context(), catalog.Options{
				Subjects:       subjects,
				OutputDir:      cfg.Paths.OutputDir,
				Resolver:       fetcher,
				Reader:         measured.DefaultReaders(),
				HorizontalOnly: cfg.Measured.HorizontalOnly,
				Workers:        cfg.Measured.Workers,
				Logger:         slog.Default(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, rec := range res.Manifest {
				_, _ = fmt.Fprintf(out, "  %s  %-28s %s\n", rec.ID, rec.Label, filepath.Join(cfg.Paths.OutputDir, rec.File))
			}
			for _, f := range res.Failures {
				var denied *fetch.AccessDeniedError
				if errors.As(f.Err, &denied) {
					_, _ = fmt.Fprintf(out, "  %s  skipped: access denied (HTTP %d)\n", f.Subject.ID, denied.Status)
					continue
				}
				_, _ = fmt.Fprintf(out, "  %s  skipped: %v\n", f.Subject.ID, f.Err)
			}
			_, _ = fmt.Fprintf(out, "Wrote manifest: %s (%d subjects)\n", res.Path, len(res.Manifest))

			return nil
		},
	}
}

func newImportMatrixCmd() *cobra.Command {
	var subjectID string

	cmd := &cobra.Command{
		Use:   "import-matrix <matrix.json> [output.json]",
		Short: "Convert an hrir_l/hrir_r matrix export into a dataset",
		Long: "Reads a JSON export of a CIPIC hrir_final matrix ([azimuth][elevation][sample]\n" +
			"per ear), keeps the configured elevation slice and labels rows with the\n" +
			"configured azimuth grid.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			grid, err := cfg.HRIR.Grid()
			if err != nil {
				return err
			}

			m, err := measured.ReadMatrixJSON(args[0])
			if err != nil {
				return err
			}
			d, err := measured.FromMatrix(m, grid, cfg.Measured.ElevationIndex, cfg.HRIR.SampleRate)
			if err != nil {
				return err
			}
			d.SubjectID = subjectID

			outPath := filepath.Join(cfg.Paths.OutputDir, cfg.Paths.DatasetFile)
			if len(args) > 1 {
				outPath = args[1]
			}
			if err := hrir.WriteFile(outPath, d); err != nil {
				return err
			}

			slog.Info("matrix imported",
				slog.String("source", args[0]),
				slog.String("path", outPath),
				slog.Int("entries", len(d.Entries)),
			)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d entries to %s (%.1f KB)\n",
				len(d.Entries), outPath, float64(fileSize(outPath))/1024)

			return nil
		},
	}

	cmd.Flags().StringVar(&subjectID, "subject-id", "", "Subject id stored in the dataset")

	return cmd
}
