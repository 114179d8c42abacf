package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/go-hrtf-lab/internal/config"
	"github.com/example/go-hrtf-lab/internal/hrir"
	"github.com/example/go-hrtf-lab/internal/probe"
)

func newGenerateCmd() *cobra.Command {
	var skipProbe bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the synthetic HRIR dataset and the probe WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := writeSyntheticDataset(cmd.Context(), cfg, out); err != nil {
				return err
			}
			if skipProbe {
				return nil
			}
			_, err = writeProbe(cfg, out)
			return err
		},
	}

	cmd.Flags().BoolVar(&skipProbe, "skip-probe", false, "Only write the HRIR dataset")

	return cmd
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Write only the probe WAV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			_, err = writeProbe(cfg, cmd.OutOrStdout())
			return err
		},
	}
}

// writeSyntheticDataset synthesizes the configured grid and writes it to
// the output dir. It returns the dataset path.
func writeSyntheticDataset(ctx context.Context, cfg config.Config, out io.Writer) (string, error) {
	synth, err := hrir.NewSynthesizer(cfg.HRIR.SynthesisParams())
	if err != nil {
		return "", err
	}
	grid, err := cfg.HRIR.Grid()
	if err != nil {
		return "", err
	}

	d, err := hrir.Assemble(ctx, synth, grid,
		hrir.WithWorkers(cfg.HRIR.Workers),
		hrir.WithLogger(slog.Default()),
	)
	if err != nil {
		return "", fmt.Errorf("assemble dataset: %w", err)
	}

	path := filepath.Join(cfg.Paths.OutputDir, cfg.Paths.DatasetFile)
	if err := hrir.WriteFile(path, d); err != nil {
		return "", err
	}

	size := fileSize(path)
	slog.Info("dataset written",
		slog.String("path", path),
		slog.Int("entries", len(d.Entries)),
		slog.Int64("bytes", size),
	)
	_, _ = fmt.Fprintf(out, "Wrote %d HRIR entries to %s (%.1f KB)\n", len(d.Entries), path, float64(size)/1024)

	return path, nil
}

// writeProbe renders the probe signal into the audio dir and returns its path.
func writeProbe(cfg config.Config, out io.Writer) (string, error) {
	sig, err := probe.Generate(cfg.Probe.Params())
	if err != nil {
		return "", err
	}
	b, err := sig.WAV()
	if err != nil {
		return "", fmt.Errorf("encode probe: %w", err)
	}

	path := filepath.Join(cfg.Paths.AudioDir, cfg.Paths.ProbeFile)
	if err := writeFileAtomic(path, b); err != nil {
		return "", err
	}

	slog.Info("probe written",
		slog.String("path", path),
		slog.Int("samples", len(sig.Samples)),
		slog.Int("sample_rate", sig.SampleRate),
	)
	_, _ = fmt.Fprintf(out, "Wrote %s (%gs, %d samples)\n", path, sig.Duration(), len(sig.Samples))

	return path, nil
}

func writeFileAtomic(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move %s into place: %w", filepath.Base(path), err)
	}
	return nil
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
