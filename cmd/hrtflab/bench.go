package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-hrtf-lab/internal/bench"
	"github.com/example/go-hrtf-lab/internal/config"
	"github.com/example/go-hrtf-lab/internal/hrir"
	"github.com/example/go-hrtf-lab/internal/probe"
)

const (
	benchTargetDataset = "dataset"
	benchTargetProbe   = "probe"
)

func newBenchCmd() *cobra.Command {
	var (
		target       string
		runs         int
		format       string
		rtfThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark dataset or probe rendering",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			f, err := config.NormalizeFormat(format)
			if err != nil {
				return err
			}
			fn, err := benchTarget(cfg, target)
			if err != nil {
				return err
			}

			results, err := bench.Run(cmd.Context(), fn, runs)
			if err != nil {
				return err
			}
			stats := bench.ComputeStats(bench.Durations(results))

			out := cmd.OutOrStdout()
			if f == config.FormatJSON {
				if err := bench.FormatJSON(target, results, stats, out); err != nil {
					return err
				}
			} else {
				bench.FormatTable(results, stats, out)
			}

			return bench.CheckRTFThreshold(bench.MeanRTF(results), rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&target, "target", benchTargetDataset, "What to render: dataset|probe")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of renders")
	cmd.Flags().StringVar(&format, "format", config.FormatTable, "Output format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Exit non-zero if mean RTF exceeds this value (0 = disabled)")

	return cmd
}

// benchTarget builds the render function for target from cfg. Invalid
// configuration is reported before any run starts.
func benchTarget(cfg config.Config, target string) (bench.Target, error) {
	switch target {
	case benchTargetDataset:
		synth, err := hrir.NewSynthesizer(cfg.HRIR.SynthesisParams())
		if err != nil {
			return nil, err
		}
		grid, err := cfg.HRIR.Grid()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (time.Duration, error) {
			d, err := hrir.Assemble(ctx, synth, grid, hrir.WithWorkers(cfg.HRIR.Workers))
			if err != nil {
				return 0, err
			}
			if _, err := hrir.Marshal(d); err != nil {
				return 0, err
			}
			samples := len(d.Entries) * d.IRLength()
			return time.Duration(samples) * time.Second / time.Duration(d.SampleRate), nil
		}, nil

	case benchTargetProbe:
		p := cfg.Probe.Params()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return func(context.Context) (time.Duration, error) {
			sig, err := probe.Generate(p)
			if err != nil {
				return 0, err
			}
			if _, err := sig.WAV(); err != nil {
				return 0, err
			}
			return time.Duration(sig.Duration() * float64(time.Second)), nil
		}, nil

	default:
		return nil, fmt.Errorf("invalid bench target %q (expected %s|%s)", target, benchTargetDataset, benchTargetProbe)
	}
}
