package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/go-hrtf-lab/internal/analysis"
	"github.com/example/go-hrtf-lab/internal/audio"
	"github.com/example/go-hrtf-lab/internal/config"
	"github.com/example/go-hrtf-lab/internal/hrir"
)

// Pinna notches of the synthetic model and of measured subjects sit in
// this band.
const (
	notchLoHz = 4000.0
	notchHiHz = 16000.0
)

func newInspectCmd() *cobra.Command {
	var (
		format   string
		spectrum bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [dataset.json]",
		Short: "Report onset, ITD and ILD per dataset entry",
		Long: "Prints the binaural cues of every entry. With --spectrum the per-ear\n" +
			"magnitude spectra are computed too: the table gains the deepest notch\n" +
			"between 4 and 16 kHz and JSON output carries the full spectra.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			f, err := config.NormalizeFormat(format)
			if err != nil {
				return err
			}

			d, err := hrir.ReadFile(datasetArg(cfg, args))
			if err != nil {
				return err
			}
			rep, err := analysis.Analyze(d)
			if err != nil {
				return err
			}
			if spectrum {
				spectra, err := analysis.ComputeSpectra(d)
				if err != nil {
					return err
				}
				rep.Spectra = &spectra
			}

			if f == config.FormatJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return writeReportTable(cmd.OutOrStdout(), rep)
		},
	}

	cmd.Flags().StringVar(&format, "format", config.FormatTable, "Output format: table|json")
	cmd.Flags().BoolVar(&spectrum, "spectrum", false, "Also compute per-ear magnitude spectra")

	return cmd
}

func writeReportTable(w io.Writer, rep analysis.Report) error {
	subject := rep.SubjectID
	if subject == "" {
		subject = "synthetic"
	}
	_, _ = fmt.Fprintf(w, "subject %s: %d entries, %d samples at %d Hz\n\n",
		subject, len(rep.Entries), rep.IRLength, rep.SampleRate)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := "azimuth\tL onset\tR onset\tITD smp\tITD µs\tILD dB\tL peak dB\tR peak dB\t"
	if rep.Spectra != nil {
		header += "L notch Hz\tR notch Hz\t"
	}
	_, _ = fmt.Fprintln(tw, header)
	for i, e := range rep.Entries {
		_, _ = fmt.Fprintf(tw, "%g\t%d\t%d\t%d\t%.1f\t%.2f\t%.2f\t%.2f\t",
			e.Azimuth, e.Left.Onset, e.Right.Onset, e.ITDSamples, e.ITDMicros,
			e.ILDDB, e.Left.PeakDB, e.Right.PeakDB)
		if s := rep.Spectra; s != nil {
			lf, _, _ := s.DeepestNotch(s.Entries[i].LeftDB, notchLoHz, notchHiHz)
			rf, _, _ := s.DeepestNotch(s.Entries[i].RightDB, notchLoHz, notchHiHz)
			_, _ = fmt.Fprintf(tw, "%.0f\t%.0f\t", lf, rf)
		}
		_, _ = fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func newExportWAVCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export-wav [dataset.json]",
		Short: "Write one stereo WAV per dataset entry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			d, err := hrir.ReadFile(datasetArg(cfg, args))
			if err != nil {
				return err
			}
			if err := d.Validate(); err != nil {
				return err
			}

			if outDir == "" {
				outDir = filepath.Join(cfg.Paths.AudioDir, "hrir")
			}
			for _, e := range d.Entries {
				b, err := audio.EncodeStereo(e.Left, e.Right, d.SampleRate)
				if err != nil {
					return fmt.Errorf("azimuth %g: %w", e.Azimuth, err)
				}
				if err := writeFileAtomic(filepath.Join(outDir, azimuthFileName(e.Azimuth)), b); err != nil {
					return err
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d stereo WAV files to %s\n", len(d.Entries), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "Destination directory (default <audio dir>/hrir)")

	return cmd
}

// azimuthFileName names the export for az: 80 -> az_p080.wav,
// -65 -> az_m065.wav, 22.5 -> az_p022_5.wav.
func azimuthFileName(az float64) string {
	sign := "p"
	if az < 0 {
		sign = "m"
	}
	whole, frac := math.Modf(math.Abs(az))
	name := fmt.Sprintf("az_%s%03d", sign, int(whole))
	if frac != 0 {
		digits := strconv.FormatFloat(frac, 'f', -1, 64)
		name += "_" + strings.TrimPrefix(digits, "0.")
	}
	return name + ".wav"
}

func datasetArg(cfg config.Config, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return filepath.Join(cfg.Paths.OutputDir, cfg.Paths.DatasetFile)
}
