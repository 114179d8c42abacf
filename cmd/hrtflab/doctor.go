package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-hrtf-lab/internal/catalog"
	"github.com/example/go-hrtf-lab/internal/config"
	"github.com/example/go-hrtf-lab/internal/doctor"
	"github.com/example/go-hrtf-lab/internal/fetch"
	"github.com/example/go-hrtf-lab/internal/measured"
)

func newDoctorCmd() *cobra.Command {
	var checkRemote bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local configuration and output checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg := doctorConfig(cfg)
			if checkRemote {
				dcfg.Remote = func() (string, error) {
					return probeRemote(cmd.Context(), cfg.Measured.BaseURL)
				}
			}

			out := cmd.OutOrStdout()
			result := doctor.Run(dcfg, out)

			if _, err := cfg.Measured.ParsedSubjects(); err != nil {
				result.AddFailure(fmt.Sprintf("measured subjects: %v", err))
				_, _ = fmt.Fprintf(out, "%s measured subjects: %v\n", doctor.FailMark, err)
			} else {
				_, _ = fmt.Fprintf(out, "%s measured subjects: %d configured\n", doctor.PassMark, len(cfg.Measured.Subjects))
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&checkRemote, "remote", false, "Also check that the measured-data server answers")

	return cmd
}

func doctorConfig(cfg config.Config) doctor.Config {
	dcfg := doctor.Config{
		Dirs:         []string{cfg.Paths.OutputDir, cfg.Paths.AudioDir, cfg.Paths.CacheDir},
		Synthesis:    cfg.HRIR.SynthesisParams(),
		Azimuths:     cfg.HRIR.Azimuths,
		Probe:        cfg.Probe.Params(),
		ProbeFile:    filepath.Join(cfg.Paths.AudioDir, cfg.Paths.ProbeFile),
		ManifestPath: filepath.Join(cfg.Paths.OutputDir, catalog.ManifestFileName),
	}
	if subjects, err := cfg.Measured.ParsedSubjects(); err == nil && len(subjects) > 0 {
		f := fetch.Fetcher{FilePattern: cfg.Measured.FilePattern}
		dcfg.MeasuredFile = f.FileName(subjects[0].ID)
		dcfg.MeasuredReader = measured.DefaultReaders()
	}
	return dcfg
}

// probeRemote sends a HEAD request to the measured-data base URL.
func probeRemote(ctx context.Context, baseURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	_ = resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("%s answered %s", baseURL, resp.Status)
	}
	return fmt.Sprintf("%s (%s)", baseURL, resp.Status), nil
}
