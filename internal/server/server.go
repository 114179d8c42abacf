package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/example/go-hrtf-lab/internal/catalog"
	"github.com/example/go-hrtf-lab/internal/config"
	"github.com/example/go-hrtf-lab/internal/hrir"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// SyntheticSubject is the subject name that selects the generated dataset.
const SyntheticSubject = "synthetic"

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithRequestTimeout sets the per-request generation deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	outputDir string
	assets    Assets
	opts      options
	log       *slog.Logger

	mu       sync.Mutex
	measured map[string]hrir.Dataset // loaded subject datasets by id
}

// NewHandler returns an http.Handler serving the playback assets: datasets
// from outputDir, the generated synthetic dataset and the probe WAV.
func NewHandler(outputDir string, assets Assets, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		outputDir: outputDir,
		assets:    assets,
		opts:      opts,
		log:       opts.logger,
		measured:  make(map[string]hrir.Dataset),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /hrir/subjects.json", h.handleSubjects)
	mux.HandleFunc("GET /hrir/synthetic.json", h.handleSynthetic)
	mux.HandleFunc("GET /hrir/nearest", h.handleNearest)
	mux.HandleFunc("GET /hrir/{file}", h.handleDatasetFile)
	mux.HandleFunc("GET /audio/probe.wav", h.handleProbe)
	return h.logRequests(mux)
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

// handleSubjects serves the manifest; with no conversions run yet the list
// is empty and clients fall back to the synthetic dataset.
func (h *handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	m, err := catalog.ReadManifest(filepath.Join(h.outputDir, catalog.ManifestFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusOK, catalog.Manifest{})
			return
		}
		h.log.ErrorContext(r.Context(), "read manifest failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "manifest unreadable")
		return
	}
	if m == nil {
		m = catalog.Manifest{}
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) handleSynthetic(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	_, b, err := h.assets.SyntheticDataset(ctx)
	if err != nil {
		h.generationFailed(w, r, "synthetic dataset", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (h *handler) handleProbe(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	wav, err := h.assets.ProbeWAV(ctx)
	if err != nil {
		h.generationFailed(w, r, "probe", err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

func (h *handler) handleDatasetFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	f, err := os.Open(filepath.Join(h.outputDir, name))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil || fi.IsDir() {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	http.ServeContent(w, r, name, fi.ModTime(), f)
}

type nearestResponse struct {
	SubjectID string     `json:"subjectId"`
	Requested float64    `json:"requestedAzimuth"`
	Rate      int        `json:"sampleRate"`
	Entry     hrir.Entry `json:"entry"`
}

func (h *handler) handleNearest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("azimuth")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "azimuth query parameter is required")
		return
	}
	az, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(az) || math.IsInf(az, 0) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid azimuth %q", raw))
		return
	}

	subject := q.Get("subject")
	if subject == "" {
		subject = SyntheticSubject
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	d, err := h.dataset(ctx, subject)
	if err != nil {
		if errors.Is(err, errUnknownSubject) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		h.generationFailed(w, r, "dataset "+subject, err)
		return
	}

	entry, ok := d.Closest(az)
	if !ok {
		writeError(w, http.StatusNotFound, "dataset has no entries")
		return
	}
	writeJSON(w, http.StatusOK, nearestResponse{
		SubjectID: subject,
		Requested: az,
		Rate:      d.SampleRate,
		Entry:     entry,
	})
}

var errUnknownSubject = errors.New("unknown subject")

func (h *handler) dataset(ctx context.Context, subject string) (hrir.Dataset, error) {
	if subject == SyntheticSubject {
		d, _, err := h.assets.SyntheticDataset(ctx)
		return d, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if d, ok := h.measured[subject]; ok {
		return d, nil
	}

	m, err := catalog.ReadManifest(filepath.Join(h.outputDir, catalog.ManifestFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return hrir.Dataset{}, err
	}
	rec, ok := m.Find(subject)
	if !ok {
		return hrir.Dataset{}, fmt.Errorf("%w %q", errUnknownSubject, subject)
	}
	d, err := hrir.ReadFile(filepath.Join(h.outputDir, filepath.Base(rec.File)))
	if err != nil {
		return hrir.Dataset{}, err
	}
	h.measured[subject] = d
	return d, nil
}

func (h *handler) generationFailed(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		h.log.WarnContext(r.Context(), "generation timed out",
			slog.String("asset", what),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusGatewayTimeout, what+" timed out")
		return
	}
	h.log.ErrorContext(r.Context(), "generation failed",
		slog.String("asset", what),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		h.log.InfoContext(r.Context(), "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int("bytes", rec.bytes),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server: net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	assets          Assets
	shutdownTimeout time.Duration
	log             *slog.Logger
}

// New returns a server for cfg. A nil assets is built from cfg at Start.
func New(cfg config.Config, assets Assets) *Server {
	return &Server{
		cfg:             cfg,
		assets:          assets,
		shutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
		log:             slog.Default(),
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the logger passed to the handler.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.log = l
	return s
}

func (s *Server) Start(ctx context.Context) error {
	assets, err := s.runtimeAssets()
	if err != nil {
		return err
	}

	h := NewHandler(s.cfg.Paths.OutputDir, assets,
		WithRequestTimeout(s.cfg.Server.RequestTimeoutDuration()),
		WithLogger(s.log),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.log.Info("listening", slog.String("addr", s.cfg.Server.ListenAddr), slog.String("output_dir", s.cfg.Paths.OutputDir))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func (s *Server) runtimeAssets() (Assets, error) {
	if s.assets != nil {
		return s.assets, nil
	}
	grid, err := s.cfg.HRIR.Grid()
	if err != nil {
		return nil, err
	}
	a, err := NewGeneratedAssets(s.cfg.HRIR.SynthesisParams(), grid, s.cfg.Probe.Params(), s.cfg.HRIR.Workers, s.log)
	if err != nil {
		return nil, fmt.Errorf("initialize assets: %w", err)
	}
	return a, nil
}

// ProbeHTTP checks that a server answers /health at addr. A listen
// address without a host (":8080") is probed on loopback.
func ProbeHTTP(ctx context.Context, addr string) error {
	if host, port, err := net.SplitHostPort(addr); err == nil && host == "" {
		addr = net.JoinHostPort("127.0.0.1", port)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
