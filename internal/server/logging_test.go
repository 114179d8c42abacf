package server_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/example/go-hrtf-lab/internal/server"
)

// capturingHandler captures all slog records during a test.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (c *capturingHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }
func (c *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
	return nil
}
func (c *capturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return c }
func (c *capturingHandler) WithGroup(name string) slog.Handler       { return c }

func (c *capturingHandler) attrMap(idx int) map[string]any {
	m := make(map[string]any)
	c.records[idx].Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value.Any()
		return true
	})
	return m
}

func TestRequests_LogMethodPathStatus(t *testing.T) {
	cap := &capturingHandler{}
	h := server.NewHandler(t.TempDir(), &stubAssets{wav: []byte("RIFF")}, server.WithLogger(slog.New(cap)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audio/probe.wav", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	var found bool
	for i := range cap.records {
		attrs := cap.attrMap(i)
		if attrs["path"] != "/audio/probe.wav" {
			continue
		}
		found = true
		if attrs["method"] != http.MethodGet {
			t.Errorf("want method=GET, got %v", attrs["method"])
		}
		if attrs["status"] != int64(http.StatusOK) {
			t.Errorf("want status=200, got %v", attrs["status"])
		}
		if _, ok := attrs["duration_ms"]; !ok {
			t.Error("want duration_ms attribute in log record")
		}
	}
	if !found {
		t.Error("no log record for the probe request")
	}
}

func TestGeneration_LogsErrorOnFailure(t *testing.T) {
	cap := &capturingHandler{}
	h := server.NewHandler(t.TempDir(), &stubAssets{err: errGenerationFailed}, server.WithLogger(slog.New(cap)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hrir/synthetic.json", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", rec.Code)
	}

	var foundError bool
	for i := range cap.records {
		if _, ok := cap.attrMap(i)["error"]; ok {
			foundError = true
		}
	}
	if !foundError {
		t.Error("want a log record with an 'error' attribute on generation failure")
	}
}

func TestSetupLogger_LevelFromString(t *testing.T) {
	cases := []struct {
		level   string
		wantLvl slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo}, // default
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			lvl, err := server.ParseLogLevel(tc.level)
			if err != nil {
				t.Fatalf("ParseLogLevel(%q) error: %v", tc.level, err)
			}
			if lvl != tc.wantLvl {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.level, lvl, tc.wantLvl)
			}
		})
	}
}

func TestSetupLogger_InvalidLevelReturnsError(t *testing.T) {
	_, err := server.ParseLogLevel("verbose")
	if err == nil {
		t.Error("want error for unknown log level")
	}
}
