// Package fetch downloads measured subject files into a local cache.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LockFileName is the checksum manifest kept next to cached files.
const LockFileName = "fetch-manifest.lock.json"

// ErrNotFound is returned when the remote has no file for a subject.
var ErrNotFound = errors.New("subject file not found")

// AccessDeniedError reports a 401/403 from the remote.
type AccessDeniedError struct {
	URL    string
	Status int
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for %s (HTTP %d)", e.URL, e.Status)
}

// SubjectError ties a failure to the subject and step that produced it.
type SubjectError struct {
	SubjectID string
	Op        string
	Err       error
}

func (e *SubjectError) Error() string {
	return fmt.Sprintf("subject %s: %s: %v", e.SubjectID, e.Op, e.Err)
}

func (e *SubjectError) Unwrap() error { return e.Err }

// Fetcher resolves subject ids to cached local files, downloading on a miss.
// A Fetcher is safe for concurrent use.
type Fetcher struct {
	BaseURL     string
	CacheDir    string
	FilePattern string // fmt pattern with one %s for the subject id
	Client      *http.Client
	Logger      *slog.Logger

	mu sync.Mutex // guards the lock manifest
}

type lockManifest struct {
	BaseURL   string                `json:"baseUrl"`
	Generated string                `json:"generated"`
	Files     map[string]lockRecord `json:"files"`
}

type lockRecord struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// FileName returns the remote and cached file name for a subject.
func (f *Fetcher) FileName(subjectID string) string {
	pattern := f.FilePattern
	if pattern == "" {
		pattern = "subject_%s.sofa"
	}
	return fmt.Sprintf(pattern, subjectID)
}

// LocalPath is where the subject's file lives once cached.
func (f *Fetcher) LocalPath(subjectID string) string {
	return filepath.Join(f.CacheDir, f.FileName(subjectID))
}

// URL is the remote location of the subject's file.
func (f *Fetcher) URL(subjectID string) string {
	return strings.TrimRight(f.BaseURL, "/") + "/" + url.PathEscape(f.FileName(subjectID))
}

// Resolve returns the local path of the subject's file. A cached file whose
// checksum still matches the lock manifest is returned without touching the
// network; a cached file that no longer matches is downloaded again.
func (f *Fetcher) Resolve(ctx context.Context, subjectID string) (string, error) {
	if err := checkSubjectID(subjectID); err != nil {
		return "", &SubjectError{SubjectID: subjectID, Op: "resolve", Err: err}
	}
	if f.BaseURL == "" || f.CacheDir == "" {
		return "", &SubjectError{SubjectID: subjectID, Op: "resolve", Err: errors.New("base url and cache dir are required")}
	}
	log := f.logger().With(slog.String("subject", subjectID))

	if err := os.MkdirAll(f.CacheDir, 0o755); err != nil {
		return "", &SubjectError{SubjectID: subjectID, Op: "cache", Err: fmt.Errorf("create cache dir: %w", err)}
	}

	name := f.FileName(subjectID)
	local := f.LocalPath(subjectID)

	hit, err := f.cached(name, local)
	if err != nil {
		return "", &SubjectError{SubjectID: subjectID, Op: "cache", Err: err}
	}
	if hit {
		log.Debug("cache hit", slog.String("path", local))
		return local, nil
	}

	src := f.URL(subjectID)
	log.Info("downloading subject", slog.String("url", src), slog.String("path", local))
	start := time.Now()
	sum, size, err := f.download(ctx, src, local, log)
	if err != nil {
		return "", &SubjectError{SubjectID: subjectID, Op: "download", Err: err}
	}
	log.Info("downloaded subject",
		slog.Int64("bytes", size),
		slog.String("sha256", sum),
		slog.Duration("elapsed", time.Since(start)))

	if err := f.record(name, lockRecord{SHA256: sum, Size: size}); err != nil {
		return "", &SubjectError{SubjectID: subjectID, Op: "cache", Err: err}
	}
	return local, nil
}

// cached reports whether local can be used as is. A file with no lock record
// is adopted and its checksum recorded.
func (f *Fetcher) cached(name, local string) (bool, error) {
	fi, err := os.Stat(local)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat cached file: %w", err)
	}
	if fi.IsDir() {
		return false, fmt.Errorf("expected file at %s, found directory", local)
	}

	actual, err := fileSHA256(local)
	if err != nil {
		return false, err
	}

	f.mu.Lock()
	lock := readLockManifest(f.lockPath())
	f.mu.Unlock()

	rec, ok := lock.Files[name]
	if !ok {
		return true, f.record(name, lockRecord{SHA256: actual, Size: fi.Size()})
	}
	if rec.SHA256 != actual {
		f.logger().Warn("cached file checksum mismatch, refetching",
			slog.String("path", local),
			slog.String("expected", rec.SHA256),
			slog.String("actual", actual))
		return false, nil
	}
	return true, nil
}

func (f *Fetcher) download(ctx context.Context, src, outPath string, log *slog.Logger) (string, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", 0, &AccessDeniedError{URL: src, Status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return "", 0, fmt.Errorf("%w: %s", ErrNotFound, src)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", 0, fmt.Errorf("download failed for %s: %s", src, resp.Status)
	}

	tmp := outPath + ".tmp"
	fh, err := os.Create(tmp)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}

	h := sha256.New()
	pw := &progressWriter{total: resp.ContentLength, log: log, last: time.Now()}
	written, err := io.Copy(io.MultiWriter(fh, h, pw), resp.Body)
	if err != nil {
		_ = fh.Close()
		_ = os.Remove(tmp)
		return "", 0, fmt.Errorf("download read failed: %w", err)
	}
	if err := fh.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return "", 0, fmt.Errorf("move temp file into place: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), written, nil
}

type progressWriter struct {
	total   int64
	written int64
	last    time.Time
	log     *slog.Logger
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if time.Since(p.last) > 700*time.Millisecond {
		if p.total > 0 {
			p.log.Debug("download progress",
				slog.Float64("percent", float64(p.written)*100/float64(p.total)),
				slog.Int64("bytes", p.written))
		} else {
			p.log.Debug("download progress", slog.Int64("bytes", p.written))
		}
		p.last = time.Now()
	}
	return len(b), nil
}

func (f *Fetcher) record(name string, rec lockRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.lockPath()
	lock := readLockManifest(path)
	lock.BaseURL = f.BaseURL
	lock.Generated = time.Now().UTC().Format(time.RFC3339)
	lock.Files[name] = rec
	return writeLockManifest(path, lock)
}

func (f *Fetcher) lockPath() string {
	return filepath.Join(f.CacheDir, LockFileName)
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func checkSubjectID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("empty subject id")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("subject id %q must not contain path elements", id)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("read file for checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func readLockManifest(path string) lockManifest {
	out := lockManifest{Files: map[string]lockRecord{}}
	b, err := os.ReadFile(path)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return lockManifest{Files: map[string]lockRecord{}}
	}
	if out.Files == nil {
		out.Files = map[string]lockRecord{}
	}
	return out
}

func writeLockManifest(path string, lock lockManifest) error {
	b, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lock manifest: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write lock manifest: %w", err)
	}
	return nil
}
