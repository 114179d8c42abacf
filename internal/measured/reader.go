package measured

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Reader decodes one subject's measurement file.
type Reader interface {
	Read(ctx context.Context, path string) (SubjectData, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func(ctx context.Context, path string) (SubjectData, error)

// Read calls f.
func (f ReaderFunc) Read(ctx context.Context, path string) (SubjectData, error) {
	return f(ctx, path)
}

// JSONReader reads a SubjectData document, the JSON export of a SOFA file.
type JSONReader struct{}

// Read implements Reader.
func (JSONReader) Read(ctx context.Context, path string) (SubjectData, error) {
	if err := ctx.Err(); err != nil {
		return SubjectData{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return SubjectData{}, fmt.Errorf("read measurements: %w", err)
	}
	var out SubjectData
	if err := json.Unmarshal(b, &out); err != nil {
		return SubjectData{}, fmt.Errorf("decode measurements %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// Readers dispatches on file extension.
type Readers map[string]Reader

// DefaultReaders knows the JSON rendition only; SOFA decoding is external.
func DefaultReaders() Readers {
	return Readers{".json": JSONReader{}}
}

// Supports reports whether a reader is registered for name's extension.
func (rs Readers) Supports(name string) bool {
	_, ok := rs[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Read implements Reader by extension lookup.
func (rs Readers) Read(ctx context.Context, path string) (SubjectData, error) {
	if err := CheckFormat(rs, path); err != nil {
		return SubjectData{}, err
	}
	return rs[strings.ToLower(filepath.Ext(path))].Read(ctx, path)
}

// CheckFormat returns ErrUnsupportedFormat when r declares the formats it
// supports and name is not one of them. Readers that declare nothing accept
// any name.
func CheckFormat(r Reader, name string) error {
	s, ok := r.(interface{ Supports(name string) bool })
	if !ok || s.Supports(name) {
		return nil
	}
	return fmt.Errorf("%w: %q (no reader for %q files)",
		ErrUnsupportedFormat, filepath.Base(name), strings.ToLower(filepath.Ext(name)))
}

// ReadMatrixJSON loads a Matrix from a JSON file holding "hrir_l" and
// "hrir_r", the variable names of CIPIC's hrir_final.mat.
func ReadMatrixJSON(path string) (Matrix, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Matrix{}, fmt.Errorf("read matrix: %w", err)
	}
	var m Matrix
	if err := json.Unmarshal(b, &m); err != nil {
		return Matrix{}, fmt.Errorf("decode matrix %s: %w", filepath.Base(path), err)
	}
	return m, nil
}
