package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ManifestFileName is the manifest written next to the subject datasets.
const ManifestFileName = "subjects.json"

// Record is one manifest line.
type Record struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	File  string `json:"file"`
}

// Manifest lists converted subjects in configured order.
type Manifest []Record

// Find returns the record for id.
func (m Manifest) Find(id string) (Record, bool) {
	for _, r := range m {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// WriteManifest writes m as indented JSON. An empty manifest is written as
// [] rather than null.
func WriteManifest(path string, m Manifest) error {
	if m == nil {
		m = Manifest{}
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", filepath.Base(path), err)
	}
	return m, nil
}
