package filestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Generation describes one rotation period's append-only entry file.
// Positions and ids of consecutive generations are contiguous.
type Generation struct {
	Seq        int        `json:"seq"`
	Path       string     `json:"path"`
	FirstID    string     `json:"first_id,omitempty"`
	LastID     string     `json:"last_id,omitempty"`
	FirstPos   int64      `json:"first_pos,omitempty"`
	LastPos    int64      `json:"last_pos,omitempty"`
	FirstTime  time.Time  `json:"first_time,omitempty"`
	LastTime   time.Time  `json:"last_time,omitempty"`
	Entries    int        `json:"entries"`
	Bytes      int64      `json:"bytes"`
	Compressed bool       `json:"compressed"`
	Archived   bool       `json:"archived,omitempty"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
}

// Closed reports whether the generation has been rotated out.
func (g *Generation) Closed() bool { return g.ClosedAt != nil }

// Manifest maps generation numbers to their files and entry ranges.
type Manifest struct {
	Generations []Generation `json:"generations"`
}

const manifestName = "manifest.json"

// loadManifest reads the manifest, returning an empty one when the file
// does not exist yet.
func loadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Manifest{}, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// writeManifest persists the manifest via write-temp-then-rename, so a
// crash mid-write never leaves a truncated manifest behind.
func writeManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	tmp := filepath.Join(dir, manifestName+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, manifestName)); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
