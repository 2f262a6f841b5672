// Package filesystem provides the durable pattern repositories: the
// deprecated status-partitioned layout and the unified per-category
// layout it migrated to, plus the format-detecting factory.
package filesystem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/driftdev/drift/domain/pattern"
)

const (
	// patternsDirName is the directory under the storage root that
	// holds pattern shard files.
	patternsDirName = "patterns"

	// legacyVersion is the schema version of status-partitioned files.
	legacyVersion = "1.0.0"

	// unifiedVersion is the schema version of per-category files.
	unifiedVersion = "2.0.0"

	// formatMarkerName records the on-disk layout version so format
	// detection does not rely on structural sniffing alone.
	formatMarkerName = ".format"

	dirPerm  = 0o750
	filePerm = 0o640
)

// unifiedFile is the on-disk shape of a per-category shard. Status
// lives inside each pattern record.
type unifiedFile struct {
	Version  string             `json:"version"`
	Category pattern.Category   `json:"category"`
	Patterns []*pattern.Pattern `json:"patterns"`
}

// legacyFile is the on-disk shape of a status-partitioned shard. The
// entries omit category and status; both are reconstructed from the
// file's position in the tree.
type legacyFile struct {
	Version     string            `json:"version"`
	Category    pattern.Category  `json:"category"`
	Patterns    []json.RawMessage `json:"patterns"`
	LastUpdated string            `json:"lastUpdated"`
}

// writeJSONFile writes v as indented JSON via a temp file and rename,
// so a crash mid-write cannot leave a truncated shard behind.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()              // #nosec G104 -- best-effort cleanup in error path
		os.Remove(tmpName)       // #nosec G104 -- best-effort cleanup in error path
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) // #nosec G104 -- best-effort cleanup in error path
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		os.Remove(tmpName) // #nosec G104 -- best-effort cleanup in error path
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName) // #nosec G104 -- best-effort cleanup in error path
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// readUnifiedFile loads a per-category shard.
func readUnifiedFile(path string) (*unifiedFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from the configured root
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var f unifiedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

// readLegacyFile loads a status-partitioned shard and reconstructs the
// full pattern records from the directory position.
func readLegacyFile(path string, status pattern.Status) ([]*pattern.Pattern, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from the configured root
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var f legacyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	category := f.Category
	if category == "" {
		category = categoryFromFilename(path)
	}

	patterns := make([]*pattern.Pattern, 0, len(f.Patterns))
	for _, raw := range f.Patterns {
		var p pattern.Pattern
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("parse pattern in %s: %w", path, err)
		}
		p.Category = category
		p.Status = status
		if p.ConfidenceLevel == "" {
			p.ConfidenceLevel = pattern.LevelForConfidence(p.Confidence)
		}
		patterns = append(patterns, &p)
	}
	return patterns, nil
}

// legacyEntry marshals a pattern without its category and status keys,
// matching the legacy file schema.
func legacyEntry(p *pattern.Pattern) (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	delete(fields, "category")
	delete(fields, "status")

	return json.Marshal(fields)
}

// categoryFromFilename recovers the category from a shard filename.
func categoryFromFilename(path string) pattern.Category {
	name := filepath.Base(path)
	return pattern.Category(strings.TrimSuffix(name, filepath.Ext(name)))
}

// isShardFile reports whether the directory entry looks like a pattern
// shard (a regular, non-hidden .json file).
func isShardFile(entry os.DirEntry) bool {
	if entry.IsDir() {
		return false
	}
	name := entry.Name()
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

// nowStamp returns the timestamp written into legacy lastUpdated.
func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
