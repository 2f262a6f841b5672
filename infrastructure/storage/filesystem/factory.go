package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftdev/drift/domain/pattern"
)

// Format identifies the on-disk layout under a storage root.
type Format string

const (
	// FormatUnified is the per-category layout, version 2.0.0.
	FormatUnified Format = "unified"

	// FormatLegacy is the status-partitioned layout, version 1.0.0.
	FormatLegacy Format = "legacy"

	// FormatNone means no pattern storage exists yet.
	FormatNone Format = "none"
)

// DetectFormat inspects a storage root and reports its layout. The
// format marker file is authoritative when present; otherwise the
// directory structure is sniffed. A tree holding both layouts (a
// half-finished migration) reports unified, since the unified shards
// are the ones a migrated store keeps authoritative.
func DetectFormat(root string) Format {
	dir := filepath.Join(root, patternsDirName)

	if marker, err := os.ReadFile(filepath.Join(dir, formatMarkerName)); err == nil { // #nosec G304 -- path is derived from the configured root
		switch strings.TrimSpace(string(marker)) {
		case unifiedVersion:
			return FormatUnified
		case legacyVersion:
			return FormatLegacy
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return FormatNone
	}

	var hasUnified, hasLegacy bool
	for _, entry := range entries {
		if isShardFile(entry) {
			hasUnified = true
			continue
		}
		if entry.IsDir() && pattern.Status(entry.Name()).IsValid() {
			hasLegacy = true
		}
	}

	switch {
	case hasUnified:
		return FormatUnified
	case hasLegacy:
		return FormatLegacy
	default:
		return FormatNone
	}
}

// OpenOptions configures Open.
type OpenOptions struct {
	// AutoMigrate imports a detected legacy tree into the unified
	// layout. When false, a legacy tree is opened read-write in its
	// original format.
	AutoMigrate bool

	// KeepLegacyFiles leaves legacy files in place when Open triggers
	// a migration.
	KeepLegacyFiles bool
}

// Open returns an initialized repository for the root, choosing the
// backend by detected format: an existing unified tree is opened
// directly, a legacy tree is either migrated into the unified layout
// or served as-is, and a fresh root initializes in unified format.
func Open(ctx context.Context, root string, opts OpenOptions) (pattern.Repository, error) {
	unifiedOpts := UnifiedOptions{KeepLegacyFiles: opts.KeepLegacyFiles}
	if DetectFormat(root) == FormatLegacy {
		if !opts.AutoMigrate {
			store := NewLegacyStore(root)
			if err := store.Initialize(ctx); err != nil {
				return nil, err
			}
			return store, nil
		}
		unifiedOpts.AutoMigrate = true
	}

	store := NewUnifiedStore(root, unifiedOpts)
	if err := store.Initialize(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
