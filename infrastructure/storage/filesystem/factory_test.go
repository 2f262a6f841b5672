package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/driftdev/drift/domain/pattern"
)

// seedLegacy writes patterns through a legacy store and returns their
// IDs.
func seedLegacy(t *testing.T, root string, patterns ...*pattern.Pattern) []string {
	t.Helper()

	ctx := context.Background()
	store := NewLegacyStore(root)
	if err := store.Initialize(ctx); err != nil {
		t.Fatal(err)
	}

	ids := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if err := store.Add(ctx, p); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}
	if err := store.SaveAll(ctx); err != nil {
		t.Fatal(err)
	}
	return ids
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	t.Run("empty root", func(t *testing.T) {
		t.Parallel()

		if format := DetectFormat(t.TempDir()); format != FormatNone {
			t.Errorf("DetectFormat() = %v, want none", format)
		}
	})

	t.Run("legacy layout", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		seedLegacy(t, root, storePattern("A", pattern.CategoryAPI, 0.8))

		if format := DetectFormat(root); format != FormatLegacy {
			t.Errorf("DetectFormat() = %v, want legacy", format)
		}
	})

	t.Run("unified layout", func(t *testing.T) {
		t.Parallel()

		store, root := newTestStore(t, UnifiedOptions{})
		ctx := context.Background()
		if err := store.Add(ctx, storePattern("A", pattern.CategoryAPI, 0.8)); err != nil {
			t.Fatal(err)
		}
		if err := store.SaveAll(ctx); err != nil {
			t.Fatal(err)
		}

		if format := DetectFormat(root); format != FormatUnified {
			t.Errorf("DetectFormat() = %v, want unified", format)
		}
	})

	t.Run("marker file wins", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		dir := filepath.Join(root, patternsDirName)
		if err := os.MkdirAll(filepath.Join(dir, "discovered"), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, formatMarkerName), []byte(unifiedVersion+"\n"), 0o640); err != nil {
			t.Fatal(err)
		}

		if format := DetectFormat(root); format != FormatUnified {
			t.Errorf("DetectFormat() = %v, want unified per marker", format)
		}
	})
}

func TestOpen_MigratesLegacy(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ids := seedLegacy(t, root,
		storePattern("A", pattern.CategoryAPI, 0.8),
		storePattern("B", pattern.CategoryErrors, 0.5),
	)

	ctx := context.Background()
	repo, err := Open(ctx, root, OpenOptions{AutoMigrate: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repo.Close()

	for _, id := range ids {
		got, err := repo.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got == nil {
			t.Errorf("pattern %s lost in migration", id)
		}
	}

	// The legacy tree is gone and the root now reads as unified.
	if _, err := os.Stat(filepath.Join(root, patternsDirName, "discovered")); !os.IsNotExist(err) {
		t.Errorf("legacy status directory still present: %v", err)
	}
	if format := DetectFormat(root); format != FormatUnified {
		t.Errorf("DetectFormat() after migration = %v, want unified", format)
	}
}

func TestOpen_MigrationIsIdempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	seedLegacy(t, root, storePattern("A", pattern.CategoryAPI, 0.8))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		repo, err := Open(ctx, root, OpenOptions{AutoMigrate: true})
		if err != nil {
			t.Fatalf("Open() #%d error = %v", i+1, err)
		}

		count, err := repo.Count(ctx, pattern.Filter{})
		if err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("Count after open #%d = %d, want 1", i+1, count)
		}
		repo.Close()
	}

	if _, err := os.Stat(shardPath(root, pattern.CategoryAPI)); err != nil {
		t.Errorf("unified shard missing: %v", err)
	}
}

func TestOpen_MigrationKeepsNewerUnifiedRecords(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ctx := context.Background()

	// Same ID exists in both layouts with different confidence; the
	// unified copy must survive.
	legacyCopy := storePattern("A", pattern.CategoryAPI, 0.3)
	seedLegacy(t, root, legacyCopy)

	unifiedCopy := legacyCopy.Clone()
	unifiedCopy.Confidence = 0.9
	shard := unifiedFile{
		Version:  unifiedVersion,
		Category: pattern.CategoryAPI,
		Patterns: []*pattern.Pattern{unifiedCopy},
	}
	if err := writeJSONFile(shardPath(root, pattern.CategoryAPI), &shard); err != nil {
		t.Fatal(err)
	}

	store := NewUnifiedStore(root, UnifiedOptions{AutoMigrate: true})
	if err := store.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	got, err := store.Get(ctx, legacyCopy.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Confidence != 0.9 {
		t.Errorf("merged pattern = %+v, want unified copy with confidence 0.9", got)
	}
}

func TestOpen_NoMigrationServesLegacy(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ids := seedLegacy(t, root, storePattern("A", pattern.CategoryAPI, 0.8))

	ctx := context.Background()
	repo, err := Open(ctx, root, OpenOptions{AutoMigrate: false})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repo.Close()

	got, err := repo.Get(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("pattern not served from legacy store")
	}

	// The tree stays legacy.
	if format := DetectFormat(root); format != FormatLegacy {
		t.Errorf("DetectFormat() = %v, want legacy when migration is off", format)
	}
}

func TestOpen_FreshRootIsUnified(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ctx := context.Background()

	repo, err := Open(ctx, root, OpenOptions{AutoMigrate: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repo.Close()

	if format := DetectFormat(root); format != FormatUnified {
		t.Errorf("DetectFormat() = %v, want unified for a fresh root", format)
	}
}
