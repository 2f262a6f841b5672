package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/driftdev/drift/application"
	"github.com/driftdev/drift/domain/pattern"
	"github.com/driftdev/drift/infrastructure/storage/filesystem"
)

func TestApp_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)

	if err := app.ExecuteWithArgs(context.Background(), []string{"version"}); err != nil {
		t.Fatalf("version command failed: %v", err)
	}

	if output := stdout.String(); !strings.Contains(output, "drift version") {
		t.Errorf("version output missing 'drift version', got: %s", output)
	}
}

func TestApp_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)

	if err := app.ExecuteWithArgs(context.Background(), []string{"--help"}); err != nil {
		t.Fatalf("help command failed: %v", err)
	}

	output := stdout.String()
	for _, want := range []string{"knowledge base", "status", "approve", "serve"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q, got: %s", want, output)
		}
	}
}

func TestApp_StatusEmptyProject(t *testing.T) {
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)

	err := app.ExecuteWithArgs(context.Background(), []string{"--root", dir, "status", "--json"})
	if err != nil {
		t.Fatalf("status command failed: %v", err)
	}

	var status application.Status
	if err := json.Unmarshal(stdout.Bytes(), &status); err != nil {
		t.Fatalf("status output is not JSON: %v\n%s", err, stdout.String())
	}
	if status.TotalPatterns != 0 {
		t.Errorf("TotalPatterns = %d, want 0", status.TotalPatterns)
	}
	if status.HealthScore != 100 {
		t.Errorf("HealthScore = %d, want 100 for an empty knowledge base", status.HealthScore)
	}
}

// seedProject writes patterns into a project's unified store and
// returns their IDs.
func seedProject(t *testing.T, dir string, patterns ...*pattern.Pattern) []string {
	t.Helper()

	ctx := context.Background()
	store := filesystem.NewUnifiedStore(dir+"/.drift", filesystem.UnifiedOptions{})
	if err := store.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	ids := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if err := store.Add(ctx, p); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		ids = append(ids, p.ID)
	}
	if err := store.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return ids
}

func TestApp_ListAndApprove(t *testing.T) {
	dir := t.TempDir()
	ids := seedProject(t, dir,
		pattern.New(pattern.CreateInput{
			Category:   pattern.CategoryAPI,
			Name:       "RouteNaming",
			Confidence: 0.9,
		}),
		pattern.New(pattern.CreateInput{
			Category:   pattern.CategoryErrors,
			Name:       "ErrorWrapping",
			Confidence: 0.6,
		}),
	)

	t.Run("list json", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		app := New().WithOutput(&stdout, &stderr)

		err := app.ExecuteWithArgs(context.Background(), []string{"--root", dir, "list", "--json"})
		if err != nil {
			t.Fatalf("list command failed: %v", err)
		}

		var result pattern.QueryResult
		if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
			t.Fatalf("list output is not JSON: %v", err)
		}
		if result.Total != 2 {
			t.Errorf("Total = %d, want 2", result.Total)
		}
	})

	t.Run("list unknown category", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		app := New().WithOutput(&stdout, &stderr)

		err := app.ExecuteWithArgs(context.Background(), []string{"--root", dir, "list", "--category", "nonsense"})
		if err == nil {
			t.Error("expected error for unknown category")
		}
	})

	t.Run("approve persists", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		app := New().WithOutput(&stdout, &stderr)

		err := app.ExecuteWithArgs(context.Background(), []string{"--root", dir, "approve", ids[0], "--by", "reviewer"})
		if err != nil {
			t.Fatalf("approve command failed: %v", err)
		}

		ctx := context.Background()
		store := filesystem.NewUnifiedStore(dir+"/.drift", filesystem.UnifiedOptions{})
		if err := store.Initialize(ctx); err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		p, err := store.Get(ctx, ids[0])
		if err != nil {
			t.Fatal(err)
		}
		if p == nil || p.Status != pattern.StatusApproved {
			t.Errorf("pattern after approve = %+v, want approved", p)
		}
		if p.ApprovedBy != "reviewer" {
			t.Errorf("ApprovedBy = %q, want reviewer", p.ApprovedBy)
		}
	})

	t.Run("approve all missing fails", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		app := New().WithOutput(&stdout, &stderr)

		err := app.ExecuteWithArgs(context.Background(), []string{"--root", dir, "approve", "no-such-id"})
		if err == nil {
			t.Error("expected error when every ID fails")
		}
	})
}

func TestApp_Migrate(t *testing.T) {
	dir := t.TempDir()
	driftDir := dir + "/.drift"

	ctx := context.Background()
	legacy := filesystem.NewLegacyStore(driftDir)
	if err := legacy.Initialize(ctx); err != nil {
		t.Fatal(err)
	}
	p := pattern.New(pattern.CreateInput{
		Category:   pattern.CategoryTesting,
		Name:       "TableTests",
		Confidence: 0.8,
	})
	if err := legacy.Add(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := legacy.SaveAll(ctx); err != nil {
		t.Fatal(err)
	}
	if err := legacy.Close(); err != nil {
		t.Fatal(err)
	}

	if format := filesystem.DetectFormat(driftDir); format != filesystem.FormatLegacy {
		t.Fatalf("DetectFormat() = %v, want legacy before migration", format)
	}

	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	if err := app.ExecuteWithArgs(context.Background(), []string{"--root", dir, "migrate"}); err != nil {
		t.Fatalf("migrate command failed: %v", err)
	}

	if format := filesystem.DetectFormat(driftDir); format != filesystem.FormatUnified {
		t.Errorf("DetectFormat() = %v, want unified after migration", format)
	}
	if !strings.Contains(stdout.String(), "Migrated 1 patterns") {
		t.Errorf("migrate output = %s", stdout.String())
	}

	// Second run is a no-op.
	stdout.Reset()
	app = New().WithOutput(&stdout, &stderr)
	if err := app.ExecuteWithArgs(context.Background(), []string{"--root", dir, "migrate"}); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "nothing to do") {
		t.Errorf("second migrate output = %s", stdout.String())
	}
}
