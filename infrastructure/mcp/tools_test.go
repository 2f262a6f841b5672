package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/driftdev/drift/application"
	"github.com/driftdev/drift/domain/pattern"
	"github.com/driftdev/drift/infrastructure/storage/memory"
)

func newTestServer(t *testing.T, patterns ...*pattern.Pattern) *Server {
	t.Helper()

	repo := memory.NewRepository()
	ctx := context.Background()
	if err := repo.Initialize(ctx); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	for _, p := range patterns {
		if err := repo.Add(ctx, p); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	return NewServer(ServerConfig{
		Name:    "drift-test",
		Version: "0.0.0",
		Service: application.NewService(repo),
	})
}

func testPattern(name string, category pattern.Category, confidence float64) *pattern.Pattern {
	return pattern.New(pattern.CreateInput{
		Category:    category,
		Name:        name,
		Description: name + " convention",
		Confidence:  confidence,
	})
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	if srv.Server() == nil {
		t.Fatal("Server() returned nil")
	}
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t,
		testPattern("CamelCase", pattern.CategoryStructural, 0.9),
		testPattern("NoPanics", pattern.CategoryErrors, 0.6),
	)

	out, err := srv.handleStatus(context.Background(), nil)
	if err != nil {
		t.Fatalf("handleStatus() error = %v", err)
	}

	var status application.Status
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if status.TotalPatterns != 2 {
		t.Errorf("TotalPatterns = %d, want 2", status.TotalPatterns)
	}
	if status.ByStatus[pattern.StatusDiscovered] != 2 {
		t.Errorf("ByStatus[discovered] = %d, want 2", status.ByStatus[pattern.StatusDiscovered])
	}
}

func TestHandleListPatterns(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t,
		testPattern("A", pattern.CategoryAPI, 0.5),
		testPattern("B", pattern.CategoryAPI, 0.7),
		testPattern("C", pattern.CategoryErrors, 0.9),
	)

	t.Run("filter by category", func(t *testing.T) {
		t.Parallel()

		out, err := srv.handleListPatterns(context.Background(), json.RawMessage(`{"category":"api"}`))
		if err != nil {
			t.Fatalf("handleListPatterns() error = %v", err)
		}

		var result pattern.QueryResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatal(err)
		}
		if result.Total != 2 {
			t.Errorf("Total = %d, want 2", result.Total)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		t.Parallel()

		out, err := srv.handleListPatterns(context.Background(), json.RawMessage(`{"offset":1,"limit":1}`))
		if err != nil {
			t.Fatalf("handleListPatterns() error = %v", err)
		}

		var result pattern.QueryResult
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatal(err)
		}
		if len(result.Patterns) != 1 || result.Total != 3 || !result.HasMore {
			t.Errorf("got %d patterns, total %d, hasMore %v", len(result.Patterns), result.Total, result.HasMore)
		}
	})

	t.Run("unknown category rejected", func(t *testing.T) {
		t.Parallel()

		if _, err := srv.handleListPatterns(context.Background(), json.RawMessage(`{"category":"nonsense"}`)); err == nil {
			t.Error("expected error for unknown category")
		}
	})
}

func TestHandleGetPattern(t *testing.T) {
	t.Parallel()

	p := testPattern("A", pattern.CategoryAPI, 0.5)
	srv := newTestServer(t, p)

	out, err := srv.handleGetPattern(context.Background(), json.RawMessage(`{"id":"`+p.ID+`"}`))
	if err != nil {
		t.Fatalf("handleGetPattern() error = %v", err)
	}

	var result application.PatternWithExamples
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatal(err)
	}
	if result.Pattern == nil || result.Pattern.ID != p.ID {
		t.Errorf("Pattern = %+v, want ID %s", result.Pattern, p.ID)
	}

	t.Run("missing id", func(t *testing.T) {
		t.Parallel()

		if _, err := srv.handleGetPattern(context.Background(), json.RawMessage(`{}`)); err == nil {
			t.Error("expected error for missing id")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()

		if _, err := srv.handleGetPattern(context.Background(), json.RawMessage(`{"id":"nope"}`)); err == nil {
			t.Error("expected error for unknown id")
		}
	})
}

func TestHandleSearch(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t,
		testPattern("ErrorWrapping", pattern.CategoryErrors, 0.8),
		testPattern("RouteNaming", pattern.CategoryAPI, 0.6),
	)

	out, err := srv.handleSearch(context.Background(), json.RawMessage(`{"term":"wrapping"}`))
	if err != nil {
		t.Fatalf("handleSearch() error = %v", err)
	}

	var patterns []*pattern.Pattern
	if err := json.Unmarshal([]byte(out), &patterns); err != nil {
		t.Fatal(err)
	}
	if len(patterns) != 1 || patterns[0].Name != "ErrorWrapping" {
		t.Errorf("got %d results, want the wrapping pattern", len(patterns))
	}

	if _, err := srv.handleSearch(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("expected error for missing term")
	}
}

func TestHandleApproveAndIgnore(t *testing.T) {
	t.Parallel()

	a := testPattern("A", pattern.CategoryAPI, 0.5)
	b := testPattern("B", pattern.CategoryAPI, 0.7)
	srv := newTestServer(t, a, b)

	out, err := srv.handleApprove(context.Background(), json.RawMessage(`{"ids":["`+a.ID+`","missing"],"approvedBy":"dev"}`))
	if err != nil {
		t.Fatalf("handleApprove() error = %v", err)
	}

	var resp transitionResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Succeeded) != 1 || resp.Succeeded[0] != a.ID {
		t.Errorf("Succeeded = %v, want [%s]", resp.Succeeded, a.ID)
	}
	if _, ok := resp.Failed["missing"]; !ok {
		t.Errorf("Failed = %v, want entry for missing", resp.Failed)
	}

	// Approved patterns cannot be ignored.
	out, err = srv.handleIgnore(context.Background(), json.RawMessage(`{"id":"`+a.ID+`"}`))
	if err != nil {
		t.Fatalf("handleIgnore() error = %v", err)
	}
	resp = transitionResponse{}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Succeeded) != 0 || len(resp.Failed) != 1 {
		t.Errorf("ignore of approved pattern: succeeded %v failed %v", resp.Succeeded, resp.Failed)
	}

	if _, err := srv.handleApprove(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Error("expected error when neither id nor ids given")
	}
}
