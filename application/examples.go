package application

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/driftdev/drift/domain/pattern"
)

// maxExamples caps how many locations are rendered into code examples
// for one pattern.
const maxExamples = 5

// CodeExample is a human-readable excerpt of a pattern occurrence.
type CodeExample struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Snippet   string `json:"snippet"`
}

// PatternWithExamples is a pattern enriched with source excerpts and
// related patterns.
type PatternWithExamples struct {
	Pattern  *pattern.Pattern  `json:"pattern"`
	Examples []CodeExample     `json:"examples"`
	Related  []pattern.Summary `json:"related"`
}

// GetPatternWithExamples returns the pattern together with code
// excerpts read from the referenced source files and the summaries of
// related patterns (same category and subcategory, excluding itself).
//
// A referenced file that no longer exists on disk is skipped, never an
// error: stale locations are an expected condition between scans.
func (s *Service) GetPatternWithExamples(ctx context.Context, id string) (*PatternWithExamples, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &pattern.NotFoundError{ID: id}
	}

	result := &PatternWithExamples{
		Pattern:  p,
		Examples: []CodeExample{},
	}

	for _, loc := range p.Locations {
		if len(result.Examples) >= maxExamples {
			break
		}
		example, ok := s.extractExample(loc)
		if !ok {
			continue
		}
		result.Examples = append(result.Examples, example)
	}

	related, err := s.relatedPatterns(ctx, p)
	if err != nil {
		return nil, err
	}
	result.Related = related

	return result, nil
}

// extractExample reads the location's line range with surrounding
// context from disk. Returns ok=false when the file is missing or the
// range is out of bounds.
func (s *Service) extractExample(loc pattern.Location) (CodeExample, bool) {
	path := loc.File
	if !filepath.IsAbs(path) && s.projectRoot != "" {
		path = filepath.Join(s.projectRoot, path)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- reads project source files by design
	if err != nil {
		return CodeExample{}, false
	}

	lines := strings.Split(string(data), "\n")
	if loc.Line < 1 || loc.Line > len(lines) {
		return CodeExample{}, false
	}

	endLine := loc.EndLine
	if endLine < loc.Line {
		endLine = loc.Line
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}

	start := loc.Line - s.exampleContext
	if start < 1 {
		start = 1
	}
	end := endLine + s.exampleContext
	if end > len(lines) {
		end = len(lines)
	}

	return CodeExample{
		File:      loc.File,
		StartLine: start,
		EndLine:   end,
		Snippet:   strings.Join(lines[start-1:end], "\n"),
	}, true
}

// relatedPatterns finds patterns sharing the category and subcategory.
func (s *Service) relatedPatterns(ctx context.Context, p *pattern.Pattern) ([]pattern.Summary, error) {
	summaries, err := s.repo.Summaries(ctx, &pattern.QueryOptions{
		Filter: pattern.Filter{Categories: []pattern.Category{p.Category}},
	})
	if err != nil {
		return nil, err
	}

	var related []pattern.Summary
	for _, summary := range summaries {
		if summary.ID == p.ID || summary.Subcategory != p.Subcategory {
			continue
		}
		related = append(related, summary)
	}
	return related, nil
}
