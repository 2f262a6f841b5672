package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/driftdev/drift/application"
	"github.com/driftdev/drift/domain/pattern"
)

// registerTools wires the drift tool set into the MCP server.
func (s *Server) registerTools() {
	s.srv.Tool("drift_status").
		Description("Report the aggregate state of the pattern knowledge base: totals per status and category plus a 0-100 health score.").
		Handler(s.handleStatus)

	s.srv.Tool("drift_categories").
		Description("List per-category summaries of the knowledge base.").
		Handler(s.handleCategories)

	s.srv.Tool("drift_list_patterns").
		Description("List patterns with optional category, status, sorting, and pagination.").
		Handler(s.handleListPatterns)

	s.srv.Tool("drift_get_pattern").
		Description("Fetch one pattern by ID, enriched with code examples and related patterns.").
		Handler(s.handleGetPattern)

	s.srv.Tool("drift_search").
		Description("Search patterns by name or description, optionally narrowed to categories.").
		Handler(s.handleSearch)

	s.srv.Tool("drift_approve_pattern").
		Description("Approve a discovered or ignored pattern, promoting it to an enforced convention.").
		Handler(s.handleApprove)

	s.srv.Tool("drift_ignore_pattern").
		Description("Ignore a discovered pattern so it stops surfacing.").
		Handler(s.handleIgnore)
}

func (s *Server) handleStatus(ctx context.Context, _ json.RawMessage) (string, error) {
	status, err := s.service.GetStatus(ctx)
	if err != nil {
		return "", err
	}
	return marshalResult(status)
}

func (s *Server) handleCategories(ctx context.Context, _ json.RawMessage) (string, error) {
	categories, err := s.service.GetCategories(ctx)
	if err != nil {
		return "", err
	}
	return marshalResult(categories)
}

type listPatternsRequest struct {
	Category string `json:"category,omitempty"`
	Status   string `json:"status,omitempty"`
	SortBy   string `json:"sortBy,omitempty"`
	Desc     bool   `json:"desc,omitempty"`
	Offset   int    `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (s *Server) handleListPatterns(ctx context.Context, input json.RawMessage) (string, error) {
	var req listPatternsRequest
	if err := decodeInput(input, &req); err != nil {
		return "", err
	}

	opts := pattern.QueryOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
	}
	if req.Category != "" {
		category := pattern.Category(req.Category)
		if !category.IsValid() {
			return "", fmt.Errorf("unknown category %q", req.Category)
		}
		opts.Filter.Categories = []pattern.Category{category}
	}
	if req.Status != "" {
		status := pattern.Status(req.Status)
		if !status.IsValid() {
			return "", fmt.Errorf("unknown status %q", req.Status)
		}
		opts.Filter.Statuses = []pattern.Status{status}
	}
	if req.SortBy != "" {
		opts.Sort = &pattern.Sort{
			Field:      pattern.SortField(req.SortBy),
			Descending: req.Desc,
		}
	}

	result, err := s.service.Query(ctx, opts)
	if err != nil {
		return "", err
	}
	return marshalResult(result)
}

type getPatternRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleGetPattern(ctx context.Context, input json.RawMessage) (string, error) {
	var req getPatternRequest
	if err := decodeInput(input, &req); err != nil {
		return "", err
	}
	if req.ID == "" {
		return "", fmt.Errorf("id is required")
	}

	result, err := s.service.GetPatternWithExamples(ctx, req.ID)
	if err != nil {
		return "", err
	}
	return marshalResult(result)
}

type searchRequest struct {
	Term       string   `json:"term"`
	Categories []string `json:"categories,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

func (s *Server) handleSearch(ctx context.Context, input json.RawMessage) (string, error) {
	var req searchRequest
	if err := decodeInput(input, &req); err != nil {
		return "", err
	}
	if req.Term == "" {
		return "", fmt.Errorf("term is required")
	}

	opts := application.SearchOptions{Limit: req.Limit}
	for _, raw := range req.Categories {
		category := pattern.Category(raw)
		if !category.IsValid() {
			return "", fmt.Errorf("unknown category %q", raw)
		}
		opts.Categories = append(opts.Categories, category)
	}

	patterns, err := s.service.Search(ctx, req.Term, opts)
	if err != nil {
		return "", err
	}
	return marshalResult(patterns)
}

type transitionRequest struct {
	ID         string   `json:"id,omitempty"`
	IDs        []string `json:"ids,omitempty"`
	ApprovedBy string   `json:"approvedBy,omitempty"`
}

// transitionResponse reports a bulk transition, with failures rendered
// as strings so the response stays plain JSON.
type transitionResponse struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed,omitempty"`
}

func (s *Server) handleApprove(ctx context.Context, input json.RawMessage) (string, error) {
	req, err := decodeTransition(input)
	if err != nil {
		return "", err
	}
	results := s.service.ApproveMany(ctx, req.ids(), req.ApprovedBy)
	return marshalTransition(results)
}

func (s *Server) handleIgnore(ctx context.Context, input json.RawMessage) (string, error) {
	req, err := decodeTransition(input)
	if err != nil {
		return "", err
	}
	results := s.service.IgnoreMany(ctx, req.ids())
	return marshalTransition(results)
}

func (r *transitionRequest) ids() []string {
	if len(r.IDs) > 0 {
		return r.IDs
	}
	return []string{r.ID}
}

func decodeTransition(input json.RawMessage) (*transitionRequest, error) {
	var req transitionRequest
	if err := decodeInput(input, &req); err != nil {
		return nil, err
	}
	if req.ID == "" && len(req.IDs) == 0 {
		return nil, fmt.Errorf("id or ids is required")
	}
	return &req, nil
}

func marshalTransition(results []application.BatchResult) (string, error) {
	resp := transitionResponse{Succeeded: []string{}}
	for _, result := range results {
		if result.Err != nil {
			if resp.Failed == nil {
				resp.Failed = make(map[string]string)
			}
			resp.Failed[result.ID] = result.Err.Error()
			continue
		}
		resp.Succeeded = append(resp.Succeeded, result.ID)
	}
	return marshalResult(resp)
}

func decodeInput(input json.RawMessage, v any) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid tool input: %w", err)
	}
	return nil
}

func marshalResult(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}
