package application

import (
	"context"
	"math"
	"time"

	"github.com/driftdev/drift/domain/pattern"
)

// Status is the aggregate state of the knowledge base.
type Status struct {
	TotalPatterns int                      `json:"totalPatterns"`
	ByStatus      map[pattern.Status]int   `json:"byStatus"`
	ByCategory    map[pattern.Category]int `json:"byCategory"`

	// HealthScore is 0-100, monotonic in approvals and confidence:
	// more approved patterns and higher confidence never lower it.
	HealthScore int `json:"healthScore"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// CategorySummary describes one category of the knowledge base.
type CategorySummary struct {
	Category            pattern.Category `json:"category"`
	Count               int              `json:"count"`
	ApprovedCount       int              `json:"approvedCount"`
	DiscoveredCount     int              `json:"discoveredCount"`
	IgnoredCount        int              `json:"ignoredCount"`
	HighConfidenceCount int              `json:"highConfidenceCount"`
	AverageConfidence   float64          `json:"averageConfidence"`
}

// GetStatus returns the aggregate status, served from the service's
// own short-TTL cache. The cache is independent of any repository
// cache and is invalidated by every mutating service method, so a
// write is reflected in the very next GetStatus call.
func (s *Service) GetStatus(ctx context.Context) (*Status, error) {
	s.mu.Lock()
	if s.cachedStatus != nil && time.Now().Before(s.statusExpires) {
		cached := *s.cachedStatus
		s.mu.Unlock()
		return &cached, nil
	}
	s.mu.Unlock()

	status, err := s.computeStatus(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cachedStatus = status
	s.statusExpires = time.Now().Add(s.statusTTL)
	s.mu.Unlock()

	result := *status
	return &result, nil
}

func (s *Service) computeStatus(ctx context.Context) (*Status, error) {
	summaries, err := s.repo.Summaries(ctx, nil)
	if err != nil {
		return nil, err
	}

	status := &Status{
		ByStatus:    make(map[pattern.Status]int),
		ByCategory:  make(map[pattern.Category]int),
		GeneratedAt: time.Now().UTC(),
	}

	var confidenceSum float64
	for _, summary := range summaries {
		status.TotalPatterns++
		status.ByStatus[summary.Status]++
		status.ByCategory[summary.Category]++
		confidenceSum += summary.Confidence
	}

	status.HealthScore = healthScore(
		status.TotalPatterns,
		status.ByStatus[pattern.StatusApproved],
		confidenceSum,
	)
	return status, nil
}

// healthScore weights approval ratio at 60% and average confidence at
// 40%. An empty knowledge base scores 100: there is nothing to
// violate yet.
func healthScore(total, approved int, confidenceSum float64) int {
	if total == 0 {
		return 100
	}

	approvalRatio := float64(approved) / float64(total)
	avgConfidence := confidenceSum / float64(total)

	score := math.Round(approvalRatio*60 + avgConfidence*40)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return int(score)
}

// invalidateStatus drops the cached aggregate status.
func (s *Service) invalidateStatus() {
	s.mu.Lock()
	s.cachedStatus = nil
	s.mu.Unlock()
}

// GetCategories returns a summary per category that holds at least one
// pattern, in the canonical category order.
func (s *Service) GetCategories(ctx context.Context) ([]CategorySummary, error) {
	summaries, err := s.repo.Summaries(ctx, nil)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[pattern.Category]*CategorySummary)
	confidenceSums := make(map[pattern.Category]float64)

	for _, summary := range summaries {
		entry, ok := byCategory[summary.Category]
		if !ok {
			entry = &CategorySummary{Category: summary.Category}
			byCategory[summary.Category] = entry
		}

		entry.Count++
		confidenceSums[summary.Category] += summary.Confidence

		switch summary.Status {
		case pattern.StatusApproved:
			entry.ApprovedCount++
		case pattern.StatusDiscovered:
			entry.DiscoveredCount++
		case pattern.StatusIgnored:
			entry.IgnoredCount++
		}
		if summary.ConfidenceLevel == pattern.ConfidenceHigh {
			entry.HighConfidenceCount++
		}
	}

	var results []CategorySummary
	for _, category := range pattern.Categories() {
		entry, ok := byCategory[category]
		if !ok {
			continue
		}
		entry.AverageConfidence = confidenceSums[category] / float64(entry.Count)
		results = append(results, *entry)
	}
	return results, nil
}
