package generate

import (
	"context"
	"fmt"
	"math"

	"github.com/user/tickerd/internal/types"
)

// PerformanceTrend surfaces sustained metric improvements as insight
// suggestions, e.g. recommending budget shifts toward climbing campaigns.
type PerformanceTrend struct {
	// MinChangePct is the smallest improvement worth suggesting action on.
	MinChangePct float64
}

func NewPerformanceTrend() *PerformanceTrend {
	return &PerformanceTrend{MinChangePct: 15}
}

func (*PerformanceTrend) Name() string             { return "performance_trend" }
func (*PerformanceTrend) Category() types.Category { return types.CategoryInsights }

func (g *PerformanceTrend) Generate(_ context.Context, _ types.UserID, in Inputs) ([]types.Finding, error) {
	var findings []types.Finding
	for _, m := range in.Campaigns {
		change := m.ChangePct()
		if change < g.MinChangePct {
			continue
		}

		// Confidence grows with the size of the move but never reaches
		// certainty: a trend is a hint, not a measurement.
		confidence := 0.6 + math.Min(change/100, 0.35)

		findings = append(findings, types.Finding{
			Title:       "Campaign performance opportunity",
			Description: fmt.Sprintf("%s for %q is up %.0f%%, consider shifting budget toward it", m.Metric, m.Campaign, change),
			Icon:        "TrendingUp",
			Priority:    2,
			Kind:        "opportunity",
			Confidence:  confidence,
			ActionItems: []string{
				fmt.Sprintf("Review %q results", m.Campaign),
				"Adjust budget allocation",
			},
			Positive: true,
			Metrics: map[string]any{
				"metric": m.Metric,
				"change": change,
			},
		})
	}
	return findings, nil
}

// ContentGap compares engagement across content formats and suggests
// producing more of the format the audience responds to but the user
// publishes least.
type ContentGap struct{}

func NewContentGap() *ContentGap { return &ContentGap{} }

func (*ContentGap) Name() string             { return "content_gap" }
func (*ContentGap) Category() types.Category { return types.CategoryInsights }

func (*ContentGap) Generate(_ context.Context, _ types.UserID, in Inputs) ([]types.Finding, error) {
	if len(in.Content) < 2 {
		return nil, nil
	}

	// The gap is the format with the best engagement rate that is also
	// under-published relative to the median.
	best := in.Content[0]
	totalPublished := 0
	for _, c := range in.Content {
		totalPublished += c.Published
		if c.EngagementRate > best.EngagementRate {
			best = c
		}
	}
	avgPublished := float64(totalPublished) / float64(len(in.Content))
	if float64(best.Published) >= avgPublished {
		return nil, nil
	}

	return []types.Finding{{
		Title:       "Content gap identified",
		Description: fmt.Sprintf("Your audience engages most with %s content, consider producing more of it", best.Format),
		Icon:        "Lightbulb",
		Priority:    3,
		Kind:        "suggestion",
		Confidence:  0.75,
		ActionItems: []string{
			fmt.Sprintf("Plan %s content", best.Format),
			"Review top-performing pieces",
		},
		Positive: true,
		Metrics: map[string]any{
			"format":          best.Format,
			"engagement_rate": best.EngagementRate,
			"published":       best.Published,
		},
	}}, nil
}
