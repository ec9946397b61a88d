package generate

import (
	"context"
	"fmt"
	"math"

	"github.com/user/tickerd/internal/types"
)

// alertThresholdPct is the minimum relative change that warrants a
// campaign alert.
const alertThresholdPct = 10.0

// CampaignAlert flags campaigns whose metrics moved sharply since the
// previous reading. Findings land in the performance stream.
type CampaignAlert struct{}

func NewCampaignAlert() *CampaignAlert { return &CampaignAlert{} }

func (*CampaignAlert) Name() string             { return "campaign_alert" }
func (*CampaignAlert) Category() types.Category { return types.CategoryPerformance }

func (*CampaignAlert) Generate(_ context.Context, _ types.UserID, in Inputs) ([]types.Finding, error) {
	var findings []types.Finding
	for _, m := range in.Campaigns {
		change := m.ChangePct()
		if math.Abs(change) < alertThresholdPct {
			continue
		}

		positive := change > 0
		severity := "low"
		priority := 3
		if math.Abs(change) >= 25 {
			severity = "high"
			priority = 2
		}

		direction := "exceeded"
		icon := "Award"
		if !positive {
			direction = "fell short of"
			icon = "AlertTriangle"
		}

		findings = append(findings, types.Finding{
			Title:       fmt.Sprintf("Campaign alert: %s", m.Campaign),
			Description: fmt.Sprintf("%q %s its previous %s by %.0f%%", m.Campaign, direction, m.Metric, math.Abs(change)),
			Icon:        icon,
			Priority:    priority,
			Kind:        "alert",
			Confidence:  1, // computed directly from recorded metrics
			Severity:    severity,
			Positive:    positive,
			Metrics: map[string]any{
				"metric":   m.Metric,
				"value":    m.Current,
				"previous": m.Previous,
				"change":   change,
			},
		})
	}
	return findings, nil
}

// SystemHealth reports platform degradation as performance findings. It
// emits nothing while the system is healthy.
type SystemHealth struct {
	// MaxErrorRate and MaxP99Latency are the healthy-state ceilings.
	MaxErrorRate  float64
	MaxP99Latency float64
}

func NewSystemHealth() *SystemHealth {
	return &SystemHealth{MaxErrorRate: 0.05, MaxP99Latency: 2000}
}

func (*SystemHealth) Name() string             { return "system_health" }
func (*SystemHealth) Category() types.Category { return types.CategoryPerformance }

func (g *SystemHealth) Generate(_ context.Context, _ types.UserID, in Inputs) ([]types.Finding, error) {
	if in.System == nil {
		return nil, nil
	}

	var findings []types.Finding
	if in.System.ErrorRate > g.MaxErrorRate {
		findings = append(findings, types.Finding{
			Title:       "Elevated error rate",
			Description: fmt.Sprintf("%.1f%% of requests are failing (threshold %.1f%%)", in.System.ErrorRate*100, g.MaxErrorRate*100),
			Icon:        "AlertTriangle",
			Priority:    1,
			Kind:        "alert",
			Confidence:  1,
			Severity:    "high",
			Metrics:     map[string]any{"metric": "error_rate", "value": in.System.ErrorRate},
		})
	}
	if in.System.P99Latency > g.MaxP99Latency {
		findings = append(findings, types.Finding{
			Title:       "Slow responses",
			Description: fmt.Sprintf("p99 latency is %.0fms (threshold %.0fms)", in.System.P99Latency, g.MaxP99Latency),
			Icon:        "Clock",
			Priority:    2,
			Kind:        "alert",
			Confidence:  1,
			Severity:    "medium",
			Metrics:     map[string]any{"metric": "p99_latency_ms", "value": in.System.P99Latency},
		})
	}
	return findings, nil
}
