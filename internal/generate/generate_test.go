package generate

import (
	"context"
	"testing"

	"github.com/user/tickerd/internal/types"
)

func TestCampaignAlertThresholds(t *testing.T) {
	in := Inputs{Campaigns: []CampaignMetric{
		{Campaign: "Authority Building", Metric: "conversions", Current: 125, Previous: 100}, // +25%, high
		{Campaign: "Steady State", Metric: "clicks", Current: 103, Previous: 100},            // +3%, ignored
		{Campaign: "Fading", Metric: "impressions", Current: 80, Previous: 100},              // -20%, low negative
	}}

	findings, err := NewCampaignAlert().Generate(context.Background(), "user-1", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}

	up := findings[0]
	if !up.Positive || up.Severity != "high" {
		t.Errorf("25%% gain should be positive/high, got %+v", up)
	}
	down := findings[1]
	if down.Positive || down.Severity != "low" {
		t.Errorf("20%% drop should be negative/low, got %+v", down)
	}
}

func TestCampaignAlertIgnoresNewCampaigns(t *testing.T) {
	in := Inputs{Campaigns: []CampaignMetric{
		{Campaign: "Brand New", Metric: "clicks", Current: 500, Previous: 0},
	}}
	findings, err := NewCampaignAlert().Generate(context.Background(), "user-1", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("campaigns without history should not alert, got %d findings", len(findings))
	}
}

func TestSystemHealthQuietWhenHealthy(t *testing.T) {
	g := NewSystemHealth()
	findings, err := g.Generate(context.Background(), "", Inputs{
		System: &SystemStatus{ErrorRate: 0.01, P99Latency: 300},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("healthy system should produce no findings, got %d", len(findings))
	}

	findings, err = g.Generate(context.Background(), "", Inputs{})
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("missing snapshot should produce no findings, got %d", len(findings))
	}
}

func TestSystemHealthDegraded(t *testing.T) {
	g := NewSystemHealth()
	findings, err := g.Generate(context.Background(), "", Inputs{
		System: &SystemStatus{ErrorRate: 0.2, P99Latency: 5000},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(findings))
	}
	if findings[0].Severity != "high" || findings[0].Priority != 1 {
		t.Errorf("error-rate finding should be high severity, got %+v", findings[0])
	}
}

func TestPerformanceTrendConfidenceBounds(t *testing.T) {
	in := Inputs{Campaigns: []CampaignMetric{
		{Campaign: "Winner", Metric: "ctr", Current: 300, Previous: 100}, // +200%
	}}

	findings, err := NewPerformanceTrend().Generate(context.Background(), "user-1", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.Confidence <= 0 || f.Confidence > 1 {
		t.Errorf("confidence out of range: %f", f.Confidence)
	}
	if len(f.ActionItems) == 0 {
		t.Error("opportunity should carry action items")
	}
	if f.Kind != "opportunity" {
		t.Errorf("unexpected kind %q", f.Kind)
	}
}

func TestContentGap(t *testing.T) {
	in := Inputs{Content: []ContentStat{
		{Format: "article", Published: 40, EngagementRate: 0.02},
		{Format: "video", Published: 3, EngagementRate: 0.09},
	}}

	findings, err := NewContentGap().Generate(context.Background(), "user-1", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	if findings[0].Metrics["format"] != "video" {
		t.Errorf("expected video gap, got %v", findings[0].Metrics["format"])
	}

	// No gap when the best format is already well covered.
	in.Content[1].Published = 100
	findings, err = NewContentGap().Generate(context.Background(), "user-1", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Errorf("well-covered format should not be a gap, got %d findings", len(findings))
	}
}

func TestGeneratorCategories(t *testing.T) {
	r := NewRegistry()
	r.Register(NewCampaignAlert())
	r.Register(NewSystemHealth())
	r.Register(NewPerformanceTrend())
	r.Register(NewContentGap())

	if len(r.All()) != 4 {
		t.Fatalf("expected 4 generators, got %d", len(r.All()))
	}
	for _, g := range r.All() {
		c := g.Category()
		if c != types.CategoryInsights && c != types.CategoryPerformance {
			t.Errorf("generator %s has non-generator category %q", g.Name(), c)
		}
	}
}
