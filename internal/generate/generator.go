// Package generate holds the analyzers that turn domain signals into
// candidate feed findings. Each generator is one strategy; the refresh
// orchestrator maps its findings into canonical items tagged with the
// generator's category.
package generate

import (
	"context"

	"github.com/user/tickerd/internal/types"
)

// Generator produces candidate findings for one user from the supplied
// domain signals. Generators never persist anything.
type Generator interface {
	Name() string
	// Category decides whether the generator's findings land in the
	// insights or performance stream.
	Category() types.Category
	Generate(ctx context.Context, userID types.UserID, in Inputs) ([]types.Finding, error)
}

// Inputs carries the domain signals generators analyze. Callers populate
// whatever slice applies; generators ignore what they do not consume.
type Inputs struct {
	Campaigns []CampaignMetric `json:"campaigns,omitempty"`
	Content   []ContentStat    `json:"content,omitempty"`
	System    *SystemStatus    `json:"system,omitempty"`
}

// CampaignMetric is one tracked campaign metric with its previous reading.
type CampaignMetric struct {
	Campaign string  `json:"campaign"`
	Metric   string  `json:"metric"`
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
}

// ChangePct returns the relative change from the previous reading, in
// percent. A zero previous reading yields zero to avoid blowing up on new
// campaigns.
func (m CampaignMetric) ChangePct() float64 {
	if m.Previous == 0 {
		return 0
	}
	return (m.Current - m.Previous) / m.Previous * 100
}

// ContentStat aggregates engagement for one content format.
type ContentStat struct {
	Format         string  `json:"format"`
	Published      int     `json:"published"`
	EngagementRate float64 `json:"engagement_rate"`
}

// SystemStatus is a snapshot of platform health.
type SystemStatus struct {
	ErrorRate  float64 `json:"error_rate"`     // fraction of failed requests, 0..1
	P99Latency float64 `json:"p99_latency_ms"` // milliseconds
	QueueDepth int     `json:"queue_depth"`
}

// Registry maps generator names to implementations.
type Registry struct {
	generators map[string]Generator
}

// NewRegistry creates an empty generator registry.
func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator)}
}

// Register adds a generator to the registry.
func (r *Registry) Register(g Generator) {
	r.generators[g.Name()] = g
}

// All returns all registered generators.
func (r *Registry) All() []Generator {
	out := make([]Generator, 0, len(r.generators))
	for _, g := range r.generators {
		out = append(out, g)
	}
	return out
}
