// Package source holds the ingestion adapters: one per external origin,
// each fetching and normalizing upstream entries into item drafts. Adapters
// never persist anything; all side effects are outbound calls.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/tickerd/internal/types"
)

// Adapter fetches candidates from one kind of external origin.
type Adapter interface {
	Name() string
	Description() string
	Fetch(ctx context.Context, cfg FetchConfig) ([]*types.ItemDraft, error)
}

const (
	DefaultItemLimit = 10
	DefaultMinScore  = 100
	maxItemLimit     = 100
)

// FetchConfig is the closed, validated per-source fetch configuration.
// The open config map persisted with a source is parsed into this struct
// once, at registration time, not on every fetch.
type FetchConfig struct {
	// Endpoint is the source's configured URL. Adapters with a well-known
	// upstream treat it as an override; feed adapters require it.
	Endpoint string
	// ItemLimit caps how many upstream candidates one fetch may admit.
	ItemLimit int
	// MinScore is the admission threshold on the origin's popularity
	// metric, where the origin has one.
	MinScore int
	// Keywords is a case-insensitive substring allow-list matched against
	// titles. Empty means admit everything.
	Keywords []string
}

// ParseFetchConfig converts a source's open config map into a FetchConfig,
// applying documented defaults and rejecting out-of-range values. Numbers
// arrive as float64 after the JSON round-trip through the store.
func ParseFetchConfig(raw map[string]any) (FetchConfig, error) {
	cfg := FetchConfig{
		ItemLimit: DefaultItemLimit,
		MinScore:  DefaultMinScore,
	}

	if v, ok := raw["item_limit"]; ok {
		n, ok := asInt(v)
		if !ok || n < 1 || n > maxItemLimit {
			return cfg, &types.ValidationError{Field: "item_limit", Reason: fmt.Sprintf("must be an integer between 1 and %d", maxItemLimit)}
		}
		cfg.ItemLimit = n
	}
	if v, ok := raw["min_score"]; ok {
		n, ok := asInt(v)
		if !ok || n < 0 {
			return cfg, &types.ValidationError{Field: "min_score", Reason: "must be a non-negative integer"}
		}
		cfg.MinScore = n
	}
	if v, ok := raw["keywords"]; ok {
		list, ok := v.([]any)
		if !ok {
			if strs, ok := v.([]string); ok {
				cfg.Keywords = strs
				return cfg, nil
			}
			return cfg, &types.ValidationError{Field: "keywords", Reason: "must be a list of strings"}
		}
		for _, e := range list {
			s, ok := e.(string)
			if !ok || s == "" {
				return cfg, &types.ValidationError{Field: "keywords", Reason: "must be a list of non-empty strings"}
			}
			cfg.Keywords = append(cfg.Keywords, s)
		}
	}
	return cfg, nil
}

// Admit reports whether a title passes the keyword allow-list.
func (c FetchConfig) Admit(title string) bool {
	if len(c.Keywords) == 0 {
		return true
	}
	lower := strings.ToLower(title)
	for _, kw := range c.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// Registry maps source names to their adapters.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Get returns an adapter by source name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// All returns all registered adapters.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}
