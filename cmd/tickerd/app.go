package main

import (
	"fmt"
	"os"
	"time"

	"github.com/user/tickerd/internal/config"
	"github.com/user/tickerd/internal/feed"
	"github.com/user/tickerd/internal/generate"
	"github.com/user/tickerd/internal/refresh"
	"github.com/user/tickerd/internal/source"
	"github.com/user/tickerd/internal/store"
	"github.com/user/tickerd/internal/ticker"
)

// buildService assembles the full engine: store, adapters, generators,
// orchestrator, and queue. signals may be nil when no generator inputs
// are available.
func buildService(cfg *config.Config, signals refresh.SignalFunc) (*ticker.Service, *store.SQLite, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	adapters := source.NewRegistry()
	adapters.Register(source.NewHackerNews())
	adapters.Register(source.NewRSSFeed("rss"))

	generators := generate.NewRegistry()
	generators.Register(generate.NewCampaignAlert())
	generators.Register(generate.NewSystemHealth())
	generators.Register(generate.NewPerformanceTrend())
	generators.Register(generate.NewContentGap())

	orch := refresh.NewOrchestrator(st, adapters, generators, signals)
	if cfg.Refresh.FetchTimeoutSecs > 0 {
		orch.SetFetchTimeout(time.Duration(cfg.Refresh.FetchTimeoutSecs) * time.Second)
	}

	maxConcurrent := int64(cfg.Refresh.MaxConcurrent)
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	queue := refresh.NewQueue(maxConcurrent)

	svc := ticker.New(st, feed.New(st, st, st), orch, queue)
	if cfg.Refresh.StalenessMinutes > 0 {
		svc.SetStalenessWindow(time.Duration(cfg.Refresh.StalenessMinutes) * time.Minute)
	}
	return svc, st, nil
}
