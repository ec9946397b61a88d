package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/tickerd/internal/types"
)

const (
	hackerNewsBaseURL = "https://hacker-news.firebaseio.com/v0"
	// hnFetchParallelism bounds concurrent per-story requests.
	hnFetchParallelism = 5
	maxHNTitleChars    = 100
)

// HackerNews fetches top stories from the Hacker News API and admits the
// ones passing the configured score threshold and keyword allow-list.
type HackerNews struct {
	baseURL string
	client  *http.Client
	retry   *RetryPolicy
}

// NewHackerNews creates the Hacker News adapter.
func NewHackerNews() *HackerNews {
	return &HackerNews{
		baseURL: hackerNewsBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		retry:   DefaultRetryPolicy(),
	}
}

func (h *HackerNews) Name() string        { return "hacker_news" }
func (h *HackerNews) Description() string { return "Top stories from the Hacker News API" }

type hnStory struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
}

// Fetch pulls the current top-story IDs, then loads stories concurrently
// until the configured number of candidates has been admitted.
func (h *HackerNews) Fetch(ctx context.Context, cfg FetchConfig) ([]*types.ItemDraft, error) {
	base := h.baseURL
	if cfg.Endpoint != "" {
		base = cfg.Endpoint
	}

	var ids []int
	if err := h.getJSON(ctx, base+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("fetch top stories: %w", err)
	}

	// Over-fetch a few screens of stories; the score and keyword gates
	// reject an unknown fraction of them.
	probe := cfg.ItemLimit * 4
	if probe > len(ids) {
		probe = len(ids)
	}

	stories := make([]*hnStory, probe)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hnFetchParallelism)
	var mu sync.Mutex
	for i, id := range ids[:probe] {
		g.Go(func() error {
			var story hnStory
			if err := h.getJSON(gctx, fmt.Sprintf("%s/item/%d.json", base, id), &story); err != nil {
				return fmt.Errorf("fetch story %d: %w", id, err)
			}
			mu.Lock()
			stories[i] = &story
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var drafts []*types.ItemDraft
	for _, story := range stories {
		if story == nil || story.Title == "" {
			continue
		}
		if story.Score < cfg.MinScore || !cfg.Admit(story.Title) {
			continue
		}

		title := story.Title
		if len(title) > maxHNTitleChars {
			title = title[:maxHNTitleChars]
		}
		drafts = append(drafts, &types.ItemDraft{
			Category:    types.CategoryGeneral,
			Title:       "HN: " + title,
			Description: fmt.Sprintf("%d points · %d comments", story.Score, story.Descendants),
			Icon:        "TrendingUp",
			Type:        types.DisplayInfo,
			Priority:    3,
			Origin:      h.Name(),
			ExternalID:  strconv.Itoa(story.ID),
			Payload: map[string]any{
				"source": h.Name(),
				"url":    story.URL,
				"hn_id":  story.ID,
				"score":  story.Score,
			},
		})
		if len(drafts) == cfg.ItemLimit {
			break
		}
	}
	return drafts, nil
}

func (h *HackerNews) getJSON(ctx context.Context, url string, out any) error {
	return h.retry.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := h.client.Do(req)
		if err != nil {
			return fmt.Errorf("request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("hacker news API error (status %d)", resp.StatusCode)
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
		return nil
	})
}
