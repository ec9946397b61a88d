package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/tickerd/internal/types"
)

// RSSFeed fetches an RSS 2.0 feed and normalizes its entries. Descriptions
// arrive as HTML from most publishers; they are converted to markdown and
// truncated before admission.
type RSSFeed struct {
	name   string
	client *http.Client
	retry  *RetryPolicy
}

// NewRSSFeed creates an RSS adapter registered under the given source name.
func NewRSSFeed(name string) *RSSFeed {
	return &RSSFeed{
		name:   name,
		client: &http.Client{Timeout: 15 * time.Second},
		retry:  DefaultRetryPolicy(),
	}
}

func (r *RSSFeed) Name() string        { return r.name }
func (r *RSSFeed) Description() string { return "Entries from an RSS 2.0 feed" }

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

// Fetch loads the configured feed URL and admits entries passing the
// keyword allow-list, up to the item limit. RSS feeds carry no popularity
// metric, so min_score does not apply here.
func (r *RSSFeed) Fetch(ctx context.Context, cfg FetchConfig) ([]*types.ItemDraft, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("rss source %q has no endpoint configured", r.name)
	}

	var doc rssDocument
	err := r.retry.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.Endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", "tickerd/1.0")

		resp, err := r.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch feed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("feed error (status %d)", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		doc = rssDocument{}
		if err := xml.Unmarshal(body, &doc); err != nil {
			return fmt.Errorf("parse feed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var drafts []*types.ItemDraft
	for _, entry := range doc.Channel.Items {
		if entry.Title == "" || !cfg.Admit(entry.Title) {
			continue
		}

		title := entry.Title
		if len(title) > types.MaxTitleLen {
			title = title[:types.MaxTitleLen]
		}

		externalID := entry.GUID
		if externalID == "" {
			externalID = entry.Link
		}

		drafts = append(drafts, &types.ItemDraft{
			Category:    types.CategoryGeneral,
			Title:       title,
			Description: normalizeDescription(entry.Description, title),
			Icon:        "Newspaper",
			Type:        types.DisplayInfo,
			Priority:    3,
			Origin:      r.name,
			ExternalID:  externalID,
			Payload: map[string]any{
				"source":    r.name,
				"url":       entry.Link,
				"published": entry.PubDate,
			},
		})
		if len(drafts) == cfg.ItemLimit {
			break
		}
	}
	return drafts, nil
}

// normalizeDescription strips feed HTML down to plain markdown bounded by
// the item description limit. Unconvertible markup falls back to the title.
func normalizeDescription(html, fallback string) string {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil || strings.TrimSpace(md) == "" {
		md = fallback
	}
	md = strings.TrimSpace(md)
	if len(md) > types.MaxDescriptionLen {
		md = md[:types.MaxDescriptionLen]
	}
	return md
}
