package source

import (
	"context"
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultHNFeedURL is the Hacker News front page RSS feed.
const DefaultHNFeedURL = "https://hnrss.org/frontpage"

// maxFeedItems bounds how many front-page entries are scored.
const maxFeedItems = 30

// HackerNews samples attention on the Hacker News front page by counting
// feed items whose title matches any keyword and no exclusion.
type HackerNews struct {
	feedURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHackerNews creates the Hacker News adapter. An empty feedURL selects
// the public front-page feed.
func NewHackerNews(feedURL string, logger *slog.Logger) *HackerNews {
	if feedURL == "" {
		feedURL = DefaultHNFeedURL
	}
	return &HackerNews{
		feedURL: feedURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger.With(slog.String("component", "source"), slog.String("channel", "hn_frontpage")),
	}
}

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title string `xml:"title"`
}

// Fetch returns the number of matching front-page items. Any transport or
// parse failure is logged and scored as zero activity.
func (h *HackerNews) Fetch(ctx context.Context, keywords, exclusions []string) float64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.feedURL, nil)
	if err != nil {
		h.logger.WarnContext(ctx, "build feed request failed", slog.String("error", err.Error()))
		return 0
	}
	req.Header.Set("User-Agent", "AttentionMarkets/1.0")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.WarnContext(ctx, "feed fetch failed", slog.String("error", err.Error()))
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.WarnContext(ctx, "feed fetch returned non-200", slog.Int("status", resp.StatusCode))
		return 0
	}

	var feed rssFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		h.logger.WarnContext(ctx, "feed parse failed", slog.String("error", err.Error()))
		return 0
	}

	items := feed.Channel.Items
	if len(items) > maxFeedItems {
		items = items[:maxFeedItems]
	}

	score := 0.0
	for _, item := range items {
		title := strings.ToLower(item.Title)
		if matchesAny(title, exclusions) {
			continue
		}
		if matchesAny(title, keywords) {
			score++
		}
	}
	return score
}

func matchesAny(text string, terms []string) bool {
	for _, t := range terms {
		if t == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
