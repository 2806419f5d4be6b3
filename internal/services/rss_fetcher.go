package services

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const (
	untitledItem   = "Untitled"
	unknownFeed    = "Unknown feed"
	defaultMaxItem = 20
)

// ParsedFeed is a syndication document reduced to the fields we serve.
type ParsedFeed struct {
	Title         string               `json:"title"`
	Description   string               `json:"description"`
	Link          string               `json:"link"`
	LastBuildDate time.Time            `json:"lastBuildDate"`
	Items         []NormalizedFeedItem `json:"items"`
}

type Enclosure struct {
	URL    string `json:"url"`
	Type   string `json:"type"`
	Length string `json:"length"`
}

// ItemSource tags an item with its origin in the aggregate view.
type ItemSource struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage"`
	Category     string `json:"category"`
}

type NormalizedFeedItem struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Link        string      `json:"link"`
	PubDate     time.Time   `json:"pubDate"`
	GUID        string      `json:"guid"`
	Categories  []string    `json:"categories"`
	Creator     string      `json:"creator"`
	Enclosure   *Enclosure  `json:"enclosure"`
	Source      *ItemSource `json:"source,omitempty"`
}

// FeedFetcher retrieves and normalizes one feed URL.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string, maxItems int) (*ParsedFeed, error)
}

// RSSFetcher fetches feeds over HTTP and parses RSS, Atom and JSON Feed.
type RSSFetcher struct {
	parser         *gofeed.Parser
	timeout        time.Duration
	rsshubInstance string
	now            func() time.Time
	sanitizer      *bluemonday.Policy
}

// NewRSSFetcher creates a fetcher with a per-request timeout and user agent.
func NewRSSFetcher(timeout time.Duration, userAgent, rsshubInstance string) *RSSFetcher {
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}

	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = userAgent

	return &RSSFetcher{
		parser:         parser,
		timeout:        timeout,
		rsshubInstance: rsshubInstance,
		now:            time.Now,
		sanitizer:      bluemonday.StrictPolicy(),
	}
}

// normalizeRSSURL expands rsshub://path into the configured RSSHub instance.
func (f *RSSFetcher) normalizeRSSURL(rssURL string) string {
	if !strings.HasPrefix(rssURL, "rsshub://") {
		return rssURL
	}
	instance := strings.TrimSuffix(f.rsshubInstance, "/")
	if instance == "" {
		instance = "https://rsshub.app"
	}
	return instance + "/" + strings.TrimPrefix(rssURL, "rsshub://")
}

// Fetch downloads and parses url, keeping the first maxItems items in
// document order.
func (f *RSSFetcher) Fetch(ctx context.Context, url string, maxItems int) (*ParsedFeed, error) {
	if maxItems <= 0 {
		maxItems = defaultMaxItem
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	feed, err := f.parser.ParseURLWithContext(f.normalizeRSSURL(url), ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUpstreamFetch, url, err)
	}

	now := f.now()
	parsed := &ParsedFeed{
		Title:         feed.Title,
		Description:   feed.Description,
		Link:          feed.Link,
		LastBuildDate: now,
	}
	if parsed.Title == "" {
		parsed.Title = unknownFeed
	}
	if feed.UpdatedParsed != nil {
		parsed.LastBuildDate = *feed.UpdatedParsed
	}

	items := feed.Items
	if len(items) > maxItems {
		items = items[:maxItems]
	}
	parsed.Items = make([]NormalizedFeedItem, 0, len(items))
	for _, item := range items {
		parsed.Items = append(parsed.Items, f.normalizeItem(item, now))
	}
	return parsed, nil
}

func (f *RSSFetcher) normalizeItem(item *gofeed.Item, now time.Time) NormalizedFeedItem {
	out := NormalizedFeedItem{
		Title:      strings.TrimSpace(item.Title),
		Link:       item.Link,
		GUID:       item.GUID,
		Categories: item.Categories,
		PubDate:    now,
	}
	if out.Title == "" {
		out.Title = untitledItem
	}
	// Items without a GUID are identified by their link.
	if out.GUID == "" {
		out.GUID = item.Link
	}
	if out.Categories == nil {
		out.Categories = []string{}
	}

	if item.PublishedParsed != nil {
		out.PubDate = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		out.PubDate = *item.UpdatedParsed
	}

	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}
	out.Description = f.snippet(body)

	if item.Author != nil && item.Author.Name != "" {
		out.Creator = item.Author.Name
	} else if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		out.Creator = item.DublinCoreExt.Creator[0]
	}

	if len(item.Enclosures) > 0 {
		e := item.Enclosures[0]
		out.Enclosure = &Enclosure{URL: e.URL, Type: e.Type, Length: e.Length}
	}
	return out
}

// snippet reduces HTML to plain text on a single line.
func (f *RSSFetcher) snippet(s string) string {
	text := html.UnescapeString(f.sanitizer.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}
