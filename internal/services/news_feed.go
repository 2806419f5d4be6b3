package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"comnet/internal/config"
	"comnet/internal/utils"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// FeedCacheEntry is the outcome of the latest fetch attempt for a source.
// Feed is nil and Error is set when that attempt failed.
type FeedCacheEntry struct {
	config.FeedSource
	Feed        *ParsedFeed `json:"feed"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Error       string      `json:"error,omitempty"`
}

// FeedCache stores one entry per source together with its fetch time.
// The default implementation is process-local; replicas do not share it.
type FeedCache interface {
	Get(key string) (FeedCacheEntry, time.Time, bool)
	Set(key string, entry FeedCacheEntry, fetchedAt time.Time)
	Purge()
}

// NewMemoryFeedCache returns an LRU-backed FeedCache.
func NewMemoryFeedCache(size int) (FeedCache, error) {
	cache, err := utils.NewTimedCache[FeedCacheEntry](size)
	if err != nil {
		return nil, err
	}
	return cache, nil
}

type AggregateFeed struct {
	Items            []NormalizedFeedItem `json:"items"`
	SourcesSucceeded int                  `json:"totalSources"`
	LastUpdated      time.Time            `json:"lastUpdated"`
}

type RefreshResult struct {
	SourcesRefreshed int       `json:"sourcesRefreshed"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewsFeedService serves configured feeds on demand through a time-windowed
// cache. An upstream failure only affects its own source.
type NewsFeedService struct {
	news    *config.NewsConfig
	fetcher FeedFetcher
	cache   FeedCache
	now     func() time.Time
	group   singleflight.Group
}

func NewNewsFeedService(news *config.NewsConfig, fetcher FeedFetcher, cache FeedCache, now func() time.Time) *NewsFeedService {
	if now == nil {
		now = time.Now
	}
	return &NewsFeedService{news: news, fetcher: fetcher, cache: cache, now: now}
}

func cacheKey(src config.FeedSource) string {
	return src.ID + "_" + src.RSSURL
}

// ListSources returns the enabled sources.
func (s *NewsFeedService) ListSources() []config.FeedSource {
	sources := s.news.EnabledSources()
	if sources == nil {
		sources = []config.FeedSource{}
	}
	return sources
}

// lookup returns the cached entry while it is younger than the cache window
// and otherwise fetches, records and returns a new one. The fetch is shared
// by concurrent callers and is detached from ctx, so a caller that gives up
// only returns ctx.Err() and never leaves its cancellation in the cache.
func (s *NewsFeedService) lookup(ctx context.Context, src config.FeedSource) (FeedCacheEntry, error) {
	key := cacheKey(src)
	if entry, fetchedAt, ok := s.cache.Get(key); ok && s.now().Sub(fetchedAt) < s.news.Settings.CacheWindow {
		return entry, nil
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		// Another caller may have refreshed the entry while we waited.
		if entry, fetchedAt, ok := s.cache.Get(key); ok && s.now().Sub(fetchedAt) < s.news.Settings.CacheWindow {
			return entry, nil
		}

		fetchCtx := context.WithoutCancel(ctx)
		if timeout := s.news.Settings.FetchTimeout; timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(fetchCtx, timeout)
			defer cancel()
		}

		entry := FeedCacheEntry{FeedSource: src}
		feed, err := s.fetcher.Fetch(fetchCtx, src.RSSURL, src.MaxItems)
		fetchedAt := s.now()
		entry.LastUpdated = fetchedAt
		if err != nil {
			log.Warn().Err(err).Str("source_id", src.ID).Msg("Feed fetch failed")
			entry.Error = err.Error()
		} else {
			entry.Feed = feed
		}
		s.cache.Set(key, entry, fetchedAt)
		return entry, nil
	})

	select {
	case res := <-ch:
		return res.Val.(FeedCacheEntry), nil
	case <-ctx.Done():
		return FeedCacheEntry{}, ctx.Err()
	}
}

// GetSourceFeed returns the cache entry for one enabled source.
func (s *NewsFeedService) GetSourceFeed(ctx context.Context, sourceID string) (*FeedCacheEntry, error) {
	src, ok := s.news.FindEnabled(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: news source %q", ErrNotFound, sourceID)
	}
	entry, err := s.lookup(ctx, src)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// lookupAll resolves every source concurrently. A source the caller stopped
// waiting for comes back with Error set and no feed.
func (s *NewsFeedService) lookupAll(ctx context.Context, sources []config.FeedSource) []FeedCacheEntry {
	entries := make([]FeedCacheEntry, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			entry, err := s.lookup(ctx, src)
			if err != nil {
				entry = FeedCacheEntry{FeedSource: src, Error: err.Error()}
			}
			entries[i] = entry
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

// GetAggregateFeed merges the items of every source whose latest fetch
// succeeded, newest first, truncated to maxTotalItems.
func (s *NewsFeedService) GetAggregateFeed(ctx context.Context, maxTotalItems int) (*AggregateFeed, error) {
	if maxTotalItems <= 0 {
		maxTotalItems = s.news.Settings.MaxTotalItems
	}

	entries := s.lookupAll(ctx, s.news.EnabledSources())

	result := &AggregateFeed{Items: []NormalizedFeedItem{}}
	for _, entry := range entries {
		if entry.Feed == nil || entry.Error != "" {
			continue
		}
		result.SourcesSucceeded++
		origin := &ItemSource{
			ID:           entry.ID,
			Name:         entry.Name,
			ProfileImage: entry.ProfileImage,
			Category:     entry.Category,
		}
		for _, item := range entry.Feed.Items {
			item.Source = origin
			result.Items = append(result.Items, item)
		}
	}

	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].PubDate.After(result.Items[j].PubDate)
	})
	if len(result.Items) > maxTotalItems {
		result.Items = result.Items[:maxTotalItems]
	}
	result.LastUpdated = s.now()
	return result, nil
}

// RefreshAllSources drops every cached entry and refetches all enabled
// sources before returning.
func (s *NewsFeedService) RefreshAllSources(ctx context.Context) (*RefreshResult, error) {
	s.cache.Purge()

	sources := s.news.EnabledSources()
	s.lookupAll(ctx, sources)

	return &RefreshResult{SourcesRefreshed: len(sources), Timestamp: s.now()}, nil
}
