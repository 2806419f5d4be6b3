package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"comnet/internal/config"
	"comnet/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	newsCommunityName        = "news"
	newsCommunityDisplayName = "News"
	newsCommunityDescription = "Automatically generated news posts"
	newsTitlePrefix          = "📰 "
)

type IngestionResult struct {
	ItemsFetched int `json:"itemsFetched"`
	PostsCreated int `json:"postsCreated"`
}

// NewsIngestService persists feed items once per GUID and turns them into
// posts in every network that has a subscriber to the item's channel.
type NewsIngestService struct {
	db      *gorm.DB
	news    *config.NewsConfig
	fetcher FeedFetcher
	now     func() time.Time
}

func NewNewsIngestService(db *gorm.DB, news *config.NewsConfig, fetcher FeedFetcher, now func() time.Time) *NewsIngestService {
	if now == nil {
		now = time.Now
	}
	return &NewsIngestService{db: db, news: news, fetcher: fetcher, now: now}
}

// InitializeChannels inserts a channel row for every enabled source that
// does not have one yet.
func (s *NewsIngestService) InitializeChannels(ctx context.Context) error {
	for _, src := range s.news.EnabledSources() {
		channel := models.NewsChannel{
			SourceID:     src.ID,
			Name:         src.Name,
			Description:  src.Description,
			ProfileImage: src.ProfileImage,
			RSSURL:       src.RSSURL,
			Category:     src.Category,
			Language:     src.Language,
			IsActive:     true,
		}
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_id"}}, DoNothing: true}).
			Create(&channel).Error
		if err != nil {
			return persistenceErr("create news channel "+src.ID, err)
		}
	}
	return nil
}

func (s *NewsIngestService) maxItemsFor(channel models.NewsChannel) int {
	if src, ok := s.news.FindEnabled(channel.SourceID); ok {
		return src.MaxItems
	}
	return config.DefaultMaxItems
}

// FetchChannel stores up to the ingest batch size of the newest items whose
// GUID the channel has never seen and returns how many rows were inserted.
func (s *NewsIngestService) FetchChannel(ctx context.Context, channel models.NewsChannel) (int, error) {
	feed, err := s.fetcher.Fetch(ctx, channel.RSSURL, s.maxItemsFor(channel))
	if err != nil {
		if !errors.Is(err, ErrUpstreamFetch) {
			err = fmt.Errorf("%w: %w", ErrUpstreamFetch, err)
		}
		return 0, err
	}

	candidates := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.GUID != "" {
			candidates = append(candidates, item.GUID)
		}
	}

	// Only the GUIDs in this document are looked up, not the whole ledger.
	var seen []string
	if len(candidates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.NewsItem{}).
			Where("channel_id = ? AND original_guid IN ?", channel.ID, candidates).
			Pluck("original_guid", &seen).Error; err != nil {
			return 0, persistenceErr("load guids", err)
		}
	}
	known := make(map[string]struct{}, len(seen)+len(candidates))
	for _, guid := range seen {
		known[guid] = struct{}{}
	}

	var fresh []models.NewsItem
	for _, item := range feed.Items {
		if item.GUID == "" {
			continue
		}
		if _, ok := known[item.GUID]; ok {
			continue
		}
		known[item.GUID] = struct{}{}
		fresh = append(fresh, models.NewsItem{
			ChannelID:    channel.ID,
			OriginalGUID: item.GUID,
			Title:        item.Title,
			Content:      item.Description,
			LinkURL:      item.Link,
			PubDate:      item.PubDate,
		})
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].PubDate.After(fresh[j].PubDate)
	})
	if batch := s.news.Settings.IngestBatchSize; len(fresh) > batch {
		fresh = fresh[:batch]
	}

	var inserted int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fresh) > 0 {
			res := tx.Omit(clause.Associations).
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "channel_id"}, {Name: "original_guid"}},
					DoNothing: true,
				}).
				Create(&fresh)
			if res.Error != nil {
				return persistenceErr("insert news items", res.Error)
			}
			inserted = res.RowsAffected
		}

		now := s.now()
		if err := tx.Model(&models.NewsChannel{}).Where("id = ?", channel.ID).
			Update("last_fetched_at", &now).Error; err != nil {
			return persistenceErr("update last_fetched_at", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.Debug().Str("source_id", channel.SourceID).Int64("inserted", inserted).Msg("News channel fetched")
	return int(inserted), nil
}

type newsSubscriber struct {
	UserID    uint
	NetworkID uuid.UUID
}

// MaterializePending fans unprocessed items out into posts, newest first.
// Items that fail stay unprocessed for the next run. A cancelled ctx ends the
// run with ctx.Err() and the count of posts created so far.
func (s *NewsIngestService) MaterializePending(ctx context.Context) (int, error) {
	var pending []models.NewsItem
	err := s.db.WithContext(ctx).
		Select("id").
		Where("is_processed = ?", false).
		Order("pub_date DESC, id DESC").
		Limit(s.news.Settings.ConvertBatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, persistenceErr("load pending news items", err)
	}

	created := 0
	for _, item := range pending {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		n, err := s.materializeItem(ctx, item.ID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return created, ctxErr
			}
			log.Error().Err(err).Uint("news_item_id", item.ID).Msg("News item materialization failed")
			continue
		}
		created += n
	}
	return created, nil
}

// materializeItem creates at most one post per subscriber network and marks
// the item processed in the same transaction.
func (s *NewsIngestService) materializeItem(ctx context.Context, itemID uint) (int, error) {
	created := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.NewsItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, itemID).Error; err != nil {
			return persistenceErr("load news item", err)
		}
		if item.IsProcessed {
			return nil
		}

		var subscribers []newsSubscriber
		err := tx.Table("news_subscriptions").
			Select("users.id AS user_id, users.network_id AS network_id").
			Joins("JOIN users ON users.id = news_subscriptions.user_id").
			Where("news_subscriptions.channel_id = ?", item.ChannelID).
			Order("news_subscriptions.id ASC").
			Scan(&subscribers).Error
		if err != nil {
			return persistenceErr("load subscribers", err)
		}

		// First subscriber per network authors that network's post.
		var networks []newsSubscriber
		authors := make(map[uuid.UUID]struct{})
		for _, sub := range subscribers {
			if _, ok := authors[sub.NetworkID]; ok {
				continue
			}
			authors[sub.NetworkID] = struct{}{}
			networks = append(networks, sub)
		}

		for _, author := range networks {
			community, err := ensureNewsCommunity(tx, author)
			if err != nil {
				return err
			}

			newsItemID := item.ID
			post := models.Post{
				Title:       newsTitlePrefix + item.Title,
				Content:     item.Content,
				ContentType: models.ContentTypeLink,
				LinkURL:     item.LinkURL,
				AuthorID:    author.UserID,
				CommunityID: community.ID,
				NetworkID:   author.NetworkID,
				SourceType:  models.SourceTypeNews,
				NewsItemID:  &newsItemID,
			}
			if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
				return persistenceErr("create news post", err)
			}
			created++
		}

		if err := tx.Model(&models.NewsItem{}).Where("id = ?", item.ID).
			Update("is_processed", true).Error; err != nil {
			return persistenceErr("mark news item processed", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

func ensureNewsCommunity(tx *gorm.DB, creator newsSubscriber) (*models.Community, error) {
	var community models.Community
	err := tx.Where("name = ? AND network_id = ?", newsCommunityName, creator.NetworkID).
		Attrs(models.Community{
			Name:        newsCommunityName,
			DisplayName: newsCommunityDisplayName,
			Description: newsCommunityDescription,
			CreatorID:   creator.UserID,
			NetworkID:   creator.NetworkID,
		}).
		FirstOrCreate(&community).Error
	if err != nil {
		return nil, persistenceErr("ensure news community", err)
	}
	return &community, nil
}

// RunIngestion fetches every active channel and then materializes pending
// items. An unreachable feed is logged and skipped; storage errors abort.
func (s *NewsIngestService) RunIngestion(ctx context.Context) (*IngestionResult, error) {
	if err := s.InitializeChannels(ctx); err != nil {
		return nil, err
	}

	var channels []models.NewsChannel
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("id ASC").Find(&channels).Error; err != nil {
		return nil, persistenceErr("load news channels", err)
	}

	var fetched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.news.Settings.FetchWorkers)
	for _, channel := range channels {
		g.Go(func() error {
			n, err := s.FetchChannel(gctx, channel)
			if errors.Is(err, ErrUpstreamFetch) {
				log.Warn().Err(err).Str("source_id", channel.SourceID).Msg("Skipping news channel")
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch channel %s: %w", channel.SourceID, err)
			}
			fetched.Add(int64(n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	posts, err := s.MaterializePending(ctx)
	if err != nil {
		return nil, err
	}

	result := &IngestionResult{ItemsFetched: int(fetched.Load()), PostsCreated: posts}
	log.Info().Int("items_fetched", result.ItemsFetched).Int("posts_created", result.PostsCreated).Msg("News ingestion finished")
	return result, nil
}
