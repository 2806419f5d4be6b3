package models

import (
	"time"
)

// NewsChannel is the durable row for a configured feed source.
type NewsChannel struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	SourceID      string     `gorm:"uniqueIndex;not null" json:"source_id"`
	Name          string     `gorm:"not null" json:"name"`
	Description   string     `gorm:"type:text" json:"description"`
	ProfileImage  string     `json:"profile_image"`
	RSSURL        string     `gorm:"not null" json:"rss_url"`
	Category      string     `json:"category"`
	Language      string     `gorm:"size:10" json:"language"`
	IsActive      bool       `gorm:"default:true" json:"is_active"`
	LastFetchedAt *time.Time `json:"last_fetched_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewsItem records every GUID ever ingested for a channel. IsProcessed flips
// once, after the item has been fanned out into posts.
type NewsItem struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	ChannelID    uint        `gorm:"not null;uniqueIndex:idx_news_item_channel_guid" json:"channel_id"`
	Channel      NewsChannel `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	OriginalGUID string      `gorm:"not null;uniqueIndex:idx_news_item_channel_guid" json:"original_guid"`
	Title        string      `gorm:"not null" json:"title"`
	Content      string      `gorm:"type:text" json:"content"`
	LinkURL      string      `json:"link_url"`
	PubDate      time.Time   `gorm:"index" json:"pub_date"`
	IsProcessed  bool        `gorm:"not null;default:false;index" json:"is_processed"`
	CreatedAt    time.Time   `json:"created_at"`
}

type NewsSubscription struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	UserID    uint        `gorm:"not null;uniqueIndex:idx_news_sub_user_channel" json:"user_id"`
	User      User        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ChannelID uint        `gorm:"not null;uniqueIndex:idx_news_sub_user_channel" json:"channel_id"`
	Channel   NewsChannel `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatedAt time.Time   `json:"created_at"`
}
