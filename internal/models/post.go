package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ContentTypeText  = "text"
	ContentTypeImage = "image"
	ContentTypeVideo = "video"
	ContentTypeLink  = "link"

	SourceTypeNews = "news"
)

type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Content     string    `gorm:"type:text" json:"content"`
	ContentType string    `gorm:"size:20;not null;default:'text'" json:"content_type"`
	LinkURL     string    `json:"link_url"`
	AuthorID    uint      `gorm:"not null;index" json:"author_id"`
	Author      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	CommunityID uint      `gorm:"not null;index" json:"community_id"`
	Community   Community `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"community"`
	NetworkID   uuid.UUID `gorm:"type:uuid;not null;index" json:"network_id"`
	IsPinned    bool      `gorm:"default:false" json:"is_pinned"`
	IsLocked    bool      `gorm:"default:false" json:"is_locked"`
	IsNSFW      bool      `gorm:"default:false" json:"is_nsfw"`

	// Denormalized from the votes table, rewritten on every vote.
	Upvotes   int `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int `gorm:"not null;default:0" json:"downvotes"`
	Score     int `gorm:"not null;default:0;index" json:"score"`

	SourceType string    `gorm:"size:20" json:"source_type"` // "" or "news"
	NewsItemID *uint     `gorm:"index" json:"news_item_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	CommentCount int `gorm:"-" json:"comment_count"`
}
