package models

import (
	"time"
)

type Comment struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	PostID    uint     `gorm:"not null;index" json:"post_id"`
	Post      Post     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	AuthorID  uint     `gorm:"not null;index" json:"author_id"`
	Author    User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	ParentID  *uint    `gorm:"index" json:"parent_id"` // nil for top-level comments
	Parent    *Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Content   string   `gorm:"type:text;not null" json:"content"`
	IsDeleted bool     `gorm:"default:false" json:"is_deleted"`

	Upvotes   int `gorm:"not null;default:0" json:"upvotes"`
	Downvotes int `gorm:"not null;default:0" json:"downvotes"`
	Score     int `gorm:"not null;default:0" json:"score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
