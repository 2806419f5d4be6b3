package models

import (
	"time"
)

// Vote is the ledger row behind every counter. Exactly one of PostID and
// CommentID is set, Direction is -1 or +1 and a retraction deletes the row.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_vote_user_post;uniqueIndex:idx_vote_user_comment" json:"user_id"`
	PostID    *uint     `gorm:"uniqueIndex:idx_vote_user_post;index" json:"post_id"`
	CommentID *uint     `gorm:"uniqueIndex:idx_vote_user_comment;index" json:"comment_id"`
	Direction int       `gorm:"not null" json:"direction"`
	CreatedAt time.Time `json:"created_at"`
}
