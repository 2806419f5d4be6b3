package services

import (
	"context"
	"errors"
	"fmt"

	"comnet/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TargetKind names the votable entity types.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
)

// Voter is the authenticated identity casting a vote.
type Voter struct {
	UserID    uint
	NetworkID uuid.UUID
}

// VoteResult carries the recomputed counters after a vote.
type VoteResult struct {
	Score     int `json:"score"`
	Upvotes   int `json:"upvotes"`
	Downvotes int `json:"downvotes"`
	UserVote  int `json:"user_vote"`
}

type voteTally struct {
	Upvotes   int
	Downvotes int
	Score     int
}

type VoteService struct {
	db *gorm.DB
}

func NewVoteService(db *gorm.DB) *VoteService {
	return &VoteService{db: db}
}

// CastVote records the voter's direction on a post or comment and rewrites
// the target's counters from the votes table. Direction 0 retracts. Casting
// the same direction twice leaves the vote in place.
func (s *VoteService) CastVote(ctx context.Context, voter Voter, kind TargetKind, targetID uint, direction int) (*VoteResult, error) {
	if direction < -1 || direction > 1 {
		return nil, fmt.Errorf("%w: vote direction must be -1, 0 or 1, got %d", ErrInvalidArgument, direction)
	}
	if kind != TargetPost && kind != TargetComment {
		return nil, fmt.Errorf("%w: unknown vote target %q", ErrInvalidArgument, kind)
	}

	var result VoteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTarget(tx, voter.NetworkID, kind, targetID); err != nil {
			return err
		}

		column := targetColumn(kind)
		if err := tx.Where("user_id = ? AND "+column+" = ?", voter.UserID, targetID).
			Delete(&models.Vote{}).Error; err != nil {
			return persistenceErr("delete vote", err)
		}

		if direction != 0 {
			vote := models.Vote{UserID: voter.UserID, Direction: direction}
			id := targetID
			if kind == TargetPost {
				vote.PostID = &id
			} else {
				vote.CommentID = &id
			}
			if err := tx.Create(&vote).Error; err != nil {
				return persistenceErr("insert vote", err)
			}
		}

		var tally voteTally
		if err := tx.Model(&models.Vote{}).
			Select(`COUNT(CASE WHEN direction = 1 THEN 1 END) AS upvotes,
				COUNT(CASE WHEN direction = -1 THEN 1 END) AS downvotes,
				COALESCE(SUM(direction), 0) AS score`).
			Where(column+" = ?", targetID).
			Scan(&tally).Error; err != nil {
			return persistenceErr("tally votes", err)
		}

		counters := map[string]interface{}{
			"upvotes":   tally.Upvotes,
			"downvotes": tally.Downvotes,
			"score":     tally.Score,
		}
		var update *gorm.DB
		if kind == TargetPost {
			update = tx.Model(&models.Post{}).Where("id = ?", targetID).UpdateColumns(counters)
		} else {
			update = tx.Model(&models.Comment{}).Where("id = ?", targetID).UpdateColumns(counters)
		}
		if update.Error != nil {
			return persistenceErr("update counters", update.Error)
		}

		result = VoteResult{
			Score:     tally.Score,
			Upvotes:   tally.Upvotes,
			Downvotes: tally.Downvotes,
			UserVote:  direction,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UserVote returns the user's current direction on a target, 0 if none.
func (s *VoteService) UserVote(ctx context.Context, userID uint, kind TargetKind, targetID uint) (int, error) {
	if kind != TargetPost && kind != TargetComment {
		return 0, fmt.Errorf("%w: unknown vote target %q", ErrInvalidArgument, kind)
	}
	var vote models.Vote
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND "+targetColumn(kind)+" = ?", userID, targetID).
		Take(&vote).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, persistenceErr("load vote", err)
	}
	return vote.Direction, nil
}

func targetColumn(kind TargetKind) string {
	if kind == TargetPost {
		return "post_id"
	}
	return "comment_id"
}

// lockTarget takes a row lock on the target and checks it is visible in the
// voter's network and open for voting. Votes on comments follow the lock
// state of their post.
func lockTarget(tx *gorm.DB, networkID uuid.UUID, kind TargetKind, targetID uint) error {
	locking := clause.Locking{Strength: "UPDATE"}

	postID := targetID
	if kind == TargetComment {
		var comment models.Comment
		err := tx.Clauses(locking).Select("id", "post_id").First(&comment, targetID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: comment %d", ErrNotFound, targetID)
		}
		if err != nil {
			return persistenceErr("load comment", err)
		}
		postID = comment.PostID
	}

	var post models.Post
	q := tx.Select("id", "network_id", "is_locked")
	if kind == TargetPost {
		q = q.Clauses(locking)
	}
	err := q.Where("network_id = ?", networkID).First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, kind, targetID)
	}
	if err != nil {
		return persistenceErr("load post", err)
	}
	if post.IsLocked {
		return fmt.Errorf("%w: post %d is locked", ErrForbidden, post.ID)
	}
	return nil
}
