package services

import (
	"context"
	"errors"
	"fmt"

	"comnet/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SortTop = "top"
	SortNew = "new"
	SortOld = "old"
	SortHot = "hot"

	defaultPostLimit    = 20
	defaultCommentLimit = 50
	maxPageLimit        = 100
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

type PostPage struct {
	Posts      []models.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

type CommentPage struct {
	Comments   []models.Comment `json:"comments"`
	Pagination Pagination       `json:"pagination"`
}

// PostDetail is a post plus the viewer's current vote.
type PostDetail struct {
	Post     models.Post `json:"post"`
	UserVote int         `json:"user_vote"`
}

// PostQuery filters a post listing. Zero values select defaults.
type PostQuery struct {
	CommunityID *uint
	Sort        string
	Page        int
	Limit       int
}

type ListingService struct {
	db    *gorm.DB
	votes *VoteService
}

func NewListingService(db *gorm.DB, votes *VoteService) *ListingService {
	return &ListingService{db: db, votes: votes}
}

// postOrder maps a sort key to its ORDER BY clause. Unknown keys fall back
// to newest first.
func postOrder(sort string) string {
	switch sort {
	case SortHot:
		return "score DESC, created_at DESC, id DESC"
	case SortTop:
		return "score DESC, created_at ASC, id ASC"
	default:
		return "created_at DESC, id DESC"
	}
}

// commentOrder mirrors postOrder for comments. Score ties under "top" go to
// the older comment. Unrecognised sorts read oldest first.
func commentOrder(sort string) string {
	switch sort {
	case SortTop:
		return "score DESC, created_at ASC, id ASC"
	case SortNew, "":
		return "created_at DESC, id DESC"
	default:
		return "created_at ASC, id ASC"
	}
}

func normalizePage(page, limit, defaultLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// ListPosts lists posts of a network, optionally within one community.
func (s *ListingService) ListPosts(ctx context.Context, networkID uuid.UUID, q PostQuery) (*PostPage, error) {
	page, limit := normalizePage(q.Page, q.Limit, defaultPostLimit)

	base := s.db.WithContext(ctx).Model(&models.Post{}).Where("posts.network_id = ?", networkID)
	if q.CommunityID != nil {
		base = base.Where("posts.community_id = ?", *q.CommunityID)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, persistenceErr("count posts", err)
	}

	var posts []models.Post
	err := base.Session(&gorm.Session{}).
		Preload("Author").Preload("Community").
		Order(postOrder(q.Sort)).
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&posts).Error
	if err != nil {
		return nil, persistenceErr("list posts", err)
	}
	if err := s.fillCommentCounts(ctx, posts); err != nil {
		return nil, err
	}

	return &PostPage{Posts: posts, Pagination: newPagination(page, limit, total)}, nil
}

// GetPost loads one post of the network. viewerID 0 means anonymous.
func (s *ListingService) GetPost(ctx context.Context, networkID uuid.UUID, postID, viewerID uint) (*PostDetail, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Preload("Author").Preload("Community").
		Where("network_id = ?", networkID).
		First(&post, postID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}
	if err != nil {
		return nil, persistenceErr("load post", err)
	}

	posts := []models.Post{post}
	if err := s.fillCommentCounts(ctx, posts); err != nil {
		return nil, err
	}

	detail := &PostDetail{Post: posts[0]}
	if viewerID != 0 {
		dir, err := s.votes.UserVote(ctx, viewerID, TargetPost, postID)
		if err != nil {
			return nil, err
		}
		detail.UserVote = dir
	}
	return detail, nil
}

// ListComments lists every comment of a post. Deleted comments stay in the
// listing with IsDeleted set so their replies keep a parent.
func (s *ListingService) ListComments(ctx context.Context, networkID uuid.UUID, postID uint, sort string, page, limit int) (*CommentPage, error) {
	page, limit = normalizePage(page, limit, defaultCommentLimit)

	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND network_id = ?", postID, networkID).
		Count(&exists).Error; err != nil {
		return nil, persistenceErr("load post", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: post %d", ErrNotFound, postID)
	}

	base := s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("post_id = ?", postID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, persistenceErr("count comments", err)
	}

	var comments []models.Comment
	err := base.Session(&gorm.Session{}).
		Preload("Author").
		Order(commentOrder(sort)).
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&comments).Error
	if err != nil {
		return nil, persistenceErr("list comments", err)
	}

	return &CommentPage{Comments: comments, Pagination: newPagination(page, limit, total)}, nil
}

func (s *ListingService) fillCommentCounts(ctx context.Context, posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	type countResult struct {
		PostID uint
		Count  int
	}
	var results []countResult
	err := s.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) as count").
		Where("post_id IN ? AND is_deleted = ?", postIDs, false).
		Group("post_id").
		Scan(&results).Error
	if err != nil {
		return persistenceErr("count comments", err)
	}

	countMap := make(map[uint]int, len(results))
	for _, r := range results {
		countMap[r.PostID] = r.Count
	}
	for i := range posts {
		posts[i].CommentCount = countMap[posts[i].ID]
	}
	return nil
}
