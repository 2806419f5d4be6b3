package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"comnet/internal/config"
	"comnet/internal/db"
	"comnet/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	testNetwork  = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	otherNetwork = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "comnet.db"),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	for _, n := range []models.Network{
		{ID: testNetwork, Name: "home", Domain: "home.test"},
		{ID: otherNetwork, Name: "other", Domain: "other.test"},
	} {
		if err := conn.Create(&n).Error; err != nil {
			t.Fatalf("create network: %v", err)
		}
	}
	return conn
}

func createUser(t *testing.T, conn *gorm.DB, name string, network uuid.UUID) models.User {
	t.Helper()
	user := models.User{Username: name, NetworkID: network}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func createCommunity(t *testing.T, conn *gorm.DB, name string, creator models.User) models.Community {
	t.Helper()
	community := models.Community{Name: name, DisplayName: name, CreatorID: creator.ID, NetworkID: creator.NetworkID}
	if err := conn.Create(&community).Error; err != nil {
		t.Fatalf("create community %s: %v", name, err)
	}
	return community
}

func createPost(t *testing.T, conn *gorm.DB, author models.User, community models.Community, title string, createdAt time.Time) models.Post {
	t.Helper()
	post := models.Post{
		Title:       title,
		ContentType: models.ContentTypeText,
		AuthorID:    author.ID,
		CommunityID: community.ID,
		NetworkID:   community.NetworkID,
		CreatedAt:   createdAt,
	}
	if err := conn.Omit(clause.Associations).Create(&post).Error; err != nil {
		t.Fatalf("create post %s: %v", title, err)
	}
	return post
}

func createComment(t *testing.T, conn *gorm.DB, author models.User, post models.Post, content string, createdAt time.Time) models.Comment {
	t.Helper()
	comment := models.Comment{PostID: post.ID, AuthorID: author.ID, Content: content, CreatedAt: createdAt}
	if err := conn.Omit(clause.Associations).Create(&comment).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return comment
}

// voteFixture is one network with a community, a post and n users.
type voteFixture struct {
	db        *gorm.DB
	users     []models.User
	community models.Community
	post      models.Post
}

func newVoteFixture(t *testing.T, users int) *voteFixture {
	t.Helper()
	conn := newTestDB(t)
	f := &voteFixture{db: conn}
	for i := 0; i < users; i++ {
		f.users = append(f.users, createUser(t, conn, fmt.Sprintf("u%d", i+1), testNetwork))
	}
	f.community = createCommunity(t, conn, "general", f.users[0])
	f.post = createPost(t, conn, f.users[0], f.community, "hello", time.Now())
	return f
}

func (f *voteFixture) voter(i int) Voter {
	return Voter{UserID: f.users[i].ID, NetworkID: f.users[i].NetworkID}
}
