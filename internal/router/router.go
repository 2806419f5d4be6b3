package router

import (
	"net/http"

	"comnet/internal/config"
	"comnet/internal/handlers"
	"comnet/internal/middleware"
	"comnet/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Votes    *services.VoteService
	Listing  *services.ListingService
	NewsFeed *services.NewsFeedService
	Ingest   *services.NewsIngestService
}

// New builds the engine with sessions and user loading in front of the API.
func New(conn *gorm.DB, cfg *config.Config, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("comnet_session", store))
	r.Use(middleware.LoadUser(conn, cfg.DefaultNetworkID))

	RegisterRoutes(r, svc)
	return r
}

func RegisterRoutes(r *gin.Engine, svc Services) {
	voteHandler := handlers.NewVoteHandler(svc.Votes)
	storyHandler := handlers.NewStoryHandler(svc.Listing)
	newsHandler := handlers.NewNewsHandler(svc.NewsFeed, svc.Ingest)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/posts", storyHandler.ListPosts)                  // post listing
	api.GET("/posts/:id", storyHandler.Detail)                 // post with viewer's vote
	api.GET("/posts/:id/comments", storyHandler.ListComments) // comment listing

	news := api.Group("/news")
	{
		news.GET("/sources", newsHandler.Sources)
		news.GET("/feed", newsHandler.Feed)
		news.GET("/source/:sourceId", newsHandler.Source)
		news.POST("/refresh", newsHandler.Refresh)
	}

	authorized := api.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/posts/:id/vote", voteHandler.VotePost)
		authorized.POST("/comments/:id/vote", voteHandler.VoteComment)
		authorized.POST("/news/ingest", newsHandler.Ingest)
	}
}
