package handlers

import (
	"net/http"

	"comnet/internal/services"

	"github.com/gin-gonic/gin"
)

type NewsHandler struct {
	feeds  *services.NewsFeedService
	ingest *services.NewsIngestService
}

func NewNewsHandler(feeds *services.NewsFeedService, ingest *services.NewsIngestService) *NewsHandler {
	return &NewsHandler{feeds: feeds, ingest: ingest}
}

// Sources lists the enabled news sources.
func (h *NewsHandler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": h.feeds.ListSources()})
}

// Feed returns the merged feed of all sources.
func (h *NewsHandler) Feed(c *gin.Context) {
	agg, err := h.feeds.GetAggregateFeed(c.Request.Context(), queryInt(c, "limit", 0))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

// Source returns the cache entry of one source. Upstream failures are part
// of the entry, not an error status.
func (h *NewsHandler) Source(c *gin.Context) {
	entry, err := h.feeds.GetSourceFeed(c.Request.Context(), c.Param("sourceId"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// Refresh clears the feed cache and refetches every source.
func (h *NewsHandler) Refresh(c *gin.Context) {
	res, err := h.feeds.RefreshAllSources(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":          "cache refreshed",
		"sourcesRefreshed": res.SourcesRefreshed,
		"timestamp":        res.Timestamp,
	})
}

// Ingest runs one pass of the durable ingestion pipeline.
func (h *NewsHandler) Ingest(c *gin.Context) {
	res, err := h.ingest.RunIngestion(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
