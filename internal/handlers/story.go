package handlers

import (
	"net/http"
	"strconv"

	"comnet/internal/middleware"
	"comnet/internal/services"

	"github.com/gin-gonic/gin"
)

type StoryHandler struct {
	listing *services.ListingService
}

func NewStoryHandler(listing *services.ListingService) *StoryHandler {
	return &StoryHandler{listing: listing}
}

// ListPosts handles GET /api/posts?sort=new|hot|top&page=&limit=&community_id=
func (h *StoryHandler) ListPosts(c *gin.Context) {
	q := services.PostQuery{
		Sort:  c.DefaultQuery("sort", services.SortNew),
		Page:  queryInt(c, "page", 1),
		Limit: queryInt(c, "limit", 0),
	}
	if v := c.Query("community_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid community_id"})
			return
		}
		communityID := uint(id)
		q.CommunityID = &communityID
	}

	page, err := h.listing.ListPosts(c.Request.Context(), middleware.NetworkID(c), q)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// Detail handles GET /api/posts/:id
func (h *StoryHandler) Detail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var viewerID uint
	if user, ok := middleware.CurrentUser(c); ok {
		viewerID = user.ID
	}

	detail, err := h.listing.GetPost(c.Request.Context(), middleware.NetworkID(c), id, viewerID)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListComments handles GET /api/posts/:id/comments?sort=top|new|old
func (h *StoryHandler) ListComments(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	page, err := h.listing.ListComments(
		c.Request.Context(),
		middleware.NetworkID(c),
		id,
		c.DefaultQuery("sort", services.SortNew),
		queryInt(c, "page", 1),
		queryInt(c, "limit", 0),
	)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
