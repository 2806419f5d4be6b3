package handlers

import (
	"net/http"

	"comnet/internal/middleware"
	"comnet/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	votes *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

type voteRequest struct {
	VoteType *int `json:"vote_type" binding:"required"`
}

// VotePost handles POST /api/posts/:id/vote
func (h *VoteHandler) VotePost(c *gin.Context) {
	h.cast(c, services.TargetPost)
}

// VoteComment handles POST /api/comments/:id/vote
func (h *VoteHandler) VoteComment(c *gin.Context) {
	h.cast(c, services.TargetComment)
}

func (h *VoteHandler) cast(c *gin.Context, kind services.TargetKind) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "vote_type must be -1, 0 or 1"})
		return
	}

	voter := services.Voter{UserID: user.ID, NetworkID: middleware.NetworkID(c)}
	result, err := h.votes.CastVote(c.Request.Context(), voter, kind, id, *req.VoteType)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
