package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miskyy7507/vibezone/internal/middleware"
	"github.com/miskyy7507/vibezone/internal/validation"
)

// ListComments serves both /post/:id/comments and /comment/post/:id.
func (h HandlerSet) ListComments(c *gin.Context) {
	comments, err := h.services.Comments.ListForPost(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id"), pageFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

// CreateComment comments on the post named by :id.
func (h HandlerSet) CreateComment(c *gin.Context) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, validation.FromBinding(err))
		return
	}

	comment, err := h.services.Comments.Create(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id"), req.Content)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

func (h HandlerSet) DeleteComment(c *gin.Context) {
	if err := h.services.Comments.Delete(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) LikeComment(c *gin.Context) {
	if err := h.services.Comments.Like(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) UnlikeComment(c *gin.Context) {
	if err := h.services.Comments.Unlike(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
