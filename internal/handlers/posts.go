package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/miskyy7507/vibezone/internal/apperr"
	"github.com/miskyy7507/vibezone/internal/middleware"
	"github.com/miskyy7507/vibezone/internal/service"
	"github.com/miskyy7507/vibezone/internal/validation"
)

type contentRequest struct {
	Content string `json:"content" binding:"max=4096"`
}

func (h HandlerSet) ListPosts(c *gin.Context) {
	posts, err := h.services.Posts.List(c.Request.Context(), middleware.ViewerFrom(c), pageFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h HandlerSet) ListPostsByAuthor(c *gin.Context) {
	posts, err := h.services.Posts.ListByAuthor(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "profileId"), pageFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h HandlerSet) GetPost(c *gin.Context) {
	post, err := h.services.Posts.Get(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost accepts JSON, or a multipart form with content and an optional
// image part.
func (h HandlerSet) CreatePost(c *gin.Context) {
	var input service.CreatePostInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		input.Content = c.PostForm("content")
		header, err := formFile(c, "image")
		if err != nil {
			h.respondError(c, err)
			return
		}
		input.Image = header
	} else {
		var req contentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.respondError(c, validation.FromBinding(err))
			return
		}
		input.Content = req.Content
	}

	post, err := h.services.Posts.Create(c.Request.Context(), middleware.ViewerFrom(c), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h HandlerSet) DeletePost(c *gin.Context) {
	if err := h.services.Posts.Delete(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) LikePost(c *gin.Context) {
	if err := h.services.Posts.Like(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) UnlikePost(c *gin.Context) {
	if err := h.services.Posts.Unlike(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// formFile returns the named upload, or nil when the form has none.
func formFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Invalid(field, "No proper file uploaded.")
	}
	return header, nil
}
