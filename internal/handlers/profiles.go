package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miskyy7507/vibezone/internal/apperr"
	"github.com/miskyy7507/vibezone/internal/middleware"
	"github.com/miskyy7507/vibezone/internal/service"
	"github.com/miskyy7507/vibezone/internal/validation"
)

func (h HandlerSet) ListProfiles(c *gin.Context) {
	profiles, err := h.services.Profiles.List(c.Request.Context(), pageFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

func (h HandlerSet) GetProfile(c *gin.Context) {
	profile, err := h.services.Profiles.Get(c.Request.Context(), pathID(c, "id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, validation.FromBinding(err))
		return
	}

	profile, err := h.services.Profiles.Update(c.Request.Context(), middleware.ViewerFrom(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h HandlerSet) SetProfilePicture(c *gin.Context) {
	header, err := formFile(c, "image")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if header == nil {
		h.respondError(c, apperr.Invalid("image", "No proper file uploaded."))
		return
	}

	profile, err := h.services.Profiles.SetPicture(c.Request.Context(), middleware.ViewerFrom(c), header)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h HandlerSet) RemoveProfilePicture(c *gin.Context) {
	profile, err := h.services.Profiles.RemovePicture(c.Request.Context(), middleware.ViewerFrom(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// BanProfile deletes a profile and everything it owns. Allowed for the
// profile itself and for moderators.
func (h HandlerSet) BanProfile(c *gin.Context) {
	if err := h.services.Moderation.Ban(c.Request.Context(), middleware.ViewerFrom(c), pathID(c, "id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
