package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/miskyy7507/vibezone/internal/middleware"
	"github.com/miskyy7507/vibezone/internal/security"
	"github.com/miskyy7507/vibezone/internal/service"
	"github.com/miskyy7507/vibezone/internal/validation"
)

type registerRequest struct {
	Username    string  `json:"username" binding:"required"`
	Password    string  `json:"password" binding:"required"`
	DisplayName *string `json:"displayName"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, validation.FromBinding(err))
		return
	}

	profile, err := h.services.Auth.Register(c.Request.Context(), service.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

type loginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, validation.FromBinding(err))
		return
	}

	result, err := h.services.Auth.Login(c.Request.Context(), service.LoginInput{
		Login:      req.Login,
		Password:   req.Password,
		PriorToken: middleware.SessionToken(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	cookie, err := security.SignSessionCookie(h.cfg.Security.SessionSecret, result.Token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, cookie, int(h.cfg.Security.SessionTTL.Seconds()))

	c.JSON(http.StatusOK, result.Account)
}

func (h HandlerSet) Logout(c *gin.Context) {
	if err := h.services.Auth.Logout(c.Request.Context(), middleware.SessionToken(c)); err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	account, err := h.services.Auth.Me(c.Request.Context(), session)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h HandlerSet) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Security.CookieName, value, maxAge, "/", "", h.cfg.Security.CookieSecure, true)
}
