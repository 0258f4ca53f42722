package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/apperr"
	"github.com/miskyy7507/vibezone/internal/config"
	"github.com/miskyy7507/vibezone/internal/middleware"
	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/service"
)

type Services struct {
	Auth       *service.AuthService
	Posts      *service.PostService
	Comments   *service.CommentService
	Profiles   *service.ProfileService
	Moderation *service.ModerationService
	Uploads    *service.UploadService
}

// HealthCheck pings one backing store.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	services Services
	checks   []HealthCheck
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, services Services, checks []HealthCheck) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		services: services,
		checks:   checks,
	}
}

func (h HandlerSet) Register(engine *gin.Engine) {
	engine.GET("/uploads/*name", h.ServeUpload)

	api := engine.Group("/api")
	api.Use(middleware.Session(middleware.CookieConfig{
		Name:   h.cfg.Security.CookieName,
		Secret: h.cfg.Security.SessionSecret,
	}, h.services.Auth, h.log))

	api.GET("/healthz", h.Health)

	session := middleware.RequireSession()
	id := middleware.ValidateObjectID("id")

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/logout", session, h.Logout)
		auth.GET("/me", session, h.Me)
	}

	post := api.Group("/post")
	{
		post.GET("/all", h.ListPosts)
		post.POST("", session, h.CreatePost)
		post.GET("/user/:profileId", middleware.ValidateObjectID("profileId"), h.ListPostsByAuthor)
		post.GET("/:id", id, h.GetPost)
		post.DELETE("/:id", id, session, h.DeletePost)
		post.PUT("/:id/like", id, session, h.LikePost)
		post.DELETE("/:id/like", id, session, h.UnlikePost)
		post.GET("/:id/comments", id, h.ListComments)
	}

	comment := api.Group("/comment")
	{
		comment.GET("/post/:id", id, h.ListComments)
		comment.POST("/:id", id, session, h.CreateComment)
		comment.DELETE("/:id", id, session, h.DeleteComment)
		comment.PUT("/:id/like", id, session, h.LikeComment)
		comment.DELETE("/:id/like", id, session, h.UnlikeComment)
	}

	profile := api.Group("/profile")
	{
		profile.GET("", h.ListProfiles)
		profile.PATCH("", session, h.UpdateProfile)
		profile.PUT("/picture", session, h.SetProfilePicture)
		profile.DELETE("/picture", session, h.RemoveProfilePicture)
		profile.GET("/:id", id, h.GetProfile)
		profile.DELETE("/:id", id, session, h.BanProfile)
	}
}

// respondError maps the shared error taxonomy onto status codes. Anything
// unrecognised is logged and hidden behind a 500.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	var fe *apperr.FieldError
	switch {
	case errors.As(err, &fe):
		status := http.StatusBadRequest
		if errors.Is(err, apperr.ErrConflict) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": fe.Message, "item": fe.Field})
	case errors.Is(err, apperr.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		h.log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.Writer.Header().Get("X-Request-Id")).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// pathID reads a path param already checked by ValidateObjectID.
func pathID(c *gin.Context, name string) primitive.ObjectID {
	id, _ := primitive.ObjectIDFromHex(c.Param(name))
	return id
}

func pageFrom(c *gin.Context) models.Page {
	page := models.Page{Number: 1, PerPage: models.DefaultPerPage}
	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= models.MaxPerPage {
			page.PerPage = v
		}
	}
	if number := c.Query("page"); number != "" {
		if v, err := strconv.Atoi(number); err == nil && v > 1 {
			page.Number = v
		}
	}
	return page
}
