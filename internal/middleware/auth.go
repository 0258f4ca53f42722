package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/miskyy7507/vibezone/internal/apperr"
	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/policy"
	"github.com/miskyy7507/vibezone/internal/security"
)

const (
	sessionKey      = "session"
	sessionTokenKey = "session_token"
	viewerKey       = "viewer"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (models.Session, error)
}

type CookieConfig struct {
	Name   string
	Secret string
}

// Session resolves the session cookie on every request. Requests without a
// valid session continue anonymously; a tampered cookie is ignored.
func Session(cfg CookieConfig, resolver SessionResolver, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(cfg.Name)
		if err != nil || raw == "" {
			c.Next()
			return
		}

		token, err := security.ParseSessionCookie(raw, cfg.Secret)
		if err != nil {
			log.Debug().Err(err).Str("request_id", c.GetString(requestIDHeader)).Msg("rejected session cookie")
			c.Next()
			return
		}
		c.Set(sessionTokenKey, token)

		session, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, apperr.ErrUnauthorized) {
				log.Error().Err(err).Str("request_id", c.GetString(requestIDHeader)).Msg("resolve session failed")
			}
			c.Next()
			return
		}

		viewer, err := policy.FromSession(session)
		if err != nil {
			c.Next()
			return
		}
		c.Set(sessionKey, session)
		c.Set(viewerKey, viewer)

		c.Next()
	}
}

// RequireSession rejects anonymous callers with 401.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ViewerFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// ViewerFrom returns the resolved viewer or nil for anonymous requests.
func ViewerFrom(c *gin.Context) *policy.Viewer {
	v, ok := c.Get(viewerKey)
	if !ok {
		return nil
	}
	viewer, _ := v.(*policy.Viewer)
	return viewer
}

func SessionFrom(c *gin.Context) (models.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return models.Session{}, false
	}
	session, ok := v.(models.Session)
	return session, ok
}

// SessionToken is the token carried by a correctly signed cookie, whether
// or not it still names a live session.
func SessionToken(c *gin.Context) string {
	return c.GetString(sessionTokenKey)
}
