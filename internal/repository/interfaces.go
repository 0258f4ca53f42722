package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/models"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrLoginTaken      = errors.New("login already taken")
	ErrProfileNotFound = errors.New("profile not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrPostNotFound    = errors.New("post not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrSessionNotFound = errors.New("session not found")
)

type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByLogin(ctx context.Context, login string) (models.User, error)
	GetByProfileID(ctx context.Context, profileID string) (models.User, error)
	Deactivate(ctx context.Context, profileID string) error
	SetRole(ctx context.Context, login string, role models.UserRole) error
}

type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Profile, error)
	List(ctx context.Context, page models.Page) ([]models.Profile, error)
	Update(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (models.Profile, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	PictureNames(ctx context.Context) ([]string, error)
}

type PostFilter struct {
	Author *primitive.ObjectID
	Viewer *primitive.ObjectID
	Page   models.Page
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Post, error)
	View(ctx context.Context, id primitive.ObjectID, viewer *primitive.ObjectID) (models.PostView, error)
	ListViews(ctx context.Context, filter PostFilter) ([]models.PostView, error)
	ListByAuthor(ctx context.Context, author primitive.ObjectID) ([]models.Post, error)
	ListIDs(ctx context.Context) ([]primitive.ObjectID, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	AddLike(ctx context.Context, id, profileID primitive.ObjectID) error
	RemoveLike(ctx context.Context, id, profileID primitive.ObjectID) error
	RemoveLikesBy(ctx context.Context, profileID primitive.ObjectID) error
	IncrementComments(ctx context.Context, id primitive.ObjectID, delta int) error
	// SetCommentCount stores count only while the counter still holds
	// expected; ok is false when it moved or the post is gone.
	SetCommentCount(ctx context.Context, id primitive.ObjectID, expected, count int) (ok bool, err error)
	ImageNames(ctx context.Context) ([]string, error)
}

type CommentFilter struct {
	Post   primitive.ObjectID
	Viewer *primitive.ObjectID
	Page   models.Page
}

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Comment, error)
	ListViews(ctx context.Context, filter CommentFilter) ([]models.CommentView, error)
	ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.Comment, error)
	CountByPost(ctx context.Context, post primitive.ObjectID) (int, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByPost(ctx context.Context, post primitive.ObjectID) (int, error)
	AddLike(ctx context.Context, id, profileID primitive.ObjectID) error
	RemoveLike(ctx context.Context, id, profileID primitive.ObjectID) error
	RemoveLikesBy(ctx context.Context, profileID primitive.ObjectID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session models.Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (models.Session, error)
	Touch(ctx context.Context, token string, ttl time.Duration) error
	Delete(ctx context.Context, token string) error
	DeleteByProfile(ctx context.Context, profileID string) error
	EnforceLimit(ctx context.Context, profileID string, keep int) error
}

type Repositories struct {
	Users    UserRepository
	Profiles ProfileRepository
	Posts    PostRepository
	Comments CommentRepository
	Sessions SessionRepository
}
