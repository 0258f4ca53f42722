package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/policy"
	"github.com/miskyy7507/vibezone/internal/projection"
	"github.com/miskyy7507/vibezone/internal/repository"
	"github.com/miskyy7507/vibezone/internal/validation"
)

type PostService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	profiles repository.ProfileRepository
	uploads  *UploadService
	log      zerolog.Logger
}

func NewPostService(repos repository.Repositories, uploads *UploadService, log zerolog.Logger) *PostService {
	return &PostService{
		posts:    repos.Posts,
		comments: repos.Comments,
		profiles: repos.Profiles,
		uploads:  uploads,
		log:      log,
	}
}

func (s *PostService) List(ctx context.Context, viewer *policy.Viewer, page models.Page) ([]models.PostView, error) {
	return s.posts.ListViews(ctx, repository.PostFilter{Viewer: viewer.ID(), Page: page})
}

func (s *PostService) ListByAuthor(ctx context.Context, viewer *policy.Viewer, author primitive.ObjectID, page models.Page) ([]models.PostView, error) {
	if _, err := s.profiles.GetByID(ctx, author); err != nil {
		return nil, translate(err)
	}
	return s.posts.ListViews(ctx, repository.PostFilter{Author: &author, Viewer: viewer.ID(), Page: page})
}

func (s *PostService) Get(ctx context.Context, viewer *policy.Viewer, id primitive.ObjectID) (models.PostView, error) {
	view, err := s.posts.View(ctx, id, viewer.ID())
	return view, translate(err)
}

type CreatePostInput struct {
	Content string
	Image   *multipart.FileHeader
}

func (s *PostService) Create(ctx context.Context, viewer *policy.Viewer, input CreatePostInput) (models.PostView, error) {
	if err := policy.Authenticated(viewer); err != nil {
		return models.PostView{}, err
	}
	content, err := validation.Content("content", input.Content)
	if err != nil {
		return models.PostView{}, err
	}
	author, err := s.profiles.GetByID(ctx, viewer.ProfileID)
	if err != nil {
		return models.PostView{}, translate(err)
	}

	post := models.Post{Author: viewer.ProfileID, Content: content}
	if input.Image != nil {
		name, err := s.uploads.Save(ctx, "image", input.Image)
		if err != nil {
			return models.PostView{}, err
		}
		post.ImageURL = &name
	}

	if err := s.posts.Create(ctx, &post); err != nil {
		if post.ImageURL != nil {
			s.uploads.Remove(ctx, *post.ImageURL)
		}
		return models.PostView{}, fmt.Errorf("create post: %w", err)
	}

	return projection.ProjectPost(post, author, viewer.ID()), nil
}

// Delete removes a post with its comments and image. A post that is already
// gone counts as deleted.
func (s *PostService) Delete(ctx context.Context, viewer *policy.Viewer, id primitive.ObjectID) error {
	if err := policy.Authenticated(viewer); err != nil {
		return err
	}
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil
		}
		return err
	}
	if err := policy.CanModify(viewer, post.Author); err != nil {
		return err
	}
	return s.remove(ctx, post)
}

func (s *PostService) remove(ctx context.Context, post models.Post) error {
	if err := s.posts.Delete(ctx, post.ID); err != nil && !errors.Is(err, repository.ErrPostNotFound) {
		return fmt.Errorf("delete post: %w", err)
	}
	if _, err := s.comments.DeleteByPost(ctx, post.ID); err != nil {
		return fmt.Errorf("delete comments of post %s: %w", post.ID.Hex(), err)
	}
	if post.ImageURL != nil {
		s.uploads.Remove(ctx, *post.ImageURL)
	}
	return nil
}

func (s *PostService) Like(ctx context.Context, viewer *policy.Viewer, id primitive.ObjectID) error {
	if err := policy.Authenticated(viewer); err != nil {
		return err
	}
	return translate(s.posts.AddLike(ctx, id, viewer.ProfileID))
}

func (s *PostService) Unlike(ctx context.Context, viewer *policy.Viewer, id primitive.ObjectID) error {
	if err := policy.Authenticated(viewer); err != nil {
		return err
	}
	return translate(s.posts.RemoveLike(ctx, id, viewer.ProfileID))
}
