package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/policy"
	"github.com/miskyy7507/vibezone/internal/projection"
	"github.com/miskyy7507/vibezone/internal/repository"
	"github.com/miskyy7507/vibezone/internal/validation"
)

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	log      zerolog.Logger
}

func NewCommentService(repos repository.Repositories, log zerolog.Logger) *CommentService {
	return &CommentService{
		comments: repos.Comments,
		posts:    repos.Posts,
		profiles: repos.Profiles,
		log:      log,
	}
}

func (s *CommentService) ListForPost(ctx context.Context, viewer *policy.Viewer, postID primitive.ObjectID, page models.Page) ([]models.CommentView, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, translate(err)
	}
	return s.comments.ListViews(ctx, repository.CommentFilter{Post: postID, Viewer: viewer.ID(), Page: page})
}

// Create stores a comment and bumps the post's counter. When the counter
// cannot be bumped the comment is taken back so the two stay in step.
func (s *CommentService) Create(ctx context.Context, viewer *policy.Viewer, postID primitive.ObjectID, content string) (models.CommentView, error) {
	if err := policy.Authenticated(viewer); err != nil {
		return models.CommentView{}, err
	}
	content, err := validation.Content("content", content)
	if err != nil {
		return models.CommentView{}, err
	}
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return models.CommentView{}, translate(err)
	}
	user, err := s.profiles.GetByID(ctx, viewer.ProfileID)
	if err != nil {
		return models.CommentView{}, translate(err)
	}

	comment := models.Comment{Post: postID, User: viewer.ProfileID, Content: content}
	if err := s.comments.Create(ctx, &comment); err != nil {
		return models.CommentView{}, fmt.Errorf("create comment: %w", err)
	}

	if err := s.posts.IncrementComments(ctx, postID, 1); err != nil {
		if delErr := s.comments.Delete(ctx, comment.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("comment_id", comment.ID.Hex()).Msg("roll back comment failed")
		}
		return models.CommentView{}, translate(err)
	}

	return projection.ProjectComment(comment, user, viewer.ID()), nil
}

// Delete removes a comment the viewer may modify. The post counter is only
// decremented when this call actually deleted the document.
func (s *CommentService) Delete(ctx context.Context, viewer *policy.Viewer, id primitive.ObjectID) error {
	if err := policy.Authenticated(viewer); err != nil {
		return err
	}
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil
		}
		return err
	}
	if err := policy.CanModify(viewer, comment.User); err != nil {
		return err
	}
	return s.remove(ctx, comment)
}

func (s *CommentService) remove(ctx context.Context, comment models.Comment) error {
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			return nil
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	if err := s.posts.IncrementComments(ctx, comment.Post, -1); err != nil && !errors.Is(err, repository.ErrPostNotFound) {
		return fmt.Errorf("decrement comment count: %w", err)
	}
	return nil
}

func (s *CommentService) Like(ctx context.Context, viewer *policy.Viewer, id primitive.ObjectID) error {
	if err := policy.Authenticated(viewer); err != nil {
		return err
	}
	return translate(s.comments.AddLike(ctx, id, viewer.ProfileID))
}

func (s *CommentService) Unlike(ctx context.Context, viewer *policy.Viewer, id primitive.ObjectID) error {
	if err := policy.Authenticated(viewer); err != nil {
		return err
	}
	return translate(s.comments.RemoveLike(ctx, id, viewer.ProfileID))
}
