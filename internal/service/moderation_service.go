package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/policy"
	"github.com/miskyy7507/vibezone/internal/queue"
	"github.com/miskyy7507/vibezone/internal/repository"
)

// TaskQueue hands work to the background worker.
type TaskQueue interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

type ModerationService struct {
	repos    repository.Repositories
	posts    *PostService
	comments *CommentService
	uploads  *UploadService
	tasks    TaskQueue
	log      zerolog.Logger
}

func NewModerationService(
	repos repository.Repositories,
	posts *PostService,
	comments *CommentService,
	uploads *UploadService,
	tasks TaskQueue,
	log zerolog.Logger,
) *ModerationService {
	return &ModerationService{
		repos:    repos,
		posts:    posts,
		comments: comments,
		uploads:  uploads,
		tasks:    tasks,
		log:      log,
	}
}

// Ban removes a profile and everything it authored, deactivates its
// credential and ends its sessions. Steps run in order and are not rolled
// back when a later one fails.
func (s *ModerationService) Ban(ctx context.Context, viewer *policy.Viewer, id primitive.ObjectID) error {
	if err := policy.CanModify(viewer, id); err != nil {
		return err
	}
	profile, err := s.repos.Profiles.GetByID(ctx, id)
	if err != nil {
		return translate(err)
	}

	log := s.log.With().Str("profile_id", id.Hex()).Str("banned_by", viewer.ProfileID.Hex()).Logger()
	steps := []struct {
		name string
		run  func(context.Context, primitive.ObjectID) error
	}{
		{"remove profile", s.removeProfile},
		{"delete posts", s.deletePosts},
		{"delete comments", s.deleteComments},
		{"pull likes", s.pullLikes},
		{"deactivate credential", s.deactivate},
		{"revoke sessions", s.revokeSessions},
	}
	for _, step := range steps {
		if err := step.run(ctx, id); err != nil {
			log.Error().Err(err).Str("step", step.name).Msg("ban step failed")
			return fmt.Errorf("ban %s: %s: %w", id.Hex(), step.name, err)
		}
	}

	if profile.ProfilePictureURI != nil {
		s.uploads.Remove(ctx, *profile.ProfilePictureURI)
	}
	log.Info().Str("username", profile.Username).Msg("profile banned")
	return nil
}

func (s *ModerationService) removeProfile(ctx context.Context, id primitive.ObjectID) error {
	return translate(s.repos.Profiles.Delete(ctx, id))
}

func (s *ModerationService) deletePosts(ctx context.Context, id primitive.ObjectID) error {
	posts, err := s.repos.Posts.ListByAuthor(ctx, id)
	if err != nil {
		return err
	}
	for _, post := range posts {
		if err := s.posts.remove(ctx, post); err != nil {
			return err
		}
	}
	return nil
}

func (s *ModerationService) deleteComments(ctx context.Context, id primitive.ObjectID) error {
	comments, err := s.repos.Comments.ListByUser(ctx, id)
	if err != nil {
		return err
	}
	for _, comment := range comments {
		if err := s.comments.remove(ctx, comment); err != nil {
			return err
		}
	}
	return nil
}

func (s *ModerationService) pullLikes(ctx context.Context, id primitive.ObjectID) error {
	if err := s.repos.Posts.RemoveLikesBy(ctx, id); err != nil {
		return err
	}
	return s.repos.Comments.RemoveLikesBy(ctx, id)
}

func (s *ModerationService) deactivate(ctx context.Context, id primitive.ObjectID) error {
	err := s.repos.Users.Deactivate(ctx, id.Hex())
	if errors.Is(err, repository.ErrUserNotFound) {
		s.log.Warn().Str("profile_id", id.Hex()).Msg("banned profile has no credential")
		return nil
	}
	return err
}

// revokeSessions falls back to the worker when the session store refuses;
// only a failure to enqueue the retry fails the ban.
func (s *ModerationService) revokeSessions(ctx context.Context, id primitive.ObjectID) error {
	err := s.repos.Sessions.DeleteByProfile(ctx, id.Hex())
	if err == nil {
		return nil
	}
	s.log.Warn().Err(err).Str("profile_id", id.Hex()).Msg("revoke sessions failed, deferring to worker")
	if s.tasks == nil {
		return err
	}
	if qErr := s.tasks.Enqueue(ctx, queue.Task{Type: queue.TaskRevokeSessions, ProfileID: id.Hex()}); qErr != nil {
		return errors.Join(err, qErr)
	}
	return nil
}
