package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/repository"
	"github.com/miskyy7507/vibezone/internal/storage"
)

// MaintenanceService repairs derived state. It backs the worker tasks.
type MaintenanceService struct {
	repos       repository.Repositories
	store       storage.ImageStore
	orphanGrace time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func NewMaintenanceService(repos repository.Repositories, store storage.ImageStore, orphanGrace time.Duration, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		repos:       repos,
		store:       store,
		orphanGrace: orphanGrace,
		log:         log,
		now:         time.Now,
	}
}

// RecountComments recomputes commentCount from the comments collection for
// one post, or every post when postID is nil. The write is skipped when the
// counter changed after it was read. It returns how many counters were fixed.
func (s *MaintenanceService) RecountComments(ctx context.Context, postID *primitive.ObjectID) (int, error) {
	var ids []primitive.ObjectID
	if postID != nil {
		ids = []primitive.ObjectID{*postID}
	} else {
		all, err := s.repos.Posts.ListIDs(ctx)
		if err != nil {
			return 0, fmt.Errorf("list posts: %w", err)
		}
		ids = all
	}

	fixed := 0
	for _, id := range ids {
		post, err := s.repos.Posts.GetByID(ctx, id)
		if err != nil {
			if postID == nil {
				// Deleted since listing.
				continue
			}
			return fixed, translate(err)
		}
		count, err := s.repos.Comments.CountByPost(ctx, id)
		if err != nil {
			return fixed, fmt.Errorf("count comments of %s: %w", id.Hex(), err)
		}
		if count == post.CommentCount {
			continue
		}
		swapped, err := s.repos.Posts.SetCommentCount(ctx, id, post.CommentCount, count)
		if err != nil {
			return fixed, fmt.Errorf("set comment count of %s: %w", id.Hex(), err)
		}
		if !swapped {
			// A comment landed or went away since the count; next run settles it.
			s.log.Debug().Str("post_id", id.Hex()).Msg("comment count moved during recount")
			continue
		}
		s.log.Debug().Str("post_id", id.Hex()).Int("was", post.CommentCount).Int("now", count).Msg("comment count corrected")
		fixed++
	}
	return fixed, nil
}

// PurgeImages removes stored images that no post or profile references and
// that are older than the grace period, so uploads in flight survive.
func (s *MaintenanceService) PurgeImages(ctx context.Context) (int, error) {
	referenced := make(map[string]struct{})
	postImages, err := s.repos.Posts.ImageNames(ctx)
	if err != nil {
		return 0, err
	}
	pictures, err := s.repos.Profiles.PictureNames(ctx)
	if err != nil {
		return 0, err
	}
	for _, name := range append(postImages, pictures...) {
		referenced[name] = struct{}{}
	}

	objects, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.orphanGrace)
	removed := 0
	for _, obj := range objects {
		if _, ok := referenced[obj.Name]; ok {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := s.store.Remove(ctx, obj.Name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *MaintenanceService) RevokeSessions(ctx context.Context, profileID string) error {
	return s.repos.Sessions.DeleteByProfile(ctx, profileID)
}
