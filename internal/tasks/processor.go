package tasks

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/queue"
)

// Maintainer performs the store-side work behind each task.
type Maintainer interface {
	RecountComments(ctx context.Context, postID *primitive.ObjectID) (int, error)
	PurgeImages(ctx context.Context) (int, error)
	RevokeSessions(ctx context.Context, profileID string) error
}

type Processor struct {
	maintainer Maintainer
	logger     zerolog.Logger
}

func NewProcessor(maintainer Maintainer, logger zerolog.Logger) *Processor {
	return &Processor{
		maintainer: maintainer,
		logger:     logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	task, err := queue.DecodeTask(msg.Values)
	if err != nil {
		// Malformed entries can never succeed; drop them.
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("discarding malformed task")
		return nil
	}
	return p.Run(ctx, task)
}

func (p *Processor) Run(ctx context.Context, task queue.Task) error {
	switch task.Type {
	case queue.TaskRecountComments:
		return p.handleRecount(ctx, task)
	case queue.TaskPurgeImages:
		return p.handlePurge(ctx)
	case queue.TaskRevokeSessions:
		return p.handleRevoke(ctx, task)
	default:
		p.logger.Warn().Str("type", string(task.Type)).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleRecount(ctx context.Context, task queue.Task) error {
	var postID *primitive.ObjectID
	if task.PostID != "" {
		id, err := primitive.ObjectIDFromHex(task.PostID)
		if err != nil {
			p.logger.Warn().Str("post_id", task.PostID).Msg("recount task with malformed post id")
			return nil
		}
		postID = &id
	}

	fixed, err := p.maintainer.RecountComments(ctx, postID)
	if err != nil {
		return fmt.Errorf("recount comments: %w", err)
	}
	p.logger.Info().Int("fixed", fixed).Msg("comment counts reconciled")
	return nil
}

func (p *Processor) handlePurge(ctx context.Context) error {
	removed, err := p.maintainer.PurgeImages(ctx)
	if err != nil {
		return fmt.Errorf("purge images: %w", err)
	}
	p.logger.Info().Int("removed", removed).Msg("unreferenced images purged")
	return nil
}

func (p *Processor) handleRevoke(ctx context.Context, task queue.Task) error {
	if task.ProfileID == "" {
		p.logger.Warn().Msg("revoke task without profile id")
		return nil
	}
	if err := p.maintainer.RevokeSessions(ctx, task.ProfileID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	p.logger.Info().Str("profile_id", task.ProfileID).Msg("sessions revoked")
	return nil
}
