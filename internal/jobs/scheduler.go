package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/miskyy7507/vibezone/internal/config"
	"github.com/miskyy7507/vibezone/internal/queue"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// Scheduler periodically enqueues maintenance tasks for the worker.
type Scheduler struct {
	cron  *cron.Cron
	queue Enqueuer
	cfg   config.JobsConfig
	log   zerolog.Logger
}

func NewScheduler(queue Enqueuer, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		queue: queue,
		cfg:   cfg,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if s.cfg.RecountSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.RecountSpec, s.enqueueRecount); err != nil {
			return err
		}
	}
	if s.cfg.PurgeSpec != "" {
		if _, err := s.cron.AddFunc(s.cfg.PurgeSpec, s.enqueuePurge); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for running jobs to finish.
func (s *Scheduler) Stop() {
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) enqueueRecount() {
	s.enqueue(queue.Task{Type: queue.TaskRecountComments})
}

func (s *Scheduler) enqueuePurge() {
	s.enqueue(queue.Task{Type: queue.TaskPurgeImages})
}

func (s *Scheduler) enqueue(task queue.Task) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.log.Error().Err(err).Str("task", string(task.Type)).Msg("enqueue task failed")
		return
	}
	s.log.Debug().Str("task", string(task.Type)).Msg("task enqueued")
}
