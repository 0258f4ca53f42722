package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type TaskType string

const (
	TaskRecountComments TaskType = "recount_comments"
	TaskPurgeImages     TaskType = "purge_images"
	TaskRevokeSessions  TaskType = "revoke_sessions"
)

// Task is one maintenance job. PostID narrows a recount to a single post;
// ProfileID names whose sessions to revoke.
type Task struct {
	Type      TaskType
	PostID    string
	ProfileID string
}

func (t Task) values() map[string]any {
	values := map[string]any{"type": string(t.Type)}
	if t.PostID != "" {
		values["postId"] = t.PostID
	}
	if t.ProfileID != "" {
		values["profileId"] = t.ProfileID
	}
	return values
}

// DecodeTask reads a task back from stream entry fields.
func DecodeTask(values map[string]interface{}) (Task, error) {
	kind, _ := values["type"].(string)
	if kind == "" {
		return Task{}, fmt.Errorf("task without type")
	}
	task := Task{Type: TaskType(kind)}
	task.PostID, _ = values["postId"].(string)
	task.ProfileID, _ = values["profileId"].(string)
	return task, nil
}

type Publisher struct {
	client *redis.Client
	stream string
}

func NewPublisher(client *redis.Client, stream string) *Publisher {
	return &Publisher{client: client, stream: stream}
}

func (p *Publisher) Enqueue(ctx context.Context, task Task) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("queue not configured")
	}
	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: task.values(),
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	return nil
}
