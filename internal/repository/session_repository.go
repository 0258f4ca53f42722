package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/miskyy7507/vibezone/internal/models"
)

const (
	sessionKeyPrefix      = "session:"
	profileSessionsPrefix = "session:profile:"
)

// RedisSessionRepository stores each session under its token with a TTL and
// indexes live tokens per profile in a sorted set scored by creation time.
type RedisSessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func sessionKey(token string) string {
	return sessionKeyPrefix + token
}

func profileSessionsKey(profileID string) string {
	return profileSessionsPrefix + profileID
}

func (r *RedisSessionRepository) Create(ctx context.Context, session models.Session, ttl time.Duration) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	index := profileSessionsKey(session.ProfileID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.Token), payload, ttl)
		pipe.ZAdd(ctx, index, redis.Z{Score: float64(session.CreatedAt.UnixNano()), Member: session.Token})
		pipe.Expire(ctx, index, ttl)
		return nil
	})
	return err
}

func (r *RedisSessionRepository) Get(ctx context.Context, token string) (models.Session, error) {
	raw, err := r.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Session{}, ErrSessionNotFound
		}
		return models.Session{}, err
	}

	var session models.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return models.Session{}, fmt.Errorf("decode session: %w", err)
	}
	session.Token = token
	return session, nil
}

// Touch slides the expiry of a live session, and of its profile index, forward.
func (r *RedisSessionRepository) Touch(ctx context.Context, token string, ttl time.Duration) error {
	session, err := r.Get(ctx, token)
	if err != nil {
		return err
	}

	var renewed *redis.BoolCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		renewed = pipe.Expire(ctx, sessionKey(token), ttl)
		pipe.Expire(ctx, profileSessionsKey(session.ProfileID), ttl)
		return nil
	})
	if err != nil {
		return err
	}
	if !renewed.Val() {
		return ErrSessionNotFound
	}
	return nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, token string) error {
	session, err := r.Get(ctx, token)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(token))
		pipe.ZRem(ctx, profileSessionsKey(session.ProfileID), token)
		return nil
	})
	return err
}

func (r *RedisSessionRepository) DeleteByProfile(ctx context.Context, profileID string) error {
	index := profileSessionsKey(profileID)
	tokens, err := r.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}
	keys = append(keys, index)
	return r.client.Del(ctx, keys...).Err()
}

// EnforceLimit keeps the newest keep sessions of a profile and destroys the rest.
func (r *RedisSessionRepository) EnforceLimit(ctx context.Context, profileID string, keep int) error {
	if keep <= 0 {
		return nil
	}
	index := profileSessionsKey(profileID)

	// Drop index entries whose session already expired.
	tokens, err := r.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return err
	}
	for _, token := range tokens {
		exists, err := r.client.Exists(ctx, sessionKey(token)).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			if err := r.client.ZRem(ctx, index, token).Err(); err != nil {
				return err
			}
		}
	}

	count, err := r.client.ZCard(ctx, index).Result()
	if err != nil {
		return err
	}
	excess := count - int64(keep)
	if excess <= 0 {
		return nil
	}

	oldest, err := r.client.ZRange(ctx, index, 0, excess-1).Result()
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, token := range oldest {
			pipe.Del(ctx, sessionKey(token))
			pipe.ZRem(ctx, index, token)
		}
		return nil
	})
	return err
}
