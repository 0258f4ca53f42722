package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/miskyy7507/vibezone/internal/projection"
)

// NewRepositories wires credentials to Postgres, content to Mongo and
// sessions to Redis.
func NewRepositories(pool *pgxpool.Pool, db *mongo.Database, cache *redis.Client) Repositories {
	return Repositories{
		Users:    NewUserRepository(pool),
		Profiles: NewProfileRepository(db),
		Posts:    NewPostRepository(db),
		Comments: NewCommentRepository(db),
		Sessions: NewSessionRepository(cache),
	}
}

// EnsureIndexes creates the indexes the queries and invariants rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		projection.ProfilesCollection: {
			{
				Keys:    bson.D{{Key: "username", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("username_unique"),
			},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
		postsCollection: {
			{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "usersWhoLiked", Value: 1}}},
		},
		commentsCollection: {
			{Keys: bson.D{{Key: "post", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "user", Value: 1}}},
			{Keys: bson.D{{Key: "usersWhoLiked", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
