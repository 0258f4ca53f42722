package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/miskyy7507/vibezone/internal/config"
)

// MinMongoMajor is the oldest server release whose $lookup accepts
// localField/foreignField together with a sub-pipeline.
const MinMongoMajor = 5

func NewMongoClient(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	if err := CheckMongoVersion(ctx, client); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

// CheckMongoVersion fails when the server is older than MinMongoMajor.
func CheckMongoVersion(ctx context.Context, client *mongo.Client) error {
	var info struct {
		Version      string  `bson:"version"`
		VersionArray []int32 `bson:"versionArray"`
	}
	err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&info)
	if err != nil {
		return fmt.Errorf("mongo buildInfo: %w", err)
	}
	return supportedMongo(info.Version, info.VersionArray)
}

func supportedMongo(version string, parts []int32) error {
	if len(parts) == 0 || parts[0] < MinMongoMajor {
		return fmt.Errorf("mongo %q is not supported, need %d.0 or newer", version, MinMongoMajor)
	}
	return nil
}
