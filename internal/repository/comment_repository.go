package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/projection"
)

const commentsCollection = "comments"

type MongoCommentRepository struct {
	coll *mongo.Collection
}

func NewCommentRepository(db *mongo.Database) *MongoCommentRepository {
	return &MongoCommentRepository{coll: db.Collection(commentsCollection)}
}

func (r *MongoCommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	if comment.UsersWhoLiked == nil {
		comment.UsersWhoLiked = []primitive.ObjectID{}
	}
	comment.CreatedAt = time.Now().UTC()

	_, err := r.coll.InsertOne(ctx, comment)
	return err
}

func (r *MongoCommentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (models.Comment, error) {
	var comment models.Comment
	if err := r.coll.FindOne(ctx, byID(id)).Decode(&comment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Comment{}, ErrCommentNotFound
		}
		return models.Comment{}, err
	}
	return comment, nil
}

func (r *MongoCommentRepository) ListViews(ctx context.Context, filter CommentFilter) ([]models.CommentView, error) {
	page := filter.Page.Normalize()
	cursor, err := r.coll.Aggregate(ctx, projection.CommentPipeline(projection.Query{
		Match:  bson.D{{Key: "post", Value: filter.Post}},
		Viewer: filter.Viewer,
		Skip:   int64(page.Offset()),
		Limit:  int64(page.PerPage),
	}))
	if err != nil {
		return nil, fmt.Errorf("aggregate comments: %w", err)
	}

	views := []models.CommentView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return views, nil
}

func (r *MongoCommentRepository) ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.Comment, error) {
	cursor, err := r.coll.Find(ctx, bson.D{{Key: "user", Value: user}})
	if err != nil {
		return nil, err
	}
	comments := []models.Comment{}
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *MongoCommentRepository) CountByPost(ctx context.Context, post primitive.ObjectID) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "post", Value: post}})
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *MongoCommentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrCommentNotFound
	}
	return nil
}

func (r *MongoCommentRepository) DeleteByPost(ctx context.Context, post primitive.ObjectID) (int, error) {
	res, err := r.coll.DeleteMany(ctx, bson.D{{Key: "post", Value: post}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (r *MongoCommentRepository) AddLike(ctx context.Context, id, profileID primitive.ObjectID) error {
	return r.updateOne(ctx, id, bson.D{{Key: "$addToSet", Value: bson.D{{Key: "usersWhoLiked", Value: profileID}}}})
}

func (r *MongoCommentRepository) RemoveLike(ctx context.Context, id, profileID primitive.ObjectID) error {
	return r.updateOne(ctx, id, bson.D{{Key: "$pull", Value: bson.D{{Key: "usersWhoLiked", Value: profileID}}}})
}

func (r *MongoCommentRepository) RemoveLikesBy(ctx context.Context, profileID primitive.ObjectID) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.D{{Key: "usersWhoLiked", Value: profileID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "usersWhoLiked", Value: profileID}}}},
	)
	return err
}

func (r *MongoCommentRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.D) error {
	res, err := r.coll.UpdateOne(ctx, byID(id), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrCommentNotFound
	}
	return nil
}
