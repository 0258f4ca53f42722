package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/projection"
)

const postsCollection = "posts"

type MongoPostRepository struct {
	coll *mongo.Collection
}

func NewPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{coll: db.Collection(postsCollection)}
}

func byID(id primitive.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

func (r *MongoPostRepository) Create(ctx context.Context, post *models.Post) error {
	now := time.Now().UTC()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.UsersWhoLiked == nil {
		post.UsersWhoLiked = []primitive.ObjectID{}
	}
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := r.coll.InsertOne(ctx, post)
	return err
}

func (r *MongoPostRepository) GetByID(ctx context.Context, id primitive.ObjectID) (models.Post, error) {
	var post models.Post
	if err := r.coll.FindOne(ctx, byID(id)).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Post{}, ErrPostNotFound
		}
		return models.Post{}, err
	}
	return post, nil
}

func (r *MongoPostRepository) View(ctx context.Context, id primitive.ObjectID, viewer *primitive.ObjectID) (models.PostView, error) {
	views, err := r.aggregate(ctx, projection.Query{Match: byID(id), Viewer: viewer, Limit: 1})
	if err != nil {
		return models.PostView{}, err
	}
	if len(views) == 0 {
		return models.PostView{}, ErrPostNotFound
	}
	return views[0], nil
}

func (r *MongoPostRepository) ListViews(ctx context.Context, filter PostFilter) ([]models.PostView, error) {
	page := filter.Page.Normalize()
	match := bson.D{}
	if filter.Author != nil {
		match = append(match, bson.E{Key: "author", Value: *filter.Author})
	}
	return r.aggregate(ctx, projection.Query{
		Match:  match,
		Viewer: filter.Viewer,
		Skip:   int64(page.Offset()),
		Limit:  int64(page.PerPage),
	})
}

func (r *MongoPostRepository) aggregate(ctx context.Context, q projection.Query) ([]models.PostView, error) {
	cursor, err := r.coll.Aggregate(ctx, projection.PostPipeline(q))
	if err != nil {
		return nil, fmt.Errorf("aggregate posts: %w", err)
	}
	views := []models.PostView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return views, nil
}

func (r *MongoPostRepository) ListByAuthor(ctx context.Context, author primitive.ObjectID) ([]models.Post, error) {
	cursor, err := r.coll.Find(ctx, bson.D{{Key: "author", Value: author}})
	if err != nil {
		return nil, err
	}
	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *MongoPostRepository) ListIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var ids []primitive.ObjectID
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

func (r *MongoPostRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *MongoPostRepository) AddLike(ctx context.Context, id, profileID primitive.ObjectID) error {
	return r.updateOne(ctx, id, bson.D{{Key: "$addToSet", Value: bson.D{{Key: "usersWhoLiked", Value: profileID}}}})
}

func (r *MongoPostRepository) RemoveLike(ctx context.Context, id, profileID primitive.ObjectID) error {
	return r.updateOne(ctx, id, bson.D{{Key: "$pull", Value: bson.D{{Key: "usersWhoLiked", Value: profileID}}}})
}

func (r *MongoPostRepository) RemoveLikesBy(ctx context.Context, profileID primitive.ObjectID) error {
	_, err := r.coll.UpdateMany(ctx,
		bson.D{{Key: "usersWhoLiked", Value: profileID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "usersWhoLiked", Value: profileID}}}},
	)
	return err
}

func (r *MongoPostRepository) IncrementComments(ctx context.Context, id primitive.ObjectID, delta int) error {
	return r.updateOne(ctx, id, bson.D{{Key: "$inc", Value: bson.D{{Key: "commentCount", Value: delta}}}})
}

func (r *MongoPostRepository) SetCommentCount(ctx context.Context, id primitive.ObjectID, expected, count int) (bool, error) {
	res, err := r.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "commentCount", Value: expected}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "commentCount", Value: count}}}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoPostRepository) updateOne(ctx context.Context, id primitive.ObjectID, update bson.D) error {
	res, err := r.coll.UpdateOne(ctx, byID(id), update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *MongoPostRepository) ImageNames(ctx context.Context) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "imageUrl", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct images: %w", err)
	}
	return stringValues(values), nil
}
