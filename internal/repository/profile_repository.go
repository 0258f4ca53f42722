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

type MongoProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *MongoProfileRepository {
	return &MongoProfileRepository{coll: db.Collection(projection.ProfilesCollection)}
}

func (r *MongoProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	now := time.Now().UTC()
	if profile.ID.IsZero() {
		profile.ID = primitive.NewObjectID()
	}
	profile.CreatedAt = now
	profile.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, profile); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (r *MongoProfileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (models.Profile, error) {
	var profile models.Profile
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&profile); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Profile{}, ErrProfileNotFound
		}
		return models.Profile{}, err
	}
	return profile, nil
}

func (r *MongoProfileRepository) List(ctx context.Context, page models.Page) ([]models.Profile, error) {
	page = page.Normalize()
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.PerPage))

	cursor, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}

	profiles := []models.Profile{}
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *MongoProfileRepository) Update(ctx context.Context, id primitive.ObjectID, update models.ProfileUpdate) (models.Profile, error) {
	if update.Empty() {
		return r.GetByID(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var profile models.Profile
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, profileUpdateDocument(update), opts).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Profile{}, ErrProfileNotFound
		}
		return models.Profile{}, err
	}
	return profile, nil
}

// profileUpdateDocument puts present values into $set and explicit nulls into
// $unset; absent fields are left untouched.
func profileUpdateDocument(update models.ProfileUpdate) bson.D {
	set := bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}
	unset := bson.D{}

	apply := func(field string, patch models.Patch[string]) {
		if !patch.Present {
			return
		}
		if patch.Value == nil {
			unset = append(unset, bson.E{Key: field, Value: ""})
			return
		}
		set = append(set, bson.E{Key: field, Value: *patch.Value})
	}
	apply("displayName", update.DisplayName)
	apply("aboutDesc", update.AboutDesc)
	apply("profilePictureUri", update.ProfilePictureURI)

	doc := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		doc = append(doc, bson.E{Key: "$unset", Value: unset})
	}
	return doc
}

func (r *MongoProfileRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *MongoProfileRepository) PictureNames(ctx context.Context) ([]string, error) {
	values, err := r.coll.Distinct(ctx, "profilePictureUri", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("distinct pictures: %w", err)
	}
	return stringValues(values), nil
}

func stringValues(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
