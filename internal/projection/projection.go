// Package projection builds the client-facing read model of posts and
// comments: the author is joined in as a restricted profile, likeCount and
// isLikedByUser are derived from the like set, and the like set itself is
// never returned.
package projection

import (
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/miskyy7507/vibezone/internal/models"
)

const (
	ProfilesCollection = "profiles"

	PostAuthorField  = "author"
	CommentUserField = "user"
)

// Query selects the documents to project. Viewer nil means anonymous.
type Query struct {
	Match  bson.D
	Viewer *primitive.ObjectID
	Skip   int64
	Limit  int64
}

func PostPipeline(q Query) mongo.Pipeline {
	return pipeline(q, PostAuthorField)
}

func CommentPipeline(q Query) mongo.Pipeline {
	return pipeline(q, CommentUserField)
}

// pipeline sorts newest-first, pages, then joins the referenced profile and
// computes the engagement fields in the same pass.
func pipeline(q Query, refField string) mongo.Pipeline {
	match := q.Match
	if match == nil {
		match = bson.D{}
	}

	stages := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
	}
	if q.Skip > 0 {
		stages = append(stages, bson.D{{Key: "$skip", Value: q.Skip}})
	}
	if q.Limit > 0 {
		stages = append(stages, bson.D{{Key: "$limit", Value: q.Limit}})
	}

	likes := bson.D{{Key: "$ifNull", Value: bson.A{"$usersWhoLiked", bson.A{}}}}

	stages = append(stages,
		bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: ProfilesCollection},
			{Key: "localField", Value: refField},
			{Key: "foreignField", Value: "_id"},
			{Key: "pipeline", Value: mongo.Pipeline{
				{{Key: "$project", Value: AuthorFields()}},
			}},
			{Key: "as", Value: refField},
		}}},
		// Entities whose profile is gone are dropped.
		bson.D{{Key: "$unwind", Value: "$" + refField}},
		bson.D{{Key: "$addFields", Value: bson.D{
			{Key: "likeCount", Value: bson.D{{Key: "$size", Value: likes}}},
			{Key: "isLikedByUser", Value: likedExpr(q.Viewer, likes)},
		}}},
		bson.D{{Key: "$project", Value: bson.D{{Key: "usersWhoLiked", Value: 0}}}},
	)
	return stages
}

// AuthorFields is the only part of a profile that may be embedded in content.
func AuthorFields() bson.D {
	return bson.D{
		{Key: "_id", Value: 1},
		{Key: "username", Value: 1},
		{Key: "displayName", Value: 1},
		{Key: "profilePictureUri", Value: 1},
	}
}

func likedExpr(viewer *primitive.ObjectID, likes bson.D) bson.D {
	if viewer == nil {
		return bson.D{{Key: "$literal", Value: false}}
	}
	return bson.D{{Key: "$in", Value: bson.A{*viewer, likes}}}
}

func AuthorOf(p models.Profile) models.Author {
	return models.Author{
		ID:                p.ID,
		Username:          p.Username,
		DisplayName:       p.DisplayName,
		ProfilePictureURI: p.ProfilePictureURI,
	}
}

func ProjectPost(p models.Post, author models.Profile, viewer *primitive.ObjectID) models.PostView {
	return models.PostView{
		ID:            p.ID,
		Author:        AuthorOf(author),
		Content:       p.Content,
		ImageURL:      p.ImageURL,
		CommentCount:  p.CommentCount,
		LikeCount:     len(p.UsersWhoLiked),
		IsLikedByUser: likedBy(p.UsersWhoLiked, viewer),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func ProjectComment(c models.Comment, user models.Profile, viewer *primitive.ObjectID) models.CommentView {
	return models.CommentView{
		ID:            c.ID,
		Post:          c.Post,
		User:          AuthorOf(user),
		Content:       c.Content,
		LikeCount:     len(c.UsersWhoLiked),
		IsLikedByUser: likedBy(c.UsersWhoLiked, viewer),
		CreatedAt:     c.CreatedAt,
	}
}

func likedBy(likes []primitive.ObjectID, viewer *primitive.ObjectID) bool {
	if viewer == nil {
		return false
	}
	for _, id := range likes {
		if id == *viewer {
			return true
		}
	}
	return false
}

// ProfileLookup resolves a profile reference; ok is false when it is gone.
type ProfileLookup func(id primitive.ObjectID) (models.Profile, bool)

// SortPosts orders posts newest first, ties broken by id, like the $sort
// stage of PostPipeline.
func SortPosts(posts []models.Post) []models.Post {
	sorted := append([]models.Post(nil), posts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return newer(sorted[i].CreatedAt.UnixNano(), sorted[i].ID, sorted[j].CreatedAt.UnixNano(), sorted[j].ID)
	})
	return sorted
}

func SortComments(comments []models.Comment) []models.Comment {
	sorted := append([]models.Comment(nil), comments...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return newer(sorted[i].CreatedAt.UnixNano(), sorted[i].ID, sorted[j].CreatedAt.UnixNano(), sorted[j].ID)
	})
	return sorted
}

// ProjectPosts sorts posts and drops those whose author is gone. It does not
// page: PostPipeline applies $skip/$limit before the author join, so callers
// that mirror it page the output of SortPosts first and may get short pages.
func ProjectPosts(posts []models.Post, lookup ProfileLookup, viewer *primitive.ObjectID) []models.PostView {
	sorted := SortPosts(posts)
	out := make([]models.PostView, 0, len(sorted))
	for _, p := range sorted {
		author, ok := lookup(p.Author)
		if !ok {
			continue
		}
		out = append(out, ProjectPost(p, author, viewer))
	}
	return out
}

func ProjectComments(comments []models.Comment, lookup ProfileLookup, viewer *primitive.ObjectID) []models.CommentView {
	sorted := SortComments(comments)
	out := make([]models.CommentView, 0, len(sorted))
	for _, c := range sorted {
		user, ok := lookup(c.User)
		if !ok {
			continue
		}
		out = append(out, ProjectComment(c, user, viewer))
	}
	return out
}

func newer(aTime int64, aID primitive.ObjectID, bTime int64, bID primitive.ObjectID) bool {
	if aTime != bTime {
		return aTime > bTime
	}
	return aID.Hex() > bID.Hex()
}
