package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Post struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Author        primitive.ObjectID   `bson:"author"`
	Content       string               `bson:"content"`
	ImageURL      *string              `bson:"imageUrl,omitempty"`
	UsersWhoLiked []primitive.ObjectID `bson:"usersWhoLiked"`
	CommentCount  int                  `bson:"commentCount"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

type Comment struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Post          primitive.ObjectID   `bson:"post"`
	User          primitive.ObjectID   `bson:"user"`
	Content       string               `bson:"content"`
	UsersWhoLiked []primitive.ObjectID `bson:"usersWhoLiked"`
	CreatedAt     time.Time            `bson:"createdAt"`
}

// Author is the public slice of a profile embedded into posts and comments.
type Author struct {
	ID                primitive.ObjectID `bson:"_id" json:"_id"`
	Username          string             `bson:"username" json:"username"`
	DisplayName       *string            `bson:"displayName,omitempty" json:"displayName,omitempty"`
	ProfilePictureURI *string            `bson:"profilePictureUri,omitempty" json:"profilePictureUri,omitempty"`
}

type PostView struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	Author        Author             `bson:"author" json:"author"`
	Content       string             `bson:"content" json:"content"`
	ImageURL      *string            `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CommentCount  int                `bson:"commentCount" json:"commentCount"`
	LikeCount     int                `bson:"likeCount" json:"likeCount"`
	IsLikedByUser bool               `bson:"isLikedByUser" json:"isLikedByUser"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type CommentView struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	Post          primitive.ObjectID `bson:"post" json:"post"`
	User          Author             `bson:"user" json:"user"`
	Content       string             `bson:"content" json:"content"`
	LikeCount     int                `bson:"likeCount" json:"likeCount"`
	IsLikedByUser bool               `bson:"isLikedByUser" json:"isLikedByUser"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// Page is a 1-based pagination window.
type Page struct {
	Number  int
	PerPage int
}

const (
	DefaultPerPage = 50
	MaxPerPage     = 200
)

func (p Page) Normalize() Page {
	if p.PerPage <= 0 || p.PerPage > MaxPerPage {
		p.PerPage = DefaultPerPage
	}
	if p.Number < 1 {
		p.Number = 1
	}
	return p
}

func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Number - 1) * p.PerPage
}
