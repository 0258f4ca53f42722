package models

import (
	"bytes"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Profile struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username          string             `bson:"username" json:"username"`
	DisplayName       *string            `bson:"displayName,omitempty" json:"displayName,omitempty"`
	ProfilePictureURI *string            `bson:"profilePictureUri,omitempty" json:"profilePictureUri,omitempty"`
	AboutDesc         *string            `bson:"aboutDesc,omitempty" json:"aboutDesc,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Patch distinguishes an absent JSON key from an explicit null. Present with
// a nil Value means the field should be unset.
type Patch[T any] struct {
	Present bool
	Value   *T
}

func Set[T any](v T) Patch[T] {
	return Patch[T]{Present: true, Value: &v}
}

func Unset[T any]() Patch[T] {
	return Patch[T]{Present: true}
}

func (p *Patch[T]) UnmarshalJSON(data []byte) error {
	p.Present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		p.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p.Value = &v
	return nil
}

type ProfileUpdate struct {
	DisplayName       Patch[string]
	AboutDesc         Patch[string]
	ProfilePictureURI Patch[string]
}

func (u ProfileUpdate) Empty() bool {
	return !u.DisplayName.Present && !u.AboutDesc.Present && !u.ProfilePictureURI.Present
}
