// Package policy decides who may mutate posts, comments and profiles.
package policy

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/apperr"
	"github.com/miskyy7507/vibezone/internal/models"
)

// Viewer is the identity resolved from the request session. A nil *Viewer is
// an anonymous caller.
type Viewer struct {
	ProfileID primitive.ObjectID
	Role      models.UserRole
}

func FromSession(session models.Session) (*Viewer, error) {
	id, err := primitive.ObjectIDFromHex(session.ProfileID)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}
	return &Viewer{ProfileID: id, Role: session.Role}, nil
}

// ID returns the viewer's profile id, or nil for anonymous callers.
func (v *Viewer) ID() *primitive.ObjectID {
	if v == nil || v.ProfileID.IsZero() {
		return nil
	}
	id := v.ProfileID
	return &id
}

func (v *Viewer) IsModerator() bool {
	return v != nil && v.Role == models.UserRoleModerator
}

// Authenticated fails with ErrUnauthorized for anonymous callers.
func Authenticated(v *Viewer) error {
	if v == nil || v.ProfileID.IsZero() {
		return apperr.ErrUnauthorized
	}
	return nil
}

// CanModify allows the owner of a resource or any moderator.
func CanModify(v *Viewer, owner primitive.ObjectID) error {
	if err := Authenticated(v); err != nil {
		return err
	}
	if v.ProfileID == owner || v.IsModerator() {
		return nil
	}
	return apperr.ErrForbidden
}
