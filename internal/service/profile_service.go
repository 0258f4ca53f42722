package service

import (
	"context"
	"mime/multipart"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/policy"
	"github.com/miskyy7507/vibezone/internal/repository"
	"github.com/miskyy7507/vibezone/internal/validation"
)

type ProfileService struct {
	profiles repository.ProfileRepository
	uploads  *UploadService
	log      zerolog.Logger
}

func NewProfileService(profiles repository.ProfileRepository, uploads *UploadService, log zerolog.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		uploads:  uploads,
		log:      log,
	}
}

func (s *ProfileService) List(ctx context.Context, page models.Page) ([]models.Profile, error) {
	return s.profiles.List(ctx, page)
}

func (s *ProfileService) Get(ctx context.Context, id primitive.ObjectID) (models.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	return profile, translate(err)
}

type UpdateProfileInput struct {
	DisplayName models.Patch[string] `json:"displayName"`
	AboutDesc   models.Patch[string] `json:"aboutDesc"`
}

// Update edits the viewer's own profile. A present string sets a field, an
// explicit null or a blank string unsets it, an absent key leaves it.
func (s *ProfileService) Update(ctx context.Context, viewer *policy.Viewer, input UpdateProfileInput) (models.Profile, error) {
	if err := policy.Authenticated(viewer); err != nil {
		return models.Profile{}, err
	}

	displayName, err := textPatch("displayName", input.DisplayName, validation.MaxDisplayNameLength)
	if err != nil {
		return models.Profile{}, err
	}
	about, err := textPatch("aboutDesc", input.AboutDesc, validation.MaxAboutLength)
	if err != nil {
		return models.Profile{}, err
	}

	profile, err := s.profiles.Update(ctx, viewer.ProfileID, models.ProfileUpdate{
		DisplayName: displayName,
		AboutDesc:   about,
	})
	return profile, translate(err)
}

func textPatch(field string, patch models.Patch[string], max int) (models.Patch[string], error) {
	if !patch.Present || patch.Value == nil {
		return patch, nil
	}
	value, err := validation.OptionalText(field, patch.Value, max)
	if err != nil {
		return models.Patch[string]{}, err
	}
	if value == nil {
		return models.Unset[string](), nil
	}
	return models.Set(*value), nil
}

// SetPicture stores a new profile picture and drops the previous one.
func (s *ProfileService) SetPicture(ctx context.Context, viewer *policy.Viewer, header *multipart.FileHeader) (models.Profile, error) {
	if err := policy.Authenticated(viewer); err != nil {
		return models.Profile{}, err
	}
	current, err := s.profiles.GetByID(ctx, viewer.ProfileID)
	if err != nil {
		return models.Profile{}, translate(err)
	}

	name, err := s.uploads.Save(ctx, "image", header)
	if err != nil {
		return models.Profile{}, err
	}

	profile, err := s.profiles.Update(ctx, viewer.ProfileID, models.ProfileUpdate{
		ProfilePictureURI: models.Set(name),
	})
	if err != nil {
		s.uploads.Remove(ctx, name)
		return models.Profile{}, translate(err)
	}

	if current.ProfilePictureURI != nil {
		s.uploads.Remove(ctx, *current.ProfilePictureURI)
	}
	return profile, nil
}

func (s *ProfileService) RemovePicture(ctx context.Context, viewer *policy.Viewer) (models.Profile, error) {
	if err := policy.Authenticated(viewer); err != nil {
		return models.Profile{}, err
	}
	current, err := s.profiles.GetByID(ctx, viewer.ProfileID)
	if err != nil {
		return models.Profile{}, translate(err)
	}
	if current.ProfilePictureURI == nil {
		return current, nil
	}

	profile, err := s.profiles.Update(ctx, viewer.ProfileID, models.ProfileUpdate{
		ProfilePictureURI: models.Unset[string](),
	})
	if err != nil {
		return models.Profile{}, translate(err)
	}
	s.uploads.Remove(ctx, *current.ProfilePictureURI)
	return profile, nil
}
