package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/miskyy7507/vibezone/internal/apperr"
	"github.com/miskyy7507/vibezone/internal/config"
	"github.com/miskyy7507/vibezone/internal/ids"
	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/repository"
	"github.com/miskyy7507/vibezone/internal/security"
	"github.com/miskyy7507/vibezone/internal/validation"
)

// ErrInvalidCredentials covers unknown logins, wrong passwords and banned
// accounts alike.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)

const sessionTokenBytes = 32

type AuthService struct {
	users    repository.UserRepository
	profiles repository.ProfileRepository
	sessions repository.SessionRepository
	cfg      config.SecurityConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	sessions repository.SessionRepository,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		profiles: profiles,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Account is a public profile together with the role of its credential.
type Account struct {
	models.Profile
	Role models.UserRole `json:"role"`
}

type RegisterInput struct {
	Username    string
	Password    string
	DisplayName *string
}

func (s *AuthService) roleFor(login string) models.UserRole {
	for _, m := range s.cfg.Moderators {
		if strings.EqualFold(strings.TrimSpace(m), login) {
			return models.UserRoleModerator
		}
	}
	return models.UserRoleUser
}

// PromoteModerators grants the moderator role to every configured login
// that already has an account. Open sessions keep their old role until the
// next login. Unknown logins are skipped with a warning.
func (s *AuthService) PromoteModerators(ctx context.Context) error {
	for _, raw := range s.cfg.Moderators {
		login := strings.ToLower(strings.TrimSpace(raw))
		if login == "" {
			continue
		}
		err := s.users.SetRole(ctx, login, models.UserRoleModerator)
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			s.log.Warn().Str("login", login).Msg("configured moderator has no account")
		case err != nil:
			return fmt.Errorf("promote %s: %w", login, err)
		default:
			s.log.Info().Str("login", login).Msg("moderator role granted")
		}
	}
	return nil
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.Profile, error) {
	username, err := validation.Username(input.Username)
	if err != nil {
		return models.Profile{}, err
	}
	if err := validation.Password(input.Password); err != nil {
		return models.Profile{}, err
	}
	displayName, err := validation.OptionalText("displayName", input.DisplayName, validation.MaxDisplayNameLength)
	if err != nil {
		return models.Profile{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return models.Profile{}, err
	}

	profile := models.Profile{Username: username, DisplayName: displayName}
	if err := s.profiles.Create(ctx, &profile); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return models.Profile{}, apperr.Duplicate("username", "This username is already taken.")
		}
		return models.Profile{}, fmt.Errorf("create profile: %w", err)
	}

	user := models.User{
		ID:           ids.New(),
		ProfileID:    profile.ID.Hex(),
		Login:        strings.ToLower(username),
		PasswordHash: passwordHash,
		Role:         s.roleFor(username),
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if delErr := s.profiles.Delete(ctx, profile.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("profile_id", profile.ID.Hex()).Msg("remove profile after failed registration")
		}
		if errors.Is(err, repository.ErrLoginTaken) {
			return models.Profile{}, apperr.Duplicate("username", "This username is already taken.")
		}
		return models.Profile{}, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("profile_id", profile.ID.Hex()).Str("username", username).Msg("profile registered")
	return profile, nil
}

type LoginInput struct {
	Login    string
	Password string
	// PriorToken is the session token presented with the request, if any.
	// It is destroyed so a fixated token never becomes authenticated.
	PriorToken string
}

type LoginResult struct {
	Account Account
	Token   string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	login := strings.ToLower(strings.TrimSpace(input.Login))
	if login == "" || input.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !user.Active {
		return LoginResult{}, ErrInvalidCredentials
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash unreadable")
		return LoginResult{}, ErrInvalidCredentials
	}
	if !ok {
		return LoginResult{}, ErrInvalidCredentials
	}

	profileID, err := objectID(user.ProfileID)
	if err != nil {
		return LoginResult{}, err
	}
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	if input.PriorToken != "" {
		if err := s.sessions.Delete(ctx, input.PriorToken); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
			return LoginResult{}, fmt.Errorf("drop prior session: %w", err)
		}
	}

	token, err := security.GenerateSessionToken(sessionTokenBytes)
	if err != nil {
		return LoginResult{}, err
	}
	session := models.Session{
		Token:     token,
		ProfileID: user.ProfileID,
		Role:      user.Role,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sessions.Create(ctx, session, s.cfg.SessionTTL); err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}

	if err := s.sessions.EnforceLimit(ctx, user.ProfileID, s.cfg.MaxSessions); err != nil {
		s.log.Warn().Err(err).Str("profile_id", user.ProfileID).Msg("enforce session limit failed")
	}

	return LoginResult{
		Account: Account{Profile: profile, Role: user.Role},
		Token:   token,
	}, nil
}

// Resolve returns the live session behind token and extends its lifetime.
func (s *AuthService) Resolve(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, apperr.ErrUnauthorized
	}
	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return models.Session{}, apperr.ErrUnauthorized
		}
		return models.Session{}, err
	}

	if err := s.sessions.Touch(ctx, token, s.cfg.SessionTTL); err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		s.log.Warn().Err(err).Str("profile_id", session.ProfileID).Msg("extend session failed")
	}
	return session, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return apperr.ErrUnauthorized
		}
		return err
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, session models.Session) (Account, error) {
	profileID, err := objectID(session.ProfileID)
	if err != nil {
		return Account{}, err
	}
	profile, err := s.profiles.GetByID(ctx, profileID)
	if err != nil {
		return Account{}, translate(err)
	}
	return Account{Profile: profile, Role: session.Role}, nil
}
