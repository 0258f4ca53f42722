package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miskyy7507/vibezone/internal/apperr"
	"github.com/miskyy7507/vibezone/internal/config"
	"github.com/miskyy7507/vibezone/internal/models"
)

func TestRegisterThenLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	name := "Alice Liddell"
	profile, err := h.auth.Register(ctx, RegisterInput{Username: "alice", Password: testPassword, DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	require.NotNil(t, profile.DisplayName)
	assert.Equal(t, name, *profile.DisplayName)

	user, ok := h.mem.UserByLogin("alice")
	require.True(t, ok)
	assert.NotContains(t, string(user.PasswordHash), testPassword)
	assert.True(t, strings.HasPrefix(string(user.PasswordHash), "$argon2id$"))

	res, err := h.auth.Login(ctx, LoginInput{Login: "ALICE", Password: testPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, profile.ID, res.Account.ID)
	assert.Equal(t, models.UserRoleUser, res.Account.Role)

	session, err := h.auth.Resolve(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, profile.ID.Hex(), session.ProfileID)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	tests := []struct {
		name     string
		input    RegisterInput
		item     string
		conflict bool
	}{
		{"short username", RegisterInput{Username: "al", Password: testPassword}, "username", false},
		{"bad characters", RegisterInput{Username: "al ice", Password: testPassword}, "username", false},
		{"weak password", RegisterInput{Username: "bob", Password: "password"}, "password", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.auth.Register(ctx, tt.input)
			var fe *apperr.FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.item, fe.Field)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "alice")

	_, err := h.auth.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Same login in another case: the profile insert succeeds, the credential
	// insert fails and the profile is removed again.
	_, err = h.auth.Register(ctx, RegisterInput{Username: "Alice", Password: testPassword})
	var fe *apperr.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "username", fe.Field)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	profiles, err := h.profiles.List(ctx, models.Page{})
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestLoginRejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	v := h.signup(t, "alice")

	_, err := h.auth.Login(ctx, LoginInput{Login: "alice", Password: "Wrong1!pass"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = h.auth.Login(ctx, LoginInput{Login: "nobody", Password: testPassword})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, h.mem.Repositories().Users.Deactivate(ctx, v.ProfileID.Hex()))
	_, err = h.auth.Login(ctx, LoginInput{Login: "alice", Password: testPassword})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestLoginRegeneratesSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "alice")

	first, err := h.auth.Login(ctx, LoginInput{Login: "alice", Password: testPassword})
	require.NoError(t, err)

	second, err := h.auth.Login(ctx, LoginInput{Login: "alice", Password: testPassword, PriorToken: first.Token})
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	_, err = h.auth.Resolve(ctx, first.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = h.auth.Resolve(ctx, second.Token)
	assert.NoError(t, err)
}

func TestLoginCapsSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	v := h.signup(t, "alice")

	var tokens []string
	for i := 0; i < 5; i++ {
		res, err := h.auth.Login(ctx, LoginInput{Login: "alice", Password: testPassword})
		require.NoError(t, err)
		tokens = append(tokens, res.Token)
	}

	assert.Len(t, h.mem.SessionsOf(v.ProfileID.Hex()), 3)
	_, err := h.auth.Resolve(ctx, tokens[0])
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = h.auth.Resolve(ctx, tokens[4])
	assert.NoError(t, err)
}

func TestLogoutAndMe(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.signup(t, "alice")

	res, err := h.auth.Login(ctx, LoginInput{Login: "alice", Password: testPassword})
	require.NoError(t, err)

	session, err := h.auth.Resolve(ctx, res.Token)
	require.NoError(t, err)
	me, err := h.auth.Me(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	require.NoError(t, h.auth.Logout(ctx, res.Token))
	assert.ErrorIs(t, h.auth.Logout(ctx, res.Token), apperr.ErrUnauthorized)
	_, err = h.auth.Resolve(ctx, res.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestConfiguredModerators(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	repos := h.mem.Repositories()

	_, err := h.auth.Register(ctx, RegisterInput{Username: "alice", Password: testPassword})
	require.NoError(t, err)
	_, err = h.auth.Register(ctx, RegisterInput{Username: "bob", Password: testPassword})
	require.NoError(t, err)

	auth := NewAuthService(repos.Users, repos.Profiles, repos.Sessions, config.SecurityConfig{
		SessionTTL:  time.Hour,
		MaxSessions: 3,
		Moderators:  []string{" Alice ", "ghost", "Carol"},
	}, zerolog.Nop())
	require.NoError(t, auth.PromoteModerators(ctx))

	res, err := auth.Login(ctx, LoginInput{Login: "alice", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleModerator, res.Account.Role)

	res, err = auth.Login(ctx, LoginInput{Login: "bob", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, models.UserRoleUser, res.Account.Role)

	// Accounts created later pick the role up at registration.
	_, err = auth.Register(ctx, RegisterInput{Username: "carol", Password: testPassword})
	require.NoError(t, err)
	carol, ok := h.mem.UserByLogin("carol")
	require.True(t, ok)
	assert.Equal(t, models.UserRoleModerator, carol.Role)
}
