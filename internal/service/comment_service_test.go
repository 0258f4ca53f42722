package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/apperr"
	"github.com/miskyy7507/vibezone/internal/models"
)

func commentCount(t *testing.T, h *harness, id primitive.ObjectID) int {
	t.Helper()
	view, err := h.posts.Get(context.Background(), nil, id)
	require.NoError(t, err)
	return view.CommentCount
}

func TestCommentLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.signup(t, "alice")
	bob := h.signup(t, "bob")
	p := h.post(t, alice, "post")

	c1, err := h.comments.Create(ctx, bob, p.ID, "first")
	require.NoError(t, err)
	assert.Equal(t, "bob", c1.User.Username)
	c2, err := h.comments.Create(ctx, alice, p.ID, "second")
	require.NoError(t, err)
	assert.Equal(t, 2, commentCount(t, h, p.ID))

	require.NoError(t, h.comments.Like(ctx, alice, c1.ID))
	list, err := h.comments.ListForPost(ctx, alice, p.ID, models.Page{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, c2.ID, list[0].ID)
	assert.Equal(t, c1.ID, list[1].ID)
	assert.True(t, list[1].IsLikedByUser)
	assert.Equal(t, 1, list[1].LikeCount)

	assert.ErrorIs(t, h.comments.Delete(ctx, alice, c1.ID), apperr.ErrForbidden)
	require.NoError(t, h.comments.Delete(ctx, bob, c1.ID))
	assert.Equal(t, 1, commentCount(t, h, p.ID))

	// A second delete finds nothing and must not decrement again.
	require.NoError(t, h.comments.Delete(ctx, bob, c1.ID))
	assert.Equal(t, 1, commentCount(t, h, p.ID))
}

func TestCommentValidationAndMissingPost(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.signup(t, "alice")
	p := h.post(t, alice, "post")

	_, err := h.comments.Create(ctx, alice, p.ID, strings.Repeat("x", 151))
	var fe *apperr.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "content", fe.Field)

	_, err = h.comments.Create(ctx, alice, primitive.NewObjectID(), "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = h.comments.ListForPost(ctx, nil, primitive.NewObjectID(), models.Page{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, h.comments.Like(ctx, alice, primitive.NewObjectID()), apperr.ErrNotFound)
}

func TestCommentRolledBackWhenCounterFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.signup(t, "alice")
	p := h.post(t, alice, "post")

	h.mem.IncrementErr = errors.New("counter unavailable")
	_, err := h.comments.Create(ctx, alice, p.ID, "hi")
	require.Error(t, err)
	h.mem.IncrementErr = nil

	n, err := h.mem.Repositories().Comments.CountByPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, commentCount(t, h, p.ID))
}
