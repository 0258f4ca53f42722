package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/repository"
	"github.com/miskyy7507/vibezone/internal/testutil"
)

func TestRecountComments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.signup(t, "alice")
	p := h.post(t, alice, "post")
	other := h.post(t, alice, "other")

	_, err := h.comments.Create(ctx, alice, p.ID, "one")
	require.NoError(t, err)
	_, err = h.comments.Create(ctx, alice, p.ID, "two")
	require.NoError(t, err)

	posts := h.mem.Repositories().Posts
	require.NoError(t, posts.IncrementComments(ctx, p.ID, 5))
	require.NoError(t, posts.IncrementComments(ctx, other.ID, 3))

	fixed, err := h.maint.RecountComments(ctx, &p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Equal(t, 2, commentCount(t, h, p.ID))
	assert.Equal(t, 3, commentCount(t, h, other.ID))

	fixed, err = h.maint.RecountComments(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Zero(t, commentCount(t, h, other.ID))
}

// interleavedPosts runs before once, right before the first counter write.
type interleavedPosts struct {
	repository.PostRepository
	before func()
}

func (p *interleavedPosts) SetCommentCount(ctx context.Context, id primitive.ObjectID, expected, count int) (bool, error) {
	if p.before != nil {
		p.before()
		p.before = nil
	}
	return p.PostRepository.SetCommentCount(ctx, id, expected, count)
}

func TestRecountKeepsConcurrentComment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.signup(t, "alice")
	p := h.post(t, alice, "post")

	repos := h.mem.Repositories()
	require.NoError(t, repos.Posts.IncrementComments(ctx, p.ID, 4))

	repos.Posts = &interleavedPosts{
		PostRepository: repos.Posts,
		before: func() {
			_, err := h.comments.Create(ctx, alice, p.ID, "late")
			require.NoError(t, err)
		},
	}
	maint := NewMaintenanceService(repos, h.store, time.Hour, zerolog.Nop())

	fixed, err := maint.RecountComments(ctx, &p.ID)
	require.NoError(t, err)
	assert.Zero(t, fixed)
	// The late comment's increment survives instead of being overwritten.
	assert.Equal(t, 5, commentCount(t, h, p.ID))

	fixed, err = maint.RecountComments(ctx, &p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Equal(t, 1, commentCount(t, h, p.ID))
}

func TestSetCommentCountComparesFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.signup(t, "alice")
	p := h.post(t, alice, "post")
	posts := h.mem.Repositories().Posts

	ok, err := posts.SetCommentCount(ctx, p.ID, 3, 9)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, commentCount(t, h, p.ID))

	ok, err = posts.SetCommentCount(ctx, p.ID, 0, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, commentCount(t, h, p.ID))

	ok, err = posts.SetCommentCount(ctx, primitive.NewObjectID(), 0, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPurgeImages(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.signup(t, "alice")

	header := testutil.FileHeader(t, "image", "a.png", "image/png", testutil.PNG)
	p, err := h.posts.Create(ctx, alice, CreatePostInput{Content: "kept", Image: header})
	require.NoError(t, err)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, h.store.Put(ctx, "image-orphan.png", "image/png", testutil.PNG))
	h.store.SetModified("image-orphan.png", old)
	require.NoError(t, h.store.Put(ctx, "image-fresh.png", "image/png", testutil.PNG))
	h.store.SetModified(*p.ImageURL, old)

	removed, err := h.maint.PurgeImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.False(t, h.store.Has("image-orphan.png"))
	assert.True(t, h.store.Has("image-fresh.png"))
	assert.True(t, h.store.Has(*p.ImageURL))
}

func TestRevokeSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.signup(t, "alice")
	_, err := h.auth.Login(ctx, LoginInput{Login: "alice", Password: testPassword})
	require.NoError(t, err)
	require.Len(t, h.mem.SessionsOf(alice.ProfileID.Hex()), 1)

	require.NoError(t, h.maint.RevokeSessions(ctx, alice.ProfileID.Hex()))
	assert.Empty(t, h.mem.SessionsOf(alice.ProfileID.Hex()))
}
