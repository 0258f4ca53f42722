package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/miskyy7507/vibezone/internal/config"
	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/policy"
	"github.com/miskyy7507/vibezone/internal/queue"
	"github.com/miskyy7507/vibezone/internal/storage"
	"github.com/miskyy7507/vibezone/internal/testutil"
)

type recordingQueue struct {
	tasks []queue.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task queue.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type harness struct {
	mem        *testutil.Memory
	store      *storage.MemoryStore
	queue      *recordingQueue
	auth       *AuthService
	uploads    *UploadService
	posts      *PostService
	comments   *CommentService
	profiles   *ProfileService
	moderation *ModerationService
	maint      *MaintenanceService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := testutil.NewMemory()
	repos := mem.Repositories()
	store := storage.NewMemoryStore()
	q := &recordingQueue{}
	log := zerolog.Nop()

	uploads := NewUploadService(store, 1<<20, log)
	posts := NewPostService(repos, uploads, log)
	comments := NewCommentService(repos, log)
	return &harness{
		mem:   mem,
		store: store,
		queue: q,
		auth: NewAuthService(repos.Users, repos.Profiles, repos.Sessions, config.SecurityConfig{
			SessionTTL:  time.Hour,
			MaxSessions: 3,
		}, log),
		uploads:    uploads,
		posts:      posts,
		comments:   comments,
		profiles:   NewProfileService(repos.Profiles, uploads, log),
		moderation: NewModerationService(repos, posts, comments, uploads, q, log),
		maint:      NewMaintenanceService(repos, store, time.Hour, log),
	}
}

const testPassword = "Aa1!aaaa"

// signup registers username and returns a viewer for it.
func (h *harness) signup(t *testing.T, username string) *policy.Viewer {
	t.Helper()
	profile, err := h.auth.Register(context.Background(), RegisterInput{Username: username, Password: testPassword})
	require.NoError(t, err)
	return &policy.Viewer{ProfileID: profile.ID, Role: models.UserRoleUser}
}

func (h *harness) moderator(t *testing.T, username string) *policy.Viewer {
	t.Helper()
	v := h.signup(t, username)
	h.mem.SetRole(v.ProfileID.Hex(), models.UserRoleModerator)
	v.Role = models.UserRoleModerator
	return v
}

func (h *harness) post(t *testing.T, v *policy.Viewer, content string) models.PostView {
	t.Helper()
	view, err := h.posts.Create(context.Background(), v, CreatePostInput{Content: content})
	require.NoError(t, err)
	return view
}
