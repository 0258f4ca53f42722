// Package testutil provides in-memory repositories with the same observable
// behaviour as the Postgres, Mongo and Redis implementations.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/miskyy7507/vibezone/internal/models"
	"github.com/miskyy7507/vibezone/internal/projection"
	"github.com/miskyy7507/vibezone/internal/repository"
)

type sessionEntry struct {
	session models.Session
	expires time.Time
}

// Memory holds every store behind one lock. Like sets are maps, so repeated
// likes collapse the same way $addToSet does.
type Memory struct {
	mu       sync.Mutex
	users    map[string]models.User
	profiles map[primitive.ObjectID]models.Profile
	posts    map[primitive.ObjectID]*post
	comments map[primitive.ObjectID]*comment
	sessions map[string]sessionEntry
	last     time.Time

	// Now drives timestamps and session expiry.
	Now func() time.Time
	// SessionDeleteErr, when set, fails DeleteByProfile.
	SessionDeleteErr error
	// IncrementErr, when set, fails IncrementComments.
	IncrementErr error
}

type post struct {
	models.Post
	likes map[primitive.ObjectID]struct{}
}

type comment struct {
	models.Comment
	likes map[primitive.ObjectID]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]models.User),
		profiles: make(map[primitive.ObjectID]models.Profile),
		posts:    make(map[primitive.ObjectID]*post),
		comments: make(map[primitive.ObjectID]*comment),
		sessions: make(map[string]sessionEntry),
		Now:      time.Now,
	}
}

func (m *Memory) Repositories() repository.Repositories {
	return repository.Repositories{
		Users:    (*userStore)(m),
		Profiles: (*profileStore)(m),
		Posts:    (*postStore)(m),
		Comments: (*commentStore)(m),
		Sessions: (*sessionStore)(m),
	}
}

// stamp hands out strictly increasing timestamps so newest-first ordering is
// deterministic. Callers hold the lock.
func (m *Memory) stamp() time.Time {
	now := m.Now().UTC()
	if !now.After(m.last) {
		now = m.last.Add(time.Microsecond)
	}
	m.last = now
	return now
}

func (m *Memory) lookup(id primitive.ObjectID) (models.Profile, bool) {
	p, ok := m.profiles[id]
	return p, ok
}

func likeSlice(likes map[primitive.ObjectID]struct{}) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(likes))
	for id := range likes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hex() < out[j].Hex() })
	return out
}

func (p *post) snapshot() models.Post {
	out := p.Post
	out.UsersWhoLiked = likeSlice(p.likes)
	return out
}

func (c *comment) snapshot() models.Comment {
	out := c.Comment
	out.UsersWhoLiked = likeSlice(c.likes)
	return out
}

func paginate[T any](items []T, page models.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// Users

type userStore Memory

func (s *userStore) Create(_ context.Context, user models.User) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Login == user.Login {
			return repository.ErrLoginTaken
		}
	}
	now := m.stamp()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.ID] = user
	return nil
}

func (s *userStore) FindByLogin(_ context.Context, login string) (models.User, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Login == login {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *userStore) GetByProfileID(_ context.Context, profileID string) (models.User, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ProfileID == profileID {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *userStore) Deactivate(_ context.Context, profileID string) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.ProfileID == profileID {
			u.Active = false
			u.UpdatedAt = m.stamp()
			m.users[id] = u
			return nil
		}
	}
	return repository.ErrUserNotFound
}

func (s *userStore) SetRole(_ context.Context, login string, role models.UserRole) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Login == login {
			u.Role = role
			u.UpdatedAt = m.stamp()
			m.users[id] = u
			return nil
		}
	}
	return repository.ErrUserNotFound
}

// SetRole changes the role of the credential behind profileID.
func (m *Memory) SetRole(profileID string, role models.UserRole) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.ProfileID == profileID {
			u.Role = role
			m.users[id] = u
		}
	}
}

// Profiles

type profileStore Memory

func (s *profileStore) Create(_ context.Context, profile *models.Profile) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Username == profile.Username {
			return repository.ErrUsernameTaken
		}
	}
	if profile.ID.IsZero() {
		profile.ID = primitive.NewObjectID()
	}
	now := m.stamp()
	profile.CreatedAt, profile.UpdatedAt = now, now
	m.profiles[profile.ID] = *profile
	return nil
}

func (s *profileStore) GetByID(_ context.Context, id primitive.ObjectID) (models.Profile, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return models.Profile{}, repository.ErrProfileNotFound
	}
	return p, nil
}

func (s *profileStore) List(_ context.Context, page models.Page) ([]models.Profile, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	return paginate(out, page), nil
}

func (s *profileStore) Update(_ context.Context, id primitive.ObjectID, update models.ProfileUpdate) (models.Profile, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return models.Profile{}, repository.ErrProfileNotFound
	}
	apply := func(dst **string, patch models.Patch[string]) {
		if patch.Present {
			*dst = patch.Value
		}
	}
	apply(&p.DisplayName, update.DisplayName)
	apply(&p.AboutDesc, update.AboutDesc)
	apply(&p.ProfilePictureURI, update.ProfilePictureURI)
	if !update.Empty() {
		p.UpdatedAt = m.stamp()
	}
	m.profiles[id] = p
	return p, nil
}

func (s *profileStore) Delete(_ context.Context, id primitive.ObjectID) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id]; !ok {
		return repository.ErrProfileNotFound
	}
	delete(m.profiles, id)
	return nil
}

func (s *profileStore) PictureNames(_ context.Context) ([]string, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.profiles {
		if p.ProfilePictureURI != nil {
			out = append(out, *p.ProfilePictureURI)
		}
	}
	return out, nil
}

// Posts

type postStore Memory

func (s *postStore) Create(_ context.Context, p *models.Post) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.UsersWhoLiked == nil {
		p.UsersWhoLiked = []primitive.ObjectID{}
	}
	now := m.stamp()
	p.CreatedAt, p.UpdatedAt = now, now
	stored := &post{Post: *p, likes: make(map[primitive.ObjectID]struct{})}
	for _, id := range p.UsersWhoLiked {
		stored.likes[id] = struct{}{}
	}
	m.posts[p.ID] = stored
	return nil
}

func (s *postStore) GetByID(_ context.Context, id primitive.ObjectID) (models.Post, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return models.Post{}, repository.ErrPostNotFound
	}
	return p.snapshot(), nil
}

func (s *postStore) View(_ context.Context, id primitive.ObjectID, viewer *primitive.ObjectID) (models.PostView, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return models.PostView{}, repository.ErrPostNotFound
	}
	author, ok := m.lookup(p.Author)
	if !ok {
		return models.PostView{}, repository.ErrPostNotFound
	}
	return projection.ProjectPost(p.snapshot(), author, viewer), nil
}

func (s *postStore) ListViews(_ context.Context, filter repository.PostFilter) ([]models.PostView, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	var posts []models.Post
	for _, p := range m.posts {
		if filter.Author != nil && p.Author != *filter.Author {
			continue
		}
		posts = append(posts, p.snapshot())
	}
	// Page first, then join authors, the way the aggregation does.
	page := paginate(projection.SortPosts(posts), filter.Page)
	return projection.ProjectPosts(page, m.lookup, filter.Viewer), nil
}

func (s *postStore) ListByAuthor(_ context.Context, author primitive.ObjectID) ([]models.Post, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Post{}
	for _, p := range m.posts {
		if p.Author == author {
			out = append(out, p.snapshot())
		}
	}
	return out, nil
}

func (s *postStore) ListIDs(_ context.Context) ([]primitive.ObjectID, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]primitive.ObjectID, 0, len(m.posts))
	for id := range m.posts {
		out = append(out, id)
	}
	return out, nil
}

func (s *postStore) Delete(_ context.Context, id primitive.ObjectID) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return repository.ErrPostNotFound
	}
	delete(m.posts, id)
	return nil
}

func (s *postStore) AddLike(_ context.Context, id, profileID primitive.ObjectID) error {
	return s.mutate(id, func(p *post) { p.likes[profileID] = struct{}{} })
}

func (s *postStore) RemoveLike(_ context.Context, id, profileID primitive.ObjectID) error {
	return s.mutate(id, func(p *post) { delete(p.likes, profileID) })
}

func (s *postStore) RemoveLikesBy(_ context.Context, profileID primitive.ObjectID) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		delete(p.likes, profileID)
	}
	return nil
}

func (s *postStore) IncrementComments(_ context.Context, id primitive.ObjectID, delta int) error {
	if err := (*Memory)(s).IncrementErr; err != nil {
		return err
	}
	return s.mutate(id, func(p *post) { p.CommentCount += delta })
}

func (s *postStore) SetCommentCount(_ context.Context, id primitive.ObjectID, expected, count int) (bool, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.CommentCount != expected {
		return false, nil
	}
	p.CommentCount = count
	return true, nil
}

func (s *postStore) mutate(id primitive.ObjectID, fn func(*post)) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return repository.ErrPostNotFound
	}
	fn(p)
	return nil
}

func (s *postStore) ImageNames(_ context.Context) ([]string, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, p := range m.posts {
		if p.ImageURL != nil {
			out = append(out, *p.ImageURL)
		}
	}
	return out, nil
}

// Comments

type commentStore Memory

func (s *commentStore) Create(_ context.Context, c *models.Comment) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.UsersWhoLiked == nil {
		c.UsersWhoLiked = []primitive.ObjectID{}
	}
	c.CreatedAt = m.stamp()
	stored := &comment{Comment: *c, likes: make(map[primitive.ObjectID]struct{})}
	for _, id := range c.UsersWhoLiked {
		stored.likes[id] = struct{}{}
	}
	m.comments[c.ID] = stored
	return nil
}

func (s *commentStore) GetByID(_ context.Context, id primitive.ObjectID) (models.Comment, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return models.Comment{}, repository.ErrCommentNotFound
	}
	return c.snapshot(), nil
}

func (s *commentStore) ListViews(_ context.Context, filter repository.CommentFilter) ([]models.CommentView, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	var comments []models.Comment
	for _, c := range m.comments {
		if c.Post == filter.Post {
			comments = append(comments, c.snapshot())
		}
	}
	page := paginate(projection.SortComments(comments), filter.Page)
	return projection.ProjectComments(page, m.lookup, filter.Viewer), nil
}

func (s *commentStore) ListByUser(_ context.Context, user primitive.ObjectID) ([]models.Comment, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Comment{}
	for _, c := range m.comments {
		if c.User == user {
			out = append(out, c.snapshot())
		}
	}
	return out, nil
}

func (s *commentStore) CountByPost(_ context.Context, postID primitive.ObjectID) (int, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.comments {
		if c.Post == postID {
			n++
		}
	}
	return n, nil
}

func (s *commentStore) Delete(_ context.Context, id primitive.ObjectID) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return repository.ErrCommentNotFound
	}
	delete(m.comments, id)
	return nil
}

func (s *commentStore) DeleteByPost(_ context.Context, postID primitive.ObjectID) (int, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, c := range m.comments {
		if c.Post == postID {
			delete(m.comments, id)
			n++
		}
	}
	return n, nil
}

func (s *commentStore) AddLike(_ context.Context, id, profileID primitive.ObjectID) error {
	return s.mutate(id, func(c *comment) { c.likes[profileID] = struct{}{} })
}

func (s *commentStore) RemoveLike(_ context.Context, id, profileID primitive.ObjectID) error {
	return s.mutate(id, func(c *comment) { delete(c.likes, profileID) })
}

func (s *commentStore) RemoveLikesBy(_ context.Context, profileID primitive.ObjectID) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.comments {
		delete(c.likes, profileID)
	}
	return nil
}

func (s *commentStore) mutate(id primitive.ObjectID, fn func(*comment)) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return repository.ErrCommentNotFound
	}
	fn(c)
	return nil
}

// Sessions

type sessionStore Memory

func (s *sessionStore) live(token string) (sessionEntry, bool) {
	m := (*Memory)(s)
	e, ok := m.sessions[token]
	if !ok {
		return sessionEntry{}, false
	}
	if !m.Now().Before(e.expires) {
		delete(m.sessions, token)
		return sessionEntry{}, false
	}
	return e, true
}

func (s *sessionStore) Create(_ context.Context, session models.Session, ttl time.Duration) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Token] = sessionEntry{session: session, expires: m.Now().Add(ttl)}
	return nil
}

func (s *sessionStore) Get(_ context.Context, token string) (models.Session, error) {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := s.live(token)
	if !ok {
		return models.Session{}, repository.ErrSessionNotFound
	}
	return e.session, nil
}

func (s *sessionStore) Touch(_ context.Context, token string, ttl time.Duration) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := s.live(token)
	if !ok {
		return repository.ErrSessionNotFound
	}
	e.expires = m.Now().Add(ttl)
	m.sessions[token] = e
	return nil
}

func (s *sessionStore) Delete(_ context.Context, token string) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := s.live(token); !ok {
		return repository.ErrSessionNotFound
	}
	delete(m.sessions, token)
	return nil
}

func (s *sessionStore) DeleteByProfile(_ context.Context, profileID string) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SessionDeleteErr != nil {
		return m.SessionDeleteErr
	}
	for token, e := range m.sessions {
		if e.session.ProfileID == profileID {
			delete(m.sessions, token)
		}
	}
	return nil
}

func (s *sessionStore) EnforceLimit(_ context.Context, profileID string, keep int) error {
	m := (*Memory)(s)
	m.mu.Lock()
	defer m.mu.Unlock()
	if keep <= 0 {
		return nil
	}
	var owned []sessionEntry
	for token := range m.sessions {
		if e, ok := s.live(token); ok && e.session.ProfileID == profileID {
			owned = append(owned, e)
		}
	}
	if len(owned) <= keep {
		return nil
	}
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].session.CreatedAt.Before(owned[j].session.CreatedAt)
	})
	for _, e := range owned[:len(owned)-keep] {
		delete(m.sessions, e.session.Token)
	}
	return nil
}

// SessionsOf returns the live session tokens of a profile.
func (m *Memory) SessionsOf(profileID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for token, e := range m.sessions {
		if e.session.ProfileID == profileID && m.Now().Before(e.expires) {
			out = append(out, token)
		}
	}
	sort.Strings(out)
	return out
}

// UserByLogin exposes a stored credential for assertions.
func (m *Memory) UserByLogin(login string) (models.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Login, login) {
			return u, true
		}
	}
	return models.User{}, false
}
