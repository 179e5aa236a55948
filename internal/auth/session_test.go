package auth

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/model"
)

// fakeUserRepo is a hand-rolled in-memory repository.UserRepository.
type fakeUserRepo struct {
	users  map[string]*model.User
	nextID int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *model.User) error {
	if existing, ok := f.users[user.FirebaseUID]; ok {
		existing.Email = user.Email
		existing.DisplayName = user.DisplayName
		*user = *existing
		return nil
	}
	f.nextID++
	user.ID = f.nextID
	if user.PurgeCadence == "" {
		user.PurgeCadence = model.CadenceNever
	}
	stored := *user
	f.users[user.FirebaseUID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByFirebaseUID(ctx context.Context, uid string) (*model.User, error) {
	u, ok := f.users[uid]
	if !ok {
		return nil, apperror.NotFound("user", uid)
	}
	out := *u
	return &out, nil
}

func (f *fakeUserRepo) UpdatePurgeSettings(ctx context.Context, uid string, cadence model.PurgeCadence, retainTags bool) error {
	u, ok := f.users[uid]
	if !ok {
		return apperror.NotFound("user", uid)
	}
	u.PurgeCadence = cadence
	u.RetainTags = retainTags
	return nil
}

func (f *fakeUserRepo) SetSessionHintHash(ctx context.Context, uid, hash string) error {
	u, ok := f.users[uid]
	if !ok {
		return apperror.NotFound("user", uid)
	}
	u.SessionHintHash = hash
	return nil
}

func (f *fakeUserRepo) ClearSessionHint(ctx context.Context, uid string) error {
	if u, ok := f.users[uid]; ok {
		u.SessionHintHash = ""
	}
	return nil
}

func (f *fakeUserRepo) TouchLogin(ctx context.Context, uid string) error { return nil }

func newTestSessionManager(t *testing.T) (*SessionManager, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	hintPath := filepath.Join(t.TempDir(), "session.json")
	return NewSessionManager(repo, hintPath, slog.Default()), repo
}

func testIdentity() *Identity {
	return &Identity{UID: "uid-1", Email: "user@example.com", DisplayName: "Test User"}
}

func TestSessionLoginActivates(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestSessionManager(t)

	_, err := mgr.Current()
	assert.ErrorIs(t, err, apperror.ErrNotLoggedIn)

	user, err := mgr.Login(ctx, testIdentity())
	require.NoError(t, err)
	assert.Equal(t, "org-uid-1", user.OrganizationID)

	session, err := mgr.Current()
	require.NoError(t, err)
	assert.Equal(t, "uid-1", session.FirebaseUID)
	assert.Equal(t, "org-uid-1", session.OrganizationID)
	assert.True(t, mgr.LoggedIn())
}

func TestSessionSignup(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestSessionManager(t)

	user, err := mgr.Signup(ctx, testIdentity())
	require.NoError(t, err)
	assert.Equal(t, "org-uid-1", user.OrganizationID)
	assert.True(t, mgr.LoggedIn())

	_, err = mgr.Signup(ctx, testIdentity())
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestSessionRestoreAfterRestart(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	hintPath := filepath.Join(t.TempDir(), "session.json")

	first := NewSessionManager(repo, hintPath, slog.Default())
	_, err := first.Login(ctx, testIdentity())
	require.NoError(t, err)

	// a fresh manager over the same storage simulates a daemon restart
	second := NewSessionManager(repo, hintPath, slog.Default())
	require.NoError(t, second.Restore(ctx))

	session, err := second.Current()
	require.NoError(t, err)
	assert.Equal(t, "uid-1", session.FirebaseUID)
}

func TestSessionRestoreWithoutHint(t *testing.T) {
	mgr, _ := newTestSessionManager(t)
	err := mgr.Restore(context.Background())
	assert.ErrorIs(t, err, apperror.ErrNotLoggedIn)
}

func TestSessionRestoreRejectsClearedHint(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	hintPath := filepath.Join(t.TempDir(), "session.json")

	first := NewSessionManager(repo, hintPath, slog.Default())
	_, err := first.Login(ctx, testIdentity())
	require.NoError(t, err)

	// server-side hash cleared, e.g. logout from another device
	require.NoError(t, repo.ClearSessionHint(ctx, "uid-1"))

	second := NewSessionManager(repo, hintPath, slog.Default())
	err = second.Restore(ctx)
	assert.ErrorIs(t, err, apperror.ErrNotLoggedIn)
}

func TestSessionLogout(t *testing.T) {
	ctx := context.Background()
	mgr, repo := newTestSessionManager(t)

	_, err := mgr.Login(ctx, testIdentity())
	require.NoError(t, err)
	require.NoError(t, mgr.Logout(ctx))

	assert.False(t, mgr.LoggedIn())
	u, err := repo.GetByFirebaseUID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Empty(t, u.SessionHintHash)

	// logout is idempotent
	assert.NoError(t, mgr.Logout(ctx))

	// the hint file is gone, so restore reports logged out
	err = mgr.Restore(ctx)
	assert.ErrorIs(t, err, apperror.ErrNotLoggedIn)
}
