package sqlite

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/model"
)

func testUser(uid string) *model.User {
	return &model.User{
		FirebaseUID:    uid,
		Email:          uid + "@example.com",
		DisplayName:    "Test User",
		OrganizationID: "org-" + uid,
	}
}

func TestUserUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(newTestDB(t))

	user := testUser("uid-1")
	require.NoError(t, repo.Upsert(ctx, user))
	assert.NotZero(t, user.ID)
	assert.Equal(t, model.CadenceNever, user.PurgeCadence)

	// second login keeps the stored purge settings
	require.NoError(t, repo.UpdatePurgeSettings(ctx, "uid-1", model.CadenceWeek, true))

	again := testUser("uid-1")
	again.DisplayName = "Renamed User"
	require.NoError(t, repo.Upsert(ctx, again))
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Renamed User", again.DisplayName)
	assert.Equal(t, model.CadenceWeek, again.PurgeCadence)
	assert.True(t, again.RetainTags)
}

func TestUserGetMissing(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	_, err := repo.GetByFirebaseUID(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserSessionHint(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(newTestDB(t))
	require.NoError(t, repo.Upsert(ctx, testUser("uid-2")))

	require.NoError(t, repo.SetSessionHintHash(ctx, "uid-2", "bcrypt-hash"))
	got, err := repo.GetByFirebaseUID(ctx, "uid-2")
	require.NoError(t, err)
	assert.Equal(t, "bcrypt-hash", got.SessionHintHash)

	require.NoError(t, repo.ClearSessionHint(ctx, "uid-2"))
	got, err = repo.GetByFirebaseUID(ctx, "uid-2")
	require.NoError(t, err)
	assert.Empty(t, got.SessionHintHash)

	assert.ErrorIs(t,
		repo.SetSessionHintHash(ctx, "ghost", "x"),
		apperror.ErrNotFound,
	)
}

func TestUserUpdatePurgeSettingsMissing(t *testing.T) {
	repo := NewUserRepo(newTestDB(t))
	err := repo.UpdatePurgeSettings(context.Background(), "ghost", model.CadenceNever, false)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserGetQueryError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectQuery("SELECT id, firebase_uid").
		WillReturnError(assert.AnError)

	repo := NewUserRepo(NewFromConn(conn))
	_, err = repo.GetByFirebaseUID(context.Background(), "uid-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
