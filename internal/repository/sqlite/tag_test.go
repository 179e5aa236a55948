package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/repository"
)

func createTestTag(t *testing.T, repo *TagRepo, name string) *model.Tag {
	t.Helper()
	tag := &model.Tag{OrganizationID: testOrg, Name: name, Color: "#336699"}
	if err := repo.Create(context.Background(), tag); err != nil {
		t.Fatalf("failed to create test tag: %v", err)
	}
	return tag
}

func TestTagCreateDuplicate(t *testing.T) {
	repo := NewTagRepo(newTestDB(t))
	createTestTag(t, repo, "work")

	dup := &model.Tag{OrganizationID: testOrg, Name: "work", Color: "#000000"}
	err := repo.Create(context.Background(), dup)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	// same name in another organization is fine
	other := &model.Tag{OrganizationID: "other-org", Name: "work", Color: "#000000"}
	assert.NoError(t, repo.Create(context.Background(), other))
}

func TestTagGetByName(t *testing.T) {
	repo := NewTagRepo(newTestDB(t))
	created := createTestTag(t, repo, "ideas")

	got, err := repo.GetByName(context.Background(), testOrg, "ideas")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetByName(context.Background(), testOrg, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestTagListUsageCounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tags := NewTagRepo(db)
	entries := NewEntryRepo(db)

	createTestTag(t, tags, "work")
	createTestTag(t, tags, "ideas")
	createTestEntry(t, entries, "standup notes", "work")
	createTestEntry(t, entries, "roadmap draft", "work", "ideas")

	usage, err := tags.List(ctx, testOrg)
	require.NoError(t, err)
	require.Len(t, usage, 2)

	byName := map[string]int64{}
	for _, u := range usage {
		byName[u.Name] = u.UsageCount
	}
	assert.EqualValues(t, 2, byName["work"])
	assert.EqualValues(t, 1, byName["ideas"])
}

func TestTagRenameCascades(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tags := NewTagRepo(db)
	entries := NewEntryRepo(db)

	tag := createTestTag(t, tags, "work")
	entry := createTestEntry(t, entries, "standup notes", "work", "ideas")
	require.NoError(t, entries.MarkSynced(ctx, testOrg, entry.ID, "srv-1"))

	tag.Name = "office"
	require.NoError(t, tags.Update(ctx, tag))

	got, err := entries.GetByID(ctx, testOrg, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ideas", "office"}, got.Tags)
	assert.Equal(t, model.SyncStatusLocal, got.SyncStatus)
}

func TestTagDeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tags := NewTagRepo(db)
	entries := NewEntryRepo(db)

	tag := createTestTag(t, tags, "work")
	tagged := createTestEntry(t, entries, "standup notes", "work", "ideas")
	untouched := createTestEntry(t, entries, "grocery list")

	deleted, err := tags.DeleteCascade(ctx, testOrg, tag.ID)
	require.NoError(t, err)
	assert.Equal(t, "work", deleted.Name)

	got, err := entries.GetByID(ctx, testOrg, tagged.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ideas"}, got.Tags)

	plain, err := entries.GetByID(ctx, testOrg, untouched.ID)
	require.NoError(t, err)
	assert.Empty(t, plain.Tags)

	_, err = tags.GetByID(ctx, testOrg, tag.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	listed, err := entries.List(ctx, testOrg, repository.EntryFilter{Tag: "work"}, repository.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestTagDeleteMissing(t *testing.T) {
	repo := NewTagRepo(newTestDB(t))
	_, err := repo.DeleteCascade(context.Background(), testOrg, 42)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
