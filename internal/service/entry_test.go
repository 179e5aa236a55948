package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/events"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/repository"
)

func newEntryService(repo *fakeEntryRepo, sessions Sessions, plans PlanResolver) *EntryService {
	return NewEntryService(repo, sessions, plans, events.NewBus(), testLogger())
}

func TestSaveRequiresLogin(t *testing.T) {
	svc := newEntryService(newFakeEntryRepo(), loggedOut(), &fakePlans{plan: model.PlanFree})
	_, err := svc.Save(context.Background(), SaveRequest{Content: "hello"})
	assert.ErrorIs(t, err, apperror.ErrNotLoggedIn)
}

func TestSaveValidation(t *testing.T) {
	svc := newEntryService(newFakeEntryRepo(), loggedIn(), &fakePlans{plan: model.PlanFree})

	_, err := svc.Save(context.Background(), SaveRequest{Content: "   "})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Save(context.Background(), SaveRequest{Content: strings.Repeat("x", MaxContentLength+1)})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestSaveScopesToSessionOrganization(t *testing.T) {
	repo := newFakeEntryRepo()
	svc := newEntryService(repo, loggedIn(), &fakePlans{plan: model.PlanFree})

	entry, err := svc.Save(context.Background(), SaveRequest{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, testOrg, entry.OrganizationID)
}

func TestSaveDeduplicatesByContent(t *testing.T) {
	repo := newFakeEntryRepo()
	svc := newEntryService(repo, loggedIn(), &fakePlans{plan: model.PlanFree})
	ctx := context.Background()

	first, err := svc.Save(ctx, SaveRequest{Content: "same payload"})
	require.NoError(t, err)

	second, err := svc.Save(ctx, SaveRequest{Content: "same payload"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.entries, 1)
	assert.False(t, second.Timestamp.Before(first.Timestamp))
}

func TestPinLimitOnFreePlan(t *testing.T) {
	repo := newFakeEntryRepo()
	plans := &fakePlans{plan: model.PlanFree}
	svc := newEntryService(repo, loggedIn(), plans)
	ctx := context.Background()
	pin := true

	var ids []int64
	for _, content := range []string{"a", "b", "c", "d"} {
		e, err := svc.Save(ctx, SaveRequest{Content: content})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	for _, id := range ids[:3] {
		_, err := svc.Update(ctx, id, model.EntryUpdate{IsPinned: &pin})
		require.NoError(t, err)
	}

	// the fourth pin hits the Free cap
	_, err := svc.Update(ctx, ids[3], model.EntryUpdate{IsPinned: &pin})
	assert.ErrorIs(t, err, apperror.ErrLimitReached)

	// upgrading to Pro lifts the cap
	plans.plan = model.PlanPro
	_, err = svc.Update(ctx, ids[3], model.EntryUpdate{IsPinned: &pin})
	assert.NoError(t, err)
}

func TestRePinningPinnedEntrySkipsLimit(t *testing.T) {
	repo := newFakeEntryRepo()
	svc := newEntryService(repo, loggedIn(), &fakePlans{plan: model.PlanFree})
	ctx := context.Background()
	pin := true

	for _, content := range []string{"a", "b", "c"} {
		e, err := svc.Save(ctx, SaveRequest{Content: content})
		require.NoError(t, err)
		_, err = svc.Update(ctx, e.ID, model.EntryUpdate{IsPinned: &pin})
		require.NoError(t, err)
	}

	// updating tags on an already pinned entry at the cap must not fail
	entries, err := svc.List(ctx, repository.EntryFilter{}, repository.ListOptions{})
	require.NoError(t, err)
	_, err = svc.Update(ctx, entries[0].ID, model.EntryUpdate{
		IsPinned: &pin,
		Tags:     []string{"work"},
	})
	assert.NoError(t, err)
}

func TestUpdateMarksPending(t *testing.T) {
	repo := newFakeEntryRepo()
	svc := newEntryService(repo, loggedIn(), &fakePlans{plan: model.PlanFree})
	ctx := context.Background()

	entry, err := svc.Save(ctx, SaveRequest{Content: "hello"})
	require.NoError(t, err)
	require.NoError(t, repo.MarkSynced(ctx, testOrg, entry.ID, "srv-1"))

	updated, err := svc.Update(ctx, entry.ID, model.EntryUpdate{Tags: []string{"work"}})
	require.NoError(t, err)
	assert.Equal(t, model.SyncStatusLocal, updated.SyncStatus)
	assert.Equal(t, []string{"work"}, updated.Tags)
}

func TestUpdateContentRederivesMetadata(t *testing.T) {
	repo := newFakeEntryRepo()
	svc := newEntryService(repo, loggedIn(), &fakePlans{plan: model.PlanFree})
	ctx := context.Background()

	entry, err := svc.Save(ctx, SaveRequest{Content: "plain note"})
	require.NoError(t, err)

	content := "https://example.com/changed"
	updated, err := svc.Update(ctx, entry.ID, model.EntryUpdate{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, content, updated.Content)
	assert.Equal(t, "url", updated.ContentType)
	assert.Equal(t, model.HashContent(content), updated.ContentHash)
	assert.NotEqual(t, entry.ContentHash, updated.ContentHash)

	empty := "   "
	_, err = svc.Update(ctx, entry.ID, model.EntryUpdate{Content: &empty})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo := newFakeEntryRepo()
	svc := newEntryService(repo, loggedIn(), &fakePlans{plan: model.PlanFree})
	ctx := context.Background()

	entry, err := svc.Save(ctx, SaveRequest{Content: "hello"})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Delete(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestClear(t *testing.T) {
	repo := newFakeEntryRepo()
	svc := newEntryService(repo, loggedIn(), &fakePlans{plan: model.PlanFree})
	ctx := context.Background()

	for _, content := range []string{"a", "b"} {
		_, err := svc.Save(ctx, SaveRequest{Content: content})
		require.NoError(t, err)
	}

	n, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Empty(t, repo.entries)
}
