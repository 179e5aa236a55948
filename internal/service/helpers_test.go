package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/auth"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/repository"
)

// Hand-rolled fakes for the repository interfaces. Kept in one place since
// most service tests need the same combination.

const (
	testOrg = "org-uid-1"
	testUID = "uid-1"
)

type fakeSessions struct {
	session *auth.Session
}

func loggedIn() *fakeSessions {
	return &fakeSessions{session: &auth.Session{
		UserID:         1,
		FirebaseUID:    testUID,
		OrganizationID: testOrg,
		Email:          "user@example.com",
	}}
}

func loggedOut() *fakeSessions { return &fakeSessions{} }

func (f *fakeSessions) Current() (*auth.Session, error) {
	if f.session == nil {
		return nil, apperror.NotLoggedIn()
	}
	s := *f.session
	return &s, nil
}

type fakePlans struct {
	plan model.Plan
	err  error
}

func (f *fakePlans) PlanFor(ctx context.Context, uid string) (model.Plan, error) {
	if f.err != nil {
		return model.PlanFree, f.err
	}
	return f.plan, nil
}

type fakeEntryRepo struct {
	entries  map[int64]*model.ClipboardEntry
	nextID   int64
	failWith error
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[int64]*model.ClipboardEntry)}
}

var _ repository.EntryRepository = (*fakeEntryRepo)(nil)

func (f *fakeEntryRepo) Create(ctx context.Context, entry *model.ClipboardEntry) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.nextID++
	entry.ID = f.nextID
	now := time.Now()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = now
	}
	entry.CreatedAt = now
	if entry.ContentHash == "" {
		entry.ContentHash = model.HashContent(entry.Content)
	}
	if entry.ContentType == "" {
		entry.ContentType = model.DetectContentType(entry.Content)
	}
	if entry.SyncStatus == "" {
		entry.SyncStatus = model.SyncStatusLocal
	}
	entry.Tags = model.NormalizeTags(entry.Tags)
	stored := *entry
	f.entries[entry.ID] = &stored
	return nil
}

func (f *fakeEntryRepo) GetByID(ctx context.Context, orgID string, id int64) (*model.ClipboardEntry, error) {
	e, ok := f.entries[id]
	if !ok || e.OrganizationID != orgID {
		return nil, apperror.NotFound("entry", id)
	}
	out := *e
	return &out, nil
}

func (f *fakeEntryRepo) GetByHash(ctx context.Context, orgID, hash string) (*model.ClipboardEntry, error) {
	for _, e := range f.entries {
		if e.OrganizationID == orgID && e.ContentHash == hash {
			out := *e
			return &out, nil
		}
	}
	return nil, apperror.NotFound("entry", hash)
}

func (f *fakeEntryRepo) GetByServerID(ctx context.Context, orgID, serverID string) (*model.ClipboardEntry, error) {
	for _, e := range f.entries {
		if e.OrganizationID == orgID && e.ServerID == serverID {
			out := *e
			return &out, nil
		}
	}
	return nil, apperror.NotFound("entry", serverID)
}

func (f *fakeEntryRepo) List(ctx context.Context, orgID string, filter repository.EntryFilter, opts repository.ListOptions) ([]model.ClipboardEntry, error) {
	var out []model.ClipboardEntry
	for _, e := range f.entries {
		if e.OrganizationID != orgID {
			continue
		}
		if filter.Query != "" && !strings.Contains(e.Content, filter.Query) {
			continue
		}
		if filter.Tag != "" && !e.HasTag(filter.Tag) {
			continue
		}
		if filter.PinnedOnly && !e.IsPinned {
			continue
		}
		if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (f *fakeEntryRepo) Update(ctx context.Context, entry *model.ClipboardEntry) error {
	e, ok := f.entries[entry.ID]
	if !ok || e.OrganizationID != entry.OrganizationID {
		return apperror.NotFound("entry", entry.ID)
	}
	entry.Tags = model.NormalizeTags(entry.Tags)
	stored := *entry
	f.entries[entry.ID] = &stored
	return nil
}

func (f *fakeEntryRepo) Touch(ctx context.Context, orgID string, id int64) error {
	e, ok := f.entries[id]
	if !ok || e.OrganizationID != orgID {
		return apperror.NotFound("entry", id)
	}
	e.Timestamp = time.Now()
	e.SyncStatus = model.SyncStatusLocal
	return nil
}

func (f *fakeEntryRepo) Delete(ctx context.Context, orgID string, id int64) (bool, error) {
	e, ok := f.entries[id]
	if !ok || e.OrganizationID != orgID {
		return false, nil
	}
	delete(f.entries, id)
	return true, nil
}

func (f *fakeEntryRepo) DeleteAll(ctx context.Context, orgID string) (int64, error) {
	var n int64
	for id, e := range f.entries {
		if e.OrganizationID == orgID {
			delete(f.entries, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeEntryRepo) CountPinned(ctx context.Context, orgID string) (int64, error) {
	var n int64
	for _, e := range f.entries {
		if e.OrganizationID == orgID && e.IsPinned {
			n++
		}
	}
	return n, nil
}

func (f *fakeEntryRepo) Purge(ctx context.Context, orgID string, policy repository.PurgePolicy) (int64, error) {
	var n int64
	for id, e := range f.entries {
		if e.OrganizationID != orgID || e.IsPinned {
			continue
		}
		if policy.RetainTags && len(e.Tags) > 0 {
			continue
		}
		delete(f.entries, id)
		n++
	}
	return n, nil
}

func (f *fakeEntryRepo) ListPending(ctx context.Context, orgID string) ([]model.ClipboardEntry, error) {
	var out []model.ClipboardEntry
	for _, e := range f.entries {
		if e.OrganizationID == orgID && e.SyncStatus == model.SyncStatusLocal {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *fakeEntryRepo) MarkSynced(ctx context.Context, orgID string, id int64, serverID string) error {
	e, ok := f.entries[id]
	if !ok || e.OrganizationID != orgID {
		return apperror.NotFound("entry", id)
	}
	e.SyncStatus = model.SyncStatusSynced
	e.ServerID = serverID
	return nil
}

type fakeUserRepo struct {
	users map[string]*model.User
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*model.User{
		testUID: {
			ID:             1,
			FirebaseUID:    testUID,
			Email:          "user@example.com",
			OrganizationID: testOrg,
			PurgeCadence:   model.CadenceNever,
		},
	}}
}

func (f *fakeUserRepo) Upsert(ctx context.Context, user *model.User) error {
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

func testLogger() *slog.Logger { return slog.Default() }
