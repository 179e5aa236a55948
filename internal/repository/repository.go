// Package repository defines the storage interfaces the services depend on.
package repository

import (
	"context"
	"time"

	"github.com/cliptray/cliptrayd/internal/model"
)

// ListOptions controls paging for entry listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// EntryFilter narrows an entry listing. Zero values mean "no constraint".
type EntryFilter struct {
	Query      string
	Tag        string
	PinnedOnly bool
	Since      time.Time // zero means no lower bound
}

// PurgePolicy selects which unpinned entries a retention purge removes.
type PurgePolicy struct {
	// RetainTags keeps unpinned entries that still carry at least one tag.
	RetainTags bool
}

type EntryRepository interface {
	Create(ctx context.Context, entry *model.ClipboardEntry) error
	GetByID(ctx context.Context, orgID string, id int64) (*model.ClipboardEntry, error)
	GetByHash(ctx context.Context, orgID, contentHash string) (*model.ClipboardEntry, error)
	List(ctx context.Context, orgID string, filter EntryFilter, opts ListOptions) ([]model.ClipboardEntry, error)
	Update(ctx context.Context, entry *model.ClipboardEntry) error
	Touch(ctx context.Context, orgID string, id int64) error
	Delete(ctx context.Context, orgID string, id int64) (bool, error)
	DeleteAll(ctx context.Context, orgID string) (int64, error)
	CountPinned(ctx context.Context, orgID string) (int64, error)
	Purge(ctx context.Context, orgID string, policy PurgePolicy) (int64, error)
	ListPending(ctx context.Context, orgID string) ([]model.ClipboardEntry, error)
	MarkSynced(ctx context.Context, orgID string, id int64, serverID string) error
	GetByServerID(ctx context.Context, orgID, serverID string) (*model.ClipboardEntry, error)
}

type TagRepository interface {
	Create(ctx context.Context, tag *model.Tag) error
	GetByID(ctx context.Context, orgID string, id int64) (*model.Tag, error)
	GetByName(ctx context.Context, orgID, name string) (*model.Tag, error)
	List(ctx context.Context, orgID string) ([]model.TagUsage, error)
	// Update rewrites the tag row. When the name changed, every entry
	// carrying the old name is relabeled in the same transaction.
	Update(ctx context.Context, tag *model.Tag) error
	// DeleteCascade removes the tag row and strips its name from every
	// entry in the organization, all inside one transaction.
	DeleteCascade(ctx context.Context, orgID string, id int64) (*model.Tag, error)
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetByFirebaseUID(ctx context.Context, firebaseUID string) (*model.User, error)
	UpdatePurgeSettings(ctx context.Context, firebaseUID string, cadence model.PurgeCadence, retainTags bool) error
	SetSessionHintHash(ctx context.Context, firebaseUID, hash string) error
	ClearSessionHint(ctx context.Context, firebaseUID string) error
	TouchLogin(ctx context.Context, firebaseUID string) error
}

type PaymentRepository interface {
	Record(ctx context.Context, payment *model.Payment) error
	HasActivePlan(ctx context.Context, firebaseUID string) (bool, error)
	ListByUser(ctx context.Context, firebaseUID string) ([]model.Payment, error)
}
