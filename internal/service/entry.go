package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/auth"
	"github.com/cliptray/cliptrayd/internal/events"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/obs"
	"github.com/cliptray/cliptrayd/internal/repository"
)

const (
	MaxContentLength = 1_000_000 // ~1MB of clipboard text
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Sessions exposes the current authenticated session.
type Sessions interface {
	Current() (*auth.Session, error)
}

// PlanResolver reports the subscription tier for a Firebase identity.
type PlanResolver interface {
	PlanFor(ctx context.Context, firebaseUID string) (model.Plan, error)
}

// EntryService handles business logic for clipboard entries. Every operation
// requires an active session and is scoped to its organization.
type EntryService struct {
	repo     repository.EntryRepository
	sessions Sessions
	plans    PlanResolver
	bus      *events.Bus
	logger   *slog.Logger
}

func NewEntryService(repo repository.EntryRepository, sessions Sessions, plans PlanResolver, bus *events.Bus, logger *slog.Logger) *EntryService {
	return &EntryService{
		repo:     repo,
		sessions: sessions,
		plans:    plans,
		bus:      bus,
		logger:   logger,
	}
}

// SaveRequest carries a clipboard capture about to be stored.
type SaveRequest struct {
	Content      string   `json:"content"`
	ContentType  string   `json:"content_type"`
	SourceApp    string   `json:"source_app"`
	SourceWindow string   `json:"source_window"`
	Tags         []string `json:"tags"`
}

// Save stores a clipboard capture. A payload already present in the history
// (same content hash) is not duplicated; the existing entry is promoted to
// the top instead and returned.
func (s *EntryService) Save(ctx context.Context, req SaveRequest) (*model.ClipboardEntry, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(req.Content) == "" {
		return nil, apperror.ValidationFailed("content", "content cannot be empty")
	}
	if len(req.Content) > MaxContentLength {
		return nil, apperror.ValidationFailed("content",
			fmt.Sprintf("content exceeds maximum length of %d bytes", MaxContentLength))
	}

	hash := model.HashContent(req.Content)
	existing, err := s.repo.GetByHash(ctx, session.OrganizationID, hash)
	if err == nil {
		if err := s.repo.Touch(ctx, session.OrganizationID, existing.ID); err != nil {
			return nil, err
		}
		promoted, err := s.repo.GetByID(ctx, session.OrganizationID, existing.ID)
		if err != nil {
			return nil, err
		}
		obs.EntryCaptured()
		s.bus.Publish(events.EntryUpdated, promoted)
		return promoted, nil
	}
	if !isNotFound(err) {
		return nil, err
	}

	entry := &model.ClipboardEntry{
		Content:        req.Content,
		ContentType:    req.ContentType,
		ContentHash:    hash,
		SourceApp:      req.SourceApp,
		SourceWindow:   req.SourceWindow,
		Tags:           req.Tags,
		OrganizationID: session.OrganizationID,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}

	obs.EntryCaptured()
	s.logger.Info("entry saved", "id", entry.ID, "content_type", entry.ContentType)
	s.bus.Publish(events.EntryAdded, entry)
	return entry, nil
}

// List returns entries for the current organization, newest first.
func (s *EntryService) List(ctx context.Context, filter repository.EntryFilter, opts repository.ListOptions) ([]model.ClipboardEntry, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	if opts.Limit > MaxListLimit {
		opts.Limit = MaxListLimit
	}
	return s.repo.List(ctx, session.OrganizationID, filter, opts)
}

func (s *EntryService) Get(ctx context.Context, id int64) (*model.ClipboardEntry, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, session.OrganizationID, id)
}

// Update applies a partial update. Pinning is plan-gated: the Free tier caps
// concurrently pinned entries at model.FreePinLimit.
func (s *EntryService) Update(ctx context.Context, id int64, update model.EntryUpdate) (*model.ClipboardEntry, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}

	entry, err := s.repo.GetByID(ctx, session.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	if update.IsPinned != nil && *update.IsPinned && !entry.IsPinned {
		plan, err := s.plans.PlanFor(ctx, session.FirebaseUID)
		if err != nil {
			return nil, err
		}
		if plan == model.PlanFree {
			pinned, err := s.repo.CountPinned(ctx, session.OrganizationID)
			if err != nil {
				return nil, err
			}
			if pinned >= model.FreePinLimit {
				return nil, apperror.LimitReached(fmt.Sprintf(
					"free plan allows up to %d pinned entries", model.FreePinLimit))
			}
		}
	}

	if update.Content != nil {
		content := *update.Content
		if strings.TrimSpace(content) == "" {
			return nil, apperror.ValidationFailed("content", "content cannot be empty")
		}
		if len(content) > MaxContentLength {
			return nil, apperror.ValidationFailed("content", fmt.Sprintf(
				"content exceeds the %d byte limit", MaxContentLength))
		}
		entry.Content = content
		entry.ContentHash = model.HashContent(content)
		entry.ContentType = model.DetectContentType(content)
	}
	if update.IsPinned != nil {
		entry.IsPinned = *update.IsPinned
	}
	if update.Tags != nil {
		entry.Tags = update.Tags
	}
	entry.SyncStatus = model.SyncStatusLocal

	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.bus.Publish(events.EntryUpdated, entry)
	return entry, nil
}

// Delete removes one entry. Reports false without error when the entry was
// already gone, so repeated deletes are safe.
func (s *EntryService) Delete(ctx context.Context, id int64) (bool, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return false, err
	}
	deleted, err := s.repo.Delete(ctx, session.OrganizationID, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.bus.Publish(events.EntryDeleted, map[string]int64{"id": id})
	}
	return deleted, nil
}

// Clear wipes the whole history for the current organization.
func (s *EntryService) Clear(ctx context.Context) (int64, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return 0, err
	}
	n, err := s.repo.DeleteAll(ctx, session.OrganizationID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("history cleared", "deleted", n)
	s.bus.Publish(events.HistoryCleared, map[string]int64{"deleted": n})
	return n, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
