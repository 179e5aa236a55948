package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/events"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/netx"
	"github.com/cliptray/cliptrayd/internal/repository"
)

// TagService handles tag CRUD and entry-tag assignment. Destructive tag
// operations propagate to the cloud copy, so they are refused offline.
type TagService struct {
	tags     repository.TagRepository
	entries  repository.EntryRepository
	sessions Sessions
	network  *netx.Monitor
	bus      *events.Bus
	logger   *slog.Logger
}

func NewTagService(tags repository.TagRepository, entries repository.EntryRepository, sessions Sessions, network *netx.Monitor, bus *events.Bus, logger *slog.Logger) *TagService {
	return &TagService{
		tags:     tags,
		entries:  entries,
		sessions: sessions,
		network:  network,
		bus:      bus,
		logger:   logger,
	}
}

// CreateRequest carries a tag about to be created. Color is optional; a
// random one is assigned when missing.
type CreateRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *TagService) Create(ctx context.Context, req CreateRequest) (*model.Tag, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if !model.ValidTagName(name) {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("tag name must be 1 to %d characters", model.MaxTagNameLength))
	}

	color := req.Color
	if color == "" {
		color = model.RandomTagColor()
	} else if !model.ValidTagColor(color) {
		return nil, apperror.ValidationFailed("color", "color must be a hex value like #3366FF")
	}

	tag := &model.Tag{
		OrganizationID: session.OrganizationID,
		Name:           name,
		Color:          model.FormatTagColor(color),
	}
	if err := s.tags.Create(ctx, tag); err != nil {
		return nil, err
	}

	s.logger.Info("tag created", "name", tag.Name)
	s.bus.Publish(events.TagsChanged, tag)
	return tag, nil
}

// List returns the organization's tags ordered by usage, most used first.
// Ties fall back to name order.
func (s *TagService) List(ctx context.Context) ([]model.TagUsage, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}
	tags, err := s.tags.List(ctx, session.OrganizationID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(tags, func(i, j int) bool {
		if tags[i].UsageCount != tags[j].UsageCount {
			return tags[i].UsageCount > tags[j].UsageCount
		}
		return tags[i].Name < tags[j].Name
	})
	return tags, nil
}

// UpdateRequest renames a tag or changes its color. Zero values leave the
// field untouched.
type UpdateRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *TagService) Update(ctx context.Context, id int64, req UpdateRequest) (*model.Tag, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}

	tag, err := s.tags.GetByID(ctx, session.OrganizationID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		name := strings.TrimSpace(req.Name)
		if !model.ValidTagName(name) {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("tag name must be 1 to %d characters", model.MaxTagNameLength))
		}
		tag.Name = name
	}
	if req.Color != "" {
		if !model.ValidTagColor(req.Color) {
			return nil, apperror.ValidationFailed("color", "color must be a hex value like #3366FF")
		}
		tag.Color = model.FormatTagColor(req.Color)
	}

	if err := s.tags.Update(ctx, tag); err != nil {
		return nil, err
	}

	s.bus.Publish(events.TagsChanged, tag)
	return tag, nil
}

// Delete removes a tag and strips it from every entry. The cascade also has
// to land on the cloud copy, so the operation is refused while offline.
func (s *TagService) Delete(ctx context.Context, id int64) error {
	session, err := s.sessions.Current()
	if err != nil {
		return err
	}
	if !s.network.Online(ctx) {
		return apperror.Offline("deleting a tag")
	}

	tag, err := s.tags.DeleteCascade(ctx, session.OrganizationID, id)
	if err != nil {
		return err
	}

	s.logger.Info("tag deleted", "name", tag.Name)
	s.bus.Publish(events.TagsChanged, map[string]string{"deleted": tag.Name})
	return nil
}

// Assign adds a tag to an entry. Assigning a tag the entry already carries
// is a no-op.
func (s *TagService) Assign(ctx context.Context, entryID int64, tagName string) (*model.ClipboardEntry, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}

	if _, err := s.tags.GetByName(ctx, session.OrganizationID, tagName); err != nil {
		return nil, err
	}
	entry, err := s.entries.GetByID(ctx, session.OrganizationID, entryID)
	if err != nil {
		return nil, err
	}
	if entry.HasTag(tagName) {
		return entry, nil
	}

	entry.Tags = append(entry.Tags, tagName)
	entry.SyncStatus = model.SyncStatusLocal
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.bus.Publish(events.EntryUpdated, entry)
	return entry, nil
}

// Remove takes a tag off an entry. Removing a tag the entry does not carry
// is a no-op.
func (s *TagService) Remove(ctx context.Context, entryID int64, tagName string) (*model.ClipboardEntry, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}

	entry, err := s.entries.GetByID(ctx, session.OrganizationID, entryID)
	if err != nil {
		return nil, err
	}
	if !entry.HasTag(tagName) {
		return entry, nil
	}

	kept := entry.Tags[:0]
	for _, t := range entry.Tags {
		if t != tagName {
			kept = append(kept, t)
		}
	}
	entry.Tags = kept
	entry.SyncStatus = model.SyncStatusLocal
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, err
	}

	s.bus.Publish(events.EntryUpdated, entry)
	return entry, nil
}
