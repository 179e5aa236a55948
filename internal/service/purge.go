package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/events"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/obs"
	"github.com/cliptray/cliptrayd/internal/repository"
)

// PurgeService owns the retention settings and the background purge loop.
//
// A purge fires when the configured cadence has elapsed since the last one.
// The loop checks once a minute; a tick arriving while a purge is still
// running is dropped.
type PurgeService struct {
	entries  repository.EntryRepository
	users    repository.UserRepository
	sessions Sessions
	plans    PlanResolver
	bus      *events.Bus
	logger   *slog.Logger

	purging atomic.Bool

	mu        sync.Mutex
	lastPurge map[string]time.Time // organization id -> last purge time
}

func NewPurgeService(entries repository.EntryRepository, users repository.UserRepository, sessions Sessions, plans PlanResolver, bus *events.Bus, logger *slog.Logger) *PurgeService {
	return &PurgeService{
		entries:   entries,
		users:     users,
		sessions:  sessions,
		plans:     plans,
		bus:       bus,
		logger:    logger,
		lastPurge: make(map[string]time.Time),
	}
}

// Settings returns the retention configuration for the current user,
// including the cadence options their plan allows.
func (s *PurgeService) Settings(ctx context.Context) (*model.PurgeSettings, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByFirebaseUID(ctx, session.FirebaseUID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.PlanFor(ctx, session.FirebaseUID)
	if err != nil {
		return nil, err
	}

	_, enabled := user.PurgeCadence.Interval()
	return &model.PurgeSettings{
		AutoPurgeEnabled: enabled,
		PurgeCadence:     user.PurgeCadence.Display(),
		RetainTags:       user.RetainTags,
		OrganizationID:   user.OrganizationID,
		AvailableOptions: model.CadenceOptions(plan),
	}, nil
}

// UpdateSettings stores a new cadence. Cadences outside the plan's options
// are rejected; disabling maps to the "Never" cadence.
func (s *PurgeService) UpdateSettings(ctx context.Context, cadence string, retainTags bool) (*model.PurgeSettings, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return nil, err
	}

	parsed, err := model.ParseCadence(cadence)
	if err != nil {
		return nil, apperror.ValidationFailed("purge_cadence", err.Error())
	}

	plan, err := s.plans.PlanFor(ctx, session.FirebaseUID)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, opt := range model.CadenceOptions(plan) {
		if opt == parsed.Display() {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperror.LimitReached("this purge cadence requires the Pro plan")
	}

	if err := s.users.UpdatePurgeSettings(ctx, session.FirebaseUID, parsed, retainTags); err != nil {
		return nil, err
	}

	// changing the cadence restarts the countdown
	s.mu.Lock()
	s.lastPurge[session.OrganizationID] = time.Now()
	s.mu.Unlock()

	s.logger.Info("purge settings updated", "cadence", parsed.Display(), "retain_tags", retainTags)
	return s.Settings(ctx)
}

// PurgeNow runs a purge immediately for the current user with their stored
// retention policy. A purge already in flight makes this a no-op returning 0.
func (s *PurgeService) PurgeNow(ctx context.Context) (int64, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return 0, err
	}
	user, err := s.users.GetByFirebaseUID(ctx, session.FirebaseUID)
	if err != nil {
		return 0, err
	}
	return s.purgeGuarded(ctx, session.OrganizationID, user.RetainTags)
}

// PurgeWith runs a purge immediately with an explicit retention policy,
// leaving the stored setting untouched.
func (s *PurgeService) PurgeWith(ctx context.Context, retainTags bool) (int64, error) {
	session, err := s.sessions.Current()
	if err != nil {
		return 0, err
	}
	return s.purgeGuarded(ctx, session.OrganizationID, retainTags)
}

// purgeGuarded takes the same single-run flag as the timer loop, so a manual
// purge never overlaps an automatic one or another manual one.
func (s *PurgeService) purgeGuarded(ctx context.Context, orgID string, retainTags bool) (int64, error) {
	if !s.purging.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer s.purging.Store(false)
	return s.purge(ctx, orgID, retainTags)
}

// Run drives the automatic purge loop until the context ends.
func (s *PurgeService) Run(ctx context.Context, checkInterval time.Duration) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one due-cadence check. Overlapping ticks are dropped.
func (s *PurgeService) tick(ctx context.Context) {
	if !s.purging.CompareAndSwap(false, true) {
		return
	}
	defer s.purging.Store(false)

	session, err := s.sessions.Current()
	if err != nil {
		return
	}
	user, err := s.users.GetByFirebaseUID(ctx, session.FirebaseUID)
	if err != nil {
		s.logger.Warn("purge tick failed to load user", "error", err)
		return
	}

	interval, enabled := user.PurgeCadence.Interval()
	if !enabled {
		return
	}

	s.mu.Lock()
	last, ok := s.lastPurge[session.OrganizationID]
	if !ok {
		// first observation arms the timer instead of purging immediately
		s.lastPurge[session.OrganizationID] = time.Now()
		s.mu.Unlock()
		return
	}
	due := time.Since(last) >= interval
	s.mu.Unlock()

	if !due {
		return
	}
	if _, err := s.purge(ctx, session.OrganizationID, user.RetainTags); err != nil {
		s.logger.Error("automatic purge failed", "error", err)
	}
}

func (s *PurgeService) purge(ctx context.Context, orgID string, retainTags bool) (int64, error) {
	n, err := s.entries.Purge(ctx, orgID, repository.PurgePolicy{RetainTags: retainTags})
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.lastPurge[orgID] = time.Now()
	s.mu.Unlock()

	obs.Purged(n)
	s.logger.Info("purge completed", "deleted", n, "retain_tags", retainTags)
	s.bus.Publish(events.PurgeCompleted, map[string]int64{"deleted": n})
	return n, nil
}
