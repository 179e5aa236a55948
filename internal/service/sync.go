package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cliptray/cliptrayd/internal/cloud"
	"github.com/cliptray/cliptrayd/internal/events"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/netx"
	"github.com/cliptray/cliptrayd/internal/obs"
	"github.com/cliptray/cliptrayd/internal/repository"
)

// SyncInterval is the cadence of the background sync loop.
const SyncInterval = 60 * time.Second

// SyncResult reports what one sync run did.
type SyncResult struct {
	Pushed int `json:"pushed"`
	Pulled int `json:"pulled"`
}

// SyncEngine replicates the local history to the cloud store and back.
// At most one run is active at a time; overlapping triggers are dropped.
// Runs while offline or logged out are silent no-ops.
type SyncEngine struct {
	entries  repository.EntryRepository
	store    cloud.EntryStore
	sessions Sessions
	network  *netx.Monitor
	bus      *events.Bus
	logger   *slog.Logger

	running atomic.Bool
}

func NewSyncEngine(entries repository.EntryRepository, store cloud.EntryStore, sessions Sessions, network *netx.Monitor, bus *events.Bus, logger *slog.Logger) *SyncEngine {
	return &SyncEngine{
		entries:  entries,
		store:    store,
		sessions: sessions,
		network:  network,
		bus:      bus,
		logger:   logger,
	}
}

// SyncNow runs one full push/pull cycle. Returns a zero result without error
// when sync cannot or need not run (offline, logged out, already running).
func (e *SyncEngine) SyncNow(ctx context.Context) (SyncResult, error) {
	if e.store == nil {
		return SyncResult{}, nil
	}
	if !e.running.CompareAndSwap(false, true) {
		obs.SyncRun("skipped")
		return SyncResult{}, nil
	}
	defer e.running.Store(false)

	session, err := e.sessions.Current()
	if err != nil {
		obs.SyncRun("skipped")
		return SyncResult{}, nil
	}
	if !e.network.Online(ctx) {
		obs.SyncRun("offline")
		return SyncResult{}, nil
	}

	result, err := e.run(ctx, session.OrganizationID)
	if err != nil {
		obs.SyncRun("error")
		e.logger.Error("sync failed", "error", err)
		return result, err
	}

	obs.SyncRun("ok")
	if result.Pushed > 0 || result.Pulled > 0 {
		e.logger.Info("sync completed", "pushed", result.Pushed, "pulled", result.Pulled)
	}
	e.bus.Publish(events.SyncCompleted, result)
	return result, nil
}

// Run drives the periodic sync loop until the context ends. One run fires
// immediately so a fresh login converges without waiting a full interval.
func (e *SyncEngine) Run(ctx context.Context) {
	e.SyncNow(ctx)

	ticker := time.NewTicker(SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.SyncNow(ctx)
		}
	}
}

func (e *SyncEngine) run(ctx context.Context, orgID string) (SyncResult, error) {
	var result SyncResult

	pushed, err := e.push(ctx, orgID)
	result.Pushed = pushed
	if err != nil {
		return result, err
	}

	pulled, err := e.pull(ctx, orgID)
	result.Pulled = pulled
	return result, err
}

// push uploads every pending local entry. Entries synced for the first time
// get a server id here.
func (e *SyncEngine) push(ctx context.Context, orgID string) (int, error) {
	pending, err := e.entries.ListPending(ctx, orgID)
	if err != nil {
		return 0, err
	}

	pushed := 0
	for _, entry := range pending {
		serverID := entry.ServerID
		if serverID == "" {
			serverID = uuid.NewString()
		}
		remote := cloud.RemoteEntry{
			ServerID:       serverID,
			Content:        entry.Content,
			ContentType:    entry.ContentType,
			ContentHash:    entry.ContentHash,
			SourceApp:      entry.SourceApp,
			SourceWindow:   entry.SourceWindow,
			Timestamp:      entry.Timestamp,
			Tags:           entry.Tags,
			IsPinned:       entry.IsPinned,
			OrganizationID: orgID,
		}
		if err := e.store.Put(ctx, remote); err != nil {
			return pushed, err
		}
		if err := e.entries.MarkSynced(ctx, orgID, entry.ID, serverID); err != nil {
			return pushed, err
		}
		pushed++
	}
	return pushed, nil
}

// pull reconciles the remote copy into the local history. Unknown entries
// are inserted; known ones are updated only when the remote copy is newer
// and the local row has no unpushed changes.
func (e *SyncEngine) pull(ctx context.Context, orgID string) (int, error) {
	remotes, err := e.store.List(ctx, orgID)
	if err != nil {
		return 0, err
	}

	pulled := 0
	for _, remote := range remotes {
		local, err := e.entries.GetByServerID(ctx, orgID, remote.ServerID)
		if err != nil {
			if !isNotFound(err) {
				return pulled, err
			}
			// also match by content hash so an entry captured on two
			// devices does not duplicate
			local, err = e.entries.GetByHash(ctx, orgID, remote.ContentHash)
			if err != nil {
				if !isNotFound(err) {
					return pulled, err
				}
				entry := &model.ClipboardEntry{
					Content:        remote.Content,
					ContentType:    remote.ContentType,
					ContentHash:    remote.ContentHash,
					SourceApp:      remote.SourceApp,
					SourceWindow:   remote.SourceWindow,
					Timestamp:      remote.Timestamp,
					Tags:           remote.Tags,
					IsPinned:       remote.IsPinned,
					OrganizationID: orgID,
					SyncStatus:     model.SyncStatusSynced,
					ServerID:       remote.ServerID,
				}
				if err := e.entries.Create(ctx, entry); err != nil {
					return pulled, err
				}
				pulled++
				continue
			}
			if err := e.entries.MarkSynced(ctx, orgID, local.ID, remote.ServerID); err != nil {
				return pulled, err
			}
			continue
		}

		if local.SyncStatus == model.SyncStatusLocal {
			// local pending changes win; the next push uploads them
			continue
		}
		if !remote.Timestamp.After(local.Timestamp) {
			continue
		}

		local.Tags = remote.Tags
		local.IsPinned = remote.IsPinned
		local.Timestamp = remote.Timestamp
		local.SyncStatus = model.SyncStatusSynced
		local.ServerID = remote.ServerID
		if err := e.entries.Update(ctx, local); err != nil {
			return pulled, err
		}
		pulled++
	}
	return pulled, nil
}
