package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/repository"
)

var _ repository.EntryRepository = (*EntryRepo)(nil)

// EntryRepo stores clipboard entries.
type EntryRepo struct {
	db *DB
}

func NewEntryRepo(db *DB) *EntryRepo {
	return &EntryRepo{db: db}
}

const entryColumns = `id, content, content_type, content_hash, source_app, source_window,
	timestamp, created_at, tags, is_pinned, organization_id, sync_status, server_id`

func scanEntry(row interface{ Scan(...any) error }) (*model.ClipboardEntry, error) {
	var (
		e       model.ClipboardEntry
		rawTags string
	)
	err := row.Scan(
		&e.ID, &e.Content, &e.ContentType, &e.ContentHash,
		&e.SourceApp, &e.SourceWindow,
		&e.Timestamp, &e.CreatedAt,
		&rawTags, &e.IsPinned, &e.OrganizationID, &e.SyncStatus, &e.ServerID,
	)
	if err != nil {
		return nil, err
	}
	e.Tags = model.ParseTagsColumn(rawTags)
	return &e, nil
}

// Create inserts a new entry. Content hash and timestamps are set here so
// every row is written with the same invariants regardless of caller.
func (r *EntryRepo) Create(ctx context.Context, entry *model.ClipboardEntry) error {
	now := time.Now().UTC()
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

	res, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO clipboard_entries
		 (content, content_type, content_hash, source_app, source_window,
		  timestamp, created_at, tags, is_pinned, organization_id, sync_status, server_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Content, entry.ContentType, entry.ContentHash,
		entry.SourceApp, entry.SourceWindow,
		entry.Timestamp, entry.CreatedAt,
		model.EncodeTagsColumn(entry.Tags), entry.IsPinned,
		entry.OrganizationID, entry.SyncStatus, entry.ServerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating entry: %w", err)
	}
	entry.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading entry id: %w", err)
	}
	return nil
}

func (r *EntryRepo) GetByID(ctx context.Context, orgID string, id int64) (*model.ClipboardEntry, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM clipboard_entries
		 WHERE organization_id = ? AND id = ?`,
		orgID, id,
	)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("entry", id)
		}
		return nil, fmt.Errorf("sqlite: getting entry %d: %w", id, err)
	}
	return entry, nil
}

func (r *EntryRepo) GetByHash(ctx context.Context, orgID, contentHash string) (*model.ClipboardEntry, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM clipboard_entries
		 WHERE organization_id = ? AND content_hash = ?`,
		orgID, contentHash,
	)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("entry", contentHash)
		}
		return nil, fmt.Errorf("sqlite: getting entry by hash: %w", err)
	}
	return entry, nil
}

func (r *EntryRepo) GetByServerID(ctx context.Context, orgID, serverID string) (*model.ClipboardEntry, error) {
	row := r.db.conn.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM clipboard_entries
		 WHERE organization_id = ? AND server_id = ?`,
		orgID, serverID,
	)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("entry", serverID)
		}
		return nil, fmt.Errorf("sqlite: getting entry by server id: %w", err)
	}
	return entry, nil
}

// List returns entries newest first. The tag filter matches the stored JSON
// array; the exact membership check happens in Go after the coarse LIKE.
func (r *EntryRepo) List(ctx context.Context, orgID string, filter repository.EntryFilter, opts repository.ListOptions) ([]model.ClipboardEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + entryColumns + ` FROM clipboard_entries WHERE organization_id = ?`
	args := []any{orgID}
	if filter.Query != "" {
		query += ` AND content LIKE ?`
		args = append(args, "%"+filter.Query+"%")
	}
	if filter.Tag != "" {
		query += ` AND tags LIKE ?`
		args = append(args, `%"`+filter.Tag+`"%`)
	}
	if filter.PinnedOnly {
		query += ` AND is_pinned = 1`
	}
	if !filter.Since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, filter.Since)
	}
	query += ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.ClipboardEntry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning entry row: %w", err)
		}
		if filter.Tag != "" && !e.HasTag(filter.Tag) {
			continue
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating entries: %w", err)
	}
	return entries, nil
}

// Update rewrites the mutable fields and marks the row pending for sync.
func (r *EntryRepo) Update(ctx context.Context, entry *model.ClipboardEntry) error {
	entry.Tags = model.NormalizeTags(entry.Tags)
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE clipboard_entries
		 SET content = ?, content_type = ?, content_hash = ?,
		     tags = ?, is_pinned = ?, timestamp = ?, sync_status = ?, server_id = ?
		 WHERE organization_id = ? AND id = ?`,
		entry.Content, entry.ContentType, entry.ContentHash,
		model.EncodeTagsColumn(entry.Tags), entry.IsPinned, entry.Timestamp,
		entry.SyncStatus, entry.ServerID,
		entry.OrganizationID, entry.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating entry %d: %w", entry.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("entry", entry.ID)
	}
	return nil
}

// Touch bumps the entry timestamp to now, used when a duplicate copy re-promotes
// an existing entry to the top of the history.
func (r *EntryRepo) Touch(ctx context.Context, orgID string, id int64) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE clipboard_entries
		 SET timestamp = ?, sync_status = ?
		 WHERE organization_id = ? AND id = ?`,
		time.Now().UTC(), model.SyncStatusLocal, orgID, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching entry %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("entry", id)
	}
	return nil
}

// Delete removes one entry and reports whether a row existed.
func (r *EntryRepo) Delete(ctx context.Context, orgID string, id int64) (bool, error) {
	res, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM clipboard_entries WHERE organization_id = ? AND id = ?`,
		orgID, id,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting entry %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *EntryRepo) DeleteAll(ctx context.Context, orgID string) (int64, error) {
	res, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM clipboard_entries WHERE organization_id = ?`, orgID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting all entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return affected, nil
}

func (r *EntryRepo) CountPinned(ctx context.Context, orgID string) (int64, error) {
	var count int64
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM clipboard_entries
		 WHERE organization_id = ? AND is_pinned = 1`,
		orgID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting pinned entries: %w", err)
	}
	return count, nil
}

// Purge deletes unpinned entries. With RetainTags set, entries still carrying
// a tag survive the purge.
func (r *EntryRepo) Purge(ctx context.Context, orgID string, policy repository.PurgePolicy) (int64, error) {
	query := `DELETE FROM clipboard_entries WHERE organization_id = ? AND is_pinned = 0`
	if policy.RetainTags {
		query += ` AND (tags = '' OR tags = '[]' OR tags = 'null')`
	}
	res, err := r.db.conn.ExecContext(ctx, query, orgID)
	if err != nil {
		return 0, fmt.Errorf("sqlite: purging entries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return affected, nil
}

// ListPending returns entries whose local changes have not been pushed yet,
// oldest first so the sync engine replays them in order.
func (r *EntryRepo) ListPending(ctx context.Context, orgID string) ([]model.ClipboardEntry, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM clipboard_entries
		 WHERE organization_id = ? AND sync_status = ?
		 ORDER BY timestamp ASC`,
		orgID, model.SyncStatusLocal,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing pending entries: %w", err)
	}
	defer rows.Close()

	var entries []model.ClipboardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating pending entries: %w", err)
	}
	return entries, nil
}

func (r *EntryRepo) MarkSynced(ctx context.Context, orgID string, id int64, serverID string) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE clipboard_entries
		 SET sync_status = ?, server_id = ?
		 WHERE organization_id = ? AND id = ?`,
		model.SyncStatusSynced, serverID, orgID, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking entry %d synced: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("entry", id)
	}
	return nil
}
