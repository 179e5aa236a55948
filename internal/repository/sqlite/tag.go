package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/repository"
)

var _ repository.TagRepository = (*TagRepo)(nil)

// TagRepo stores tags. Entries reference tags by name, so rename and delete
// rewrite the affected entries in the same transaction as the tag row.
type TagRepo struct {
	db *DB
}

func NewTagRepo(db *DB) *TagRepo {
	return &TagRepo{db: db}
}

func (r *TagRepo) Create(ctx context.Context, tag *model.Tag) error {
	now := time.Now().UTC()
	tag.CreatedAt = now
	tag.UpdatedAt = now

	res, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO tags (organization_id, name, color, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		tag.OrganizationID, tag.Name, tag.Color, tag.CreatedAt, tag.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.DuplicateName("tag", tag.Name)
		}
		return fmt.Errorf("sqlite: creating tag: %w", err)
	}
	tag.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading tag id: %w", err)
	}
	return nil
}

func (r *TagRepo) GetByID(ctx context.Context, orgID string, id int64) (*model.Tag, error) {
	var t model.Tag
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT id, organization_id, name, color, created_at, updated_at
		 FROM tags WHERE organization_id = ? AND id = ?`,
		orgID, id,
	).Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tag", id)
		}
		return nil, fmt.Errorf("sqlite: getting tag %d: %w", id, err)
	}
	return &t, nil
}

func (r *TagRepo) GetByName(ctx context.Context, orgID, name string) (*model.Tag, error) {
	var t model.Tag
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT id, organization_id, name, color, created_at, updated_at
		 FROM tags WHERE organization_id = ? AND name = ?`,
		orgID, name,
	).Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tag", name)
		}
		return nil, fmt.Errorf("sqlite: getting tag %q: %w", name, err)
	}
	return &t, nil
}

// List returns all tags for the organization with a usage count per tag.
// Counts come from the entries table since tags are stored denormalized there.
func (r *TagRepo) List(ctx context.Context, orgID string) ([]model.TagUsage, error) {
	rows, err := r.db.conn.QueryContext(ctx,
		`SELECT t.id, t.organization_id, t.name, t.color, t.created_at, t.updated_at,
		        (SELECT COUNT(*) FROM clipboard_entries e
		         WHERE e.organization_id = t.organization_id AND e.tags LIKE '%"' || t.name || '"%')
		 FROM tags t WHERE t.organization_id = ?
		 ORDER BY t.name ASC`,
		orgID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tags: %w", err)
	}
	defer rows.Close()

	var tags []model.TagUsage
	for rows.Next() {
		var u model.TagUsage
		if err := rows.Scan(
			&u.ID, &u.OrganizationID, &u.Name, &u.Color,
			&u.CreatedAt, &u.UpdatedAt, &u.UsageCount,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning tag row: %w", err)
		}
		tags = append(tags, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tags: %w", err)
	}
	return tags, nil
}

// Update rewrites the tag row. When the name changed, every entry carrying
// the old name is relabeled inside the same transaction.
func (r *TagRepo) Update(ctx context.Context, tag *model.Tag) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning tag update: %w", err)
	}
	defer tx.Rollback()

	var oldName string
	err = tx.QueryRowContext(ctx,
		`SELECT name FROM tags WHERE organization_id = ? AND id = ?`,
		tag.OrganizationID, tag.ID,
	).Scan(&oldName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.NotFound("tag", tag.ID)
		}
		return fmt.Errorf("sqlite: reading tag %d: %w", tag.ID, err)
	}

	tag.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`UPDATE tags SET name = ?, color = ?, updated_at = ?
		 WHERE organization_id = ? AND id = ?`,
		tag.Name, tag.Color, tag.UpdatedAt, tag.OrganizationID, tag.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.DuplicateName("tag", tag.Name)
		}
		return fmt.Errorf("sqlite: updating tag %d: %w", tag.ID, err)
	}

	if oldName != tag.Name {
		if err := rewriteEntryTags(ctx, tx, tag.OrganizationID, oldName, tag.Name); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing tag update: %w", err)
	}
	return nil
}

// DeleteCascade removes the tag row and strips its name from every entry in
// the organization. Returns the deleted tag so callers can report it.
func (r *TagRepo) DeleteCascade(ctx context.Context, orgID string, id int64) (*model.Tag, error) {
	tag, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning tag delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM tags WHERE organization_id = ? AND id = ?`,
		orgID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: deleting tag %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return nil, apperror.NotFound("tag", id)
	}

	if err := rewriteEntryTags(ctx, tx, orgID, tag.Name, ""); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing tag delete: %w", err)
	}
	return tag, nil
}

// rewriteEntryTags replaces oldName with newName in every entry's tag set.
// An empty newName removes the tag. Rows are rewritten through the canonical
// encoder so legacy tag shapes normalize as a side effect.
func rewriteEntryTags(ctx context.Context, tx *sql.Tx, orgID, oldName, newName string) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, tags FROM clipboard_entries
		 WHERE organization_id = ? AND tags LIKE ?`,
		orgID, `%"`+oldName+`"%`,
	)
	if err != nil {
		return fmt.Errorf("sqlite: finding entries for tag %q: %w", oldName, err)
	}

	type pending struct {
		id   int64
		tags []string
	}
	var updates []pending
	for rows.Next() {
		var (
			id  int64
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite: scanning entry tags: %w", err)
		}
		tags := model.ParseTagsColumn(raw)
		changed := false
		out := tags[:0]
		for _, t := range tags {
			if t == oldName {
				changed = true
				if newName != "" {
					out = append(out, newName)
				}
				continue
			}
			out = append(out, t)
		}
		if changed {
			updates = append(updates, pending{id: id, tags: out})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("sqlite: iterating entries for tag %q: %w", oldName, err)
	}
	rows.Close()

	for _, u := range updates {
		_, err := tx.ExecContext(ctx,
			`UPDATE clipboard_entries SET tags = ?, sync_status = ?
			 WHERE organization_id = ? AND id = ?`,
			model.EncodeTagsColumn(u.tags), model.SyncStatusLocal, orgID, u.id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: rewriting entry %d tags: %w", u.id, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
