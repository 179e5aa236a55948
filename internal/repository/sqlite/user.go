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

var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo stores local user accounts keyed by Firebase UID.
type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Upsert creates the user on first login and refreshes the mutable profile
// fields on every subsequent one. Purge settings survive re-login untouched.
func (r *UserRepo) Upsert(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.PurgeCadence == "" {
		user.PurgeCadence = model.CadenceNever
	}
	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO users
		 (firebase_uid, email, display_name, organization_id, purge_cadence,
		  retain_tags, created_at, updated_at, last_login_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(firebase_uid) DO UPDATE SET
		   email = excluded.email,
		   display_name = excluded.display_name,
		   organization_id = excluded.organization_id,
		   updated_at = excluded.updated_at,
		   last_login_at = excluded.last_login_at`,
		user.FirebaseUID, user.Email, user.DisplayName, user.OrganizationID,
		string(user.PurgeCadence), user.RetainTags, now, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user: %w", err)
	}

	stored, err := r.GetByFirebaseUID(ctx, user.FirebaseUID)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

func (r *UserRepo) GetByFirebaseUID(ctx context.Context, firebaseUID string) (*model.User, error) {
	var (
		u       model.User
		cadence string
	)
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT id, firebase_uid, email, display_name, organization_id,
		        purge_cadence, retain_tags, session_hint_hash,
		        created_at, updated_at, last_login_at
		 FROM users WHERE firebase_uid = ?`,
		firebaseUID,
	).Scan(
		&u.ID, &u.FirebaseUID, &u.Email, &u.DisplayName, &u.OrganizationID,
		&cadence, &u.RetainTags, &u.SessionHintHash,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", firebaseUID)
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}
	parsed, err := model.ParseCadence(cadence)
	if err != nil {
		parsed = model.CadenceNever
	}
	u.PurgeCadence = parsed
	return &u, nil
}

func (r *UserRepo) UpdatePurgeSettings(ctx context.Context, firebaseUID string, cadence model.PurgeCadence, retainTags bool) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE users SET purge_cadence = ?, retain_tags = ?, updated_at = ?
		 WHERE firebase_uid = ?`,
		string(cadence), retainTags, time.Now().UTC(), firebaseUID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating purge settings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", firebaseUID)
	}
	return nil
}

func (r *UserRepo) SetSessionHintHash(ctx context.Context, firebaseUID, hash string) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE users SET session_hint_hash = ?, updated_at = ?
		 WHERE firebase_uid = ?`,
		hash, time.Now().UTC(), firebaseUID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: storing session hint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", firebaseUID)
	}
	return nil
}

func (r *UserRepo) ClearSessionHint(ctx context.Context, firebaseUID string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE users SET session_hint_hash = '', updated_at = ?
		 WHERE firebase_uid = ?`,
		time.Now().UTC(), firebaseUID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clearing session hint: %w", err)
	}
	return nil
}

func (r *UserRepo) TouchLogin(ctx context.Context, firebaseUID string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE users SET last_login_at = ? WHERE firebase_uid = ?`,
		time.Now().UTC(), firebaseUID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching login: %w", err)
	}
	return nil
}
