package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/crypto/bcrypt"

	"github.com/cliptray/cliptrayd/internal/apperror"
	"github.com/cliptray/cliptrayd/internal/model"
	"github.com/cliptray/cliptrayd/internal/repository"
)

// Session is the in-memory authenticated state. All clipboard operations are
// scoped to OrganizationID.
type Session struct {
	UserID         int64  `json:"user_id"`
	FirebaseUID    string `json:"firebase_uid"`
	OrganizationID string `json:"organization_id"`
	Email          string `json:"email"`
}

// sessionHint is the restore file written next to the database. The token is
// random; only its bcrypt hash is stored in the users table.
type sessionHint struct {
	FirebaseUID string `json:"firebase_uid"`
	Token       string `json:"token"`
}

// SessionManager owns the current session and its persistence across daemon
// restarts.
type SessionManager struct {
	users    repository.UserRepository
	hintPath string
	logger   *slog.Logger

	mu      sync.RWMutex
	current *Session
}

func NewSessionManager(users repository.UserRepository, hintPath string, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		users:    users,
		hintPath: hintPath,
		logger:   logger,
	}
}

// Current returns the active session, or ErrNotLoggedIn when there is none.
func (m *SessionManager) Current() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, apperror.NotLoggedIn()
	}
	s := *m.current
	return &s, nil
}

// LoggedIn reports whether a session is active.
func (m *SessionManager) LoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// Login upserts the user for the verified identity, activates the session
// and writes the restore hint.
func (m *SessionManager) Login(ctx context.Context, identity *Identity) (*model.User, error) {
	user := &model.User{
		FirebaseUID:    identity.UID,
		Email:          identity.Email,
		DisplayName:    identity.DisplayName,
		OrganizationID: "org-" + identity.UID,
	}
	if err := m.users.Upsert(ctx, user); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.current = &Session{
		UserID:         user.ID,
		FirebaseUID:    user.FirebaseUID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
	}
	m.mu.Unlock()

	if err := m.writeHint(ctx, user.FirebaseUID); err != nil {
		m.logger.Warn("failed to persist session hint", "error", err)
	}

	m.logger.Info("user logged in", "email", user.Email, "organization_id", user.OrganizationID)
	return user, nil
}

// Signup registers a new account and activates its session. An already
// registered identity is rejected; it should log in instead.
func (m *SessionManager) Signup(ctx context.Context, identity *Identity) (*model.User, error) {
	existing, err := m.users.GetByFirebaseUID(ctx, identity.UID)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict("an account already exists for this identity")
	}
	return m.Login(ctx, identity)
}

// Logout clears the session and removes the restore hint. Safe to call with
// no active session.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.mu.Unlock()

	if err := os.Remove(m.hintPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("failed to remove session hint", "error", err)
	}
	if current != nil {
		if err := m.users.ClearSessionHint(ctx, current.FirebaseUID); err != nil {
			m.logger.Warn("failed to clear session hint hash", "error", err)
		}
		m.logger.Info("user logged out", "email", current.Email)
	}
	return nil
}

// Restore re-activates the session from the hint file. Storage may still be
// opening when the daemon starts, so lookups retry with a constant backoff
// before giving up.
func (m *SessionManager) Restore(ctx context.Context) error {
	data, err := os.ReadFile(m.hintPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperror.NotLoggedIn()
		}
		return fmt.Errorf("auth: reading session hint: %w", err)
	}

	var hint sessionHint
	if err := json.Unmarshal(data, &hint); err != nil {
		return fmt.Errorf("auth: decoding session hint: %w", err)
	}

	var user *model.User
	backoff := retry.WithMaxDuration(15*time.Second, retry.NewConstant(250*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var lookupErr error
		user, lookupErr = m.users.GetByFirebaseUID(ctx, hint.FirebaseUID)
		if lookupErr != nil {
			if errors.Is(lookupErr, apperror.ErrNotFound) {
				return lookupErr
			}
			return retry.RetryableError(lookupErr)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.NotLoggedIn()
		}
		return fmt.Errorf("auth: restoring session: %w", err)
	}

	if user.SessionHintHash == "" {
		return apperror.NotLoggedIn()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.SessionHintHash), []byte(hint.Token)); err != nil {
		return apperror.NotLoggedIn()
	}

	m.mu.Lock()
	m.current = &Session{
		UserID:         user.ID,
		FirebaseUID:    user.FirebaseUID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
	}
	m.mu.Unlock()

	if err := m.users.TouchLogin(ctx, user.FirebaseUID); err != nil {
		m.logger.Warn("failed to record login time", "error", err)
	}
	m.logger.Info("session restored", "email", user.Email)
	return nil
}

func (m *SessionManager) writeHint(ctx context.Context, firebaseUID string) error {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("auth: generating session token: %w", err)
	}
	token := hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hashing session token: %w", err)
	}
	if err := m.users.SetSessionHintHash(ctx, firebaseUID, string(hash)); err != nil {
		return err
	}

	data, err := json.Marshal(sessionHint{FirebaseUID: firebaseUID, Token: token})
	if err != nil {
		return fmt.Errorf("auth: encoding session hint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.hintPath), 0o700); err != nil {
		return fmt.Errorf("auth: creating hint directory: %w", err)
	}
	if err := os.WriteFile(m.hintPath, data, 0o600); err != nil {
		return fmt.Errorf("auth: writing session hint: %w", err)
	}
	return nil
}
