package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/careercompass/internal/model"
)

// Session tokens are opaque cookie values. Their lifetime is chosen by the
// identity provider; the store only enforces expires_at.

const sessionTokenBytes = 32

// CreateAuthSession stores a fresh token for userID that is valid for ttl.
func (s *Store) CreateAuthSession(userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	token, err := newSessionToken()
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, now, now.Add(ttl),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// GetAuthSession returns the live session behind token. Unknown and expired
// tokens both report model.ErrNotFound; an expired row is removed on sight.
func (s *Store) GetAuthSession(token string) (model.AuthSession, error) {
	var sess model.AuthSession
	err := s.db.QueryRow(
		`SELECT id, user_id, created_at, expires_at FROM auth_sessions WHERE id = ?`, token,
	).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AuthSession{}, model.ErrNotFound
	}
	if err != nil {
		return model.AuthSession{}, fmt.Errorf("get session: %w", err)
	}
	if !time.Now().Before(sess.ExpiresAt) {
		if err := s.DeleteAuthSession(token); err != nil {
			return model.AuthSession{}, err
		}
		return model.AuthSession{}, model.ErrNotFound
	}
	return sess, nil
}

// DeleteAuthSession removes a session token.
func (s *Store) DeleteAuthSession(token string) error {
	if _, err := s.db.Exec(`DELETE FROM auth_sessions WHERE id = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions ends every session of a user and reports how many
// were open.
func (s *Store) DeleteUserSessions(userID string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_sessions WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return res.RowsAffected()
}

// CleanupExpiredSessions removes expired sessions and reports how many.
func (s *Store) CleanupExpiredSessions() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM auth_sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	return res.RowsAffected()
}

func newSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
