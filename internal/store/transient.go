package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/careercompass/internal/model"
)

// Put upserts a transient value that expires after ttl.
func (s *Store) Put(key, value string, ttl time.Duration) error {
	expires := time.Now().Add(ttl)
	_, err := s.db.Exec(
		`INSERT INTO transient (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?, expires_at = ?`,
		key, value, expires, value, expires,
	)
	return err
}

// Get returns the value stored under key.
// Returns empty string and false if the key is missing or expired.
func (s *Store) Get(key string) (string, bool, error) {
	var value string
	var expires time.Time
	err := s.db.QueryRow(`SELECT value, expires_at FROM transient WHERE key = ?`, key).Scan(&value, &expires)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if time.Now().After(expires) {
		_ = s.Delete(key)
		return "", false, nil
	}
	return value, true, nil
}

// Delete removes a transient value. Missing keys are not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM transient WHERE key = ?`, key)
	return err
}

// CleanupExpiredTransient removes all expired transient values.
func (s *Store) CleanupExpiredTransient() error {
	_, err := s.db.Exec(`DELETE FROM transient WHERE expires_at < ?`, time.Now())
	return err
}

func quizResultKey(userID string) string {
	return "quiz_result:" + userID
}

// QuizResults hands finished quizzes over to the dashboard through the
// transient table.
type QuizResults struct {
	store *Store
	ttl   time.Duration
}

// NewQuizResults wraps s with the given retention.
func NewQuizResults(s *Store, ttl time.Duration) *QuizResults {
	return &QuizResults{store: s, ttl: ttl}
}

// Save stores the result for userID, replacing any earlier one.
func (q *QuizResults) Save(userID string, r model.QuizResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal quiz result: %w", err)
	}
	return q.store.Put(quizResultKey(userID), string(data), q.ttl)
}

// Load returns the stored result or model.ErrNoQuizResult.
func (q *QuizResults) Load(userID string) (model.QuizResult, error) {
	var r model.QuizResult
	raw, ok, err := q.store.Get(quizResultKey(userID))
	if err != nil {
		return r, err
	}
	if !ok {
		return r, model.ErrNoQuizResult
	}
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		// A corrupt entry is as good as none; drop it so the quiz can be retaken.
		_ = q.store.Delete(quizResultKey(userID))
		return r, errors.Join(model.ErrNoQuizResult, fmt.Errorf("decode quiz result: %w", err))
	}
	return r, nil
}

// Remove deletes the stored result for userID.
func (q *QuizResults) Remove(userID string) error {
	return q.store.Delete(quizResultKey(userID))
}
