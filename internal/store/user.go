package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/careercompass/internal/model"

	"github.com/google/uuid"
)

const userColumns = `id, COALESCE(username, ''), display_name, password_hash, role, active, created_at`

// CreateUser inserts a new user and returns its generated ID.
func (s *Store) CreateUser(u model.User) (string, error) {
	id := uuid.NewString()
	var username sql.NullString
	if u.Username != "" {
		username = sql.NullString{String: u.Username, Valid: true}
	}
	if u.Role == "" {
		u.Role = model.UserRoleStudent
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, username, display_name, password_hash, role, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, username, u.DisplayName, u.PasswordHash, u.Role, u.Active, time.Now(),
	)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return "", err
	}
	slog.Debug("created user", "id", id, "role", u.Role)
	return id, nil
}

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.Role, &u.Active, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByUsername returns a user by username, or nil if there is none.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
}

// GetUserByID returns a user by ID, or nil if there is none.
func (s *Store) GetUserByID(id string) (*model.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// DeactivateUser marks a user inactive.
func (s *Store) DeactivateUser(id string) error {
	_, err := s.db.Exec(`UPDATE users SET active = 0 WHERE id = ?`, id)
	return err
}

// CountUsersByRole returns the number of users holding the role.
func (s *Store) CountUsersByRole(role model.UserRole) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = ?`, role).Scan(&count)
	return count, err
}
