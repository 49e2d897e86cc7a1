package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/careercompass/internal/model"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if dbPath == ":memory:" {
		dsn = dbPath
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'student',
		active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS transient (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS explorations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		stream TEXT NOT NULL,
		feedback TEXT NOT NULL,
		answers TEXT NOT NULL DEFAULT '[]',
		transcript TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_explorations_stream ON explorations(stream);
	`
	_, err := s.db.Exec(schema)
	return err
}

// AddExploration records a finished simulation run.
func (s *Store) AddExploration(e model.Exploration) (string, error) {
	answers, err := json.Marshal(e.Answers)
	if err != nil {
		return "", fmt.Errorf("marshal answers: %w", err)
	}
	transcript, err := json.Marshal(e.Transcript)
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO explorations (id, user_id, stream, feedback, answers, transcript, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, e.UserID, e.Stream, e.Feedback, string(answers), string(transcript), time.Now(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListExplorations returns finished explorations, newest first.
// An empty stream means all streams.
func (s *Store) ListExplorations(stream string) ([]model.Exploration, error) {
	query := `SELECT e.id, e.user_id, COALESCE(u.display_name, ''), e.stream, e.feedback, e.answers, e.transcript, e.created_at
		FROM explorations e LEFT JOIN users u ON u.id = e.user_id WHERE 1=1`
	var args []any
	if stream != "" {
		query += ` AND e.stream = ?`
		args = append(args, stream)
	}
	query += ` ORDER BY e.created_at DESC, e.id`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Exploration
	for rows.Next() {
		var e model.Exploration
		var answers, transcript string
		if err := rows.Scan(&e.ID, &e.UserID, &e.DisplayName, &e.Stream, &e.Feedback, &answers, &transcript, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(answers), &e.Answers); err != nil {
			return nil, fmt.Errorf("decode answers of %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(transcript), &e.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExplorationCount returns the number of recorded explorations.
func (s *Store) ExplorationCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM explorations`).Scan(&count)
	return count, err
}
