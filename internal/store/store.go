package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a user has no stored gradebook document yet.
var ErrNotFound = errors.New("document not found")

// Store persists one gradebook document per user in SQLite and fans out
// document writes to live watchers, alongside the user and session tables.
type Store struct {
	db *sql.DB

	mu       sync.Mutex
	watchers map[string][]chan []byte
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, watchers: make(map[string][]chan []byte)}
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
	CREATE TABLE IF NOT EXISTS documents (
		user_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadDocument returns the stored gradebook payload for a user.
func (s *Store) LoadDocument(userID string) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRow(
		`SELECT payload FROM documents WHERE user_id = ?`, userID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// SaveDocument upserts a user's gradebook payload and notifies watchers.
func (s *Store) SaveDocument(userID string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO documents (user_id, payload, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET payload = ?, updated_at = ?`,
		userID, payload, time.Now(), payload, time.Now(),
	)
	if err != nil {
		return err
	}
	s.notifyWatchers(userID, payload)
	return nil
}

// Watch delivers subsequent document writes for a user until ctx is done.
// Deliveries are coalesced: a slow reader sees the latest payload, not every
// intermediate one.
func (s *Store) Watch(ctx context.Context, userID string) <-chan []byte {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.watchers[userID] = append(s.watchers[userID], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		chans := s.watchers[userID]
		for i, c := range chans {
			if c == ch {
				s.watchers[userID] = append(chans[:i], chans[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch
}

func (s *Store) notifyWatchers(userID string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.watchers[userID] {
		// Replace a stale pending payload rather than block.
		select {
		case ch <- payload:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- payload:
			default:
			}
		}
	}
}
