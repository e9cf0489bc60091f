package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"codexchat/core"
)

// SQLiteStore implements the Store interface with SQLite persistence.
// It uses an embedded EphemeralStore as a cache to reduce database reads
// during active conversations.
type SQLiteStore struct {
	db        *sql.DB
	ephemeral *EphemeralStore
	log       *slog.Logger
	mu        sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed store.
// The path parameter can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	eph := NewEphemeralStore()
	return &SQLiteStore{
		db:        db,
		ephemeral: &eph,
		log:       log,
	}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session_id_id
			ON messages(session_id, id);

		CREATE TABLE IF NOT EXISTS usage (
			session_id TEXT PRIMARY KEY,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			cached_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Messages returns all messages for a given session.
// It uses the ephemeral cache if the session has already been loaded.
func (s *SQLiteStore) Messages(sessionID string) []core.Message {
	s.mu.RLock()
	msgs := s.ephemeral.Messages(sessionID)
	if len(msgs) > 0 {
		defer s.mu.RUnlock()
		return msgs
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// double-check after acquiring the write lock
	msgs = s.ephemeral.Messages(sessionID)
	if len(msgs) > 0 {
		return msgs
	}

	msgs, err := s.loadMessages(sessionID)
	if err != nil {
		s.log.Error("failed to load messages", "session", sessionID, "err", err)
		return []core.Message{}
	}

	usage, err := s.loadUsage(sessionID)
	if err != nil {
		// Refusing to populate the cache with messages but no usage keeps
		// accounting correct; the next call retries the load.
		s.log.Error("failed to load usage", "session", sessionID, "err", err)
		return []core.Message{}
	}

	if err := s.ephemeral.Extend(sessionID, msgs, usage); err != nil {
		s.log.Error("failed to populate ephemeral cache", "session", sessionID, "err", err)
	}

	return msgs
}

// Usage returns the accumulated usage for a given session. Unlike Messages,
// it does not populate the ephemeral cache on a miss: the cache is only ever
// filled with messages and usage together.
func (s *SQLiteStore) Usage(sessionID string) core.Usage {
	s.mu.RLock()
	usage := s.ephemeral.Usage(sessionID)
	if usage.Input != 0 || usage.Output != 0 {
		defer s.mu.RUnlock()
		return usage
	}
	s.mu.RUnlock()

	usage, err := s.loadUsage(sessionID)
	if err != nil {
		s.log.Error("failed to load usage", "session", sessionID, "err", err)
		return core.Usage{}
	}

	return usage
}

// Extend appends messages and accumulates usage for a session.
// It writes through to both the ephemeral cache and SQLite.
func (s *SQLiteStore) Extend(sessionID string, msgs []core.Message, usage core.Usage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// persist to SQLite first so the DB stays the source of truth
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO messages (session_id, payload) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		payload, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to serialize message: %w", err)
		}

		if _, err := stmt.Exec(sessionID, payload); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO usage (session_id, input_tokens, cached_tokens, output_tokens, total_tokens)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			input_tokens = usage.input_tokens + excluded.input_tokens,
			cached_tokens = usage.cached_tokens + excluded.cached_tokens,
			output_tokens = usage.output_tokens + excluded.output_tokens,
			total_tokens = usage.total_tokens + excluded.total_tokens
	`, sessionID, usage.Input, usage.Cached, usage.Output, usage.Total)
	if err != nil {
		return fmt.Errorf("failed to upsert usage: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// only update the ephemeral cache after successful persistence
	if err := s.ephemeral.Extend(sessionID, msgs, usage); err != nil {
		return fmt.Errorf("failed to update ephemeral cache: %w", err)
	}

	return nil
}

func (s *SQLiteStore) loadMessages(sessionID string) ([]core.Message, error) {
	rows, err := s.db.Query(
		"SELECT payload FROM messages WHERE session_id = ? ORDER BY id ASC",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []core.Message
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		var msg core.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("failed to deserialize message: %w", err)
		}

		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return msgs, nil
}

func (s *SQLiteStore) loadUsage(sessionID string) (core.Usage, error) {
	var usage core.Usage
	err := s.db.QueryRow(`
		SELECT input_tokens, cached_tokens, output_tokens, total_tokens
		FROM usage
		WHERE session_id = ?
	`, sessionID).Scan(&usage.Input, &usage.Cached, &usage.Output, &usage.Total)

	if err == sql.ErrNoRows {
		return core.Usage{}, nil
	}

	if err != nil {
		return core.Usage{}, fmt.Errorf("failed to query usage: %w", err)
	}

	return usage, nil
}
