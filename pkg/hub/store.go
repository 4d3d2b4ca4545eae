package hub

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SnapshotStore persists authoritative session documents in sqlite so the
// hub can restore them across restarts.
type SnapshotStore struct {
	db *sql.DB
}

// OpenSnapshotStore opens (or creates) the sqlite database at the path.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS sessions (
		id text not null primary key,
		content text not null
		)`,
	); err != nil {
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Close releases the database handle.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Get returns the saved document blob for a session, if any.
func (s *SnapshotStore) Get(sessionID string) ([]byte, bool, error) {
	var content string
	if err := s.db.QueryRow(`SELECT content FROM sessions WHERE id = ?`, sessionID).Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to query session %q: %w", sessionID, err)
	}
	raw, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode session %q: %w", sessionID, err)
	}
	return raw, true, nil
}

// Put writes the blob, reporting whether anything actually changed.
func (s *SnapshotStore) Put(sessionID string, blob []byte) (bool, error) {
	content := base64.StdEncoding.EncodeToString(blob)
	res, err := s.db.Exec(
		`UPDATE sessions SET content = ? WHERE id = ? AND content != ?`,
		content, sessionID, content,
	)
	if err != nil {
		return false, fmt.Errorf("failed to persist session %q: %w", sessionID, err)
	}
	if r, _ := res.RowsAffected(); r > 0 {
		return true, nil
	}
	res, err = s.db.Exec(`INSERT OR IGNORE INTO sessions (id, content) VALUES (?, ?)`, sessionID, content)
	if err != nil {
		return false, fmt.Errorf("failed to persist session %q: %w", sessionID, err)
	}
	r, _ := res.RowsAffected()
	return r > 0, nil
}

// Delete drops the saved blob for a session.
func (s *SnapshotStore) Delete(sessionID string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session %q: %w", sessionID, err)
	}
	return nil
}
