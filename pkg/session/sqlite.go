package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	user_id    TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	expires_at INTEGER,
	PRIMARY KEY (user_id, channel_id)
);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions (expires_at);
`

// SQLiteStore persists sessions in a single SQLite table. Timestamps are
// stored as unix nanoseconds; a NULL expires_at means no expiry.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID, channelID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data, created_at, updated_at, expires_at FROM sessions WHERE user_id = ? AND channel_id = ?`,
		userID, channelID)

	var (
		raw       string
		createdAt int64
		updatedAt int64
		expiresAt sql.NullInt64
	)
	if err := row.Scan(&raw, &createdAt, &updatedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	sess := &Session{
		UserID:    userID,
		ChannelID: channelID,
		CreatedAt: time.Unix(0, createdAt),
		UpdatedAt: time.Unix(0, updatedAt),
	}
	if expiresAt.Valid {
		expires := time.Unix(0, expiresAt.Int64)
		sess.ExpiresAt = &expires
	}
	if err := json.Unmarshal([]byte(raw), &sess.Data); err != nil {
		return nil, fmt.Errorf("decode session data: %w", err)
	}

	if sess.Expired(time.Now()) {
		if err := s.Delete(ctx, userID, channelID); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return sess, nil
}

func (s *SQLiteStore) Set(ctx context.Context, userID, channelID string, sess *Session) error {
	raw, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}

	var expiresAt any
	if sess.ExpiresAt != nil {
		expiresAt = sess.ExpiresAt.UnixNano()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, channel_id, data, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, channel_id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		userID, channelID, string(raw), sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(), expiresAt)
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, channelID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ? AND channel_id = ?`, userID, channelID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear sessions: %w", err)
	}
	return nil
}

// Sweep deletes all expired rows and returns how many were removed.
func (s *SQLiteStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at < ?`, time.Now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ Store = (*SQLiteStore)(nil)
