package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

// SQLiteStore is the relational session store: sessions and messages live in
// two tables, messages keyed by session id with cascading delete. It
// implements the same Store contract as FileStore so the two are
// interchangeable at construction time.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	mu       sync.RWMutex
	active   string
	lastList []Session // last successful listing, served on read failure
}

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL DEFAULT '',
        preview TEXT NOT NULL DEFAULT '',
        created_at DATETIME NOT NULL,
        folder_id TEXT,
        type TEXT NOT NULL DEFAULT '' CHECK (type IN ('', 'research', 'report'))
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT NOT NULL,
        session_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        timestamp DATETIME NOT NULL,
        position INTEGER NOT NULL,
        PRIMARY KEY (session_id, id),
        FOREIGN KEY (session_id) REFERENCES sessions (id) ON DELETE CASCADE
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) ListSessions() []Session {
	rows, err := s.db.Query(`
        SELECT id, title, preview, created_at, folder_id, type
        FROM sessions s
        WHERE EXISTS (
            SELECT 1 FROM messages m WHERE m.session_id = s.id AND m.role = 'user'
        )
        ORDER BY created_at DESC`)
	if err != nil {
		s.logger.Warn("failed to query sessions, serving last known list", zap.Error(err))
		return s.cachedList()
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			s.logger.Warn("failed to scan session row, serving last known list", zap.Error(err))
			return s.cachedList()
		}
		sessions = append(sessions, sess)
	}

	for i := range sessions {
		messages, err := s.messagesForSession(sessions[i].ID)
		if err != nil {
			s.logger.Warn("failed to load session messages, serving last known list",
				zap.String("session_id", sessions[i].ID), zap.Error(err))
			return s.cachedList()
		}
		sessions[i].Messages = messages
	}

	s.mu.Lock()
	s.lastList = sessions
	s.mu.Unlock()
	return sessions
}

func (s *SQLiteStore) cachedList() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, len(s.lastList))
	for i, sess := range s.lastList {
		out[i] = sess.Clone()
	}
	return out
}

func (s *SQLiteStore) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(
		"SELECT id, title, preview, created_at, folder_id, type FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	sess.Messages, err = s.messagesForSession(id)
	if err != nil {
		return Session{}, fmt.Errorf("failed to get session messages: %w", err)
	}
	return sess, nil
}

// UpsertSession overwrites the whole session record, messages included
// (last-writer-wins, no field merge).
func (s *SQLiteStore) UpsertSession(sess Session) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO sessions (id, title, preview, created_at, folder_id, type)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            preview = excluded.preview,
            created_at = excluded.created_at,
            folder_id = excluded.folder_id,
            type = excluded.type`,
		sess.ID, sess.Title, sess.Preview, sess.CreatedAt, sess.FolderID, string(sess.Type))
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if _, err = tx.Exec("DELETE FROM messages WHERE session_id = ?", sess.ID); err != nil {
		return fmt.Errorf("failed to clear session messages: %w", err)
	}

	stmt, err := tx.Prepare(
		"INSERT INTO messages (id, session_id, role, content, timestamp, position) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, msg := range sess.Messages {
		if _, err = stmt.Exec(msg.ID, sess.ID, msg.Role, msg.Content, msg.Timestamp, i); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteSession(id string) error {
	// Messages go with the session via ON DELETE CASCADE. Missing ids are a
	// no-op, so the call is idempotent.
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearAll() error {
	if _, err := s.db.Exec("DELETE FROM sessions"); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	s.mu.Lock()
	s.active = ""
	s.lastList = nil
	s.mu.Unlock()
	return nil
}

func (s *SQLiteStore) SetActiveSession(id string) {
	s.mu.Lock()
	s.active = id
	s.mu.Unlock()
}

func (s *SQLiteStore) ActiveSession() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Refresh is a no-op: every read already hits the database.
func (s *SQLiteStore) Refresh() error { return nil }

func (s *SQLiteStore) messagesForSession(sessionID string) ([]Message, error) {
	rows, err := s.db.Query(
		"SELECT id, role, content, timestamp FROM messages WHERE session_id = ? ORDER BY position ASC",
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var folder sql.NullString
	var mode string
	if err := row.Scan(&sess.ID, &sess.Title, &sess.Preview, &sess.CreatedAt, &folder, &mode); err != nil {
		return Session{}, err
	}
	if folder.Valid {
		sess.FolderID = &folder.String
	}
	sess.Type = Mode(mode)
	return sess, nil
}
