package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// FileStore keeps the session set in memory and mirrors it wholesale to a
// single JSON file on every mutation. Storage failures are logged and never
// fatal: reads fall back to the last known in-memory list, writes keep the
// in-memory update.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	loaded   bool
	sessions []Session
	active   string
}

func NewFileStore(path string, logger *zap.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

func (f *FileStore) ListSessions() []Session {
	f.mu.Lock()
	f.ensureLoadedLocked()
	visible := make([]Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		if s.HasUserMessage() {
			visible = append(visible, s.Clone())
		}
	}
	f.mu.Unlock()

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})
	return visible
}

func (f *FileStore) GetSession(id string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLoadedLocked()
	for _, s := range f.sessions {
		if s.ID == id {
			return s.Clone(), nil
		}
	}
	return Session{}, ErrSessionNotFound
}

func (f *FileStore) UpsertSession(s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLoadedLocked()

	replaced := false
	for i := range f.sessions {
		if f.sessions[i].ID == s.ID {
			f.sessions[i] = s.Clone()
			replaced = true
			break
		}
	}
	if !replaced {
		f.sessions = append(f.sessions, s.Clone())
	}
	return f.persistLocked()
}

func (f *FileStore) DeleteSession(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureLoadedLocked()

	for i := range f.sessions {
		if f.sessions[i].ID == id {
			f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
			return f.persistLocked()
		}
	}
	return nil // missing id is a no-op
}

func (f *FileStore) ClearAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = true
	f.sessions = nil
	f.active = ""
	return f.persistLocked()
}

func (f *FileStore) SetActiveSession(id string) {
	f.mu.Lock()
	f.active = id
	f.mu.Unlock()
}

func (f *FileStore) ActiveSession() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

func (f *FileStore) Refresh() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadLocked()
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) ensureLoadedLocked() {
	if f.loaded {
		return
	}
	if err := f.loadLocked(); err != nil {
		f.logger.Warn("session storage read failed, keeping in-memory list",
			zap.String("path", f.path), zap.Error(err))
	}
}

func (f *FileStore) loadLocked() error {
	f.loaded = true

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			f.sessions = nil
			return nil
		}
		return fmt.Errorf("failed to read session storage: %w", err)
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		// Prior in-memory state stays intact.
		return fmt.Errorf("failed to decode session storage: %w", err)
	}
	f.sessions = sessions
	return nil
}

func (f *FileStore) persistLocked() error {
	sessions := f.sessions
	if sessions == nil {
		sessions = []Session{}
	}
	data, err := json.Marshal(sessions)
	if err != nil {
		f.logger.Error("failed to encode session storage", zap.Error(err))
		return fmt.Errorf("failed to encode session storage: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o644); err != nil {
		f.logger.Error("failed to write session storage",
			zap.String("path", f.path), zap.Error(err))
		return fmt.Errorf("failed to write session storage: %w", err)
	}
	return nil
}
