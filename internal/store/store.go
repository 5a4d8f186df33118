package store

import "errors"

var ErrSessionNotFound = errors.New("session not found")

// Store owns the canonical session list and the active session id, and
// mediates all reads and writes to durable storage.
//
// ListSessions applies the user-message visibility rule; GetSession does not,
// so hidden greeting sessions remain reachable by id. Durable-storage
// failures are logged and contained: a failed read falls back to the last
// known in-memory list, a failed write keeps the in-memory update and
// reports the error to the caller.
type Store interface {
	ListSessions() []Session
	GetSession(id string) (Session, error)
	// UpsertSession merges by id, last-writer-wins on the whole record, and
	// persists the full session set.
	UpsertSession(s Session) error
	// DeleteSession is idempotent; deleting a missing id is a no-op.
	DeleteSession(id string) error
	// ClearAll empties durable storage, the in-memory list, and the active
	// session id.
	ClearAll() error
	// SetActiveSession is a pure state transition with no persistence side
	// effect. An empty id clears the selection.
	SetActiveSession(id string)
	ActiveSession() string
	// Refresh reloads the session set from durable storage.
	Refresh() error
	Close() error
}
