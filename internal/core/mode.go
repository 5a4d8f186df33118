package core

import (
	"errors"
	"fmt"

	"github.com/pulsedesk/pulsedesk/internal/store"
)

// ErrModeLocked is surfaced as a warning: once a conversation has progressed
// past its first exchange its mode is immutable.
var ErrModeLocked = errors.New("cannot change chat mode after a conversation has started; create a new chat session")

// ModeSelector tracks which conversation mode applies to a session and
// enforces mode immutability once the conversation has progressed.
type ModeSelector struct {
	store store.Store
}

func NewModeSelector(st store.Store) *ModeSelector {
	return &ModeSelector{store: st}
}

// Toggle switches the session between the given mode and none: selecting the
// active mode again clears it. The change is rejected with ErrModeLocked when
// the session already has more than one message and a different mode set.
func (m *ModeSelector) Toggle(sessionID string, mode store.Mode) (store.Session, error) {
	if mode != store.ModeResearch && mode != store.ModeReport {
		return store.Session{}, ErrInvalidMode
	}

	sess, err := m.store.GetSession(sessionID)
	if err != nil {
		return store.Session{}, err
	}

	if len(sess.Messages) > 1 && sess.Type != store.ModeNone && sess.Type != mode {
		return sess, ErrModeLocked
	}

	if sess.Type == mode {
		sess.Type = store.ModeNone
	} else {
		sess.Type = mode
	}

	if err := m.store.UpsertSession(sess); err != nil {
		return sess, fmt.Errorf("failed to persist mode change: %w", err)
	}
	return sess, nil
}

// Current re-derives the displayed mode from the active session's stored
// type, defaulting to none when no session is active or the session is gone.
func (m *ModeSelector) Current() store.Mode {
	id := m.store.ActiveSession()
	if id == "" {
		return store.ModeNone
	}
	sess, err := m.store.GetSession(id)
	if err != nil {
		return store.ModeNone
	}
	return sess.Type
}
