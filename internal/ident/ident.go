// Package ident centralizes identifier generation so that callers never mint
// ids ad hoc and tests can substitute a deterministic generator.
package ident

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator mints identifiers for sessions and messages.
type Generator interface {
	// MessageID returns an id unique within the process.
	MessageID() string
	// SessionID returns an id unique across the store's lifetime.
	SessionID() string
}

// UUIDGenerator is the production Generator. Session ids keep the historical
// timestamp-plus-random-suffix format so that webhook calls remain traceable
// by creation time.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) MessageID() string { return uuid.NewString() }

func (UUIDGenerator) SessionID() string {
	return fmt.Sprintf("session_%d_%06d", time.Now().UnixMilli(), rand.Intn(1_000_000))
}

// Sequence is a deterministic Generator for tests: msg-1, msg-2, ... and
// sess-1, sess-2, ...
type Sequence struct {
	messages atomic.Int64
	sessions atomic.Int64
}

func (s *Sequence) MessageID() string { return fmt.Sprintf("msg-%d", s.messages.Add(1)) }
func (s *Sequence) SessionID() string { return fmt.Sprintf("sess-%d", s.sessions.Add(1)) }
