// Package core drives the per-send conversation state machine and the
// per-session mode selection rules.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pulsedesk/pulsedesk/internal/extract"
	"github.com/pulsedesk/pulsedesk/internal/ident"
	"github.com/pulsedesk/pulsedesk/internal/store"
	"github.com/pulsedesk/pulsedesk/internal/webhook"
)

const (
	// fallbackReply is appended in place of the assistant's answer when the
	// webhook call fails.
	fallbackReply = "I'm having trouble connecting to my services right now. This is a simulated response while full functionality is restored."

	// greeting opens every newly created session. A greeting-only session is
	// persisted but stays hidden from listings until the user replies.
	greeting = "Hello! How can I help you today?"

	// connectionNotice is the user-facing, non-blocking notification shown
	// alongside the fallback reply.
	connectionNotice = "Connection error: could not reach the assistant service."

	titleLimit = 30
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrSendInFlight = errors.New("a send is already in flight for this session")
	ErrInvalidMode  = errors.New("invalid chat mode")
)

// Gateway is the outbound boundary the controller talks to, one entry point
// per conversation mode.
type Gateway interface {
	SendPlain(ctx context.Context, message, sessionID string) webhook.Result
	SendResearch(ctx context.Context, message, sessionID string) webhook.Result
	SendReport(ctx context.Context, message, sessionID string) webhook.Result
}

// SendResult is the settled outcome of one send.
type SendResult struct {
	Session store.Session
	Reply   store.Message
	// Notice carries a user-facing, non-blocking notification (set on
	// failure fallback), empty otherwise.
	Notice string
}

// Controller orchestrates a send from user input to settled transcript:
// optimistic user message plus pending placeholder, webhook call, reply
// extraction, persistence, and failure fallback. One send may be in flight
// per session; results are applied to the session that originated the
// request, keyed by its id, so a late response can never land in a
// different session.
type Controller struct {
	store   store.Store
	gateway Gateway
	ids     ident.Generator
	logger  *zap.Logger
	now     func() time.Time

	mu   sync.Mutex
	live map[string][]store.Message // in-flight transcripts, placeholder included
}

func NewController(st store.Store, gw Gateway, ids ident.Generator, logger *zap.Logger) *Controller {
	return &Controller{
		store:   st,
		gateway: gw,
		ids:     ids,
		logger:  logger,
		now:     time.Now,
		live:    make(map[string][]store.Message),
	}
}

// NewSession creates a session opened by an assistant greeting. The session
// is durably persisted but excluded from listings until the user replies.
func (c *Controller) NewSession(mode store.Mode) (store.Session, error) {
	if !mode.Valid() {
		return store.Session{}, ErrInvalidMode
	}

	now := c.now()
	sess := store.Session{
		ID:        c.ids.SessionID(),
		CreatedAt: now,
		Type:      mode,
		Messages: []store.Message{{
			ID:        c.ids.MessageID(),
			Role:      store.RoleAssistant,
			Content:   greeting,
			Timestamp: now,
		}},
	}
	if err := c.store.UpsertSession(sess); err != nil {
		return store.Session{}, fmt.Errorf("failed to persist new session: %w", err)
	}
	return sess, nil
}

// Send runs one exchange. A blank sessionID (or one that no longer exists)
// starts a fresh session locked to the given mode; an existing session's
// stored mode always wins over the argument.
func (c *Controller) Send(ctx context.Context, sessionID string, mode store.Mode, input string) (SendResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return SendResult{}, ErrEmptyMessage
	}
	if !mode.Valid() {
		return SendResult{}, ErrInvalidMode
	}

	sess, err := c.loadOrCreate(sessionID, mode)
	if err != nil {
		return SendResult{}, err
	}
	if sess.Type != store.ModeNone {
		mode = sess.Type
	}

	userMsg := store.Message{
		ID:        c.ids.MessageID(),
		Role:      store.RoleUser,
		Content:   input,
		Timestamp: c.now(),
	}
	placeholder := store.Message{
		ID:        c.ids.MessageID(),
		Role:      store.RoleAssistant,
		Timestamp: c.now(),
	}

	c.mu.Lock()
	if _, busy := c.live[sess.ID]; busy {
		c.mu.Unlock()
		return SendResult{}, ErrSendInFlight
	}
	liveMsgs := make([]store.Message, 0, len(sess.Messages)+2)
	liveMsgs = append(liveMsgs, sess.Messages...)
	liveMsgs = append(liveMsgs, userMsg, placeholder)
	c.live[sess.ID] = liveMsgs
	c.mu.Unlock()

	// The in-flight guard and the pending placeholder both go away no matter
	// how the send settles.
	defer func() {
		c.mu.Lock()
		delete(c.live, sess.ID)
		c.mu.Unlock()
	}()

	initialized := sess.HasUserMessage()
	sess.Messages = append(sess.Messages, userMsg)

	// First real exchange: persist before awaiting the remote call so the
	// session survives a crash mid-flight.
	if !initialized {
		sess.Title = deriveTitle(input)
		sess.Preview = input
		if err := c.store.UpsertSession(sess); err != nil {
			c.logger.Warn("failed to persist session before send",
				zap.String("session_id", sess.ID), zap.Error(err))
		} else {
			initialized = true
		}
	}

	result := c.dispatch(ctx, mode, input, sess.ID)

	if !result.Success {
		return c.settleFailure(sess, initialized, result.Error), nil
	}

	reply := store.Message{
		ID:        c.ids.MessageID(),
		Role:      store.RoleAssistant,
		Content:   extract.Reply(result.Data),
		Timestamp: c.now(),
	}
	sess.Messages = append(sess.Messages, reply)
	sess.Preview = reply.Content
	if err := c.store.UpsertSession(sess); err != nil {
		c.logger.Warn("failed to persist settled transcript",
			zap.String("session_id", sess.ID), zap.Error(err))
	}
	return SendResult{Session: sess, Reply: reply}, nil
}

// Transcript returns the session with its live transcript: the in-flight
// view (pending placeholder included) while a send is running, the persisted
// view otherwise.
func (c *Controller) Transcript(sessionID string) (store.Session, error) {
	sess, err := c.store.GetSession(sessionID)
	if err != nil {
		return store.Session{}, err
	}

	c.mu.Lock()
	if liveMsgs, ok := c.live[sessionID]; ok {
		sess.Messages = make([]store.Message, len(liveMsgs))
		copy(sess.Messages, liveMsgs)
	}
	c.mu.Unlock()
	return sess, nil
}

func (c *Controller) loadOrCreate(sessionID string, mode store.Mode) (store.Session, error) {
	if sessionID == "" {
		return store.Session{
			ID:        c.ids.SessionID(),
			CreatedAt: c.now(),
			Type:      mode,
		}, nil
	}

	sess, err := c.store.GetSession(sessionID)
	if errors.Is(err, store.ErrSessionNotFound) {
		return store.Session{
			ID:        sessionID,
			CreatedAt: c.now(),
			Type:      mode,
		}, nil
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

func (c *Controller) dispatch(ctx context.Context, mode store.Mode, input, sessionID string) webhook.Result {
	switch mode {
	case store.ModeResearch:
		return c.gateway.SendResearch(ctx, input, sessionID)
	case store.ModeReport:
		return c.gateway.SendReport(ctx, input, sessionID)
	default:
		return c.gateway.SendPlain(ctx, input, sessionID)
	}
}

func (c *Controller) settleFailure(sess store.Session, initialized bool, reason string) SendResult {
	c.logger.Warn("send failed, falling back",
		zap.String("session_id", sess.ID), zap.String("reason", reason))

	reply := store.Message{
		ID:        c.ids.MessageID(),
		Role:      store.RoleAssistant,
		Content:   fallbackReply,
		Timestamp: c.now(),
	}
	sess.Messages = append(sess.Messages, reply)
	sess.Preview = reply.Content

	if initialized {
		if err := c.store.UpsertSession(sess); err != nil {
			c.logger.Warn("failed to persist fallback transcript",
				zap.String("session_id", sess.ID), zap.Error(err))
		}
	}
	return SendResult{Session: sess, Reply: reply, Notice: connectionNotice}
}

func deriveTitle(input string) string {
	runes := []rune(input)
	if len(runes) <= titleLimit {
		return input
	}
	return string(runes[:titleLimit]) + "..."
}
