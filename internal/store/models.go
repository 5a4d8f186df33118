package store

import "time"

// Mode is the conversational variant a session is locked into after its
// first exchange.
type Mode string

const (
	ModeNone     Mode = ""
	ModeResearch Mode = "research"
	ModeReport   Mode = "report"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModeResearch, ModeReport:
		return true
	}
	return false
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID        string    `json:"id"` // unique within a session
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Pending reports whether the message is a transient placeholder shown while
// a reply is awaited. Pending messages must never reach durable storage.
func (m Message) Pending() bool {
	return m.Role == RoleAssistant && m.Content == ""
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
	FolderID  *string   `json:"folderId,omitempty"`
	Type      Mode      `json:"type"`
}

// HasUserMessage reports whether the end user has replied at least once.
// Sessions holding only assistant greetings stay hidden from listings until
// this returns true.
func (s Session) HasUserMessage() bool {
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate transcripts without
// aliasing store-owned state.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	if s.FolderID != nil {
		folder := *s.FolderID
		out.FolderID = &folder
	}
	return out
}
