package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxActiveModels bounds the fan-out width of a single turn.
	MaxActiveModels = 3

	// DefaultTitle is used until the first user message arrives.
	DefaultTitle = "New Research Session"

	titleMaxLen = 48
)

// Session is one conversation thread. Messages are append-only except for
// the truncation performed by edit-and-regenerate.
type Session struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	CreatedAt      time.Time     `json:"created_at"`
	LastActivityAt time.Time     `json:"last_activity_at"`
	Messages       []*Message    `json:"messages"`
	ActiveModels   []ModelID     `json:"active_models"`
	Attachments    []Attachment  `json:"attachments,omitempty"`
	Field          ResearchField `json:"field,omitempty"`
	Task           ResearchTask  `json:"task,omitempty"`

	// ForkOf holds the source session id for display purposes only. The two
	// sessions share no state after the fork.
	ForkOf string `json:"fork_of,omitempty"`
}

// NewSession creates an empty session fanning out to the given models.
// An empty model set falls back to a single default model so the 1..3
// invariant holds from birth.
func NewSession(models []ModelID, field ResearchField, task ResearchTask) *Session {
	if len(models) == 0 {
		models = []ModelID{ModelGeminiFlash}
	}
	if len(models) > MaxActiveModels {
		models = models[:MaxActiveModels]
	}
	now := time.Now()
	return &Session{
		ID:             uuid.NewString(),
		Title:          DefaultTitle,
		CreatedAt:      now,
		LastActivityAt: now,
		Messages:       make([]*Message, 0),
		ActiveModels:   append([]ModelID(nil), models...),
		Field:          field,
		Task:           task,
	}
}

// Touch bumps the activity timestamp used for list ordering.
func (s *Session) Touch() {
	s.LastActivityAt = time.Now()
}

// AppendMessage appends a message, bumps activity and derives the title from
// the first user message. The title is set once and never recomputed.
func (s *Session) AppendMessage(msg *Message) {
	s.Messages = append(s.Messages, msg)
	s.Touch()
	if s.Title == DefaultTitle && msg.Role == RoleUser {
		s.Title = truncateTitle(msg.Content)
	}
}

func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxLen {
		return text
	}
	return string(runes[:titleMaxLen-3]) + "..."
}

// AddModel adds a model to the active set. Adding a duplicate or a fourth
// model is a no-op returning false.
func (s *Session) AddModel(id ModelID) bool {
	if len(s.ActiveModels) >= MaxActiveModels {
		return false
	}
	for _, m := range s.ActiveModels {
		if m == id {
			return false
		}
	}
	s.ActiveModels = append(s.ActiveModels, id)
	return true
}

// RemoveModel removes a model from the active set. Removing the last model
// or an absent one is a no-op returning false.
func (s *Session) RemoveModel(id ModelID) bool {
	if len(s.ActiveModels) <= 1 {
		return false
	}
	for i, m := range s.ActiveModels {
		if m == id {
			s.ActiveModels = append(s.ActiveModels[:i], s.ActiveModels[i+1:]...)
			return true
		}
	}
	return false
}

// MessageIndex returns the position of a message id, or -1.
func (s *Session) MessageIndex(id string) int {
	for i, m := range s.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// TruncateBefore drops the message with the given id and everything after
// it. Returns false if the id is not present.
func (s *Session) TruncateBefore(messageID string) bool {
	idx := s.MessageIndex(messageID)
	if idx < 0 {
		return false
	}
	s.Messages = s.Messages[:idx]
	s.Touch()
	return true
}

// Clone returns a deep copy. Forked sessions must not alias any mutable
// state of their source.
func (s *Session) Clone() *Session {
	clone := *s
	clone.Messages = make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		clone.Messages[i] = m.Clone()
	}
	clone.ActiveModels = append([]ModelID(nil), s.ActiveModels...)
	if s.Attachments != nil {
		clone.Attachments = make([]Attachment, len(s.Attachments))
		for i, a := range s.Attachments {
			clone.Attachments[i] = a.Clone()
		}
	}
	return &clone
}
