package domain

import (
	"time"

	"github.com/google/uuid"
)

// ModelResponse is one model's slot within a cluster (multi-model) assistant
// message. Text grows append-only while the model streams; Done is terminal.
type ModelResponse struct {
	ModelID     ModelID `json:"model_id"`
	DisplayName string  `json:"display_name"`
	Text        string  `json:"text"`
	HasOutput   bool    `json:"has_output"`
	Done        bool    `json:"done"`
}

// NewModelResponse creates a pending slot for a model. The display name is
// captured at creation time and not re-derived later.
func NewModelResponse(id ModelID) *ModelResponse {
	return &ModelResponse{
		ModelID:     id,
		DisplayName: id.DisplayName(),
	}
}

// AppendChunk appends streamed text to the slot. The first chunk flips the
// slot out of its pending ("thinking") state.
func (r *ModelResponse) AppendChunk(text string) {
	if r.Done {
		return
	}
	r.Text += text
	r.HasOutput = true
}

// Finish marks the slot terminal. Used for both success and failure; a failed
// slot carries its error marker in Text.
func (r *ModelResponse) Finish() {
	r.Done = true
}

// Message is one turn in a conversation. A user message always carries
// Content. An assistant message carries either Content (single-model legacy
// path, e.g. the welcome message) or a non-empty Responses list, never both.
type Message struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	Responses []*ModelResponse `json:"responses,omitempty"`
}

// NewUserMessage creates a user turn.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewAssistantMessage creates a plain assistant message (single-model path).
func NewAssistantMessage(content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewClusterMessage creates the placeholder assistant message for a fan-out:
// one pending slot per active model, in the given order.
func NewClusterMessage(models []ModelID) *Message {
	msg := &Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		CreatedAt: time.Now(),
		Responses: make([]*ModelResponse, 0, len(models)),
	}
	for _, m := range models {
		msg.Responses = append(msg.Responses, NewModelResponse(m))
	}
	return msg
}

// Response returns the slot for a model, or nil if the model has no slot in
// this message.
func (m *Message) Response(id ModelID) *ModelResponse {
	for _, r := range m.Responses {
		if r.ModelID == id {
			return r
		}
	}
	return nil
}

// IsCluster reports whether the message is a multi-model assistant message.
func (m *Message) IsCluster() bool {
	return len(m.Responses) > 0
}

// Completed reports whether every slot is done. It is derived, never stored:
// a message with no slots is trivially complete.
func (m *Message) Completed() bool {
	for _, r := range m.Responses {
		if !r.Done {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	clone := *m
	if m.Responses != nil {
		clone.Responses = make([]*ModelResponse, len(m.Responses))
		for i, r := range m.Responses {
			rc := *r
			clone.Responses[i] = &rc
		}
	}
	return &clone
}
