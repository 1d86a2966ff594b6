package domain

// Attachment is a raw user-supplied file, either attached to a single turn
// or kept on the session as reference material.
type Attachment struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Clone returns a deep copy of the attachment.
func (a Attachment) Clone() Attachment {
	clone := a
	clone.Data = append([]byte(nil), a.Data...)
	return clone
}

// Part is converted attachment or prompt content in the form a model backend
// accepts: either plain text or an inline base64 payload with a MIME type.
type Part struct {
	Name       string `json:"name,omitempty"`
	Text       string `json:"text,omitempty"`
	InlineData string `json:"inline_data,omitempty"`
	MIMEType   string `json:"mime_type,omitempty"`
}
