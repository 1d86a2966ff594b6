package service

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sillogic-labs/sillogic/internal/domain"
)

// ConvertAttachment turns a raw file into the form a backend accepts:
// images and PDFs become inline base64 payloads, everything else is inlined
// as fenced text. The transform is pure and stateless.
func ConvertAttachment(att domain.Attachment) (domain.Part, error) {
	if att.Name == "" || len(att.Data) == 0 {
		return domain.Part{}, fmt.Errorf("attachment %q: %w", att.Name, domain.ErrAttachmentUnreadable)
	}

	if strings.HasPrefix(att.MIMEType, "image/") || att.MIMEType == "application/pdf" {
		return domain.Part{
			Name:       att.Name,
			InlineData: base64.StdEncoding.EncodeToString(att.Data),
			MIMEType:   att.MIMEType,
		}, nil
	}

	if !utf8.Valid(att.Data) {
		return domain.Part{}, fmt.Errorf("attachment %q: not valid text: %w", att.Name, domain.ErrAttachmentUnreadable)
	}
	return domain.Part{
		Name: att.Name,
		Text: fmt.Sprintf("\n\n--- ATTACHED FILE: %s ---\n%s\n--- END FILE ---\n", att.Name, att.Data),
	}, nil
}

func convertAll(files []domain.Attachment) ([]domain.Part, error) {
	if len(files) == 0 {
		return nil, nil
	}
	parts := make([]domain.Part, 0, len(files))
	for _, f := range files {
		p, err := ConvertAttachment(f)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// attachmentManifest is the suffix recorded on the user message content so
// the transcript shows what was attached.
func attachmentManifest(files []domain.Attachment) string {
	if len(files) == 0 {
		return ""
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return fmt.Sprintf("\n[Attached: %s]", strings.Join(names, ", "))
}
