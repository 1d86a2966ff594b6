package service_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sillogic-labs/sillogic/internal/domain"
	"github.com/sillogic-labs/sillogic/internal/service"
)

func TestConvertImageAttachment(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	part, err := service.ConvertAttachment(domain.Attachment{
		Name:     "figure.png",
		MIMEType: "image/png",
		Data:     raw,
	})
	require.NoError(t, err)

	assert.Equal(t, "figure.png", part.Name)
	assert.Equal(t, "image/png", part.MIMEType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), part.InlineData)
	assert.Empty(t, part.Text)
}

func TestConvertPDFAttachment(t *testing.T) {
	part, err := service.ConvertAttachment(domain.Attachment{
		Name:     "paper.pdf",
		MIMEType: "application/pdf",
		Data:     []byte("%PDF-1.4 content"),
	})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", part.MIMEType)
	assert.NotEmpty(t, part.InlineData)
}

func TestConvertTextAttachment(t *testing.T) {
	part, err := service.ConvertAttachment(domain.Attachment{
		Name:     "results.csv",
		MIMEType: "text/csv",
		Data:     []byte("trial,value\n1,0.93"),
	})
	require.NoError(t, err)

	assert.Empty(t, part.InlineData)
	assert.Contains(t, part.Text, "--- ATTACHED FILE: results.csv ---")
	assert.Contains(t, part.Text, "trial,value")
	assert.Contains(t, part.Text, "--- END FILE ---")
}

func TestConvertRejectsUnreadable(t *testing.T) {
	cases := []struct {
		name string
		att  domain.Attachment
	}{
		{"empty name", domain.Attachment{Data: []byte("x")}},
		{"empty data", domain.Attachment{Name: "a.txt"}},
		{"binary passed off as text", domain.Attachment{
			Name:     "blob.dat",
			MIMEType: "application/octet-stream",
			Data:     []byte{0xff, 0xfe, 0x00, 0x01},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.ConvertAttachment(tc.att)
			assert.ErrorIs(t, err, domain.ErrAttachmentUnreadable)
		})
	}
}
