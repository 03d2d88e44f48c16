package mailer

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestSanitizeHeader(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"plain@example.com", "plain@example.com"},
		{"evil@example.com\r\nBcc: victim@example.com", "evil@example.comBcc: victim@example.com"},
		{"tab\there", "tabhere"},
		{"ünïcode ok", "ünïcode ok"},
	}
	for _, tc := range cases {
		if got := sanitizeHeader(tc.in); got != tc.want {
			t.Errorf("sanitizeHeader(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBuildMIMEPlain(t *testing.T) {
	t.Parallel()

	raw := string(buildMIME("bot@example.com", Message{
		To:      "ops@example.com",
		Subject: "unanswered chat",
		Body:    "hello",
	}))

	for _, want := range []string{
		"From: bot@example.com\r\n",
		"To: ops@example.com\r\n",
		"Subject: unanswered chat\r\n",
		"Content-Type: text/plain; charset=utf-8\r\n\r\nhello",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("missing %q in:\n%s", want, raw)
		}
	}
	if strings.Contains(raw, "multipart") {
		t.Error("plain message must not be multipart")
	}
}

func TestBuildMIMEWithAttachment(t *testing.T) {
	t.Parallel()

	png := []byte{0x89, 'P', 'N', 'G'}
	raw := string(buildMIME("", Message{
		To:             "ops@example.com",
		Subject:        "escalation",
		Body:           "see attached",
		AttachmentName: "transcript.png",
		Attachment:     png,
	}))

	if !strings.Contains(raw, "Content-Type: multipart/mixed") {
		t.Fatal("expected multipart message")
	}
	if !strings.Contains(raw, `filename="transcript.png"`) {
		t.Error("missing attachment filename")
	}
	if !strings.Contains(raw, base64.StdEncoding.EncodeToString(png)) {
		t.Error("missing base64 attachment payload")
	}
	if strings.Contains(raw, "From:") {
		t.Error("empty sender must not emit a From header")
	}
}
