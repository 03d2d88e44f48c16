// Package mailer sends operational email: escalation reminders for
// unanswered chats and staff-triggered escalations. Credentials come from
// the environment, never the config file; when they are absent the mailer
// degrades to a warning-only no-op so the chat side keeps running.
package mailer

import "context"

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Body    string // plain text

	// Attachment is an optional inline PNG (a rendered transcript).
	AttachmentName string
	Attachment     []byte
}

// Sender delivers email. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Enabled reports whether sends will actually leave the process.
	Enabled() bool
}

// Nop is the degraded sender used when mail is disabled or credentials are
// missing. Send succeeds without doing anything.
type Nop struct{}

func (Nop) Send(context.Context, Message) error { return nil }
func (Nop) Enabled() bool                       { return false }
