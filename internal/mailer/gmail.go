package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"deskbot/pkg/logx"
)

// Credential environment variables. The refresh token grants gmail.send
// scope only.
const (
	EnvClientID     = "GMAIL_CLIENT_ID"
	EnvClientSecret = "GMAIL_CLIENT_SECRET"
	EnvRefreshToken = "GMAIL_REFRESH_TOKEN"
)

// Gmail sends mail through the Gmail API as the configured sender account.
type Gmail struct {
	svc    *gmail.Service
	sender string
	log    logx.Logger
}

// NewGmail builds a Gmail sender from environment credentials. It returns
// (nil, false, nil) when any credential variable is unset, which callers
// treat as "run without email".
func NewGmail(ctx context.Context, sender string, log logx.Logger) (*Gmail, bool, error) {
	clientID := os.Getenv(EnvClientID)
	clientSecret := os.Getenv(EnvClientSecret)
	refreshToken := os.Getenv(EnvRefreshToken)
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, false, nil
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})

	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, false, fmt.Errorf("gmail service: %w", err)
	}
	return &Gmail{svc: svc, sender: sender, log: log}, true, nil
}

func (g *Gmail) Enabled() bool { return true }

func (g *Gmail) Send(ctx context.Context, msg Message) error {
	raw := buildMIME(g.sender, msg)
	encoded := base64.URLEncoding.EncodeToString(raw)

	return retry.Do(
		func() error {
			start := time.Now()
			_, err := g.svc.Users.Messages.Send("me", &gmail.Message{Raw: encoded}).Context(ctx).Do()
			if err != nil {
				g.log.Warn("gmail send failed",
					logx.String("to", msg.To),
					logx.Duration("elapsed", time.Since(start)),
					logx.Err(err))
				return err
			}
			g.log.Info("email sent",
				logx.String("to", msg.To),
				logx.String("subject", msg.Subject),
				logx.Duration("elapsed", time.Since(start)))
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.log.Info("retrying email send",
				logx.Uint64("attempt", uint64(n)),
				logx.Err(err))
		}),
	)
}

// sanitizeHeader strips CR/LF and control characters so user-derived values
// cannot inject extra RFC 5322 headers.
func sanitizeHeader(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

const mimeBoundary = "deskbot-mail-boundary"

func buildMIME(from string, msg Message) []byte {
	to := sanitizeHeader(msg.To)
	subject := sanitizeHeader(msg.Subject)
	from = sanitizeHeader(from)

	var b strings.Builder
	b.WriteString("MIME-Version: 1.0\r\n")
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)

	if len(msg.Attachment) == 0 {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String())
	}

	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	name := sanitizeHeader(msg.AttachmentName)
	if name == "" {
		name = "attachment.png"
	}
	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	fmt.Fprintf(&b, "Content-Type: image/png; name=%q\r\n", name)
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n\r\n", name)
	b.WriteString(base64.StdEncoding.EncodeToString(msg.Attachment))
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--", mimeBoundary)
	return []byte(b.String())
}
