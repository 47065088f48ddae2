// Package mail delivers outgoing messages over SMTP or into a drop
// directory.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"
	"time"

	"expense-guard/internal/config"
)

// Message is a plain-text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the transport selected by cfg.MailTransport.
func New(cfg *config.Config) (Sender, error) {
	switch cfg.MailTransport {
	case "smtp":
		return NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailUser, cfg.EmailPass, cfg.MailFrom), nil
	case "drop":
		return NewDropSender(cfg.MailDropDir, cfg.MailFrom)
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.MailTransport)
	}
}

// compose renders msg as an RFC 5322 message with CRLF line endings.
func compose(from string, msg Message, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	for _, line := range strings.Split(body, "\n") {
		// Dot-stuffing is done by net/smtp's data writer.
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

func validateRecipient(to string) error {
	if strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient %q", to)
	}
	return nil
}
