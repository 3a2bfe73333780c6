package notifications

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"regexp"
	"strings"
	"time"
)

// headerPattern matches header injection attempts such as "Bcc:" or
// "X-Foo:" smuggled into a subject value.
var headerPattern = regexp.MustCompile(`(?i)\b(bcc|cc|to|from|subject|reply-to|x-[a-z0-9-]+)\s*:`)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host string
	Port int

	// Username and Password enable PLAIN auth when Username is set.
	Username string
	Password string
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	SMTP SMTPConfig

	From string
	To   []string

	// Events specifies which rotation events trigger notifications.
	// If empty, all events are sent.
	Events []string
}

// SMTPSendFunc has the signature of smtp.SendMail.
type SMTPSendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailProvider mails a plain-text report of each run.
type EmailProvider struct {
	config     EmailConfig
	smtpSender SMTPSendFunc
}

// NewEmailProvider creates a new email notification provider.
func NewEmailProvider(config EmailConfig) *EmailProvider {
	return &EmailProvider{
		config:     config,
		smtpSender: smtp.SendMail,
	}
}

// Name returns the provider name.
func (p *EmailProvider) Name() string {
	return "email"
}

// SupportsEvent returns true if this provider handles the given event type.
func (p *EmailProvider) SupportsEvent(eventType EventType) bool {
	return supportsEvent(p.config.Events, eventType)
}

// Validate checks if the provider configuration is valid.
func (p *EmailProvider) Validate(_ context.Context) error {
	if p.config.SMTP.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if p.config.SMTP.Port == 0 {
		return fmt.Errorf("SMTP port is required")
	}
	if p.config.From == "" {
		return fmt.Errorf("from address is required")
	}
	if len(p.config.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	return nil
}

// Send mails the event. smtp.SendMail takes no context, so cancellation
// is only checked before dialing.
func (p *EmailProvider) Send(ctx context.Context, event RotationEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", p.config.SMTP.Host, p.config.SMTP.Port)

	var auth smtp.Auth
	if p.config.SMTP.Username != "" {
		auth = smtp.PlainAuth("", p.config.SMTP.Username, p.config.SMTP.Password, p.config.SMTP.Host)
	}

	if err := p.smtpSender(addr, auth, p.config.From, p.config.To, p.buildMessage(event)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (p *EmailProvider) buildMessage(event RotationEvent) []byte {
	title := p.eventTitle(event.Type)
	subject := fmt.Sprintf("[approtate] %s: %s", title, sanitizeHeader(event.SecretName))

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", p.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(p.config.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")

	fmt.Fprintf(&buf, "%s\r\n%s\r\n\r\n", title, strings.Repeat("=", len(title)))
	fmt.Fprintf(&buf, "%s\r\n\r\n", RenderSummary(event))
	fmt.Fprintf(&buf, "Application: %s\r\n", event.AppObjectID)
	fmt.Fprintf(&buf, "Secret: %s\r\n", event.SecretName)
	if event.VaultBackend != "" {
		fmt.Fprintf(&buf, "Vault: %s\r\n", event.VaultBackend)
	}
	if event.Stage != "" {
		fmt.Fprintf(&buf, "Stage: %s\r\n", event.Stage)
	}
	if event.CreatedKeyID != "" {
		fmt.Fprintf(&buf, "New credential: %s\r\n", event.CreatedKeyID)
	}
	if event.Error != nil {
		fmt.Fprintf(&buf, "Error: %s\r\n", event.Error)
	}
	if !event.Timestamp.IsZero() {
		fmt.Fprintf(&buf, "Finished: %s\r\n", event.Timestamp.Format(time.RFC3339))
	}
	fmt.Fprintf(&buf, "Run: %s\r\n\r\n", event.RunID)
	buf.WriteString("Run `approtate history` for details.\r\n")

	return buf.Bytes()
}

func (p *EmailProvider) eventTitle(eventType EventType) string {
	switch eventType {
	case EventTypeCompleted:
		return "Rotation Completed"
	case EventTypeFailed:
		return "Rotation Failed"
	case EventTypeInconsistent:
		return "Manual Reconciliation Required"
	default:
		return "Rotation Event"
	}
}

// sanitizeHeader strips line breaks and header-like tokens from a value
// that ends up in a mail header.
func sanitizeHeader(s string) string {
	s = strings.NewReplacer("\r", "", "\n", " ").Replace(s)
	return strings.Join(strings.Fields(headerPattern.ReplaceAllString(s, "")), " ")
}
