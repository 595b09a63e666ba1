// Package mailer sends the account verification and password reset emails.
package mailer

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/threadsclone/backend/internal/logging"
)

// Message is a plain text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config carries the SMTP settings. An empty Host selects the log sender.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// New returns an SMTP sender, or a sender that only logs when no SMTP host
// is configured.
func New(cfg Config, logger *logging.Logger) Sender {
	if strings.TrimSpace(cfg.Host) == "" {
		return &LogSender{logger: logger}
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// SMTPSender sends through an SMTP relay with PLAIN auth when credentials
// are set.
type SMTPSender struct {
	cfg    Config
	logger *logging.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// Send delivers msg. The context bounds the time spent waiting.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	send := s.send
	if send == nil {
		send = smtp.SendMail
	}

	done := make(chan error, 1)
	go func() {
		done <- send(addr, auth, s.cfg.From, []string{msg.To}, Render(s.cfg.From, msg, time.Now()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", msg.To, err)
		}
		s.logger.WithContext(ctx).WithField("to", msg.To).WithField("subject", msg.Subject).Info("email sent")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail to %s: %w", msg.To, ctx.Err())
	}
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs msg.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Body,
	}).Info("smtp not configured; email logged")
	return nil
}

// Render builds the RFC 5322 message bytes.
func Render(from string, msg Message, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(msg.Subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return []byte(b.String())
}

func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}

// VerificationEmail is sent after registration.
func VerificationEmail(frontendURL, to, token string) Message {
	link := strings.TrimRight(frontendURL, "/") + "/verify-email?token=" + token
	return Message{
		To:      to,
		Subject: "Verify your email",
		Body:    "Welcome! Please verify your email address by opening the link below:\n\n" + link + "\n",
	}
}

// PasswordResetEmail carries a reset link that expires after ttl.
func PasswordResetEmail(frontendURL, to, token string, ttl time.Duration) Message {
	link := strings.TrimRight(frontendURL, "/") + "/reset-password?token=" + token
	return Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("A password reset was requested for your account.\n\n%s\n\nThe link expires in %s. "+
			"If you did not request it, ignore this email.\n", link, ttl),
	}
}
