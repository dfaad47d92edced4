// Package notify delivers out-of-band messages (MFA provisioning, DSAR
// updates) to users and the DPO.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// Message is a plain-text notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

type Notifier interface {
	Send(ctx context.Context, m Message) error
}

// LogNotifier writes messages to the log instead of delivering them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, m Message) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "to", m.To, "subject", m.Subject, "body", m.Body)
	return nil
}

// SMTPConfig holds the relay settings for SMTPNotifier.
type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
}

// SMTPNotifier sends messages through an SMTP relay using PLAIN auth when
// credentials are set.
type SMTPNotifier struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Addr == "" || cfg.From == "" {
		return nil, errors.New("notify: smtp address and sender are required")
	}
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}, nil
}

func (n *SMTPNotifier) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(m.To, "\r\n") || strings.ContainsAny(m.Subject, "\r\n") {
		return errors.New("notify: header injection")
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		host := n.cfg.Addr
		if i := strings.LastIndex(host, ":"); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, host)
	}

	if err := n.sendMail(n.cfg.Addr, auth, n.cfg.From, []string{m.To}, n.compose(m)); err != nil {
		return fmt.Errorf("notify: send to %s: %w", m.To, err)
	}
	return nil
}

func (n *SMTPNotifier) compose(m Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(m.Body, "\n", "\r\n"))
	return []byte(b.String())
}

// Async sends m in the background, logging failures. ctx values are kept
// but its cancellation is not, so the send outlives the request.
func Async(ctx context.Context, n Notifier, logger *slog.Logger, m Message) {
	if n == nil || m.To == "" {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := n.Send(ctx, m); err != nil {
			logger.Error("notification failed", "to", m.To, "subject", m.Subject, "error", err)
		}
	}()
}
