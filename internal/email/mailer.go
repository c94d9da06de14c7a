package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"villa/internal/config"
	"villa/internal/domain"

	"github.com/rs/zerolog"
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers HTML mail through a single relay.
type SMTPMailer struct {
	cfg    config.EmailConfig
	send   sendFunc
	logger *zerolog.Logger
}

func NewSMTPMailer(cfg config.EmailConfig, logger *zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, msg domain.EmailMessage) error {
	if len(msg.To) == 0 {
		return errors.New("email has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	if err := m.send(addr, auth, m.cfg.From, msg.To, buildMIME(m.cfg.From, msg)); err != nil {
		return fmt.Errorf("smtp send %q: %w", msg.Subject, err)
	}
	m.logger.Debug().Strs("to", msg.To).Str("subject", msg.Subject).Msg("Email sent")
	return nil
}

func buildMIME(from string, msg domain.EmailMessage) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(msg.HTML)
	return []byte(b.String())
}

// LogMailer only logs messages. Used when no SMTP host is configured.
type LogMailer struct {
	logger *zerolog.Logger
}

func NewLogMailer(logger *zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg domain.EmailMessage) error {
	m.logger.Info().Strs("to", msg.To).Str("subject", msg.Subject).Msg("Email delivery disabled, message dropped")
	return nil
}

// NewMailer picks the SMTP mailer when a host is configured.
func NewMailer(cfg config.EmailConfig, logger *zerolog.Logger) domain.Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}
