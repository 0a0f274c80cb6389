// Package mail delivers transactional email.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"linkfolio/internal/config"
	applog "linkfolio/internal/log"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when cfg is complete, otherwise a mailer that only logs.
func New(cfg config.MailConfig) Mailer {
	if cfg.Enabled() {
		return NewSMTPSender(cfg)
	}
	return LogSender{}
}

// SMTPSender delivers through an SMTP relay, optionally over implicit TLS.
type SMTPSender struct {
	cfg config.MailConfig
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if !s.cfg.Enabled() {
		return fmt.Errorf("mail is not configured")
	}

	payload := compose(s.cfg.From, m)
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	applog.Debug(ctx, "sending email", "to", m.To, "subject", m.Subject, "secure", s.cfg.Secure)

	if s.cfg.Secure {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
		if err != nil {
			return err
		}
		client, err := smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			return err
		}
		defer client.Quit()

		if s.cfg.Username != "" {
			if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
				return err
			}
		}
		if err := client.Mail(s.cfg.From); err != nil {
			return err
		}
		if err := client.Rcpt(m.To); err != nil {
			return err
		}
		w, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		return w.Close()
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	return smtp.SendMail(addr, auth, s.cfg.From, []string{m.To}, payload)
}

func compose(from string, m Message) []byte {
	body := m.HTML
	contentType := "text/html"
	if strings.TrimSpace(body) == "" {
		body = m.Text
		contentType = "text/plain"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", m.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", m.Subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType)
	msg.WriteString(body)
	return []byte(msg.String())
}

// LogSender records messages in the log instead of sending them. Used when SMTP
// is not configured so local development still exposes verification links.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, m Message) error {
	applog.Info(ctx, "email delivery disabled, logging message", "to", m.To, "subject", m.Subject, "body", m.Text)
	return nil
}
