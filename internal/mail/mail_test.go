package mail

import (
	"context"
	"strings"
	"testing"

	"linkfolio/internal/config"
)

func TestNewSelectsImplementation(t *testing.T) {
	t.Parallel()

	if _, ok := New(config.MailConfig{}).(LogSender); !ok {
		t.Fatal("expected log sender when SMTP is not configured")
	}
	smtpCfg := config.MailConfig{Host: "smtp.example.com", Port: 587, From: "noreply@example.com"}
	if _, ok := New(smtpCfg).(*SMTPSender); !ok {
		t.Fatal("expected SMTP sender when configured")
	}
}

func TestComposeFallsBackToText(t *testing.T) {
	t.Parallel()

	payload := string(compose("noreply@example.com", Message{To: "a@x.com", Subject: "Hi", Text: "plain body"}))
	if !strings.Contains(payload, "Content-Type: text/plain") {
		t.Fatalf("expected text content type, got %q", payload)
	}
	if !strings.HasSuffix(payload, "plain body") {
		t.Fatalf("expected body at end of payload, got %q", payload)
	}
}

func TestVerificationMessageContainsLink(t *testing.T) {
	t.Parallel()

	msg := VerificationMessage("https://links.example.com", "a@x.com", "Ada", "abc123")
	if msg.To != "a@x.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if !strings.Contains(msg.Text, "https://links.example.com/api/auth/verify-email?token=abc123") {
		t.Fatalf("expected verification link in %q", msg.Text)
	}
}

func TestPasswordResetMessageEscapesName(t *testing.T) {
	t.Parallel()

	msg := PasswordResetMessage("https://links.example.com", "a@x.com", "<b>Ada</b>", "tok")
	if strings.Contains(msg.HTML, "<b>Ada</b>") {
		t.Fatalf("expected name to be escaped in %q", msg.HTML)
	}
	if !strings.Contains(msg.Text, "reset-password?token=tok") {
		t.Fatalf("expected reset link in %q", msg.Text)
	}
}

func TestLogSenderNeverFails(t *testing.T) {
	t.Parallel()

	if err := (LogSender{}).Send(context.Background(), Message{To: "a@x.com"}); err != nil {
		t.Fatalf("LogSender returned error: %v", err)
	}
}
