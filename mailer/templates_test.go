package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSendVerification(t *testing.T) {
	capture := NewCapture()
	sender := NewSender(capture, "Vendo", "https://app.example.com")

	err := sender.SendVerification(context.Background(), "ada@example.com", "Ada", "tok123", "45 minutes")
	if err != nil {
		t.Fatalf("SendVerification: %v", err)
	}

	mail, ok := capture.Last()
	if !ok {
		t.Fatal("no mail captured")
	}
	if mail.To != "ada@example.com" {
		t.Fatalf("to = %q", mail.To)
	}
	if !strings.Contains(mail.HTML, "https://app.example.com/verify-email?token=tok123") {
		t.Fatalf("verification link missing from HTML: %s", mail.HTML)
	}
	if !strings.Contains(mail.Text, "token=tok123") {
		t.Fatalf("verification link missing from text: %s", mail.Text)
	}
	if !strings.Contains(mail.HTML, "45 minutes") {
		t.Fatalf("TTL missing: %s", mail.HTML)
	}
}

func TestSendPasswordReset(t *testing.T) {
	capture := NewCapture()
	sender := NewSender(capture, "Vendo", "https://app.example.com")

	if err := sender.SendPasswordReset(context.Background(), "ada@example.com", "Ada", "r-1", "1 hour"); err != nil {
		t.Fatalf("SendPasswordReset: %v", err)
	}
	mail, _ := capture.Last()
	if !strings.Contains(mail.HTML, "/reset-password?token=r-1") {
		t.Fatalf("reset link missing: %s", mail.HTML)
	}
}

func TestTokenIsQueryEscaped(t *testing.T) {
	capture := NewCapture()
	sender := NewSender(capture, "Vendo", "https://app.example.com")

	_ = sender.SendVerification(context.Background(), "a@b.c", "A", "a b&c", "1 hour")
	mail, _ := capture.Last()
	if strings.Contains(mail.Text, "a b&c") {
		t.Fatalf("token not escaped: %s", mail.Text)
	}
}

func TestGatewayFailureWrapsErrDelivery(t *testing.T) {
	capture := NewCapture()
	capture.SetFail(true)
	sender := NewSender(capture, "Vendo", "https://app.example.com")

	err := sender.SendBlockedNotice(context.Background(), "a@b.c", "A", 15)
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("got %v, want ErrDelivery", err)
	}
}
