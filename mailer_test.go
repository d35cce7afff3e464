package main

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildMIMEMessage(t *testing.T) {
	msg := buildMIMEMessage(
		"parent@gmail.com",
		[]string{"a@example.com", "b@example.com"},
		"Rapport Pronote",
		"ligne 1\nligne 2",
		"<html><body>rapport</body></html>",
	)

	for _, want := range []string{
		"From: parent@gmail.com",
		"To: a@example.com, b@example.com",
		"Subject: Rapport Pronote",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="` + mimeBoundary + `"`,
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Type: text/html; charset=UTF-8",
		"--" + mimeBoundary + "--",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("missing %q in message:\n%s", want, msg)
		}
	}

	if strings.Contains(msg, "ligne 1\nligne 2") {
		t.Fatalf("plain part must use CRLF line endings:\n%q", msg)
	}
	if !strings.Contains(msg, "ligne 1\r\nligne 2") {
		t.Fatalf("missing CRLF-normalized plain body:\n%q", msg)
	}
	if !strings.Contains(msg, "<html><body>rapport</body></html>") {
		t.Fatalf("missing html body:\n%s", msg)
	}
}

func TestNormalizeCRLF(t *testing.T) {
	got := normalizeCRLF("a\nb\r\nc\n")
	if strings.Count(got, "\r\n") != 3 {
		t.Fatalf("normalizeCRLF did not normalize newlines: %q", got)
	}
	if strings.Contains(strings.ReplaceAll(got, "\r\n", ""), "\n") {
		t.Fatalf("bare LF left in output: %q", got)
	}
}

func TestNewEmailSenderPicksBackend(t *testing.T) {
	cfg := Config{EmailBackend: "smtp", SMTPHost: "smtp.gmail.com", SMTPPort: 465, GmailAddress: "a@b", GmailAppPassword: "x"}
	if _, ok := NewEmailSender(cfg).(*smtpSender); !ok {
		t.Fatal("expected smtp backend")
	}

	cfg = Config{EmailBackend: "sendgrid", SendGridAPIKey: "sg", GmailAddress: "a@b"}
	if _, ok := NewEmailSender(cfg).(*sendgridSender); !ok {
		t.Fatal("expected sendgrid backend")
	}

	cfg = Config{EmailBackend: "console"}
	if _, ok := NewEmailSender(cfg).(*consoleSender); !ok {
		t.Fatal("expected console backend")
	}
}

func TestConsoleSenderNeverFails(t *testing.T) {
	sender := &consoleSender{}
	if err := sender.Send("subject", "text", "<html></html>", []string{"a@example.com"}); err != nil {
		t.Fatalf("console sender returned error: %v", err)
	}
}

func TestDeliveryErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&DeliveryError{Channel: "email", Err: cause})

	if !errors.Is(err, cause) {
		t.Fatal("DeliveryError must unwrap to its cause")
	}
	var deliveryErr *DeliveryError
	if !errors.As(err, &deliveryErr) {
		t.Fatal("errors.As failed for *DeliveryError")
	}
	if deliveryErr.Channel != "email" {
		t.Fatalf("unexpected channel: %q", deliveryErr.Channel)
	}
	if !strings.Contains(err.Error(), "email delivery failed") {
		t.Fatalf("unexpected error text: %q", err.Error())
	}
}
