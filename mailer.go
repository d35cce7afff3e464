package main

import (
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// DeliveryError wraps a transport or authentication failure on an outbound
// channel. Email delivery errors abort the run; chat ones are only logged.
type DeliveryError struct {
	Channel string // "email", "whatsapp", or "slack"
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s delivery failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// EmailSender submits one multipart report email to a recipient list.
type EmailSender interface {
	Send(subject, textBody, htmlBody string, recipients []string) error
}

// NewEmailSender picks the backend configured in email_backend.
func NewEmailSender(cfg Config) EmailSender {
	switch cfg.EmailBackend {
	case "sendgrid":
		return &sendgridSender{apiKey: cfg.SendGridAPIKey, from: cfg.GmailAddress}
	case "console":
		return &consoleSender{}
	default:
		return &smtpSender{
			host:     cfg.SMTPHost,
			port:     cfg.SMTPPort,
			address:  cfg.GmailAddress,
			password: cfg.GmailAppPassword,
		}
	}
}

// smtpSender sends over implicit-TLS SMTP (Gmail on port 465 with an app
// password).
type smtpSender struct {
	host     string
	port     int
	address  string
	password string
}

func (s *smtpSender) Send(subject, textBody, htmlBody string, recipients []string) error {
	msg := buildMIMEMessage(s.address, recipients, subject, textBody, htmlBody)

	conn, err := tls.Dial("tcp", fmt.Sprintf("%s:%d", s.host, s.port), &tls.Config{ServerName: s.host})
	if err != nil {
		return &DeliveryError{Channel: "email", Err: fmt.Errorf("connecting to %s: %w", s.host, err)}
	}
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return &DeliveryError{Channel: "email", Err: fmt.Errorf("starting SMTP session: %w", err)}
	}
	defer client.Close()

	auth := smtp.PlainAuth("", s.address, s.password, s.host)
	if err := client.Auth(auth); err != nil {
		return &DeliveryError{Channel: "email", Err: fmt.Errorf("authenticating: %w", err)}
	}
	if err := client.Mail(s.address); err != nil {
		return &DeliveryError{Channel: "email", Err: fmt.Errorf("MAIL FROM: %w", err)}
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return &DeliveryError{Channel: "email", Err: fmt.Errorf("RCPT TO %s: %w", rcpt, err)}
		}
	}
	w, err := client.Data()
	if err != nil {
		return &DeliveryError{Channel: "email", Err: fmt.Errorf("DATA: %w", err)}
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return &DeliveryError{Channel: "email", Err: fmt.Errorf("writing message: %w", err)}
	}
	if err := w.Close(); err != nil {
		return &DeliveryError{Channel: "email", Err: fmt.Errorf("closing message: %w", err)}
	}
	if err := client.Quit(); err != nil {
		return &DeliveryError{Channel: "email", Err: fmt.Errorf("QUIT: %w", err)}
	}

	log.Printf("Email sent to %s", strings.Join(recipients, ", "))
	return nil
}

// sendgridSender submits through the SendGrid v3 mail API.
type sendgridSender struct {
	apiKey string
	from   string
}

func (s *sendgridSender) Send(subject, textBody, htmlBody string, recipients []string) error {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	for _, rcpt := range recipients {
		p.AddTos(sgmail.NewEmail("", rcpt))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(sgmail.NewEmail("Rapport Pronote", s.from))
	m.AddPersonalizations(p)
	m.AddContent(
		sgmail.NewContent("text/plain", textBody),
		sgmail.NewContent("text/html", htmlBody),
	)

	req := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", "https://api.sendgrid.com")
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	resp, err := sendgrid.API(req)
	if err != nil {
		return &DeliveryError{Channel: "email", Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return &DeliveryError{Channel: "email", Err: fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)}
	}

	log.Printf("Email sent to %s", strings.Join(recipients, ", "))
	return nil
}

// consoleSender logs the report instead of sending it. Useful when testing
// the pipeline without mail credentials.
type consoleSender struct{}

func (s *consoleSender) Send(subject, textBody, _ string, recipients []string) error {
	log.Printf("--- Email (console backend) ---")
	log.Printf("To: %s", strings.Join(recipients, ", "))
	log.Printf("Subject: %s", subject)
	log.Printf("\n%s", textBody)
	return nil
}

const mimeBoundary = "pronote-report-alt"

// buildMIMEMessage assembles the multipart/alternative email body with CRLF
// line endings throughout.
func buildMIMEMessage(from string, recipients []string, subject, textBody, htmlBody string) string {
	headers := []string{
		"From: " + from,
		"To: " + strings.Join(recipients, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", mimeBoundary),
	}

	plain := normalizeCRLF(textBody)

	var out strings.Builder
	out.WriteString(strings.Join(headers, "\r\n"))
	out.WriteString("\r\n\r\n")
	out.WriteString("--" + mimeBoundary + "\r\n")
	out.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	out.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	out.WriteString(plain)
	if !strings.HasSuffix(plain, "\r\n") {
		out.WriteString("\r\n")
	}
	out.WriteString("\r\n--" + mimeBoundary + "\r\n")
	out.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	out.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	out.WriteString(htmlBody)
	out.WriteString("\r\n--" + mimeBoundary + "--\r\n")
	return out.String()
}

func normalizeCRLF(s string) string {
	normalized := strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(normalized, "\n", "\r\n")
}
