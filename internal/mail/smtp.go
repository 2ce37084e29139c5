// Package mail sends transactional email over SMTP. The only message this
// service sends is the password-reset link.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strings"
)

// Config holds SMTP connection settings. Port 465 implies implicit TLS,
// matching the usual submission setup.
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	AppDomain string // base URL of the frontend, used in the reset link
}

// SMTPMailer implements auth.Mailer over a plain SMTP session.
type SMTPMailer struct {
	cfg Config
}

// NewSMTPMailer creates a new SMTP mailer
func NewSMTPMailer(cfg Config) *SMTPMailer {
	if cfg.Port == "" {
		cfg.Port = "465"
	}
	return &SMTPMailer{cfg: cfg}
}

// SendPasswordReset emails the reset link for the given token to the address.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, token string) error {
	subject := "Reset Your Password"
	body := ResetEmailBody(m.cfg.AppDomain, token)
	return m.send(ctx, to, subject, body)
}

// ResetEmailBody renders the HTML body with the reset-password link.
func ResetEmailBody(appDomain, token string) string {
	link := strings.TrimSuffix(appDomain, "/") + "/reset-password?token=" + token
	escaped := html.EscapeString(link)
	return fmt.Sprintf(
		`<p>To reset your password, click the link below:</p><p><a href="%s">%s</a></p>`,
		escaped, escaped,
	)
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, htmlBody string) error {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}

	tlsConn := tls.Client(conn, &tls.Config{ServerName: m.cfg.Host})
	client, err := smtp.NewClient(tlsConn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	msg := buildMessage(m.cfg.From, to, subject, htmlBody)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	return client.Quit()
}

func buildMessage(from, to, subject, htmlBody string) string {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return b.String()
}
