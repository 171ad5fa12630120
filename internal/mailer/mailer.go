// Package mailer sends instance emails over SMTP using the settings stored in
// the instance_settings singleton. Delivery is best-effort: callers that must
// not block on mail (team invites) dispatch through a background goroutine.
package mailer

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"

	"github.com/portr-admin/portr-admin/internal/db/models"
)

// Mailer sends plain-text email.
type Mailer struct{}

// New creates a Mailer.
func New() *Mailer {
	return &Mailer{}
}

// Send delivers a plain-text message using the SMTP settings in settings. The
// caller checks SMTPEnabled first; Send fails when host or sender are missing.
func (m *Mailer) Send(settings *models.InstanceSettings, to, subject, body string) error {
	if settings.SMTPHost == nil || *settings.SMTPHost == "" {
		return fmt.Errorf("smtp host is not configured")
	}
	if settings.FromAddress == nil || *settings.FromAddress == "" {
		return fmt.Errorf("smtp from address is not configured")
	}

	port := 587
	if settings.SMTPPort != nil {
		port = *settings.SMTPPort
	}
	host := *settings.SMTPHost
	from := *settings.FromAddress
	addr := fmt.Sprintf("%s:%d", host, port)

	var auth smtp.Auth
	if settings.SMTPUsername != nil && *settings.SMTPUsername != "" {
		password := ""
		if settings.SMTPPassword != nil {
			password = *settings.SMTPPassword
		}
		auth = smtp.PlainAuth("", *settings.SMTPUsername, password, host)
	}

	headers := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n",
		from, to, subject,
	)
	msg := []byte(headers + body + "\r\n")

	if port == 465 {
		return sendMailTLS(addr, host, auth, from, []string{to}, msg)
	}
	// Port 587 and friends: smtp.SendMail upgrades via STARTTLS when the
	// server advertises it.
	return smtp.SendMail(addr, auth, from, []string{to}, msg)
}

// sendMailTLS connects via implicit TLS (port 465 / SMTPS) and sends a message.
func sendMailTLS(addr, host string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{
		ServerName: host,
		MinVersion: tls.VersionTLS12,
	}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("smtp tls dial: %w", err)
	}
	defer conn.Close()

	hostname, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, hostname)
	if err != nil {
		return fmt.Errorf("smtp new client: %w", err)
	}
	defer c.Quit() //nolint:errcheck

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt to: %w", err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	return w.Close()
}
