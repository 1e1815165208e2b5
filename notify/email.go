package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"os"
	"strings"
	"time"

	"github.com/kinjelom/server-monitor/config"
	"github.com/kinjelom/server-monitor/probe"
)

// EmailSender delivers alert emails over SMTP. Grounded on stdlib
// net/smtp (no ecosystem SMTP client appears anywhere in the corpus,
// see DESIGN.md): a manual dial + STARTTLS/SSL upgrade followed by
// smtp.NewClient, the same approach other_examples' mail exporter takes.
type EmailSender struct{}

func NewEmailSender() *EmailSender { return &EmailSender{} }

// Send renders and delivers one alert email, retrying transport failures
// per the fixed 1s/2s/4s schedule.
func (s *EmailSender) Send(ctx context.Context, eff config.EffectiveEmailConfig, endpointName string, status Status, result probe.Result) error {
	subject := renderTemplate(eff.SubjectTemplate, endpointName, status)
	body := renderBody(endpointName, status, result)

	username, password := resolveCredentials(eff.SMTPUsername, eff.SMTPPassword)

	return retryWithSchedule(ctx, func() error {
		return s.deliver(eff, username, password, subject, body)
	})
}

// resolveCredentials applies the required environment override:
// SMTP_USERNAME/SMTP_PASSWORD, when set, take precedence over configured
// credentials.
func resolveCredentials(configuredUser, configuredPass string) (string, string) {
	user := configuredUser
	pass := configuredPass
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		user = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		pass = v
	}
	return user, pass
}

func (s *EmailSender) deliver(eff config.EffectiveEmailConfig, username, password, subject, body string) error {
	addr := net.JoinHostPort(eff.SMTPHost, fmt.Sprintf("%d", eff.SMTPPort))

	var client *smtp.Client
	var err error

	switch eff.ConnectionMethod {
	case "ssl":
		conn, dialErr := tls.Dial("tcp", addr, &tls.Config{ServerName: eff.SMTPHost})
		if dialErr != nil {
			return fmt.Errorf("tls dial: %w", dialErr)
		}
		client, err = smtp.NewClient(conn, eff.SMTPHost)
	case "plain":
		log.Printf("notify/email: connection_method=plain sends credentials and message unencrypted to %s", eff.SMTPHost)
		conn, dialErr := net.Dial("tcp", addr)
		if dialErr != nil {
			return fmt.Errorf("dial: %w", dialErr)
		}
		client, err = smtp.NewClient(conn, eff.SMTPHost)
	default: // starttls
		conn, dialErr := net.Dial("tcp", addr)
		if dialErr != nil {
			return fmt.Errorf("dial: %w", dialErr)
		}
		client, err = smtp.NewClient(conn, eff.SMTPHost)
		if err == nil {
			if startErr := client.StartTLS(&tls.Config{ServerName: eff.SMTPHost}); startErr != nil {
				_ = client.Close()
				return fmt.Errorf("starttls upgrade: %w", startErr)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if username != "" {
		auth := smtp.PlainAuth("", username, password, eff.SMTPHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(eff.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range eff.Recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	msg := fmt.Sprintf("Subject: %s\r\nTo: %s\r\nFrom: %s\r\n\r\n%s",
		subject, strings.Join(eff.Recipients, ", "), eff.From, body)
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message writer: %w", err)
	}

	return client.Quit()
}

func renderTemplate(tmpl, endpointName string, status Status) string {
	tmpl = strings.ReplaceAll(tmpl, "{endpoint_name}", endpointName)
	tmpl = strings.ReplaceAll(tmpl, "{status}", string(status))
	return tmpl
}

func renderBody(endpointName string, status Status, result probe.Result) string {
	latency := "n/a"
	if result.HasLatency {
		latency = result.Latency.String()
	}
	return fmt.Sprintf(
		"endpoint: %s\nstatus: %s\ntimestamp: %s\nlatency: %s\ndetail: %s\n",
		endpointName, status, result.Timestamp.UTC().Format(time.RFC3339), latency, result.Detail,
	)
}
