package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"NewsBrief/internal/config"
	"NewsBrief/internal/ports"
)

// SMTPDeliverer mails the rendered digest through a standard SMTP relay.
type SMTPDeliverer struct {
	cfg     config.SMTPConfig
	subject string
	logger  *slog.Logger
	send    func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

var _ ports.Deliverer = (*SMTPDeliverer)(nil)

// NewSMTPDeliverer builds the mailer from delivery configuration.
func NewSMTPDeliverer(cfg config.DeliveryConfig, logger *slog.Logger) *SMTPDeliverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPDeliverer{
		cfg:     cfg.SMTP,
		subject: cfg.Subject,
		logger:  logger.With("component", "deliverer"),
		send:    smtp.SendMail,
	}
}

// Deliver sends the HTML document to every recipient in one message.
// Delivery failure is reported but must not fail the run; the caller only
// logs it.
func (d *SMTPDeliverer) Deliver(ctx context.Context, document []byte, recipients []string) error {
	if len(recipients) == 0 {
		d.logger.Info("no recipients configured, skipping delivery")
		return nil
	}
	if d.cfg.Host == "" {
		return fmt.Errorf("smtp host is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	msg := d.message(recipients, document)

	if err := d.send(addr, auth, d.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}

	d.logger.Info("digest delivered", "recipients", len(recipients))
	return nil
}

func (d *SMTPDeliverer) message(recipients []string, document []byte) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", d.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", d.subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.Write(document)
	return []byte(b.String())
}
