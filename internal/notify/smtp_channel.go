package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/fitdesk/fitdesk-api/internal/config"
	"github.com/fitdesk/fitdesk-api/internal/models"
	"github.com/rs/zerolog"
)

// SMTPChannel delivers email notifications through a plain SMTP relay.
type SMTPChannel struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   zerolog.Logger
}

func NewSMTPChannel(cfg config.EmailConfig, logger zerolog.Logger) (*SMTPChannel, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	from := strings.TrimSpace(cfg.From)
	if host == "" {
		return nil, fmt.Errorf("smtp_host is required for email channel")
	}
	if from == "" {
		return nil, fmt.Errorf("from is required for email channel")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	return &SMTPChannel{
		host:     host,
		port:     port,
		username: strings.TrimSpace(cfg.Username),
		password: cfg.Password,
		from:     from,
		logger:   logger.With().Str("channel", "email").Logger(),
	}, nil
}

func (c *SMTPChannel) Type() models.ChannelType {
	return models.ChannelEmail
}

func (c *SMTPChannel) Send(_ context.Context, recipient, subject, body string) error {
	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n",
		c.from, recipient, subject)
	message := []byte(headers + body)
	addr := fmt.Sprintf("%s:%d", c.host, c.port)

	var auth smtp.Auth
	if c.username != "" {
		auth = smtp.PlainAuth("", c.username, c.password, c.host)
	}

	if err := smtp.SendMail(addr, auth, c.from, []string{recipient}, message); err != nil {
		// Relay failures (connection refused, greylisting, rate limits) clear
		// on their own; let the queue retry.
		return Transient(err)
	}

	c.logger.Info().
		Str("recipient", recipient).
		Str("subject", subject).
		Msg("email sent")
	return nil
}

func (c *SMTPChannel) String() string {
	return "SMTPChannel"
}
