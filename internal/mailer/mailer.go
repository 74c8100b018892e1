package mailer

import (
	"fmt"

	"binance-dca-bot/internal/config"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Sender delivers notification mails.
type Sender interface {
	Send(to, subject, body string) error
}

// Mailer submits plain-text mail over SMTP with STARTTLS and password
// authentication.
type Mailer struct {
	client *mail.Client
	from   string
	logger *zap.Logger
}

var _ Sender = (*Mailer)(nil)

// New creates a Mailer. The password comes from the key vault, the sender
// address from the user config.
func New(cfg *config.SMTP, from, password string, logger *zap.Logger) (*Mailer, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(from),
		mail.WithPassword(password),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Mailer{client: client, from: from, logger: logger}, nil
}

// Send submits one plain-text message.
func (m *Mailer) Send(to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", m.from, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.client.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	m.logger.Info("Mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
