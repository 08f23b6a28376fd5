// Package worker runs background delivery of queued email jobs.
package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/leadflow/crm/config"
)

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer delivers a Message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// sender is the part of *mail.Client the mailer uses.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer sends mail through an SMTP relay, with PLAIN auth when a user is set.
type SMTPMailer struct {
	client   sender
	from     string
	fromName string
}

// NewSMTPMailer creates a mailer for the relay in cfg. It does not connect.
func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	policy, err := tlsPolicy(cfg.SMTPTLSPolicy)
	if err != nil {
		return nil, err
	}
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTLSPolicy(policy),
	}
	if cfg.SMTPTimeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.SMTPTimeout))
	}
	if cfg.SMTPUser != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUser),
			mail.WithPassword(cfg.SMTPPass),
		)
	}
	client, err := mail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPMailer{client: client, from: cfg.FromAddress, fromName: cfg.FromName}, nil
}

func tlsPolicy(name string) (mail.TLSPolicy, error) {
	switch name {
	case "", "opportunistic":
		return mail.TLSOpportunistic, nil
	case "mandatory":
		return mail.TLSMandatory, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.TLSOpportunistic, fmt.Errorf("unknown smtp tls policy %q", name)
	}
}

// Send delivers msg. A cancelled ctx aborts the dial and the SMTP session.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}
	out, err := m.compose(msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	var err error
	if m.fromName != "" {
		err = out.FromFormat(m.fromName, m.from)
	} else {
		err = out.From(m.from)
	}
	if err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := out.To(msg.To...); err != nil {
		return nil, fmt.Errorf("recipients: %w", err)
	}
	out.Subject(sanitizeHeader(msg.Subject))
	out.SetBodyString(mail.TypeTextPlain, msg.Body)
	return out, nil
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogMailer logs message metadata instead of sending. Used when no SMTP host is configured.
// Bodies are never logged since invites carry credentials.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a logging mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email (not sent, no SMTP host)",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.Body)),
	)
	return nil
}
