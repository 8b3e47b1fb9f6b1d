package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("mail delivery disabled")

// Message is a single-recipient email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	PlainText string
	HTML      string
}

type sendClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer delivers messages through the SendGrid v3 API.
type SendGridMailer struct {
	client   sendClient
	fromName string
	fromAddr string
	logger   *zap.Logger
}

// NewSendGridMailer builds a mailer. An empty apiKey yields a mailer whose
// Send returns ErrDisabled.
func NewSendGridMailer(apiKey, fromName, fromAddr string, logger *zap.Logger) *SendGridMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SendGridMailer{fromName: fromName, fromAddr: fromAddr, logger: logger}
	if apiKey != "" {
		m.client = sendgrid.NewSendClient(apiKey)
	}
	return m
}

// Enabled reports whether messages will actually be sent.
func (m *SendGridMailer) Enabled() bool {
	return m != nil && m.client != nil
}

// Send delivers msg. Provider responses with status >= 400 are errors so the
// caller's queue can retry them.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if !m.Enabled() {
		m.logger.Warn("skipping email, SENDGRID_API_KEY not configured", zap.String("subject", msg.Subject))
		return ErrDisabled
	}
	if msg.ToAddress == "" {
		return fmt.Errorf("recipient address required")
	}
	from := mail.NewEmail(m.fromName, m.fromAddr)
	to := mail.NewEmail(msg.ToName, msg.ToAddress)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.PlainText, msg.HTML)

	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		m.logger.Error("sendgrid returned error status", zap.Int("status", resp.StatusCode), zap.String("body", resp.Body))
		return fmt.Errorf("sendgrid status %d", resp.StatusCode)
	}
	return nil
}
