package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

// EmailConfig holds SMTP settings. Timeout bounds one delivery, dial included, and
// defaults to 30s.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sendFunc func(ctx context.Context, m *mail.Msg) error

// EmailChannel sends plain-text mail over SMTP.
type EmailChannel struct {
	from    string
	timeout time.Duration
	send    sendFunc
	now     func() time.Time
}

func NewEmailChannel(cfg EmailConfig) (*EmailChannel, error) {
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &EmailChannel{
		from:    cfg.From,
		timeout: timeout,
		send: func(ctx context.Context, m *mail.Msg) error {
			return client.DialAndSendWithContext(ctx, m)
		},
		now: time.Now,
	}, nil
}

func (c *EmailChannel) Name() string { return ChannelEmail }

func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.Recipient == "" || strings.ContainsAny(msg.Recipient, "\r\n") {
		return Permanent(fmt.Errorf("invalid recipient %q", msg.Recipient))
	}
	m, err := c.compose(msg)
	if err != nil {
		return Permanent(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// buffered: a transport that overstays ctx finishes in the background
	done := make(chan error, 1)
	go func() { done <- c.send(ctx, m) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		return fmt.Errorf("smtp: %w", ctx.Err())
	}
	if err != nil {
		if rejected(err) {
			return Permanent(fmt.Errorf("smtp: %w", err))
		}
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

// rejected reports a 5xx answer to the envelope, which no retry will change.
func rejected(err error) bool {
	var sendErr *mail.SendError
	if !errors.As(err, &sendErr) || sendErr.IsTemp() {
		return false
	}
	return sendErr.Reason == mail.ErrSMTPMailFrom || sendErr.Reason == mail.ErrSMTPRcptTo
}

func (c *EmailChannel) compose(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(c.from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", c.from, err)
	}
	if err := m.To(msg.Recipient); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.Recipient, err)
	}
	m.Subject(msg.Subject)
	m.SetDateWithValue(c.now())
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}
