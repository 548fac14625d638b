package alerting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

const implicitTLSPort = 465

// EmailOptions parameterise the SMTP notifier.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

type sendFunc func(ctx context.Context, msg *mail.Msg) error

// EmailNotifier 通过 SMTP 发送告警邮件，图表作为 PNG 附件。
type EmailNotifier struct {
	opts   EmailOptions
	send   sendFunc
	now    func() time.Time
	logger zerolog.Logger
}

// NewEmailNotifier 构造邮件告警器。From 为空时使用 Username，To 为空时发给 From。
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Host == "" {
		opts.Host = "smtp.gmail.com"
	}
	if opts.Port == 0 {
		opts.Port = 587
	}
	if opts.From == "" {
		opts.From = opts.Username
	}
	if len(opts.To) == 0 && opts.From != "" {
		opts.To = []string{opts.From}
	}

	n := &EmailNotifier{
		opts:   opts,
		now:    time.Now,
		logger: logger.With().Str("component", "alert_email").Logger(),
	}
	n.send = n.deliver
	return n
}

// Notify 组装邮件并投递。
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	if n.opts.From == "" || len(n.opts.To) == 0 {
		return errors.New("email sender/recipient not configured")
	}

	msg, err := n.compose(note)
	if err != nil {
		return fmt.Errorf("compose email: %w", err)
	}
	if err := n.send(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info().Str("trigger", note.Trigger).
		Str("to", strings.Join(n.opts.To, ",")).
		Int("attachments", len(note.Attachments)).
		Msg("告警已发送 (Email)")
	return nil
}

func (n *EmailNotifier) compose(note Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.opts.From); err != nil {
		return nil, fmt.Errorf("from %q: %w", n.opts.From, err)
	}
	if err := msg.To(n.opts.To...); err != nil {
		return nil, fmt.Errorf("to %v: %w", n.opts.To, err)
	}
	msg.Subject(note.Subject)
	msg.SetDateWithValue(n.now())
	msg.SetBodyString(mail.TypeTextPlain, note.Body)

	for _, att := range note.Attachments {
		contentType := att.ContentType
		if contentType == "" {
			contentType = string(mail.TypeAppOctetStream)
		}
		err := msg.AttachReader(att.Filename, bytes.NewReader(att.Data),
			mail.WithFileContentType(mail.ContentType(contentType)))
		if err != nil {
			return nil, fmt.Errorf("attach %s: %w", att.Filename, err)
		}
	}
	return msg, nil
}

// deliver opens one SMTP session per alert. Port 465 uses implicit TLS, any other
// port upgrades with STARTTLS when the server offers it.
func (n *EmailNotifier) deliver(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(n.opts.Port),
		mail.WithTimeout(n.opts.Timeout),
	}
	if n.opts.Port == implicitTLSPort {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if n.opts.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.opts.Username),
			mail.WithPassword(n.opts.Password),
		)
	}

	client, err := mail.NewClient(n.opts.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

var _ Notifier = (*EmailNotifier)(nil)
