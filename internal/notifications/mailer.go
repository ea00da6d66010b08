package notifications

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"github.com/skshopping/shop-backend/pkg/config"
)

// Attachment is a file sent with a message. Inline attachments are embedded
// and referenced from the HTML body by cid:Name.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
	Inline      bool
}

type Message struct {
	To          string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// Mailer delivers a rendered message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends through the configured SMTP relay.
type SMTPMailer struct {
	client *mail.Client
	from   string
}

func NewSMTPMailer(cfg config.SMTPConfig) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("smtp host is required")
	}
	policy, err := tlsPolicy(cfg.TLSPolicy)
	if err != nil {
		return nil, err
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(policy),
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
	return &SMTPMailer{client: client, from: cfg.From}, nil
}

func tlsPolicy(value string) (mail.TLSPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.TLSMandatory, fmt.Errorf("unknown smtp tls policy %q", value)
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	built, err := buildMsg(m.from, msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, built); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

func buildMsg(from string, msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.From(from); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)
	for _, att := range msg.Attachments {
		var opts []mail.FileOption
		if att.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(att.ContentType)))
		}
		if att.Inline {
			opts = append(opts, mail.WithFileContentID(att.Name))
			if err := out.EmbedReader(att.Name, bytes.NewReader(att.Data), opts...); err != nil {
				return nil, fmt.Errorf("embed %s: %w", att.Name, err)
			}
			continue
		}
		if err := out.AttachReader(att.Name, bytes.NewReader(att.Data), opts...); err != nil {
			return nil, fmt.Errorf("attach %s: %w", att.Name, err)
		}
	}
	return out, nil
}
