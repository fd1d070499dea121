package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/justsurfingit/job-outreach/internal/config"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
)

// OutboundEmail is a plain-text message with an optional file attachment.
type OutboundEmail struct {
	From           string
	To             string
	Subject        string
	Body           string
	AttachmentPath string
}

// Mailer delivers one message and returns its Message-ID.
type Mailer interface {
	Send(ctx context.Context, e OutboundEmail) (string, error)
}

// buildMessage assembles e with a generated Message-ID. A missing attachment
// file is dropped with a warning rather than failing the send.
func buildMessage(e OutboundEmail, log *zap.Logger) (*mail.Msg, string, error) {
	m := mail.NewMsg()
	if err := m.From(e.From); err != nil {
		return nil, "", fmt.Errorf("from address: %w", err)
	}
	if err := m.To(e.To); err != nil {
		return nil, "", fmt.Errorf("to address: %w", err)
	}
	m.Subject(e.Subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, e.Body)

	if e.AttachmentPath != "" {
		if _, err := os.Stat(e.AttachmentPath); err == nil {
			m.AttachFile(e.AttachmentPath)
		} else {
			log.Warn("attachment not found, sending without it",
				zap.String("path", e.AttachmentPath), zap.Error(err))
		}
	}

	id := uuid.NewString() + "@" + senderDomain(e.From)
	m.SetMessageIDWithValue(id)
	return m, "<" + id + ">", nil
}

func senderDomain(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return strings.Trim(addr[i+1:], "> ")
	}
	return "localhost"
}

// SMTPMailer sends through an authenticated STARTTLS submission server.
type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
	Log      *zap.Logger
}

func NewSMTPMailer(cfg config.MailConfig, log *zap.Logger) *SMTPMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPMailer{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.Owner,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
		Log:      log,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, e OutboundEmail) (string, error) {
	m, id, err := buildMessage(e, s.Log)
	if err != nil {
		return "", err
	}

	opts := []mail.Option{
		mail.WithPort(s.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.Username),
		mail.WithPassword(s.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if s.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.Timeout))
	}
	c, err := mail.NewClient(s.Host, opts...)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", e.To, err)
	}
	return id, nil
}

// GmailMailer sends through the Gmail API with the OAuth client.
type GmailMailer struct {
	GmailClient *gmail.Service
	Timeout     time.Duration
	Log         *zap.Logger
}

func NewGmailMailer(srv *gmail.Service, log *zap.Logger) *GmailMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &GmailMailer{GmailClient: srv, Timeout: defaultGmailTimeout, Log: log}
}

func (g *GmailMailer) Send(ctx context.Context, e OutboundEmail) (string, error) {
	m, id, err := buildMessage(e, g.Log)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("render message: %w", err)
	}
	raw := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(buf.Bytes())}
	ctx, cancel := withTimeout(ctx, g.Timeout)
	defer cancel()
	if _, err := g.GmailClient.Users.Messages.Send("me", raw).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("gmail send to %s: %w", e.To, err)
	}
	return id, nil
}
