package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// MailMessage is an inbound message reduced to what the monitor reads.
type MailMessage struct {
	ID      string
	From    string
	Subject string
	Body    string
}

// Mailbox is an open session on the owner's inbox. IDs are stable handles
// usable for Fetch, MarkSeen and de-duplication.
type Mailbox interface {
	ListUnseen(ctx context.Context) ([]string, error)
	// Fetch must not mark the message as seen.
	Fetch(ctx context.Context, id string) (*MailMessage, error)
	MarkSeen(ctx context.Context, id string) error
	Close() error
}

type MailboxConnector interface {
	Connect(ctx context.Context) (Mailbox, error)
}

type MailboxConnectorFunc func(ctx context.Context) (Mailbox, error)

func (f MailboxConnectorFunc) Connect(ctx context.Context) (Mailbox, error) { return f(ctx) }

var errStopWalk = errors.New("stop walk")

// ParseMessage reads an RFC 5322 message and returns its subject, sender and
// plain-text body: the first text/plain part of a multipart message, or the
// whole decoded payload otherwise.
func ParseMessage(r io.Reader) (*MailMessage, error) {
	e, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message: %w", err)
	}

	m := &MailMessage{}
	m.Subject, _ = e.Header.Text("Subject")
	m.From, _ = e.Header.Text("From")

	if e.MultipartReader() == nil {
		b, err := io.ReadAll(e.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		m.Body = string(b)
		return m, nil
	}

	err = e.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil && !message.IsUnknownCharset(err) {
			return err
		}
		t, _, _ := part.Header.ContentType()
		if !strings.EqualFold(t, "text/plain") {
			return nil
		}
		b, err := io.ReadAll(part.Body)
		if err != nil {
			return err
		}
		m.Body = string(b)
		return errStopWalk
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		return nil, fmt.Errorf("walk message: %w", err)
	}
	return m, nil
}
