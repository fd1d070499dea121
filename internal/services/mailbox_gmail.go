package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// defaultGmailTimeout bounds a single Gmail API attempt.
const defaultGmailTimeout = 30 * time.Second

// GmailMailbox reads the owner's inbox through the Gmail API. The UNREAD
// label plays the role of the IMAP \Seen flag.
type GmailMailbox struct {
	GmailClient *gmail.Service
	Timeout     time.Duration
	Log         *zap.Logger
}

func NewGmailMailbox(srv *gmail.Service, log *zap.Logger) *GmailMailbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &GmailMailbox{GmailClient: srv, Timeout: defaultGmailTimeout, Log: log}
}

// withTimeout derives the deadline for one API attempt.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultGmailTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Connect satisfies MailboxConnector; the API client is stateless.
func (s *GmailMailbox) Connect(ctx context.Context) (Mailbox, error) {
	if s.GmailClient == nil {
		return nil, errors.New("gmail client not configured, check credentials")
	}
	return s, nil
}

func (s *GmailMailbox) ListUnseen(ctx context.Context) ([]string, error) {
	var ids []string
	err := retry(ctx, s.Log, 3, time.Second, func() error {
		ids = ids[:0]
		ctx, cancel := withTimeout(ctx, s.Timeout)
		defer cancel()
		call := s.GmailClient.Users.Messages.List("me").Q("is:unread in:inbox")
		return call.Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
			for _, m := range resp.Messages {
				ids = append(ids, m.Id)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	return ids, nil
}

// Fetch reads headers and body. Gmail's get does not clear UNREAD.
func (s *GmailMailbox) Fetch(ctx context.Context, id string) (*MailMessage, error) {
	var msg *gmail.Message
	err := retry(ctx, s.Log, 2, 500*time.Millisecond, func() error {
		ctx, cancel := withTimeout(ctx, s.Timeout)
		defer cancel()
		var e error
		msg, e = s.GmailClient.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return e
	})
	if err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, err)
	}
	headers := parseHeaders(msg)
	return &MailMessage{
		ID:      id,
		From:    headers["From"],
		Subject: headers["Subject"],
		Body:    getEmailBody(msg.Payload),
	}, nil
}

func (s *GmailMailbox) MarkSeen(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	return retry(ctx, s.Log, 3, time.Second, func() error {
		ctx, cancel := withTimeout(ctx, s.Timeout)
		defer cancel()
		_, err := s.GmailClient.Users.Messages.Modify("me", id, req).Context(ctx).Do()
		return err
	})
}

func (s *GmailMailbox) Close() error { return nil }

// retry runs f with exponential backoff. Client errors (4xx other than 429)
// fail fast.
func retry(ctx context.Context, log *zap.Logger, attempts int, initial time.Duration, f func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := f()
		if err == nil {
			return struct{}{}, nil
		}
		if isClientError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		log.Warn("gmail API error, retrying", zap.Error(err))
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))
	return err
}

func isClientError(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code >= 400 && gErr.Code < 500 && gErr.Code != 429
	}
	return false
}

func parseHeaders(msg *gmail.Message) map[string]string {
	res := make(map[string]string)
	if msg.Payload == nil {
		return res
	}
	for _, h := range msg.Payload.Headers {
		res[h.Name] = h.Value
	}
	return res
}

// getEmailBody returns the first text/plain body in the part tree, or the
// part's own body when it is not multipart.
func getEmailBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if len(part.Parts) == 0 {
		if part.Body != nil && part.Body.Data != "" {
			return decodeBase64URL(part.Body.Data)
		}
		return ""
	}
	for _, p := range part.Parts {
		if p.MimeType == "text/plain" && p.Body != nil && p.Body.Data != "" {
			return decodeBase64URL(p.Body.Data)
		}
	}
	for _, p := range part.Parts {
		if len(p.Parts) > 0 {
			if body := getEmailBody(p); body != "" {
				return body
			}
		}
	}
	return ""
}

// decodeBase64URL accepts both padded and unpadded base64url.
func decodeBase64URL(s string) string {
	if d, err := base64.URLEncoding.DecodeString(s); err == nil {
		return string(d)
	}
	d, _ := base64.RawURLEncoding.DecodeString(s)
	return string(d)
}
