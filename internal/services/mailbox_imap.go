package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/justsurfingit/job-outreach/internal/config"
	"go.uber.org/zap"
)

// IMAPConnector opens INBOX over implicit TLS with the owner's app password.
type IMAPConnector struct {
	Addr     string
	Username string
	Password string
	Timeout  time.Duration
	Log      *zap.Logger
}

func NewIMAPConnector(cfg config.MailConfig, log *zap.Logger) *IMAPConnector {
	if log == nil {
		log = zap.NewNop()
	}
	return &IMAPConnector{
		Addr:     cfg.IMAPAddr,
		Username: cfg.Owner,
		Password: cfg.Password,
		Timeout:  cfg.Timeout,
		Log:      log,
	}
}

func (ic *IMAPConnector) Connect(ctx context.Context) (Mailbox, error) {
	return backoff.Retry(ctx, func() (Mailbox, error) {
		mb, err := ic.dial()
		if err != nil {
			ic.Log.Warn("imap connect failed", zap.String("addr", ic.Addr), zap.Error(err))
			return nil, err
		}
		return mb, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
}

const defaultIMAPTimeout = 30 * time.Second

func (ic *IMAPConnector) dial() (*IMAPMailbox, error) {
	timeout := ic.Timeout
	if timeout <= 0 {
		timeout = defaultIMAPTimeout
	}
	// A *net.Dialer timeout also bounds the TLS handshake and server greeting.
	c, err := client.DialWithDialerTLS(&net.Dialer{Timeout: timeout}, ic.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ic.Addr, err)
	}
	c.Timeout = timeout

	if err := c.Login(ic.Username, ic.Password); err != nil {
		_ = c.Logout()
		// Bad credentials will not fix themselves.
		return nil, backoff.Permanent(fmt.Errorf("imap login: %w", err))
	}
	status, err := c.Select("INBOX", false)
	if err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("select INBOX: %w", err)
	}
	return &IMAPMailbox{c: c, uidValidity: status.UidValidity}, nil
}

// IMAPMailbox addresses messages by UID, qualified with UIDVALIDITY so a
// rebuilt mailbox never collides with already processed handles.
type IMAPMailbox struct {
	c           *client.Client
	uidValidity uint32
}

func (m *IMAPMailbox) ListUnseen(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := m.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, m.handle(uid))
	}
	return ids, nil
}

func (m *IMAPMailbox) Fetch(ctx context.Context, id string) (*MailMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uid, err := m.uid(id)
	if err != nil {
		return nil, err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.c.UidFetch(seqset, items, messages)
	}()

	var msg *imap.Message
	for fetched := range messages {
		msg = fetched
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("fetch %s: message not found", id)
	}
	r := msg.GetBody(section)
	if r == nil {
		return nil, fmt.Errorf("fetch %s: server returned no body", id)
	}

	parsed, err := ParseMessage(r)
	if err != nil {
		return nil, err
	}
	parsed.ID = id
	return parsed, nil
}

func (m *IMAPMailbox) MarkSeen(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uid, err := m.uid(id)
	if err != nil {
		return err
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return m.c.UidStore(seqset, item, []interface{}{imap.SeenFlag}, nil)
}

func (m *IMAPMailbox) Close() error {
	return m.c.Logout()
}

func (m *IMAPMailbox) handle(uid uint32) string {
	return fmt.Sprintf("imap:%d:%d", m.uidValidity, uid)
}

var errForeignHandle = errors.New("message handle belongs to another mailbox")

func (m *IMAPMailbox) uid(id string) (uint32, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != "imap" {
		return 0, fmt.Errorf("%w: %q", errForeignHandle, id)
	}
	if parts[1] != strconv.FormatUint(uint64(m.uidValidity), 10) {
		return 0, fmt.Errorf("%w: %q", errForeignHandle, id)
	}
	uid, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad message handle %q: %w", id, err)
	}
	return uint32(uid), nil
}
