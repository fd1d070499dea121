package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type PollResult struct {
	Seen     int // unseen messages listed
	Accepted int // approval replies handled
	Commands int
	Applied  int
}

// InboxMonitor polls the owner's inbox for approval replies and applies the
// commands they carry to the campaign waiting for approval.
type InboxMonitor struct {
	Connector MailboxConnector
	Store     *CampaignStore
	Applier   *CommandApplier
	Matcher   *ReplyMatcher
	Log       *zap.Logger
}

func NewInboxMonitor(conn MailboxConnector, store *CampaignStore, applier *CommandApplier, matcher *ReplyMatcher, log *zap.Logger) *InboxMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &InboxMonitor{Connector: conn, Store: store, Applier: applier, Matcher: matcher, Log: log}
}

// Poll handles every unseen message once. Only connection problems are
// returned; per-message failures are logged and the poll moves on.
func (m *InboxMonitor) Poll(ctx context.Context) (*PollResult, error) {
	mb, err := m.Connector.Connect(ctx)
	if err != nil {
		inboxPollsCounter.WithLabelValues("connect_error").Inc()
		return nil, fmt.Errorf("connect mailbox: %w", err)
	}
	defer func() {
		if err := mb.Close(); err != nil {
			m.Log.Warn("failed to close mailbox", zap.Error(err))
		}
	}()

	ids, err := mb.ListUnseen(ctx)
	if err != nil {
		inboxPollsCounter.WithLabelValues("list_error").Inc()
		return nil, fmt.Errorf("list unseen: %w", err)
	}

	res := &PollResult{Seen: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		m.handle(ctx, mb, id, res)
	}
	inboxPollsCounter.WithLabelValues("ok").Inc()
	m.Log.Info("inbox poll finished",
		zap.Int("unseen", res.Seen), zap.Int("replies", res.Accepted),
		zap.Int("commands", res.Commands), zap.Int("applied", res.Applied))
	return res, nil
}

func (m *InboxMonitor) handle(ctx context.Context, mb Mailbox, id string, res *PollResult) {
	log := m.Log.With(zap.String("message_id", id))

	done, err := m.Store.IsProcessed(ctx, id)
	if err != nil {
		log.Error("dedup lookup failed", zap.Error(err))
		return
	}
	if done {
		// Applied earlier but the seen flag did not stick.
		m.markSeen(ctx, mb, id, log)
		return
	}

	msg, err := mb.Fetch(ctx, id)
	if err != nil {
		log.Error("failed to fetch message", zap.Error(err))
		return
	}
	if !m.Matcher.IsApprovalReply(msg.Subject) {
		return
	}
	if !m.Matcher.FromOwner(msg.From) {
		log.Warn("ignoring approval reply from unknown sender", zap.String("from", msg.From))
		m.finish(ctx, mb, id, 0, log)
		return
	}
	res.Accepted++

	cmds := ParseCommands(msg.Body)
	if len(cmds) == 0 {
		log.Info("approval reply has no actionable commands")
		m.finish(ctx, mb, id, 0, log)
		return
	}
	res.Commands += len(cmds)

	campaign, err := m.Store.AwaitingApproval(ctx)
	if err != nil {
		if errors.Is(err, ErrNoAwaitingCampaign) || errors.Is(err, ErrAmbiguousCampaign) {
			log.Warn("discarding commands", zap.Int("commands", len(cmds)), zap.Error(err))
			m.finish(ctx, mb, id, 0, log)
			return
		}
		// Storage trouble: leave the message unseen for the next poll.
		log.Error("failed to resolve campaign", zap.Error(err))
		return
	}

	applied := m.Applier.Apply(ctx, campaign, cmds)
	res.Applied += applied.Applied
	for _, d := range applied.Diagnostics {
		log.Info("command diagnostic", zap.Uint("campaign_id", campaign.ID), zap.String("detail", d))
	}
	m.finish(ctx, mb, id, campaign.ID, log)
}

// finish records the message as handled before flagging it seen, so a failed
// flag never leads to a second application.
func (m *InboxMonitor) finish(ctx context.Context, mb Mailbox, id string, campaignID uint, log *zap.Logger) {
	if err := m.Store.MarkProcessed(ctx, id, campaignID); err != nil {
		log.Error("failed to record processed message", zap.Error(err))
	}
	m.markSeen(ctx, mb, id, log)
}

func (m *InboxMonitor) markSeen(ctx context.Context, mb Mailbox, id string, log *zap.Logger) {
	if err := mb.MarkSeen(ctx, id); err != nil {
		log.Warn("failed to mark message seen", zap.Error(err))
	}
}
