package services

import (
	"context"
	"errors"
	"testing"

	"github.com/justsurfingit/job-outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func newTestMonitor(t *testing.T, db *gorm.DB, mb *fakeMailbox) *InboxMonitor {
	log := zaptest.NewLogger(t)
	store := NewCampaignStore(db)
	return NewInboxMonitor(mb.connector(), store, NewCommandApplier(store, log),
		NewReplyMatcher("Approval Needed", "owner@example.com"), log)
}

func TestPoll_AppliesApprovalReply(t *testing.T) {
	db := newTestDB(t)
	owner := seedOwner(t, db)
	c, _ := seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval,
		models.DraftPending, models.DraftPending, models.DraftPending)

	mb := newFakeMailbox(
		&MailMessage{ID: "m1", From: "Ada <Owner@Example.com>", Subject: "Re: 🕓 Approval Needed – 3 Job Outreach Emails Ready",
			Body: "Hi\nAPPROVE 1\nblah\nedit 3: shorten it\nREJECT 2\n\n> REPLY TO APPROVE:  APPROVE 1\n"},
		&MailMessage{ID: "m2", From: "news@shop.com", Subject: "Weekly deals", Body: "APPROVE 2"},
	)
	m := newTestMonitor(t, db, mb)

	res, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &PollResult{Seen: 2, Accepted: 1, Commands: 3, Applied: 3}, res)
	assert.True(t, mb.closed)

	got, err := m.Store.Drafts(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftApproved, got[0].Status)
	assert.Equal(t, models.DraftRejected, got[1].Status)
	assert.Equal(t, models.DraftPending, got[2].Status)
	assert.Equal(t, "shorten it", got[2].UserFeedback)

	assert.True(t, mb.seen["m1"])
	assert.False(t, mb.seen["m2"], "unrelated mail stays unread")
	done, err := m.Store.IsProcessed(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestPoll_NeverAppliesTwice(t *testing.T) {
	db := newTestDB(t)
	owner := seedOwner(t, db)
	c, _ := seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval, models.DraftPending, models.DraftPending)

	mb := newFakeMailbox(&MailMessage{ID: "m1", From: "owner@example.com", Subject: "Re: Approval Needed", Body: "EDIT 1: warmer"})
	mb.seenErr = errors.New("flag store failed")
	m := newTestMonitor(t, db, mb)

	_, err := m.Poll(context.Background())
	require.NoError(t, err)

	// The message is still unseen; someone approves draft 1 in between.
	store := m.Store
	ds, err := store.Drafts(context.Background(), c.ID)
	require.NoError(t, err)
	require.NoError(t, store.UpdateDraft(context.Background(), &ds[0], models.DraftApproved, nil, models.EventApproved, ""))

	mb.seenErr = nil
	res, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Accepted)
	assert.True(t, mb.seen["m1"])
	assert.Equal(t, []string{"m1"}, mb.fetched, "processed message is not fetched again")
	assert.Equal(t, models.DraftApproved, draftStatuses(t, store, c.ID)[0])
}

func TestPoll_DiscardsWithoutAwaitingCampaign(t *testing.T) {
	db := newTestDB(t)
	owner := seedOwner(t, db)
	c, _ := seedCampaign(t, db, owner.ID, models.CampaignCompleted, models.DraftSent)

	mb := newFakeMailbox(&MailMessage{ID: "m1", From: "owner@example.com", Subject: "Re: Approval Needed", Body: "REJECT 1"})
	m := newTestMonitor(t, db, mb)

	res, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Commands)
	assert.Zero(t, res.Applied)
	assert.True(t, mb.seen["m1"])
	assert.Equal(t, []models.DraftStatus{models.DraftSent}, draftStatuses(t, m.Store, c.ID))
}

func TestPoll_DiscardsWhenAmbiguous(t *testing.T) {
	db := newTestDB(t)
	owner := seedOwner(t, db)
	a, _ := seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval, models.DraftPending)
	b, _ := seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval, models.DraftPending)

	mb := newFakeMailbox(&MailMessage{ID: "m1", From: "owner@example.com", Subject: "Re: Approval Needed", Body: "APPROVE 1"})
	m := newTestMonitor(t, db, mb)

	res, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	assert.Equal(t, models.DraftPending, draftStatuses(t, m.Store, a.ID)[0])
	assert.Equal(t, models.DraftPending, draftStatuses(t, m.Store, b.ID)[0])
}

func TestPoll_IgnoresStrangers(t *testing.T) {
	db := newTestDB(t)
	owner := seedOwner(t, db)
	c, _ := seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval, models.DraftPending)

	mb := newFakeMailbox(&MailMessage{ID: "m1", From: "mallory@evil.test", Subject: "Re: Approval Needed", Body: "APPROVE 1"})
	m := newTestMonitor(t, db, mb)

	res, err := m.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Accepted)
	assert.Equal(t, models.DraftPending, draftStatuses(t, m.Store, c.ID)[0])
	assert.True(t, mb.seen["m1"])
}

func TestPoll_ConnectFailure(t *testing.T) {
	db := newTestDB(t)
	store := NewCampaignStore(db)
	log := zaptest.NewLogger(t)
	conn := MailboxConnectorFunc(func(context.Context) (Mailbox, error) {
		return nil, errors.New("dial tcp: timeout")
	})
	m := NewInboxMonitor(conn, store, NewCommandApplier(store, log), NewReplyMatcher("Approval Needed"), log)

	_, err := m.Poll(context.Background())
	assert.ErrorContains(t, err, "connect mailbox")
}
