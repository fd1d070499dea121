package services

import (
	"context"
	"testing"
	"time"

	"github.com/justsurfingit/job-outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStore_DraftOrderSurvivesMutations(t *testing.T) {
	db := newTestDB(t)
	store := NewCampaignStore(db)
	ctx := context.Background()
	owner := seedOwner(t, db)
	c, drafts := seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval,
		models.DraftPending, models.DraftPending, models.DraftPending)

	// Touch the last draft first so update order differs from sequence order.
	require.NoError(t, store.UpdateDraft(ctx, &drafts[2], models.DraftApproved, nil, models.EventApproved, ""))
	fb := "shorter"
	require.NoError(t, store.UpdateDraft(ctx, &drafts[0], models.DraftPending, &fb, models.EventEditRequested, fb))

	got, err := store.Drafts(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, d := range got {
		assert.Equal(t, i+1, d.Sequence)
		assert.Equal(t, drafts[i].ID, d.ID)
		assert.NotEmpty(t, d.JobPost.Company.Name, "job and company are preloaded")
	}
	assert.Equal(t, "shorter", got[0].UserFeedback)
	assert.Equal(t, models.DraftApproved, got[2].Status)

	evs, err := store.Events(ctx, drafts[2].ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventApproved, evs[0].EventType)
}

func TestCampaignStore_UpdateDraftRejectsIllegalTransition(t *testing.T) {
	db := newTestDB(t)
	store := NewCampaignStore(db)
	owner := seedOwner(t, db)
	_, drafts := seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval, models.DraftSent)

	err := store.UpdateDraft(context.Background(), &drafts[0], models.DraftRejected, nil, models.EventRejected, "")
	assert.ErrorIs(t, err, models.ErrIllegalTransition)
	assert.Equal(t, []models.DraftStatus{models.DraftSent}, draftStatuses(t, store, drafts[0].CampaignID))
}

func TestCampaignStore_MarkSentIsConditional(t *testing.T) {
	db := newTestDB(t)
	store := NewCampaignStore(db)
	ctx := context.Background()
	owner := seedOwner(t, db)
	_, drafts := seedCampaign(t, db, owner.ID, models.CampaignApproved, models.DraftApproved, models.DraftRejected)

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ok, err := store.MarkSent(ctx, &drafts[0], now, "<a@b>")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, models.DraftSent, drafts[0].Status)

	again := drafts[0]
	again.Status = models.DraftApproved
	ok, err = store.MarkSent(ctx, &again, now, "<a@b>")
	require.NoError(t, err)
	assert.False(t, ok, "already sent")

	ok, err = store.MarkSent(ctx, &drafts[1], now, "<c@d>")
	require.NoError(t, err)
	assert.False(t, ok, "rejected drafts are never sent")

	n, err := store.SentBetween(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCampaignStore_AwaitingApproval(t *testing.T) {
	db := newTestDB(t)
	store := NewCampaignStore(db)
	ctx := context.Background()
	owner := seedOwner(t, db)

	_, err := store.AwaitingApproval(ctx)
	assert.ErrorIs(t, err, ErrNoAwaitingCampaign)

	first, _ := seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval, models.DraftPending)
	seedCampaign(t, db, owner.ID, models.CampaignCompleted, models.DraftSent)
	got, err := store.AwaitingApproval(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval, models.DraftPending)
	_, err = store.AwaitingApproval(ctx)
	assert.ErrorIs(t, err, ErrAmbiguousCampaign)
}

func TestCampaignStore_RefreshCampaign(t *testing.T) {
	db := newTestDB(t)
	store := NewCampaignStore(db)
	ctx := context.Background()
	owner := seedOwner(t, db)

	done, _ := seedCampaign(t, db, owner.ID, models.CampaignApproved, models.DraftSent, models.DraftRejected)
	status, err := store.RefreshCampaign(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignCompleted, status)

	open, _ := seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval, models.DraftPending, models.DraftApproved)
	status, err = store.RefreshCampaign(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignWaitingApproval, status)
}

func TestCampaignStore_ProcessedEmails(t *testing.T) {
	db := newTestDB(t)
	store := NewCampaignStore(db)
	ctx := context.Background()

	done, err := store.IsProcessed(ctx, "imap:1:42")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.MarkProcessed(ctx, "imap:1:42", 7))
	require.NoError(t, store.MarkProcessed(ctx, "imap:1:42", 7), "recording twice is harmless")

	done, err = store.IsProcessed(ctx, "imap:1:42")
	require.NoError(t, err)
	assert.True(t, done)
}
