package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDraftTransitions(t *testing.T) {
	assert.True(t, DraftPending.CanTransitionTo(DraftApproved))
	assert.True(t, DraftPending.CanTransitionTo(DraftPending))
	assert.True(t, DraftApproved.CanTransitionTo(DraftSent))
	assert.True(t, DraftRejected.CanTransitionTo(DraftPending))

	assert.False(t, DraftRejected.CanTransitionTo(DraftApproved))
	assert.False(t, DraftPending.CanTransitionTo(DraftSent))
	for _, next := range []DraftStatus{DraftPending, DraftApproved, DraftRejected, DraftSent} {
		assert.False(t, DraftSent.CanTransitionTo(next), "sent -> %s", next)
	}

	err := DraftSent.Transition(DraftPending)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.NoError(t, DraftApproved.Transition(DraftRejected))
}

func TestCampaignTransitions(t *testing.T) {
	assert.NoError(t, CampaignGathering.Transition(CampaignWaitingApproval))
	assert.NoError(t, CampaignWaitingApproval.Transition(CampaignApproved))
	assert.NoError(t, CampaignApproved.Transition(CampaignCompleted))

	assert.ErrorIs(t, CampaignGathering.Transition(CampaignCompleted), ErrIllegalTransition)
	assert.ErrorIs(t, CampaignCompleted.Transition(CampaignWaitingApproval), ErrIllegalTransition)
	assert.ErrorIs(t, CampaignCancelled.Transition(CampaignGathering), ErrIllegalTransition)

	assert.True(t, CampaignGathering.Active())
	assert.True(t, CampaignWaitingApproval.Active())
	assert.True(t, CampaignApproved.Active())
	assert.False(t, CampaignCompleted.Active())
}

func TestClosingStatus(t *testing.T) {
	tests := []struct {
		name    string
		current CampaignStatus
		drafts  []DraftStatus
		want    CampaignStatus
		ok      bool
	}{
		{"still pending", CampaignWaitingApproval, []DraftStatus{DraftPending, DraftApproved}, CampaignWaitingApproval, false},
		{"all decided stays open", CampaignWaitingApproval, []DraftStatus{DraftApproved, DraftRejected}, CampaignWaitingApproval, false},
		{"partly sent stays open", CampaignWaitingApproval, []DraftStatus{DraftSent, DraftApproved}, CampaignWaitingApproval, false},
		{"all sent or rejected", CampaignApproved, []DraftStatus{DraftSent, DraftRejected}, CampaignCompleted, true},
		{"all rejected", CampaignWaitingApproval, []DraftStatus{DraftRejected, DraftRejected}, CampaignCancelled, true},
		{"approved stays approved", CampaignApproved, []DraftStatus{DraftApproved, DraftSent}, CampaignApproved, false},
		{"gathering untouched", CampaignGathering, []DraftStatus{DraftRejected}, CampaignGathering, false},
		{"completed untouched", CampaignCompleted, []DraftStatus{DraftSent}, CampaignCompleted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClosingStatus(tt.current, tt.drafts)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
