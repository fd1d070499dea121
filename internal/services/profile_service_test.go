package services

import (
	"context"
	"testing"

	"github.com/justsurfingit/job-outreach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOwner(t *testing.T) {
	db := newTestDB(t)
	s := NewProfileService(db, zaptest.NewLogger(t))

	_, err := s.Owner(context.Background())
	assert.ErrorIs(t, err, ErrNoProfile)

	require.NoError(t, db.Create(&models.User{Email: "bare@example.com"}).Error)
	_, err = s.Owner(context.Background())
	assert.ErrorIs(t, err, ErrNoProfile, "a user without profile is not an owner")
}

func TestSeed(t *testing.T) {
	db := newTestDB(t)
	s := NewProfileService(db, zaptest.NewLogger(t))
	ctx := context.Background()

	res, err := s.Seed(ctx, "me@example.com", true)
	require.NoError(t, err)
	assert.True(t, res.ProfileCreated)
	require.NotNil(t, res.TestJob)
	assert.Equal(t, "me@example.com", res.TestJob.RecruiterEmail)
	assert.Zero(t, res.CancelledActives)

	owner, err := s.Owner(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", owner.Email)
	assert.Equal(t, "Test User", owner.Profile.FullName)

	// The seeded job is immediately an outreach candidate.
	jobs, err := NewJobService(db).OutreachCandidates(ctx, 5)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Test Company Inc", jobs[0].Company.Name)

	seedCampaign(t, db, owner.ID, models.CampaignWaitingApproval, models.DraftPending)
	seedCampaign(t, db, owner.ID, models.CampaignCompleted, models.DraftSent)

	again, err := s.Seed(ctx, "me@example.com", true)
	require.NoError(t, err)
	assert.False(t, again.ProfileCreated)
	assert.Equal(t, res.TestJob.ID, again.TestJob.ID)
	assert.Equal(t, 1, again.CancelledActives)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 1, users)

	_, err = s.Seed(ctx, "", false)
	assert.Error(t, err)
}
