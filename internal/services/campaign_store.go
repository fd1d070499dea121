package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/justsurfingit/job-outreach/internal/models"
	"gorm.io/gorm"
)

// CampaignStore persists campaigns, drafts and their audit events. Every write
// is a single short statement (or a statement plus its event) committed at once.
type CampaignStore struct {
	DB *gorm.DB
}

func NewCampaignStore(db *gorm.DB) *CampaignStore {
	return &CampaignStore{DB: db}
}

// ActiveCampaign returns the user's open (not yet closed) campaign, or nil.
func (s *CampaignStore) ActiveCampaign(ctx context.Context, userID uint) (*models.Campaign, error) {
	var c models.Campaign
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, models.ActiveCampaignStatuses).
		Order("id DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AwaitingApproval returns the single campaign in waiting_approval.
func (s *CampaignStore) AwaitingApproval(ctx context.Context) (*models.Campaign, error) {
	var cs []models.Campaign
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.CampaignWaitingApproval).
		Order("id").
		Limit(2).
		Find(&cs).Error
	if err != nil {
		return nil, err
	}
	switch len(cs) {
	case 0:
		return nil, ErrNoAwaitingCampaign
	case 1:
		return &cs[0], nil
	}
	return nil, ErrAmbiguousCampaign
}

func (s *CampaignStore) Campaign(ctx context.Context, id uint) (*models.Campaign, error) {
	var c models.Campaign
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CampaignStore) CreateCampaign(ctx context.Context, userID uint, date time.Time) (*models.Campaign, error) {
	c := &models.Campaign{UserID: userID, Date: date, Status: models.CampaignGathering}
	if err := s.DB.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

// SetCampaignStatus moves c to next if the table allows it and nobody changed
// the row in between.
func (s *CampaignStore) SetCampaignStatus(ctx context.Context, c *models.Campaign, next models.CampaignStatus) error {
	if err := c.Status.Transition(next); err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status = ?", c.ID, c.Status).
		Update("status", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: campaign %d is no longer %s", models.ErrIllegalTransition, c.ID, c.Status)
	}
	c.Status = next
	return nil
}

// MarkAwaitingApproval records the summary Message-ID and opens the campaign for replies.
func (s *CampaignStore) MarkAwaitingApproval(ctx context.Context, c *models.Campaign, messageID string) error {
	if err := c.Status.Transition(models.CampaignWaitingApproval); err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ? AND status = ?", c.ID, c.Status).
		Updates(map[string]any{
			"status":            models.CampaignWaitingApproval,
			"approval_email_id": messageID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: campaign %d is no longer %s", models.ErrIllegalTransition, c.ID, c.Status)
	}
	c.Status = models.CampaignWaitingApproval
	c.ApprovalEmailID = &messageID
	return nil
}

// AddDraft inserts d and its GENERATED event.
func (s *CampaignStore) AddDraft(ctx context.Context, d *models.Draft) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("JobPost").Create(d).Error; err != nil {
			return err
		}
		return tx.Create(&models.DraftEvent{
			DraftID:   d.ID,
			EventType: models.EventGenerated,
			Details:   fmt.Sprintf("EMAIL #%d: %s", d.Sequence, d.ProposedSubject),
		}).Error
	})
}

// Drafts returns the campaign's drafts in sequence order with their job and company.
func (s *CampaignStore) Drafts(ctx context.Context, campaignID uint) ([]models.Draft, error) {
	var ds []models.Draft
	err := s.DB.WithContext(ctx).
		Preload("JobPost.Company").
		Where("campaign_id = ?", campaignID).
		Order("sequence, id").
		Find(&ds).Error
	return ds, err
}

// DraftsAwaitingRevision lists pending drafts that carry EDIT instructions.
func (s *CampaignStore) DraftsAwaitingRevision(ctx context.Context, campaignID uint) ([]models.Draft, error) {
	var ds []models.Draft
	err := s.DB.WithContext(ctx).
		Preload("JobPost.Company").
		Where("campaign_id = ? AND status = ? AND user_feedback <> ''", campaignID, models.DraftPending).
		Order("sequence, id").
		Find(&ds).Error
	return ds, err
}

// ApprovedDrafts lists every approved draft across campaigns, in send order.
func (s *CampaignStore) ApprovedDrafts(ctx context.Context) ([]models.Draft, error) {
	var ds []models.Draft
	err := s.DB.WithContext(ctx).
		Preload("JobPost.Company").
		Where("status = ?", models.DraftApproved).
		Order("campaign_id, sequence, id").
		Find(&ds).Error
	return ds, err
}

// UpdateDraft applies a status/feedback change guarded by the draft's current
// status and appends the matching event.
func (s *CampaignStore) UpdateDraft(ctx context.Context, d *models.Draft, next models.DraftStatus, feedback *string, ev models.DraftEventType, details string) error {
	if err := d.Status.Transition(next); err != nil {
		return err
	}
	updates := map[string]any{"status": next}
	if feedback != nil {
		updates["user_feedback"] = *feedback
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Draft{}).
			Where("id = ? AND status = ?", d.ID, d.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: draft %d is no longer %s", models.ErrIllegalTransition, d.ID, d.Status)
		}
		return tx.Create(&models.DraftEvent{DraftID: d.ID, EventType: ev, Details: details}).Error
	})
	if err != nil {
		return err
	}
	d.Status = next
	if feedback != nil {
		d.UserFeedback = *feedback
	}
	return nil
}

// ReviseDraft swaps in regenerated content; the previous proposal becomes the alternate.
func (s *CampaignStore) ReviseDraft(ctx context.Context, d *models.Draft, content EmailContent) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Draft{}).
			Where("id = ? AND status = ?", d.ID, models.DraftPending).
			Updates(map[string]any{
				"alt_subject":      d.ProposedSubject,
				"alt_body":         d.ProposedBody,
				"proposed_subject": content.Subject,
				"proposed_body":    content.Body,
				"user_feedback":    "",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: draft %d is no longer pending", models.ErrIllegalTransition, d.ID)
		}
		return tx.Create(&models.DraftEvent{
			DraftID:   d.ID,
			EventType: models.EventRevised,
			Details:   "instructions: " + d.UserFeedback,
		}).Error
	})
	if err != nil {
		return err
	}
	d.AltSubject, d.AltBody = d.ProposedSubject, d.ProposedBody
	d.ProposedSubject, d.ProposedBody = content.Subject, content.Body
	d.UserFeedback = ""
	return nil
}

// MarkSent flips an approved draft to sent. ok is false when another run
// already moved it.
func (s *CampaignStore) MarkSent(ctx context.Context, d *models.Draft, at time.Time, messageID string) (ok bool, err error) {
	at = at.UTC()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Draft{}).
			Where("id = ? AND status = ?", d.ID, models.DraftApproved).
			Updates(map[string]any{"status": models.DraftSent, "sent_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		ok = true
		return tx.Create(&models.DraftEvent{
			DraftID:   d.ID,
			EventType: models.EventSent,
			Details:   fmt.Sprintf("to %s message-id %s", d.JobPost.RecruiterEmail, messageID),
		}).Error
	})
	if err != nil || !ok {
		return false, err
	}
	d.Status = models.DraftSent
	d.SentAt = &at
	return true, nil
}

func (s *CampaignStore) RecordEvent(ctx context.Context, draftID uint, ev models.DraftEventType, details string) error {
	return s.DB.WithContext(ctx).Create(&models.DraftEvent{DraftID: draftID, EventType: ev, Details: details}).Error
}

func (s *CampaignStore) Events(ctx context.Context, draftID uint) ([]models.DraftEvent, error) {
	var evs []models.DraftEvent
	err := s.DB.WithContext(ctx).Where("draft_id = ?", draftID).Order("id").Find(&evs).Error
	return evs, err
}

// SentBetween counts drafts with sent_at in [from, to).
func (s *CampaignStore) SentBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Draft{}).
		Where("sent_at >= ? AND sent_at < ?", from.UTC(), to.UTC()).
		Count(&n).Error
	return int(n), err
}

// RefreshCampaign applies the closing rule to the campaign's current drafts.
func (s *CampaignStore) RefreshCampaign(ctx context.Context, campaignID uint) (models.CampaignStatus, error) {
	c, err := s.Campaign(ctx, campaignID)
	if err != nil {
		return "", err
	}
	var statuses []models.DraftStatus
	err = s.DB.WithContext(ctx).Model(&models.Draft{}).
		Where("campaign_id = ?", campaignID).
		Pluck("status", &statuses).Error
	if err != nil {
		return c.Status, err
	}
	next, ok := models.ClosingStatus(c.Status, statuses)
	if !ok {
		return c.Status, nil
	}
	if err := s.SetCampaignStatus(ctx, c, next); err != nil {
		return c.Status, err
	}
	return next, nil
}

func (s *CampaignStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.ProcessedEmail{}).Where("id = ?", messageID).Count(&n).Error
	return n > 0, err
}

func (s *CampaignStore) MarkProcessed(ctx context.Context, messageID string, campaignID uint) error {
	return s.DB.WithContext(ctx).
		Where(models.ProcessedEmail{ID: messageID}).
		FirstOrCreate(&models.ProcessedEmail{ID: messageID, CampaignID: campaignID}).Error
}
