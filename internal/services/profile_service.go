package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/justsurfingit/job-outreach/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProfileService struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewProfileService(db *gorm.DB, log *zap.Logger) *ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{DB: db, Log: log}
}

// Owner returns the single operator with their profile loaded.
func (s *ProfileService) Owner(ctx context.Context) (*models.User, error) {
	var u models.User
	err := s.DB.WithContext(ctx).Preload("Profile").Order("id").First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoProfile
	}
	if err != nil {
		return nil, err
	}
	if u.Profile == nil {
		return nil, ErrNoProfile
	}
	return &u, nil
}

// SeedResult reports what Seed created.
type SeedResult struct {
	User             *models.User
	ProfileCreated   bool
	TestJob          *models.JobPost
	CancelledActives int
}

// Seed prepares a safe end-to-end run: an owner with a profile and, when
// withTestJob is set, one posting whose recruiter address is the owner's own.
// Active campaigns are cancelled so the next generate starts fresh.
func (s *ProfileService) Seed(ctx context.Context, ownerEmail string, withTestJob bool) (*SeedResult, error) {
	if ownerEmail == "" {
		return nil, errors.New("seed: owner email is empty")
	}
	res := &SeedResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where(models.User{Email: ownerEmail}).FirstOrCreate(&user).Error; err != nil {
			return fmt.Errorf("seed user: %w", err)
		}

		profile := models.UserProfile{
			UserID:         user.ID,
			FullName:       "Test User",
			CurrentStatus:  "Senior Developer",
			Skills:         "Go, PostgreSQL, Kubernetes, AWS",
			Availability:   "Immediate",
			BaseResumeText: "Backend engineer with 5 years building scalable services.",
			Experience:     datatypes.JSON(`[{"company": "Tech Corp", "role": "Senior Dev", "years": "2020-Present"}]`),
			Projects:       datatypes.JSON(`[]`),
		}
		var existing int64
		if err := tx.Model(&models.UserProfile{}).Where("user_id = ?", user.ID).Count(&existing).Error; err != nil {
			return fmt.Errorf("seed profile: %w", err)
		}
		if err := tx.Where(models.UserProfile{UserID: user.ID}).Attrs(profile).FirstOrCreate(&profile).Error; err != nil {
			return fmt.Errorf("seed profile: %w", err)
		}
		res.ProfileCreated = existing == 0
		user.Profile = &profile
		res.User = &user

		if withTestJob {
			var company models.Company
			if err := tx.Where(models.Company{Name: "Test Company Inc"}).FirstOrCreate(&company).Error; err != nil {
				return fmt.Errorf("seed company: %w", err)
			}
			job := models.JobPost{
				ExternalID:           "TEST_001",
				CompanyID:            company.ID,
				Title:                "Test Software Engineer",
				Description:          "We are looking for a Go expert to test our email systems.",
				JobLink:              "https://example.com/job/1",
				Source:               "seed",
				RecruiterEmailSource: "Manual Test",
				VerificationStatus:   models.VerificationVerified,
			}
			err := tx.Where(models.JobPost{ExternalID: "TEST_001"}).Attrs(job).FirstOrCreate(&job).Error
			if err != nil {
				return fmt.Errorf("seed job: %w", err)
			}
			// Send to self.
			if err := tx.Model(&job).Update("recruiter_email", ownerEmail).Error; err != nil {
				return err
			}
			job.RecruiterEmail = ownerEmail
			job.Company = company
			res.TestJob = &job
		}

		cancelled := tx.Model(&models.Campaign{}).
			Where("status IN ?", models.ActiveCampaignStatuses).
			Update("status", models.CampaignCancelled)
		if cancelled.Error != nil {
			return cancelled.Error
		}
		res.CancelledActives = int(cancelled.RowsAffected)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("seed complete",
		zap.String("owner", ownerEmail),
		zap.Bool("profile_created", res.ProfileCreated),
		zap.Int("cancelled_campaigns", res.CancelledActives))
	return res, nil
}
