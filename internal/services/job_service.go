package services

import (
	"context"
	"strings"

	"github.com/justsurfingit/job-outreach/internal/dtos"
	"github.com/justsurfingit/job-outreach/internal/models"
	"gorm.io/gorm"
)

type JobService struct {
	DB *gorm.DB
}

func NewJobService(db *gorm.DB) *JobService {
	return &JobService{
		DB: db,
	}
}

func (s *JobService) CreateJob(ctx context.Context, req *dtos.JobCreationRequest) (*models.JobPost, error) {
	var company models.Company
	// creates the company if it doesn't exist yet
	err := s.DB.WithContext(ctx).Where(models.Company{Name: req.CompanyName}).
		FirstOrCreate(&company).Error
	if err != nil {
		return nil, err
	}

	verification := models.VerificationStatus(req.VerificationStatus)
	if verification == "" {
		verification = models.VerificationUnverified
	}
	source := req.Source
	if source == "" {
		source = "manual"
	}

	job := &models.JobPost{
		ExternalID:           req.ExternalID,
		CompanyID:            company.ID,
		Company:              company,
		Title:                req.Title,
		Description:          req.Description,
		Location:             req.Location,
		JobLink:              req.JobLink,
		Source:               source,
		RecruiterEmail:       strings.TrimSpace(req.RecruiterEmail),
		RecruiterEmailSource: req.RecruiterEmailSource,
		EmailConfidence:      req.EmailConfidence,
		VerificationStatus:   verification,
	}
	if err := s.DB.WithContext(ctx).Omit("Company").Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// OutreachCandidates returns up to limit postings with a recruiter email that
// no campaign has drafted yet, oldest first. Confidence is not filtered.
func (s *JobService) OutreachCandidates(ctx context.Context, limit int) ([]models.JobPost, error) {
	var jobs []models.JobPost
	drafted := s.DB.Model(&models.Draft{}).Select("job_post_id")
	err := s.DB.WithContext(ctx).
		Preload("Company").
		Where("recruiter_email IS NOT NULL AND recruiter_email <> ''").
		Where("id NOT IN (?)", drafted).
		Order("id").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
