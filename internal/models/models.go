package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Owner address: approval summaries are sent here.
	Email string `gorm:"uniqueIndex;not null" json:"email"`

	Profile *UserProfile `json:"profile,omitempty"`
}

// UserProfile is the source of truth the resume tailor works from.
type UserProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"uniqueIndex;not null" json:"user_id"`

	FullName       string `gorm:"not null" json:"full_name"`
	CurrentStatus  string `json:"current_status"`
	Skills         string `gorm:"type:text" json:"skills"`
	PortfolioLinks string `gorm:"type:text" json:"portfolio_links"`
	Availability   string `gorm:"default:'Immediate'" json:"availability"`

	BaseResumePath string `json:"base_resume_path"`
	BaseResumeText string `gorm:"type:text" json:"base_resume_text"`

	// [{"name": "Project A", "tech": "Go", "desc": "..."}]
	Projects datatypes.JSON `json:"projects"`
	// [{"company": "Corp A", "role": "Dev", "years": "2020-2022"}]
	Experience datatypes.JSON `json:"experience"`
}

type Company struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name string `gorm:"uniqueIndex;not null" json:"company_name"`

	// 'omitempty' prevents infinite loops when fetching a Job -> Company -> Jobs -> ...
	Jobs []JobPost `json:"jobs,omitempty"`
}

type VerificationStatus string

const (
	VerificationUnverified    VerificationStatus = "unverified"
	VerificationPending       VerificationStatus = "pending"
	VerificationVerified      VerificationStatus = "verified"
	VerificationHumanRequired VerificationStatus = "human_required"
)

type JobPost struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ExternalID string `gorm:"index" json:"external_id,omitempty"`

	// Association: GORM needs Preload() to fill this
	CompanyID uint    `json:"company_id"`
	Company   Company `json:"company"`

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Location    string `json:"location"`
	JobLink     string `json:"job_link"`
	Source      string `gorm:"default:'manual'" json:"source"`

	RecruiterEmail       string             `gorm:"index" json:"recruiter_email"`
	RecruiterEmailSource string             `json:"recruiter_email_source"`
	EmailConfidence      float64            `gorm:"default:0" json:"email_confidence"`
	VerificationStatus   VerificationStatus `gorm:"default:'unverified'" json:"verification_status"`
}

// Campaign is one daily batch of outreach drafts.
type Campaign struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint           `gorm:"index;not null" json:"user_id"`
	Date   time.Time      `json:"date"`
	Status CampaignStatus `gorm:"type:varchar(20);index;not null;default:'gathering'" json:"status"`

	// Message-ID of the approval summary sent to the owner.
	ApprovalEmailID *string `json:"approval_email_id,omitempty"`

	Drafts []Draft `json:"drafts,omitempty"`
}

// Draft is one proposed outreach email for a job within a campaign.
type Draft struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CampaignID uint `gorm:"not null;uniqueIndex:idx_draft_campaign_sequence" json:"campaign_id"`
	// 1-based position in the approval summary. Fixed at creation.
	Sequence int `gorm:"not null;uniqueIndex:idx_draft_campaign_sequence" json:"sequence"`

	JobPostID uint    `gorm:"index;not null" json:"job_post_id"`
	JobPost   JobPost `json:"job_post"`

	ProposedSubject string `gorm:"not null" json:"proposed_subject"`
	ProposedBody    string `gorm:"type:text;not null" json:"proposed_body"`
	AltSubject      string `json:"alt_subject,omitempty"`
	AltBody         string `gorm:"type:text" json:"alt_body,omitempty"`

	TailoredResume datatypes.JSON `json:"tailored_resume,omitempty"`
	ResumePath     string         `json:"resume_path,omitempty"`

	Status       DraftStatus `gorm:"type:varchar(20);index;not null;default:'pending'" json:"status"`
	UserFeedback string      `gorm:"type:text" json:"user_feedback,omitempty"`
	SentAt       *time.Time  `gorm:"index" json:"sent_at,omitempty"`
}

type DraftEventType string

const (
	EventGenerated     DraftEventType = "GENERATED"
	EventApproved      DraftEventType = "APPROVED"
	EventRejected      DraftEventType = "REJECTED"
	EventEditRequested DraftEventType = "EDIT_REQUESTED"
	EventRevised       DraftEventType = "REVISED"
	EventSent          DraftEventType = "SENT"
	EventSendFailed    DraftEventType = "SEND_FAILED"
)

type DraftEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	DraftID   uint           `gorm:"index" json:"draft_id"`
	EventType DraftEventType `json:"event_type"`
	Details   string         `gorm:"type:text" json:"details"`
}

// ProcessedEmail records approval replies that were already applied.
type ProcessedEmail struct {
	ID         string `gorm:"primaryKey"`
	CampaignID uint
	CreatedAt  time.Time
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &UserProfile{}, &Company{}, &JobPost{},
		&Campaign{}, &Draft{}, &DraftEvent{}, &ProcessedEmail{},
	}
}
