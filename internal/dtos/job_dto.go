package dtos

type JobExtractionRequest struct {
	RawHTML string `json:"raw_html" binding:"required"`
	URL     string `json:"url"`
}

type JobCreationRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Title       string `json:"role_title" binding:"required"`
	JobLink     string `json:"job_link" binding:"required"`
	Description string `json:"description" binding:"required"`

	// Optional Fields
	ExternalID           string  `json:"external_id"`
	Location             string  `json:"location"`
	Source               string  `json:"source"`
	RecruiterEmail       string  `json:"recruiter_email" binding:"omitempty,email"`
	RecruiterEmailSource string  `json:"recruiter_email_source"`
	EmailConfidence      float64 `json:"email_confidence" binding:"gte=0,lte=1"`
	VerificationStatus   string  `json:"verification_status" binding:"omitempty,oneof=unverified pending verified human_required"`
}

type DraftSummary struct {
	Sequence       int    `json:"sequence"`
	DraftID        uint   `json:"draft_id"`
	Company        string `json:"company"`
	Role           string `json:"role"`
	RecruiterEmail string `json:"recruiter_email"`
	Subject        string `json:"subject"`
	Status         string `json:"status"`
	Feedback       string `json:"feedback,omitempty"`
}

type CampaignSummary struct {
	ID     uint           `json:"id"`
	Status string         `json:"status"`
	Date   string         `json:"date"`
	Drafts []DraftSummary `json:"drafts"`
}
