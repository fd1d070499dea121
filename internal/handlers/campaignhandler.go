package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-outreach/internal/dtos"
	"github.com/justsurfingit/job-outreach/internal/services"
)

type CampaignHandler struct {
	Profiles *services.ProfileService
	Store    *services.CampaignStore
}

func NewCampaignHandler(p *services.ProfileService, s *services.CampaignStore) *CampaignHandler {
	return &CampaignHandler{Profiles: p, Store: s}
}

// Active is GET /campaigns/active: the owner's open campaign and its drafts.
func (h *CampaignHandler) Active(c *gin.Context) {
	ctx := c.Request.Context()
	owner, err := h.Profiles.Owner(ctx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no owner profile"})
		return
	}
	campaign, err := h.Store.ActiveCampaign(ctx, owner.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load campaign"})
		return
	}
	if campaign == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active campaign"})
		return
	}
	drafts, err := h.Store.Drafts(ctx, campaign.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load drafts"})
		return
	}

	resp := dtos.CampaignSummary{
		ID:     campaign.ID,
		Status: string(campaign.Status),
		Date:   campaign.Date.Format("2006-01-02"),
		Drafts: make([]dtos.DraftSummary, 0, len(drafts)),
	}
	for _, d := range drafts {
		resp.Drafts = append(resp.Drafts, dtos.DraftSummary{
			Sequence:       d.Sequence,
			DraftID:        d.ID,
			Company:        d.JobPost.Company.Name,
			Role:           d.JobPost.Title,
			RecruiterEmail: d.JobPost.RecruiterEmail,
			Subject:        d.ProposedSubject,
			Status:         string(d.Status),
			Feedback:       d.UserFeedback,
		})
	}
	c.JSON(http.StatusOK, resp)
}
