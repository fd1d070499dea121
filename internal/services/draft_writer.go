package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/justsurfingit/job-outreach/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const resumeTailorPrompt = `
You are a Safe Mode Resume Tailor.

INPUTS:
1. Base Resume (JSON format)
2. Job Description

STRICT RULES:
- You may REORDER items in "skills" to prioritize relevance.
- You may REWRITE the "summary" to focus on relevant keywords.
- You may SELECT relevant "projects" from the list (if too many).
- You MUST NOT change "experience" details (companies, dates, roles).
- You MUST NOT add false skills.

OUTPUT:
- Return the modified resume as a JSON object with the same keys.
`

const coldEmailPrompt = `
You write short, specific cold emails from a job seeker to a recruiter.
Keep it under 100 words. Plain text only, no subject line, no placeholders.
`

// EmailContent is a subject/body pair proposed for one draft.
type EmailContent struct {
	Subject string
	Body    string
}

// DraftWriter produces the per-job artifacts of a campaign. Every method
// returns a usable value even when the model is unavailable.
type DraftWriter struct {
	LLM TextCompleter
	Log *zap.Logger
}

func NewDraftWriter(llm TextCompleter, log *zap.Logger) *DraftWriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &DraftWriter{LLM: llm, Log: log}
}

type baseResume struct {
	Name       string          `json:"name"`
	Status     string          `json:"status"`
	Skills     string          `json:"skills"`
	Experience json.RawMessage `json:"experience,omitempty"`
	Projects   json.RawMessage `json:"projects,omitempty"`
}

// BaseResumeJSON is the profile as the tailor sees it, and the tailor's fallback.
func BaseResumeJSON(p *models.UserProfile) datatypes.JSON {
	b, _ := json.Marshal(baseResume{
		Name:       p.FullName,
		Status:     p.CurrentStatus,
		Skills:     p.Skills,
		Experience: rawOrNil(p.Experience),
		Projects:   rawOrNil(p.Projects),
	})
	return datatypes.JSON(b)
}

func rawOrNil(j datatypes.JSON) json.RawMessage {
	if len(j) == 0 || !json.Valid(j) {
		return nil
	}
	return json.RawMessage(j)
}

// TailorResume reorders the profile for the job. Falls back to the base profile.
func (w *DraftWriter) TailorResume(ctx context.Context, p *models.UserProfile, job *models.JobPost) datatypes.JSON {
	base := BaseResumeJSON(p)

	desc := truncateUTF8(job.Description, 3000)
	c := Complete(ctx, w.LLM, CompletionRequest{
		System:    resumeTailorPrompt,
		User:      fmt.Sprintf("JOB: %s at %s\nDESCRIPTION: %s\n\nBASE RESUME JSON:\n%s", job.Title, job.Company.Name, desc, base),
		JSON:      true,
		MaxTokens: 2000,
	})
	if !c.OK() {
		w.Log.Warn("resume tailoring failed, using base profile",
			zap.Uint("job_post_id", job.ID), zap.Error(c.Err))
	}
	return datatypes.JSON(c.Or(string(base)))
}

// FallbackEmail is stored when the model could not write a draft. The body
// tells the owner how to ask for a regeneration.
func FallbackEmail(job *models.JobPost, seq int) EmailContent {
	return EmailContent{
		Subject: "[DRAFT ERROR] Application for " + job.Title,
		Body: fmt.Sprintf("The draft for %s at %s could not be generated.\n"+
			"Reply with EDIT %d: <instructions> to have it written again.",
			job.Title, job.Company.Name, seq),
	}
}

// DraftEmail writes the cold email for job. seq is only used by the fallback text.
func (w *DraftWriter) DraftEmail(ctx context.Context, p *models.UserProfile, job *models.JobPost, seq int) EmailContent {
	c := Complete(ctx, w.LLM, CompletionRequest{
		System:    coldEmailPrompt,
		User:      emailBrief(p, job, ""),
		MaxTokens: 300,
	})
	if !c.OK() {
		w.Log.Warn("email drafting failed, storing fallback draft",
			zap.Uint("job_post_id", job.ID), zap.Error(c.Err))
		return FallbackEmail(job, seq)
	}
	return EmailContent{Subject: "Application for " + job.Title, Body: c.Text}
}

// ReviseEmail rewrites a draft following the owner's EDIT instructions.
// ok is false when the model failed; the caller keeps the previous version.
func (w *DraftWriter) ReviseEmail(ctx context.Context, p *models.UserProfile, d *models.Draft) (EmailContent, bool) {
	user := emailBrief(p, &d.JobPost, d.UserFeedback) +
		"\n\nPREVIOUS DRAFT:\n" + d.ProposedBody
	c := Complete(ctx, w.LLM, CompletionRequest{
		System:    coldEmailPrompt,
		User:      user,
		MaxTokens: 300,
	})
	if !c.OK() {
		w.Log.Warn("draft revision failed, keeping previous version",
			zap.Uint("draft_id", d.ID), zap.Error(c.Err))
		return EmailContent{}, false
	}

	subject := d.ProposedSubject
	if strings.HasPrefix(subject, "[DRAFT ERROR]") || subject == "" {
		subject = "Application for " + d.JobPost.Title
	}
	return EmailContent{Subject: subject, Body: c.Text}, true
}

func emailBrief(p *models.UserProfile, job *models.JobPost, instructions string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a cold email for %s at %s.\n", job.Title, job.Company.Name)
	fmt.Fprintf(&b, "Sender: %s (%s). Availability: %s.\n", p.FullName, p.CurrentStatus, p.Availability)
	if p.Skills != "" {
		fmt.Fprintf(&b, "Skills: %s\n", p.Skills)
	}
	if p.PortfolioLinks != "" {
		fmt.Fprintf(&b, "Links: %s\n", p.PortfolioLinks)
	}
	if instructions != "" {
		fmt.Fprintf(&b, "\nOWNER INSTRUCTIONS: %s\n", instructions)
	}
	return b.String()
}
