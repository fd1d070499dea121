package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/justsurfingit/job-outreach/internal/models"
	"go.uber.org/zap"
)

type GenerationOutcome string

const (
	OutcomeCreated        GenerationOutcome = "created"
	OutcomeSkipped        GenerationOutcome = "skipped"
	OutcomeNothingToDo    GenerationOutcome = "nothing_to_do"
	OutcomeApprovalResent GenerationOutcome = "approval_resent"
)

type GenerationResult struct {
	Outcome   GenerationOutcome
	Campaign  *models.Campaign
	Drafts    int
	Fallbacks int
}

const defaultJobLimit = 5

// CampaignGenerator builds a daily batch of drafts and mails the owner one
// summary to approve them.
type CampaignGenerator struct {
	Store  *CampaignStore
	Jobs   *JobService
	Writer *DraftWriter
	Mailer Mailer

	// From is the sender address of approval summaries.
	From            string
	ApprovalRetries int
	RetryInitial    time.Duration
	Loc             *time.Location
	Now             func() time.Time
	Log             *zap.Logger
}

func NewCampaignGenerator(store *CampaignStore, jobs *JobService, writer *DraftWriter, mailer Mailer, from string, log *zap.Logger) *CampaignGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &CampaignGenerator{
		Store:           store,
		Jobs:            jobs,
		Writer:          writer,
		Mailer:          mailer,
		From:            from,
		ApprovalRetries: 3,
		RetryInitial:    2 * time.Second,
		Loc:             time.Local,
		Now:             time.Now,
		Log:             log,
	}
}

// Generate runs one generation pass for owner. An active campaign turns the
// pass into a no-op (waiting_approval) or a summary re-send (gathering).
func (g *CampaignGenerator) Generate(ctx context.Context, owner *models.User, limit int) (*GenerationResult, error) {
	if owner.Profile == nil {
		return nil, ErrNoProfile
	}
	if limit <= 0 {
		limit = defaultJobLimit
	}

	active, err := g.Store.ActiveCampaign(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("check active campaign: %w", err)
	}
	if active != nil {
		switch active.Status {
		case models.CampaignWaitingApproval, models.CampaignApproved:
			g.Log.Info("active campaign still open, skipping generation",
				zap.Uint("campaign_id", active.ID), zap.String("status", string(active.Status)))
			return &GenerationResult{Outcome: OutcomeSkipped, Campaign: active}, nil
		case models.CampaignGathering:
			res, err := g.resendApproval(ctx, owner, active)
			if res != nil || err != nil {
				return res, err
			}
			// The stuck campaign had no drafts and was cancelled; start over.
		}
	}

	jobs, err := g.Jobs.OutreachCandidates(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("select candidates: %w", err)
	}
	if len(jobs) == 0 {
		g.Log.Info("no job posts with a recruiter email to reach out to")
		return &GenerationResult{Outcome: OutcomeNothingToDo}, nil
	}

	campaign, err := g.Store.CreateCampaign(ctx, owner.ID, g.today())
	if err != nil {
		return nil, err
	}
	log := g.Log.With(zap.Uint("campaign_id", campaign.ID))

	res := &GenerationResult{Outcome: OutcomeCreated, Campaign: campaign}
	drafts := make([]models.Draft, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		seq := len(drafts) + 1

		content := g.Writer.DraftEmail(ctx, owner.Profile, job, seq)
		draft := models.Draft{
			CampaignID:      campaign.ID,
			Sequence:        seq,
			JobPostID:       job.ID,
			ProposedSubject: content.Subject,
			ProposedBody:    content.Body,
			TailoredResume:  g.Writer.TailorResume(ctx, owner.Profile, job),
			ResumePath:      owner.Profile.BaseResumePath,
			Status:          models.DraftPending,
		}
		if err := g.Store.AddDraft(ctx, &draft); err != nil {
			log.Error("failed to store draft, skipping job",
				zap.Uint("job_post_id", job.ID), zap.Error(err))
			continue
		}
		draft.JobPost = *job
		drafts = append(drafts, draft)

		if content == FallbackEmail(job, seq) {
			res.Fallbacks++
			draftsGeneratedCounter.WithLabelValues("fallback").Inc()
		} else {
			draftsGeneratedCounter.WithLabelValues("ok").Inc()
		}
	}
	res.Drafts = len(drafts)

	if len(drafts) == 0 {
		if err := g.Store.SetCampaignStatus(ctx, campaign, models.CampaignCancelled); err != nil {
			log.Error("failed to cancel empty campaign", zap.Error(err))
		}
		return nil, ErrNoDrafts
	}

	if err := g.sendApproval(ctx, owner, campaign, ComposeApprovalEmail(drafts), "daily"); err != nil {
		return res, err
	}
	log.Info("approval email sent",
		zap.Int("drafts", len(drafts)), zap.Int("fallbacks", res.Fallbacks), zap.String("to", owner.Email))
	return res, nil
}

// resendApproval recovers a campaign whose summary never went out. It returns
// (nil, nil) when the campaign had nothing to send and was cancelled.
func (g *CampaignGenerator) resendApproval(ctx context.Context, owner *models.User, c *models.Campaign) (*GenerationResult, error) {
	log := g.Log.With(zap.Uint("campaign_id", c.ID))
	drafts, err := g.Store.Drafts(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	if len(drafts) == 0 {
		log.Warn("gathering campaign has no drafts, cancelling it")
		if err := g.Store.SetCampaignStatus(ctx, c, models.CampaignCancelled); err != nil {
			return nil, err
		}
		return nil, nil
	}

	log.Info("re-sending approval email for stuck campaign", zap.Int("drafts", len(drafts)))
	res := &GenerationResult{Outcome: OutcomeApprovalResent, Campaign: c, Drafts: len(drafts)}
	if err := g.sendApproval(ctx, owner, c, ComposeApprovalEmail(drafts), "daily"); err != nil {
		return res, err
	}
	return res, nil
}

// sendApproval mails the summary with retries. A gathering campaign moves to
// waiting_approval once the send succeeds.
func (g *CampaignGenerator) sendApproval(ctx context.Context, owner *models.User, c *models.Campaign, email ApprovalEmail, kind string) error {
	msg := OutboundEmail{From: g.From, To: owner.Email, Subject: email.Subject, Body: email.Body}

	b := backoff.NewExponentialBackOff()
	if g.RetryInitial > 0 {
		b.InitialInterval = g.RetryInitial
	}
	tries := g.ApprovalRetries
	if tries < 1 {
		tries = 1
	}
	attempt := 0
	id, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		id, err := g.Mailer.Send(ctx, msg)
		if err != nil {
			g.Log.Warn("approval email attempt failed",
				zap.Uint("campaign_id", c.ID), zap.Int("attempt", attempt), zap.Error(err))
		}
		return id, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(tries)))
	if err != nil {
		approvalEmailsCounter.WithLabelValues(kind, "failed").Inc()
		return fmt.Errorf("send approval email for campaign %d: %w", c.ID, err)
	}
	approvalEmailsCounter.WithLabelValues(kind, "sent").Inc()

	if c.Status != models.CampaignGathering {
		return nil
	}
	if err := g.Store.MarkAwaitingApproval(ctx, c, id); err != nil {
		return fmt.Errorf("mark campaign %d waiting for approval: %w", c.ID, err)
	}
	return nil
}

type RevisionResult struct {
	Campaign *models.Campaign
	Revised  int
	Failed   int
}

// Revise regenerates every pending draft that carries EDIT instructions and
// mails the owner the new versions under their original numbers.
func (g *CampaignGenerator) Revise(ctx context.Context, owner *models.User) (*RevisionResult, error) {
	if owner.Profile == nil {
		return nil, ErrNoProfile
	}
	c, err := g.Store.AwaitingApproval(ctx)
	if errors.Is(err, ErrNoAwaitingCampaign) {
		return &RevisionResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	log := g.Log.With(zap.Uint("campaign_id", c.ID))

	pending, err := g.Store.DraftsAwaitingRevision(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load drafts to revise: %w", err)
	}
	res := &RevisionResult{Campaign: c}
	var revised []models.Draft
	for i := range pending {
		d := &pending[i]
		content, ok := g.Writer.ReviseEmail(ctx, owner.Profile, d)
		if !ok {
			res.Failed++
			continue
		}
		if err := g.Store.ReviseDraft(ctx, d, content); err != nil {
			log.Error("failed to store revised draft", zap.Uint("draft_id", d.ID), zap.Error(err))
			res.Failed++
			continue
		}
		revised = append(revised, *d)
	}
	res.Revised = len(revised)
	if len(revised) == 0 {
		return res, nil
	}

	if err := g.sendApproval(ctx, owner, c, ComposeRevisionEmail(revised), "revision"); err != nil {
		return res, err
	}
	log.Info("revision email sent", zap.Int("revised", len(revised)))
	return res, nil
}

func (g *CampaignGenerator) today() time.Time {
	now := g.Now().In(g.Loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.Loc).UTC()
}
