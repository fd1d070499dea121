package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/justsurfingit/job-outreach/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type SendResult struct {
	Sent    int
	Skipped int
	Failed  int
	// SentToday includes sends from earlier runs on the same day.
	SentToday    int
	QuotaReached bool
}

// SendScheduler delivers approved drafts under a daily cap, spacing sends
// by a minimum interval.
type SendScheduler struct {
	Store    *CampaignStore
	Mailer   Mailer
	From     string
	DailyCap int
	Limiter  *rate.Limiter
	Loc      *time.Location
	Now      func() time.Time
	Log      *zap.Logger
}

// NewSendScheduler builds a scheduler; interval 0 disables pacing.
func NewSendScheduler(store *CampaignStore, mailer Mailer, from string, dailyCap int, interval time.Duration, log *zap.Logger) *SendScheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SendScheduler{
		Store:    store,
		Mailer:   mailer,
		From:     from,
		DailyCap: dailyCap,
		Limiter:  NewPacingLimiter(interval),
		Loc:      time.Local,
		Now:      time.Now,
		Log:      log,
	}
}

// NewPacingLimiter allows one send immediately and one per interval after that.
func NewPacingLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// dayBounds returns the calendar day containing now in the scheduler's zone.
func (s *SendScheduler) dayBounds(now time.Time) (time.Time, time.Time) {
	local := now.In(s.Loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.Loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *SendScheduler) Run(ctx context.Context) (*SendResult, error) {
	from, to := s.dayBounds(s.Now())
	sentToday, err := s.Store.SentBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("count today's sends: %w", err)
	}
	res := &SendResult{SentToday: sentToday}
	if sentToday >= s.DailyCap {
		s.Log.Info("daily limit reached", zap.Int("limit", s.DailyCap), zap.Int("sent_today", sentToday))
		res.QuotaReached = true
		return res, nil
	}

	drafts, err := s.Store.ApprovedDrafts(ctx)
	if err != nil {
		return res, fmt.Errorf("load approved drafts: %w", err)
	}

	touched := map[uint]bool{}
	for i := range drafts {
		if res.SentToday >= s.DailyCap {
			res.QuotaReached = true
			break
		}
		d := &drafts[i]
		log := s.Log.With(zap.Uint("campaign_id", d.CampaignID), zap.Uint("draft_id", d.ID), zap.Int("sequence", d.Sequence))

		if d.JobPost.RecruiterEmail == "" {
			log.Warn("skipping draft, job has no recruiter email", zap.String("company", d.JobPost.Company.Name))
			res.Skipped++
			emailsSentCounter.WithLabelValues("skipped").Inc()
			continue
		}

		if err := s.Limiter.Wait(ctx); err != nil {
			s.closeCampaigns(touched)
			return res, fmt.Errorf("waiting to send: %w", err)
		}

		msgID, err := s.Mailer.Send(ctx, OutboundEmail{
			From:           s.From,
			To:             d.JobPost.RecruiterEmail,
			Subject:        d.ProposedSubject,
			Body:           d.ProposedBody,
			AttachmentPath: d.ResumePath,
		})
		if err != nil {
			log.Error("send failed", zap.String("to", d.JobPost.RecruiterEmail), zap.Error(err))
			res.Failed++
			emailsSentCounter.WithLabelValues("failed").Inc()
			if err := s.Store.RecordEvent(ctx, d.ID, models.EventSendFailed, err.Error()); err != nil {
				log.Error("failed to record send failure", zap.Error(err))
			}
			continue
		}

		// The email is out: it counts against the cap whatever the bookkeeping says.
		res.Sent++
		res.SentToday++
		touched[d.CampaignID] = true
		emailsSentCounter.WithLabelValues("sent").Inc()

		ok, err := s.Store.MarkSent(ctx, d, s.Now(), msgID)
		switch {
		case err != nil:
			log.Error("email sent but not recorded", zap.String("message_id", msgID), zap.Error(err))
		case !ok:
			log.Warn("draft changed while sending", zap.String("message_id", msgID))
		default:
			log.Info("outreach email sent", zap.String("to", d.JobPost.RecruiterEmail), zap.String("message_id", msgID))
		}
	}

	s.closeCampaigns(touched)
	return res, nil
}

// closeCampaigns applies the closing rule to campaigns that had sends. It
// runs on a fresh context so a cancelled run still settles its campaigns.
func (s *SendScheduler) closeCampaigns(ids map[uint]bool) {
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sorted := make([]uint, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		status, err := s.Store.RefreshCampaign(ctx, id)
		if err != nil {
			s.Log.Error("failed to refresh campaign", zap.Uint("campaign_id", id), zap.Error(err))
			continue
		}
		s.Log.Debug("campaign refreshed", zap.Uint("campaign_id", id), zap.String("status", string(status)))
	}
}
