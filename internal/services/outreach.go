package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Outreach exposes the three pipeline stages as guarded jobs. The CLI runs
// them once; the orchestrator runs them on a schedule.
type Outreach struct {
	Profiles  *ProfileService
	Generator *CampaignGenerator
	Inbox     *InboxMonitor
	Sender    *SendScheduler
	Guard     *Guard
	JobLimit  int
}

// Generate creates today's campaign for the owner. A missing profile is a
// skipped run, not an error.
func (o *Outreach) Generate(ctx context.Context, log *zap.Logger) error {
	owner, err := o.Profiles.Owner(ctx)
	if errors.Is(err, ErrNoProfile) {
		log.Info("owner has no profile, skipping generation")
		return nil
	}
	if err != nil {
		return err
	}

	return o.Guard.Do(ctx, fmt.Sprintf("generate:%d", owner.ID), func(ctx context.Context) error {
		res, err := o.Generator.Generate(ctx, owner, o.JobLimit)
		if err != nil {
			return err
		}
		fields := []zap.Field{zap.String("outcome", string(res.Outcome)), zap.Int("drafts", res.Drafts)}
		if res.Campaign != nil {
			fields = append(fields, zap.Uint("campaign_id", res.Campaign.ID))
		}
		log.Info("generation finished", fields...)
		return nil
	})
}

// Monitor polls for approval replies, then regenerates drafts the owner asked to edit.
func (o *Outreach) Monitor(ctx context.Context, log *zap.Logger) error {
	return o.Guard.Do(ctx, "monitor", func(ctx context.Context) error {
		if _, err := o.Inbox.Poll(ctx); err != nil {
			return err
		}

		owner, err := o.Profiles.Owner(ctx)
		if errors.Is(err, ErrNoProfile) {
			return nil
		}
		if err != nil {
			return err
		}
		rev, err := o.Generator.Revise(ctx, owner)
		if err != nil {
			return fmt.Errorf("revise drafts: %w", err)
		}
		if rev.Revised > 0 || rev.Failed > 0 {
			log.Info("revision pass finished", zap.Int("revised", rev.Revised), zap.Int("failed", rev.Failed))
		}
		return nil
	})
}

func (o *Outreach) Send(ctx context.Context, log *zap.Logger) error {
	return o.Guard.Do(ctx, "send", func(ctx context.Context) error {
		res, err := o.Sender.Run(ctx)
		if err != nil {
			return err
		}
		log.Info("send run finished",
			zap.Int("sent", res.Sent), zap.Int("skipped", res.Skipped), zap.Int("failed", res.Failed),
			zap.Int("sent_today", res.SentToday), zap.Bool("quota_reached", res.QuotaReached))
		return nil
	})
}
