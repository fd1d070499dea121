package services

import (
	"context"
	"fmt"

	"github.com/justsurfingit/job-outreach/internal/models"
	"go.uber.org/zap"
)

type ApplyResult struct {
	Applied     int
	Skipped     int
	Diagnostics []string
	// Status is the campaign status after the closing rule ran.
	Status models.CampaignStatus
}

func (r *ApplyResult) skip(format string, args ...any) {
	r.Skipped++
	r.Diagnostics = append(r.Diagnostics, fmt.Sprintf(format, args...))
}

// CommandApplier turns parsed reply commands into draft mutations. Problems
// with single commands become diagnostics; the batch always runs to the end.
type CommandApplier struct {
	Store *CampaignStore
	Log   *zap.Logger
}

func NewCommandApplier(store *CampaignStore, log *zap.Logger) *CommandApplier {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommandApplier{Store: store, Log: log}
}

func (a *CommandApplier) Apply(ctx context.Context, c *models.Campaign, cmds []Command) *ApplyResult {
	log := a.Log.With(zap.Uint("campaign_id", c.ID))
	res := &ApplyResult{Status: c.Status}

	for _, cmd := range cmds {
		// Reloaded per command so each one sees the previous one's effect.
		drafts, err := a.Store.Drafts(ctx, c.ID)
		if err != nil {
			log.Error("failed to load drafts", zap.Stringer("command", cmd), zap.Error(err))
			res.skip("%s: drafts unavailable", cmd)
			commandsAppliedCounter.WithLabelValues(string(cmd.Action), "skipped").Inc()
			continue
		}
		if cmd.Index < 1 || cmd.Index > len(drafts) {
			err := &IndexError{Index: cmd.Index, Count: len(drafts)}
			log.Warn("command index out of range", zap.Stringer("command", cmd), zap.Error(err))
			res.skip("%s: %v", cmd, err)
			commandsAppliedCounter.WithLabelValues(string(cmd.Action), "skipped").Inc()
			continue
		}

		d := &drafts[cmd.Index-1]
		changed, err := a.applyOne(ctx, d, cmd)
		dlog := log.With(zap.Uint("draft_id", d.ID), zap.Int("sequence", d.Sequence), zap.Stringer("command", cmd))
		switch {
		case err != nil:
			dlog.Warn("command not applied", zap.Error(err))
			res.skip("%s: %v", cmd, err)
			commandsAppliedCounter.WithLabelValues(string(cmd.Action), "skipped").Inc()
		case !changed:
			dlog.Info("command is a no-op", zap.String("status", string(d.Status)))
			res.skip("%s: draft already %s", cmd, d.Status)
			commandsAppliedCounter.WithLabelValues(string(cmd.Action), "skipped").Inc()
		default:
			dlog.Info("command applied", zap.String("status", string(d.Status)))
			res.Applied++
			commandsAppliedCounter.WithLabelValues(string(cmd.Action), "applied").Inc()
		}
	}

	status, err := a.Store.RefreshCampaign(ctx, c.ID)
	if err != nil {
		log.Error("failed to refresh campaign status", zap.Error(err))
	}
	if status != "" {
		if status != c.Status {
			log.Info("campaign status changed", zap.String("from", string(c.Status)), zap.String("to", string(status)))
		}
		c.Status = status
		res.Status = status
	}
	return res
}

// applyOne reports whether the draft changed.
func (a *CommandApplier) applyOne(ctx context.Context, d *models.Draft, cmd Command) (bool, error) {
	if d.Status == models.DraftSent {
		return false, nil
	}
	switch cmd.Action {
	case ActionApprove:
		if d.Status == models.DraftApproved {
			return false, nil
		}
		return true, a.Store.UpdateDraft(ctx, d, models.DraftApproved, nil, models.EventApproved, "")
	case ActionReject:
		if d.Status == models.DraftRejected {
			return false, nil
		}
		return true, a.Store.UpdateDraft(ctx, d, models.DraftRejected, nil, models.EventRejected, "")
	case ActionEdit:
		instruction := cmd.Instruction
		return true, a.Store.UpdateDraft(ctx, d, models.DraftPending, &instruction, models.EventEditRequested, instruction)
	}
	return false, fmt.Errorf("unknown action %q", cmd.Action)
}
