package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type JobFunc func(ctx context.Context, log *zap.Logger) error

type scheduledJob struct {
	name     string
	schedule cron.Schedule
	run      JobFunc
	next     time.Time
}

// Orchestrator runs registered jobs from a single goroutine. On each tick
// every due job runs, in registration order, one after another.
type Orchestrator struct {
	Tick time.Duration
	Now  func() time.Time
	Log  *zap.Logger

	jobs []*scheduledJob
}

func NewOrchestrator(tick time.Duration, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if tick <= 0 {
		tick = time.Minute
	}
	return &Orchestrator{Tick: tick, Now: time.Now, Log: log}
}

// Add registers a job under a standard cron spec ("0 16 * * *", "@every 5m").
// runAtStart makes the job due on the first tick.
func (o *Orchestrator) Add(name, spec string, runAtStart bool, fn JobFunc) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("job %s: parse schedule %q: %w", name, spec, err)
	}
	j := &scheduledJob{name: name, schedule: sched, run: fn}
	if !runAtStart {
		j.next = sched.Next(o.Now())
	}
	o.jobs = append(o.jobs, j)
	return nil
}

// NextRun reports when the named job is due next.
func (o *Orchestrator) NextRun(name string) (time.Time, bool) {
	for _, j := range o.jobs {
		if j.name == name {
			return j.next, true
		}
	}
	return time.Time{}, false
}

// RunPending runs every job due at now and returns the names that ran.
// Job errors are logged and never stop the remaining jobs.
func (o *Orchestrator) RunPending(ctx context.Context, now time.Time) []string {
	var ran []string
	for _, j := range o.jobs {
		if ctx.Err() != nil {
			break
		}
		if now.Before(j.next) {
			continue
		}
		o.runJob(ctx, j)
		ran = append(ran, j.name)
		j.next = j.schedule.Next(o.Now())
	}
	return ran
}

func (o *Orchestrator) runJob(ctx context.Context, j *scheduledJob) {
	log := o.Log.With(zap.String("job", j.name), zap.String("run_id", uuid.NewString()))
	start := time.Now()
	log.Info("job started")

	err := j.run(ctx, log)
	jobRunDurationHist.WithLabelValues(j.name).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrJobLocked):
		log.Info("job skipped, another run holds the lock", zap.Error(err))
	case err != nil:
		log.Error("job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
	default:
		log.Info("job finished", zap.Duration("took", time.Since(start)))
	}
}

// Run loops until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.Log.Info("scheduler started", zap.Int("jobs", len(o.jobs)), zap.Duration("tick", o.Tick))
	for _, j := range o.jobs {
		o.Log.Info("job scheduled", zap.String("job", j.name), zap.Time("next", j.next))
	}

	o.RunPending(ctx, o.Now())

	ticker := time.NewTicker(o.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.Log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			o.RunPending(ctx, o.Now())
		}
	}
}
