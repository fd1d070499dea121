package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/justsurfingit/job-outreach/internal/auth"
	"github.com/justsurfingit/job-outreach/internal/config"
	"github.com/justsurfingit/job-outreach/internal/database"
	"github.com/justsurfingit/job-outreach/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// app holds the wired services for one CLI invocation.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *gorm.DB
	rdb *redis.Client

	llm      *services.LLMService
	jobs     *services.JobService
	profiles *services.ProfileService
	store    *services.CampaignStore
	outreach *services.Outreach
}

// noLLM stands in when the model is not configured; every call falls back.
type noLLM struct{ err error }

func (n noLLM) Complete(context.Context, services.CompletionRequest) (string, error) {
	return "", n.err
}

var connectDB = database.Connect

// newApp connects storage and external services. requireLLM makes a missing
// or broken model configuration fatal. Anything opened before a failure is closed.
func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, requireLLM bool) (_ *app, err error) {
	db, err := connectDB(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	var completer services.TextCompleter
	llm, err := services.NewLLMService(ctx, cfg.LLM, log)
	switch {
	case err == nil:
		a.llm = llm
		completer = llm
	case requireLLM:
		return nil, err
	default:
		log.Warn("LLM unavailable, drafting and extraction disabled", zap.Error(err))
		completer = noLLM{err: err}
	}

	var gmailSrv *gmail.Service
	if cfg.Mail.Transport == "gmail" || cfg.Mail.Mailbox == "gmail" {
		httpClient, err := auth.GmailClient(ctx, cfg.Mail.CredentialFile, cfg.Mail.TokenFile, cfg.Mail.Timeout)
		if err != nil {
			return nil, fmt.Errorf("gmail auth: %w", err)
		}
		gmailSrv, err = gmail.NewService(ctx, option.WithHTTPClient(httpClient))
		if err != nil {
			return nil, fmt.Errorf("gmail service: %w", err)
		}
		log.Info("gmail service connected")
	}

	var mailer services.Mailer = services.NewSMTPMailer(cfg.Mail, log)
	if cfg.Mail.Transport == "gmail" {
		gm := services.NewGmailMailer(gmailSrv, log)
		gm.Timeout = cfg.Mail.Timeout
		mailer = gm
	}
	var connector services.MailboxConnector = services.NewIMAPConnector(cfg.Mail, log)
	if cfg.Mail.Mailbox == "gmail" {
		gb := services.NewGmailMailbox(gmailSrv, log)
		gb.Timeout = cfg.Mail.Timeout
		connector = gb
	}

	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	loc := cfg.Location()
	a.jobs = services.NewJobService(db)
	a.profiles = services.NewProfileService(db, log)
	a.store = services.NewCampaignStore(db)

	owners := []string{cfg.Mail.Owner}
	if owner, err := a.profiles.Owner(ctx); err == nil {
		owners = append(owners, owner.Email)
	} else if !errors.Is(err, services.ErrNoProfile) {
		return nil, err
	}

	generator := services.NewCampaignGenerator(a.store, a.jobs, services.NewDraftWriter(completer, log), mailer, cfg.Mail.Owner, log)
	generator.ApprovalRetries = cfg.Outreach.ApprovalRetries
	generator.RetryInitial = cfg.Outreach.ApprovalRetryInitial
	generator.Loc = loc

	sender := services.NewSendScheduler(a.store, mailer, cfg.Mail.Owner, cfg.Outreach.DailyCap, cfg.Outreach.SendInterval, log)
	sender.Loc = loc

	matcher := services.NewReplyMatcher(cfg.Mail.ApprovalMarker, owners...)
	applier := services.NewCommandApplier(a.store, log)

	a.outreach = &services.Outreach{
		Profiles:  a.profiles,
		Generator: generator,
		Inbox:     services.NewInboxMonitor(connector, a.store, applier, matcher, log),
		Sender:    sender,
		Guard:     services.NewGuard(a.rdb, cfg.Redis.LockTTL, log),
		JobLimit:  cfg.Outreach.JobLimit,
	}
	return a, nil
}

func (a *app) Close() {
	a.release()
	_ = a.log.Sync()
}

// release closes the Redis client and the database pool.
func (a *app) release() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
