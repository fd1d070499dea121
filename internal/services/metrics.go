package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	draftsGeneratedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "drafts_generated_total",
			Help:      "Drafts created by the campaign generator.",
		},
		[]string{"result"}, // ok | fallback
	)

	approvalEmailsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "approval_emails_total",
			Help:      "Approval summaries sent to the owner.",
		},
		[]string{"kind", "status"}, // kind: daily | revision
	)

	commandsAppliedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "commands_total",
			Help:      "Reply commands seen by the applier.",
		},
		[]string{"action", "result"}, // result: applied | skipped
	)

	inboxPollsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "inbox_polls_total",
			Help:      "Inbox polls by outcome.",
		},
		[]string{"status"},
	)

	emailsSentCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Name:      "emails_sent_total",
			Help:      "Outreach emails delivered or failed.",
		},
		[]string{"status"}, // sent | failed | skipped
	)

	jobRunDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "outreach",
			Name:      "job_duration_seconds",
			Help:      "Duration of scheduled job runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		},
		[]string{"job"},
	)
)
