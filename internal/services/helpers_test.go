package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/justsurfingit/job-outreach/internal/database"
	"github.com/justsurfingit/job-outreach/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func seedOwner(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	u := models.User{Email: "owner@example.com"}
	require.NoError(t, db.Create(&u).Error)
	p := models.UserProfile{
		UserID:        u.ID,
		FullName:      "Ada Owner",
		CurrentStatus: "Backend Engineer",
		Skills:        "Go, SQL",
		Availability:  "Immediate",
		Experience:    datatypes.JSON(`[{"company":"Corp","role":"Dev","years":"2020-2024"}]`),
	}
	require.NoError(t, db.Create(&p).Error)
	u.Profile = &p
	return &u
}

func seedJob(t *testing.T, db *gorm.DB, company, title, recruiter string) *models.JobPost {
	t.Helper()
	var c models.Company
	require.NoError(t, db.Where(models.Company{Name: company}).FirstOrCreate(&c).Error)
	j := models.JobPost{
		CompanyID:          c.ID,
		Title:              title,
		Description:        title + " at " + company,
		JobLink:            "https://jobs.example.com/" + title,
		RecruiterEmail:     recruiter,
		VerificationStatus: models.VerificationVerified,
	}
	require.NoError(t, db.Omit("Company").Create(&j).Error)
	j.Company = c
	return &j
}

// seedCampaign stores a campaign with one draft per status, sequences 1..n.
func seedCampaign(t *testing.T, db *gorm.DB, userID uint, status models.CampaignStatus, drafts ...models.DraftStatus) (*models.Campaign, []models.Draft) {
	t.Helper()
	c := models.Campaign{UserID: userID, Date: time.Now().UTC(), Status: status}
	require.NoError(t, db.Create(&c).Error)
	out := make([]models.Draft, 0, len(drafts))
	for i, st := range drafts {
		job := seedJob(t, db, fmt.Sprintf("Co%d-%d", c.ID, i+1), fmt.Sprintf("Role%d", i+1), fmt.Sprintf("hr%d@co%d.com", i+1, c.ID))
		d := models.Draft{
			CampaignID:      c.ID,
			Sequence:        i + 1,
			JobPostID:       job.ID,
			ProposedSubject: "Application for " + job.Title,
			ProposedBody:    "Hello from draft " + fmt.Sprint(i+1),
			Status:          st,
		}
		if st == models.DraftSent {
			at := time.Now().UTC().Add(-48 * time.Hour)
			d.SentAt = &at
		}
		require.NoError(t, db.Omit("JobPost").Create(&d).Error)
		d.JobPost = *job
		out = append(out, d)
	}
	return &c, out
}

type fakeCompleter struct {
	mu    sync.Mutex
	fn    func(req CompletionRequest) (string, error)
	calls []CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.fn == nil {
		return "", errors.New("no model")
	}
	return f.fn(req)
}

// echoCompleter answers JSON requests with {} and text requests with a fixed body.
func echoCompleter(body string) *fakeCompleter {
	return &fakeCompleter{fn: func(req CompletionRequest) (string, error) {
		if req.JSON {
			return `{"skills":"Go"}`, nil
		}
		return body, nil
	}}
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []OutboundEmail
	// fail returns an error for a message, or nil to deliver it.
	fail func(e OutboundEmail) error
}

func (f *fakeMailer) Send(_ context.Context, e OutboundEmail) (string, error) {
	if f.fail != nil {
		if err := f.fail(e); err != nil {
			return "", err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
	return fmt.Sprintf("<msg-%d@example.com>", len(f.sent)), nil
}

func (f *fakeMailer) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var to []string
	for _, e := range f.sent {
		to = append(to, e.To)
	}
	return to
}

type fakeMailbox struct {
	mu       sync.Mutex
	messages map[string]*MailMessage
	seen     map[string]bool
	fetched  []string
	closed   bool
	seenErr  error
}

func newFakeMailbox(msgs ...*MailMessage) *fakeMailbox {
	mb := &fakeMailbox{messages: map[string]*MailMessage{}, seen: map[string]bool{}}
	for _, m := range msgs {
		mb.messages[m.ID] = m
	}
	return mb
}

func (f *fakeMailbox) ListUnseen(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.messages {
		if !f.seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeMailbox) Fetch(_ context.Context, id string) (*MailMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, id)
	m, ok := f.messages[id]
	if !ok {
		return nil, fmt.Errorf("no message %s", id)
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMailbox) MarkSeen(_ context.Context, id string) error {
	if f.seenErr != nil {
		return f.seenErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[id] = true
	return nil
}

func (f *fakeMailbox) Close() error {
	f.closed = true
	return nil
}

func (f *fakeMailbox) connector() MailboxConnector {
	return MailboxConnectorFunc(func(context.Context) (Mailbox, error) { return f, nil })
}

func draftStatuses(t *testing.T, store *CampaignStore, campaignID uint) []models.DraftStatus {
	t.Helper()
	ds, err := store.Drafts(context.Background(), campaignID)
	require.NoError(t, err)
	out := make([]models.DraftStatus, len(ds))
	for i, d := range ds {
		out[i] = d.Status
	}
	return out
}
