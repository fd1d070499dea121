package services

import (
	"fmt"
	"strings"

	"github.com/justsurfingit/job-outreach/internal/models"
)

// ApprovalEmail is the summary the owner replies to.
type ApprovalEmail struct {
	Subject string
	Body    string
}

// ApprovalSubject is the daily summary subject. The inbox monitor keys on
// the "Approval Needed" part of it.
func ApprovalSubject(n int) string {
	return fmt.Sprintf("🕓 Approval Needed – %d Job Outreach Emails Ready", n)
}

func RevisionSubject(n int) string {
	return fmt.Sprintf("🕓 Approval Needed – %d Revised Outreach Emails", n)
}

// ComposeApprovalEmail lists every draft under its sequence number with the
// reply templates for it. drafts must be in sequence order.
func ComposeApprovalEmail(drafts []models.Draft) ApprovalEmail {
	return ApprovalEmail{
		Subject: ApprovalSubject(len(drafts)),
		Body:    composeSummary("Here are your daily drafted emails for approval.", drafts),
	}
}

// ComposeRevisionEmail lists only the revised drafts, keeping their original numbers.
func ComposeRevisionEmail(revised []models.Draft) ApprovalEmail {
	return ApprovalEmail{
		Subject: RevisionSubject(len(revised)),
		Body: composeSummary("These drafts were rewritten following your EDIT instructions. "+
			"Numbers refer to the original summary.", revised),
	}
}

func composeSummary(intro string, drafts []models.Draft) string {
	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n\n")
	b.WriteString(strings.Repeat("-", 30))
	b.WriteString("\n")

	for _, d := range drafts {
		i := d.Sequence
		job := d.JobPost
		fmt.Fprintf(&b, "\nEMAIL #%d\n", i)
		fmt.Fprintf(&b, "Company: %s\n", job.Company.Name)
		fmt.Fprintf(&b, "Role: %s\n", job.Title)
		fmt.Fprintf(&b, "HR Email: %s (%s)\n", job.RecruiterEmail, job.VerificationStatus)
		fmt.Fprintf(&b, "Job Link: %s\n", job.JobLink)
		fmt.Fprintf(&b, "Subject: %s\n", d.ProposedSubject)
		b.WriteString("\n--- DRAFT BODY ---\n")
		b.WriteString(d.ProposedBody)
		b.WriteString("\n------------------\n")
		fmt.Fprintf(&b, "\nREPLY TO APPROVE:  APPROVE %d\n", i)
		fmt.Fprintf(&b, "REPLY TO REJECT:   REJECT %d\n", i)
		fmt.Fprintf(&b, "REPLY TO EDIT:     EDIT %d: <instructions>\n", i)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", 30))
		b.WriteString("\n")
	}
	return b.String()
}
