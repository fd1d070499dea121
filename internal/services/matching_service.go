package services

import (
	"net/mail"
	"strings"
)

// ReplyMatcher decides whether an inbound message is an approval reply the
// monitor should act on.
type ReplyMatcher struct {
	// Marker must appear in the subject, e.g. "Approval Needed".
	Marker string
	// Owners are the addresses allowed to send commands. Empty accepts any sender.
	Owners []string
}

func NewReplyMatcher(marker string, owners ...string) *ReplyMatcher {
	m := &ReplyMatcher{Marker: marker}
	for _, o := range owners {
		if o = strings.ToLower(strings.TrimSpace(o)); o != "" {
			m.Owners = append(m.Owners, o)
		}
	}
	return m
}

func (m *ReplyMatcher) IsApprovalReply(subject string) bool {
	return m.Marker != "" && strings.Contains(subject, m.Marker)
}

// FromOwner parses the From header ("Jane <jane@x.com>" or a bare address)
// and compares the address case-insensitively.
func (m *ReplyMatcher) FromOwner(rawSender string) bool {
	if len(m.Owners) == 0 {
		return true
	}
	addr := strings.ToLower(strings.TrimSpace(rawSender))
	if parsed, err := mail.ParseAddress(rawSender); err == nil {
		addr = strings.ToLower(parsed.Address)
	}
	for _, o := range m.Owners {
		if addr == o {
			return true
		}
	}
	return false
}
