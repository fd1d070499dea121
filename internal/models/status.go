package models

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when a status change is not in the transition table.
var ErrIllegalTransition = errors.New("illegal status transition")

type CampaignStatus string

const (
	CampaignGathering       CampaignStatus = "gathering"
	CampaignWaitingApproval CampaignStatus = "waiting_approval"
	CampaignApproved        CampaignStatus = "approved"
	CampaignCompleted       CampaignStatus = "completed"
	CampaignCancelled       CampaignStatus = "cancelled"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignGathering:       {CampaignWaitingApproval, CampaignCancelled},
	CampaignWaitingApproval: {CampaignApproved, CampaignCompleted, CampaignCancelled},
	CampaignApproved:        {CampaignCompleted, CampaignCancelled},
}

// ActiveCampaignStatuses block a new generation run for the same user. The
// closing rule never produces approved, but a row set to it by hand still has
// unsent drafts and must not be overtaken by a new batch.
var ActiveCampaignStatuses = []CampaignStatus{CampaignGathering, CampaignWaitingApproval, CampaignApproved}

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignGathering, CampaignWaitingApproval, CampaignApproved, CampaignCompleted, CampaignCancelled:
		return true
	}
	return false
}

func (s CampaignStatus) Active() bool {
	return s == CampaignGathering || s == CampaignWaitingApproval || s == CampaignApproved
}

func (s CampaignStatus) Terminal() bool {
	return s == CampaignCompleted || s == CampaignCancelled
}

func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates s -> next against the table.
func (s CampaignStatus) Transition(next CampaignStatus) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: campaign %s -> %s", ErrIllegalTransition, s, next)
	}
	return nil
}

type DraftStatus string

const (
	DraftPending  DraftStatus = "pending"
	DraftApproved DraftStatus = "approved"
	DraftRejected DraftStatus = "rejected"
	DraftSent     DraftStatus = "sent"
)

// pending -> pending is the EDIT loop; approved -> approved is not listed,
// re-approving is handled as a no-op by the caller.
var draftTransitions = map[DraftStatus][]DraftStatus{
	DraftPending:  {DraftApproved, DraftRejected, DraftPending},
	DraftApproved: {DraftRejected, DraftPending, DraftSent},
	DraftRejected: {DraftPending},
}

func (s DraftStatus) Valid() bool {
	switch s {
	case DraftPending, DraftApproved, DraftRejected, DraftSent:
		return true
	}
	return false
}

// Decided drafts no longer wait on the owner.
func (s DraftStatus) Decided() bool {
	return s != DraftPending
}

// Terminal drafts count toward closing a campaign.
func (s DraftStatus) Terminal() bool {
	return s == DraftSent || s == DraftRejected
}

func (s DraftStatus) CanTransitionTo(next DraftStatus) bool {
	for _, allowed := range draftTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s DraftStatus) Transition(next DraftStatus) error {
	if !s.CanTransitionTo(next) {
		return fmt.Errorf("%w: draft %s -> %s", ErrIllegalTransition, s, next)
	}
	return nil
}

// ClosingStatus applies the campaign closing rule to a set of draft statuses.
// ok is false when the campaign should keep its current status. A campaign
// stays open, and keeps receiving replies, until every draft is sent or rejected.
func ClosingStatus(current CampaignStatus, drafts []DraftStatus) (next CampaignStatus, ok bool) {
	if current != CampaignWaitingApproval && current != CampaignApproved {
		return current, false
	}
	if len(drafts) == 0 {
		return CampaignCancelled, true
	}

	sent := 0
	for _, st := range drafts {
		if !st.Terminal() {
			return current, false
		}
		if st == DraftSent {
			sent++
		}
	}
	if sent > 0 {
		return CampaignCompleted, true
	}
	return CampaignCancelled, true
}
