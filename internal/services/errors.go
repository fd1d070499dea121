package services

import (
	"errors"
	"fmt"
)

var (
	ErrNoProfile          = errors.New("no user profile found")
	ErrNoAwaitingCampaign = errors.New("no campaign is waiting for approval")
	ErrAmbiguousCampaign  = errors.New("more than one campaign is waiting for approval")
	ErrIndexOutOfRange    = errors.New("draft index out of range")
	ErrNoDrafts           = errors.New("no draft could be created")
	ErrJobLocked          = errors.New("job is already running")
	ErrEmptyCompletion    = errors.New("empty completion")
)

// IndexError reports a reply index that does not name a draft of the campaign.
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d not in [1, %d]", e.Index, e.Count)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }
